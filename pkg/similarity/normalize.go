// Package similarity provides the pure text-comparison primitives used by the
// lectern locator: Unicode-aware normalization, edit distance, n-gram and
// word-level similarity measures, and a bounded Smith-Waterman token aligner.
//
// Every function in this package is stateless and safe for concurrent use.
// None of them return errors — all inputs, including empty strings and text
// without any alphanumeric characters, produce a well-defined result.
package similarity

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases text, replaces every rune that is neither a letter,
// digit, nor whitespace with a single space, collapses whitespace runs to one
// space, and trims both ends. Returns "" for input without alphanumerics.
func NormalizeText(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize normalizes text and splits it into word tokens. The returned slice
// is nil when the text contains no alphanumeric characters.
func Tokenize(text string) []string {
	fields := strings.Fields(NormalizeText(text))
	if len(fields) == 0 {
		return nil
	}
	return fields
}
