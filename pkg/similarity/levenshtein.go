package similarity

import (
	"strings"
	"unicode/utf8"
)

// Levenshtein returns the classic character-level edit distance between a and
// b, computed over runes with two rolling rows (O(len(a)·len(b)) time,
// O(len(b)) extra space).
func Levenshtein(a, b string) int {
	s1 := []rune(a)
	s2 := []rune(b)
	m, n := len(s1), len(s2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

// StringSimilarity returns the normalized edit distance between the lowercased
// inputs: 0 means identical, 1 means entirely different. Both empty yields 0.
//
// Note the orientation: this is a distance ratio, so call sites wanting a
// similarity use 1 - StringSimilarity(a, b).
func StringSimilarity(a, b string) float64 {
	s1 := strings.ToLower(a)
	s2 := strings.ToLower(b)
	maxLen := max(utf8.RuneCountInString(s1), utf8.RuneCountInString(s2))
	if maxLen == 0 {
		return 0
	}
	return float64(Levenshtein(s1, s2)) / float64(maxLen)
}
