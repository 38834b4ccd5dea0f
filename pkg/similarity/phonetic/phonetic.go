// Package phonetic matches spoken phrases against a set of known names using
// Double Metaphone phonetic encoding combined with Jaro-Winkler similarity.
//
// Speech-to-text output mangles proper nouns badly ("moby dick" becomes
// "mobi dic", "ishmael" becomes "ish mail"), so plain edit distance often
// fails exactly where it is needed most. The matcher proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each token of the spoken phrase and of each known name. A name whose
//     codes overlap with the phrase's codes becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the name with the
//     highest Jaro-Winkler similarity wins, provided it clears the phonetic
//     threshold. When no phonetic candidate exists, a secondary pass tests
//     pure Jaro-Winkler similarity against all names with a stricter fuzzy
//     threshold.
//
// Multi-word names ("A Tale of Two Cities") are handled by comparing full
// strings, space-stripped strings, and the best pairwise token score.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched name to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher ranks known names against noisy spoken phrases. Read-only after
// construction, so safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the name most phonetically similar to the spoken phrase.
//
// spoken may be a single word or a space-separated phrase. When matched is
// false, name is empty and score is 0.
func (m *Matcher) Match(spoken string, names []string) (name string, score float64, matched bool) {
	if len(names) == 0 || strings.TrimSpace(spoken) == "" {
		return "", 0, false
	}

	spokenLower := strings.ToLower(strings.TrimSpace(spoken))
	spokenTokens := strings.Fields(spokenLower)
	spokenCodes := codesForTokens(spokenTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, n := range names {
		nameLower := strings.ToLower(strings.TrimSpace(n))
		if nameLower == "" {
			continue
		}
		nameTokens := strings.Fields(nameLower)

		phoneticMatch := codesOverlap(spokenCodes, codesForTokens(nameTokens))
		jwScore := bestJWScore(spokenTokens, nameTokens, spokenLower, nameLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{name: n, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{name: n, score: jwScore, phonetic: false}
			}
		}
	}

	if best.name != "" {
		return best.name, best.score, true
	}
	return "", 0, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the spoken
// phrase and the name using three strategies: full strings, space-stripped
// strings, and the best pairwise token score.
func bestJWScore(spokenTokens, nameTokens []string, spokenFull, nameFull string) float64 {
	score := matchr.JaroWinkler(spokenFull, nameFull, false)

	if len(spokenTokens) > 1 || len(nameTokens) > 1 {
		concat1 := strings.Join(spokenTokens, "")
		concat2 := strings.Join(nameTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, st := range spokenTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(st, nt, false); s > score {
				score = s
			}
		}
	}

	return score
}
