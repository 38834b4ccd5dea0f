package similarity_test

import (
	"math"
	"testing"

	"github.com/antzucaro/matchr"

	"github.com/lecternhq/lectern/pkg/similarity"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"book", "book", 0},
		{"book", "boot", 1},
		{"straße", "strasse", 2},
	}

	for _, tc := range tests {
		if got := similarity.Levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

// TestLevenshtein_AgreesWithMatchr cross-checks our rolling-row implementation
// against the matchr library over a corpus of word pairs.
func TestLevenshtein_AgreesWithMatchr(t *testing.T) {
	t.Parallel()

	words := []string{
		"", "a", "ab", "reading", "reeding", "lectern", "lantern",
		"transcription", "transcript", "whale", "wail", "quick", "quack",
		"unpronounceable", "word120",
	}
	for _, a := range words {
		for _, b := range words {
			got := similarity.Levenshtein(a, b)
			want := matchr.Levenshtein(a, b)
			if got != want {
				t.Errorf("Levenshtein(%q, %q) = %d, matchr says %d", a, b, got, want)
			}
		}
	}
}

func TestStringSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 0},
		{"identical", "whale", "whale", 0},
		{"case insensitive", "Whale", "wHALE", 0},
		{"one edit of five", "whale", "while", 0.2},
		{"entirely different", "ab", "xy", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := similarity.StringSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("StringSimilarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
