package locate_test

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/lecternhq/lectern/pkg/locate"
)

func TestSerialize_RoundTripPreservesQueryResults(t *testing.T) {
	t.Parallel()

	words := make([]string, 300)
	for i := range words {
		words[i] = fmt.Sprintf("token%d", i)
	}
	l := makeLocator(t, strings.Join(words, " "))

	restored := locate.Deserialize(l.Serialize())

	if !slices.Equal(restored.Words(), l.Words()) {
		t.Error("normalized word sequence diverged after round trip")
	}

	snippets := []string{
		"token5 token6 token7 token8",
		"token50 token51 token52",
		"completely unrelated words here",
		"",
	}
	for _, s := range snippets {
		before, okBefore := l.Query(s)
		after, okAfter := restored.Query(s)
		if okBefore != okAfter || before != after {
			t.Errorf("query %q diverged after round trip: %+v/%v vs %+v/%v",
				s, before, okBefore, after, okAfter)
		}
	}
}

func TestSerialize_RoundTripPreservesParameters(t *testing.T) {
	t.Parallel()

	l := makeLocator(t, "a b c d e f g h i j",
		locate.WithWindowSize(4), locate.WithStepSize(2))
	restored := locate.Deserialize(l.Serialize())

	if restored.WindowSize() != 4 {
		t.Errorf("WindowSize = %d, want 4", restored.WindowSize())
	}
	if restored.StepSize() != 2 {
		t.Errorf("StepSize = %d, want 2", restored.StepSize())
	}
	if restored.WindowCount() != l.WindowCount() {
		t.Errorf("WindowCount = %d, want %d", restored.WindowCount(), l.WindowCount())
	}
	if restored.WordCount() != 10 {
		t.Errorf("WordCount = %d, want 10", restored.WordCount())
	}
}

func TestSerialize_EmptyLocatorRoundTrips(t *testing.T) {
	t.Parallel()

	l := locate.New()
	restored := locate.Deserialize(l.Serialize())
	if restored.WindowCount() != 0 {
		t.Errorf("WindowCount = %d, want 0", restored.WindowCount())
	}
	if _, ok := restored.Query("anything"); ok {
		t.Error("empty round-tripped locator reported a match")
	}
}

func TestDeserialize_GarbageYieldsEmptyLocator(t *testing.T) {
	t.Parallel()

	blobs := []string{
		"",
		"not json at all",
		"{",
		`{"words": "should be an array"}`,
		`[1, 2, 3]`,
		`{"words": [], "window_size_words": -10, "step_size_words": 0}`,
	}
	for _, blob := range blobs {
		l := locate.Deserialize(blob)
		if l == nil {
			t.Fatalf("Deserialize(%q) returned nil", blob)
		}
		if l.WindowCount() != 0 {
			t.Errorf("Deserialize(%q): WindowCount = %d, want 0", blob, l.WindowCount())
		}
		if l.WindowSize() != locate.DefaultWindowSize || l.StepSize() != locate.DefaultStepSize {
			t.Errorf("Deserialize(%q): parameters not reset to defaults", blob)
		}
		if _, ok := l.Query("anything at all"); ok {
			t.Errorf("Deserialize(%q): restored locator reported a match", blob)
		}
	}
}

func TestDeserialize_StalePostingsAreIgnored(t *testing.T) {
	t.Parallel()

	// A snapshot whose inverted index references a window that does not
	// exist must not panic and must not match.
	blob := `{
		"words": ["a", "b", "c"],
		"windows": [{"id": 0, "start_word_index": 0, "end_word_index": 2, "tokens": ["a", "b", "c"]}],
		"inverted_index": {"a b c": [0, 99]},
		"window_size_words": 100,
		"step_size_words": 30
	}`
	l := locate.Deserialize(blob)
	res, ok := l.Query("a b c")
	if !ok {
		t.Fatal("expected a match from the surviving window")
	}
	if res.WindowID != 0 {
		t.Errorf("WindowID = %d, want 0", res.WindowID)
	}
}

func TestDeserialize_NegativeWindowStartDoesNotPanic(t *testing.T) {
	t.Parallel()

	// A snapshot whose window claims a negative start index would slice
	// l.words with a negative bound; the query must report no match instead.
	blob := `{
		"words": ["a", "b", "c"],
		"windows": [{"id": 0, "start_word_index": -2, "end_word_index": 2, "tokens": ["a", "b", "c"]}],
		"inverted_index": {"a b c": [0]},
		"window_size_words": 100,
		"step_size_words": 30
	}`
	l := locate.Deserialize(blob)
	if res, ok := l.Query("a b c"); ok {
		t.Errorf("query against a negative-start window matched: %+v", res)
	}
}
