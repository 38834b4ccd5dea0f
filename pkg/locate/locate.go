// Package locate implements the fuzzy text-location engine at the heart of
// lectern. A [Locator] pre-indexes a large text into overlapping token windows
// with an inverted 3-token-shingle index; [Locator.Query] then finds the span
// of the text best matching a noisy transcript snippet by ranking candidate
// windows on shingle overlap and running a bounded local alignment against
// each one.
//
// A Locator is not internally synchronized. [Locator.Preprocess] replaces the
// whole index and must not run concurrently with [Locator.Query]; queries
// against an unmodified Locator are pure reads and may run in parallel.
package locate

import (
	"sort"
	"strings"

	"github.com/lecternhq/lectern/pkg/similarity"
)

// Default indexing parameters.
const (
	DefaultWindowSize = 100
	DefaultStepSize   = 30
	DefaultTopK       = 20
)

// shingleSize is the token count of every indexed shingle.
const shingleSize = 3

// Window is one overlapping segment of the indexed text. StartWord and
// EndWord are inclusive absolute token indices; ID equals generation order.
type Window struct {
	ID        int      `json:"id"`
	StartWord int      `json:"start_word_index"`
	EndWord   int      `json:"end_word_index"`
	Tokens    []string `json:"tokens"`
}

// QueryResult describes where a snippet was found in the indexed text.
// StartWord and EndWord are inclusive absolute token indices.
type QueryResult struct {
	WindowID       int     `json:"window_id"`
	StartWord      int     `json:"start_word_index"`
	EndWord        int     `json:"end_word_index"`
	MatchedText    string  `json:"matched_text"`
	AlignmentScore int     `json:"alignment_score"`
	Confidence     float64 `json:"confidence"`
}

// Locator owns the indexed text state as one replace-on-rebuild unit: the
// token sequence, the window list, and the inverted shingle index.
type Locator struct {
	words      []string
	windows    []Window
	inverted   map[string][]int
	windowSize int
	stepSize   int
	topK       int
}

// Option configures a [Locator] at construction time.
type Option func(*Locator)

// WithWindowSize sets the token length of each indexed window. Values below 1
// are ignored. Default 100.
func WithWindowSize(n int) Option {
	return func(l *Locator) {
		if n >= 1 {
			l.windowSize = n
		}
	}
}

// WithStepSize sets the token offset between consecutive window starts.
// Values below 1 are ignored. Default 30.
func WithStepSize(n int) Option {
	return func(l *Locator) {
		if n >= 1 {
			l.stepSize = n
		}
	}
}

// WithTopK caps the number of candidate windows evaluated per query. Values
// below 1 are ignored. Default 20.
func WithTopK(n int) Option {
	return func(l *Locator) {
		if n >= 1 {
			l.topK = n
		}
	}
}

// New creates an empty Locator. Until [Locator.Preprocess] runs, every query
// reports no match.
func New(opts ...Option) *Locator {
	l := &Locator{
		inverted:   make(map[string][]int),
		windowSize: DefaultWindowSize,
		stepSize:   DefaultStepSize,
		topK:       DefaultTopK,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Preprocess normalizes and indexes text, replacing any previously indexed
// state wholesale. It accepts any input; a text producing zero tokens yields
// an empty index against which every query reports no match.
func (l *Locator) Preprocess(text string) {
	words := similarity.Tokenize(text)

	var windows []Window
	inverted := make(map[string][]int)

	for start := 0; start < len(words); start += l.stepSize {
		end := min(start+l.windowSize, len(words))
		if end <= start {
			break
		}
		id := len(windows)
		w := Window{
			ID:        id,
			StartWord: start,
			EndWord:   end - 1,
			Tokens:    words[start:end],
		}
		for _, gram := range tokenShingles(w.Tokens) {
			// Windows are generated in order, so a duplicate posting can only
			// be the last appended id.
			ids := inverted[gram]
			if len(ids) == 0 || ids[len(ids)-1] != id {
				inverted[gram] = append(ids, id)
			}
		}
		windows = append(windows, w)

		// The final window always ends exactly at the last word.
		if end == len(words) {
			break
		}
	}

	l.words = words
	l.windows = windows
	l.inverted = inverted
}

// Query locates snippet within the indexed text. It reports ok=false when no
// text is indexed, the snippet normalizes to zero tokens, or no candidate
// window produces a positive alignment score.
func (l *Locator) Query(snippet string) (QueryResult, bool) {
	if len(l.windows) == 0 {
		return QueryResult{}, false
	}

	queryTokens := similarity.Tokenize(snippet)
	if len(queryTokens) == 0 {
		return QueryResult{}, false
	}

	candidates := l.rankCandidates(queryTokens)

	best := similarity.TokenAlignment{Score: -1}
	bestWindow := -1
	for _, id := range candidates {
		// Restored snapshots may carry postings for windows that no longer
		// exist; skip them rather than trusting the index blindly.
		if id < 0 || id >= len(l.windows) {
			continue
		}
		w := l.windows[id]
		alignment := similarity.AlignTokens(queryTokens, w.Tokens, max(best.Score, 0))
		if alignment.Score > best.Score {
			best = alignment
			bestWindow = id
		}
	}

	if bestWindow < 0 || best.Score <= 0 {
		return QueryResult{}, false
	}

	w := l.windows[bestWindow]
	absStart := w.StartWord + best.Start
	absEnd := w.StartWord + best.End
	// Defensive bounds check against any indexing inconsistency. Restored
	// snapshots can carry windows with negative start indices, so both ends
	// need guarding before slicing.
	if absStart < 0 || absStart > absEnd || absEnd >= len(l.words) {
		return QueryResult{}, false
	}

	queryLen := max(len(queryTokens), 1)
	return QueryResult{
		WindowID:       bestWindow,
		StartWord:      absStart,
		EndWord:        absEnd,
		MatchedText:    strings.Join(l.words[absStart:absEnd+1], " "),
		AlignmentScore: best.Score,
		Confidence:     float64(best.Score) / float64(2*queryLen),
	}, true
}

// rankCandidates returns up to topK window ids ordered by descending
// shingle-overlap count, ties broken by ascending window id so results are
// reproducible across runs. Each occurrence of a query shingle counts once
// per window containing it. When nothing overlaps, the first windows by id
// serve as a coverage fallback so short or shingle-free snippets still get
// aligned against something.
func (l *Locator) rankCandidates(queryTokens []string) []int {
	overlap := make(map[int]int)
	for _, gram := range tokenShingles(queryTokens) {
		for _, id := range l.inverted[gram] {
			overlap[id]++
		}
	}

	if len(overlap) == 0 {
		n := min(l.topK, len(l.windows))
		fallback := make([]int, n)
		for i := range fallback {
			fallback[i] = i
		}
		return fallback
	}

	ranked := make([]int, 0, len(overlap))
	for id := range overlap {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(a, b int) bool {
		if overlap[ranked[a]] != overlap[ranked[b]] {
			return overlap[ranked[a]] > overlap[ranked[b]]
		}
		return ranked[a] < ranked[b]
	})

	if len(ranked) > l.topK {
		ranked = ranked[:l.topK]
	}
	return ranked
}

// tokenShingles returns every contiguous 3-token shingle of tokens,
// space-joined, in order and preserving duplicates.
func tokenShingles(tokens []string) []string {
	if len(tokens) < shingleSize {
		return nil
	}
	out := make([]string, 0, len(tokens)-shingleSize+1)
	for i := 0; i+shingleSize <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+shingleSize], " "))
	}
	return out
}

// WordCount returns the number of indexed tokens.
func (l *Locator) WordCount() int { return len(l.words) }

// WindowCount returns the number of indexed windows. Zero means the Locator
// is empty and every query reports no match.
func (l *Locator) WindowCount() int { return len(l.windows) }

// WindowSize returns the configured window length in tokens.
func (l *Locator) WindowSize() int { return l.windowSize }

// StepSize returns the configured step between window starts in tokens.
func (l *Locator) StepSize() int { return l.stepSize }

// TopK returns the configured candidate cap per query.
func (l *Locator) TopK() int { return l.topK }

// Words returns the indexed token sequence. The slice is owned by the Locator
// and must be treated as read-only.
func (l *Locator) Words() []string { return l.words }
