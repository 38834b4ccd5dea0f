package locate

import (
	"encoding/json"
	"sort"
)

// locatorState is the JSON wire form of a Locator snapshot. The field names
// are part of the persisted format; changing them invalidates stored
// snapshots (restores then fall back to an empty Locator).
type locatorState struct {
	Words         []string         `json:"words"`
	Windows       []Window         `json:"windows"`
	InvertedIndex map[string][]int `json:"inverted_index"`
	WindowSize    int              `json:"window_size_words"`
	StepSize      int              `json:"step_size_words"`
}

// Serialize encodes the full Locator state as a JSON string. The encoding is
// lossless: [Deserialize] of the result reproduces identical query behavior.
func (l *Locator) Serialize() string {
	state := locatorState{
		Words:         l.words,
		Windows:       l.windows,
		InvertedIndex: l.inverted,
		WindowSize:    l.windowSize,
		StepSize:      l.stepSize,
	}
	data, err := json.Marshal(state)
	if err != nil {
		// Unreachable for these field types; keep the availability contract
		// of Deserialize rather than surfacing an error.
		return "{}"
	}
	return string(data)
}

// Deserialize restores a Locator from a [Locator.Serialize] blob. It never
// fails: any parse or structural error yields a fresh empty Locator with
// default parameters, against which every query reports no match. Callers
// that need to detect a failed restore should check [Locator.WindowCount].
func Deserialize(blob string) *Locator {
	l := New()

	var state locatorState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return l
	}

	l.words = state.Words
	l.windows = state.Windows
	if state.InvertedIndex != nil {
		l.inverted = state.InvertedIndex
	}
	if state.WindowSize >= 1 {
		l.windowSize = state.WindowSize
	}
	if state.StepSize >= 1 {
		l.stepSize = state.StepSize
	}

	// Posting lists may arrive in any order from hand-written or foreign
	// snapshots; ranking determinism depends on ascending ids.
	for _, ids := range l.inverted {
		sort.Ints(ids)
	}

	return l
}
