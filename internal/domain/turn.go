package domain

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerLearner     Speaker = "learner"
	SpeakerCounterpart Speaker = "counterpart"
)

// ErrorCategory classifies one flagged mistake.
type ErrorCategory string

const (
	CategoryGrammar    ErrorCategory = "grammar"
	CategoryVocabulary ErrorCategory = "vocabulary"
	CategorySyntax     ErrorCategory = "syntax"
)

// Categories lists the three fixed error categories.
var Categories = []ErrorCategory{CategoryGrammar, CategoryVocabulary, CategorySyntax}

// Valid reports whether c is one of the three known categories.
func (c ErrorCategory) Valid() bool {
	return c == CategoryGrammar || c == CategoryVocabulary || c == CategorySyntax
}

// ErrorRecord is one flagged mistake in a learner turn. Immutable once
// created; the owning Turn holds it and the session aggregate copies it
// by value.
type ErrorRecord struct {
	ErrorText   string        `json:"errorText"`
	Correction  string        `json:"correction"`
	Explanation string        `json:"explanation"`
	Category    ErrorCategory `json:"category"`
}

// Correction is the grading result attached to one learner turn.
// Errors is empty iff HasErrors is false.
type Correction struct {
	HasErrors bool          `json:"hasErrors"`
	Errors    []ErrorRecord `json:"errors,omitempty"`
}

// Turn is a single utterance by either speaker. TurnNumber is 1-based and
// strictly increasing across the whole session regardless of speaker.
// Correction is present only on graded learner turns.
type Turn struct {
	ID         string      `json:"id"`
	TurnNumber int         `json:"turnNumber"`
	Speaker    Speaker     `json:"speaker"`
	Content    string      `json:"content"`
	Correction *Correction `json:"correction,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// AggregateEntry pairs an error record with the turn it came from.
type AggregateEntry struct {
	TurnNumber int         `json:"turnNumber"`
	Record     ErrorRecord `json:"record"`
}

// ErrorAggregate is the session-wide error rollup. All preserves turn
// order — the review step and transcript replay rely on that ordering.
type ErrorAggregate struct {
	ByCategory map[ErrorCategory]int `json:"byCategory"`
	All        []AggregateEntry      `json:"all,omitempty"`
}

// NewErrorAggregate returns an empty aggregate with all category
// counters present and zeroed.
func NewErrorAggregate() ErrorAggregate {
	by := make(map[ErrorCategory]int, len(Categories))
	for _, c := range Categories {
		by[c] = 0
	}
	return ErrorAggregate{ByCategory: by}
}

// Total returns the number of errors across all categories.
func (a ErrorAggregate) Total() int {
	n := 0
	for _, c := range a.ByCategory {
		n += c
	}
	return n
}

// Clone returns a deep copy so callers cannot mutate the live aggregate.
func (a ErrorAggregate) Clone() ErrorAggregate {
	out := ErrorAggregate{
		ByCategory: make(map[ErrorCategory]int, len(a.ByCategory)),
		All:        make([]AggregateEntry, len(a.All)),
	}
	for k, v := range a.ByCategory {
		out.ByCategory[k] = v
	}
	copy(out.All, a.All)
	return out
}

// Equal reports whether two aggregates have identical counts and the
// same ordered error list.
func (a ErrorAggregate) Equal(b ErrorAggregate) bool {
	if len(a.All) != len(b.All) {
		return false
	}
	for i := range a.All {
		if a.All[i] != b.All[i] {
			return false
		}
	}
	for _, c := range Categories {
		if a.ByCategory[c] != b.ByCategory[c] {
			return false
		}
	}
	return true
}
