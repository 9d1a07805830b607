package session

import (
	"fmt"
	"sync"

	"github.com/Peleke/colloquium/internal/domain"
)

// Transcript is the append-only ordered turn store for one session.
// There is no mutation API beyond Append and no deletion; turns live in
// process memory for the session's lifetime.
type Transcript struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds turns to the transcript. Each turn's number must be the
// next in sequence; gaps and renumbering are rejected so the
// turns[i].TurnNumber == i+1 invariant holds by construction.
func (t *Transcript) Append(turns ...domain.Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, turn := range turns {
		want := len(t.turns) + 1
		if turn.TurnNumber != want {
			return fmt.Errorf("turn number %d out of sequence, want %d", turn.TurnNumber, want)
		}
		t.turns = append(t.turns, turn)
	}
	return nil
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// NextTurnNumber returns the number the next appended turn must carry.
func (t *Transcript) NextTurnNumber() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns) + 1
}

// All returns a copy of every turn in order.
func (t *Transcript) All() []domain.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Get returns the turn with the given 1-based number.
func (t *Transcript) Get(turnNumber int) (domain.Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if turnNumber < 1 || turnNumber > len(t.turns) {
		return domain.Turn{}, false
	}
	return t.turns[turnNumber-1], true
}

// LearnerTurnsWithErrors returns every learner turn whose correction
// flagged at least one error, in turn order.
func (t *Transcript) LearnerTurnsWithErrors() []domain.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []domain.Turn
	for _, turn := range t.turns {
		if turn.Speaker != domain.SpeakerLearner {
			continue
		}
		if turn.Correction != nil && turn.Correction.HasErrors {
			out = append(out, turn)
		}
	}
	return out
}
