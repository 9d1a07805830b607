package session

import (
	"testing"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turn(n int, speaker domain.Speaker, content string) domain.Turn {
	return domain.Turn{TurnNumber: n, Speaker: speaker, Content: content}
}

func gradedTurn(n int, content string, errs ...domain.ErrorRecord) domain.Turn {
	t := turn(n, domain.SpeakerLearner, content)
	t.Correction = &domain.Correction{HasErrors: len(errs) > 0, Errors: errs}
	return t
}

func TestTranscriptAppendSequencing(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(turn(1, domain.SpeakerCounterpart, "salve")))
	require.NoError(t, tr.Append(
		turn(2, domain.SpeakerLearner, "salve et tu"),
		turn(3, domain.SpeakerCounterpart, "quid agis?"),
	))
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, 4, tr.NextTurnNumber())

	// Gaps and duplicates are rejected
	assert.Error(t, tr.Append(turn(5, domain.SpeakerLearner, "x")))
	assert.Error(t, tr.Append(turn(3, domain.SpeakerLearner, "x")))
	assert.Equal(t, 3, tr.Len())
}

func TestTranscriptNumbersAreGapless(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(
		turn(1, domain.SpeakerCounterpart, "a"),
		turn(2, domain.SpeakerLearner, "b"),
		turn(3, domain.SpeakerCounterpart, "c"),
		turn(4, domain.SpeakerLearner, "d"),
	))
	for i, tn := range tr.All() {
		assert.Equal(t, i+1, tn.TurnNumber)
	}
}

func TestTranscriptGet(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(turn(1, domain.SpeakerCounterpart, "salve")))

	got, ok := tr.Get(1)
	require.True(t, ok)
	assert.Equal(t, "salve", got.Content)

	_, ok = tr.Get(0)
	assert.False(t, ok)
	_, ok = tr.Get(2)
	assert.False(t, ok)
}

func TestTranscriptAllReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(turn(1, domain.SpeakerCounterpart, "salve")))

	all := tr.All()
	all[0].Content = "mutated"

	got, _ := tr.Get(1)
	assert.Equal(t, "salve", got.Content)
}

func TestLearnerTurnsWithErrors(t *testing.T) {
	rec := domain.ErrorRecord{ErrorText: "vis", Correction: "velis", Category: domain.CategoryGrammar}

	tr := NewTranscript()
	require.NoError(t, tr.Append(
		turn(1, domain.SpeakerCounterpart, "salve"),
		gradedTurn(2, "quid tu vis?", rec),
		turn(3, domain.SpeakerCounterpart, "panem volo"),
		gradedTurn(4, "ecce panis"), // graded clean
		turn(5, domain.SpeakerCounterpart, "gratias"),
	))

	flagged := tr.LearnerTurnsWithErrors()
	require.Len(t, flagged, 1)
	assert.Equal(t, 2, flagged[0].TurnNumber)
}
