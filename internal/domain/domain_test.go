package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateAdvancesOnlyForward(t *testing.T) {
	assert.True(t, StateSelection.CanAdvanceTo(StateActive))
	assert.True(t, StateActive.CanAdvanceTo(StateReviewing))
	assert.True(t, StateReviewing.CanAdvanceTo(StateTerminal))

	// No skipping
	assert.False(t, StateSelection.CanAdvanceTo(StateReviewing))
	assert.False(t, StateActive.CanAdvanceTo(StateTerminal))

	// No going back
	assert.False(t, StateActive.CanAdvanceTo(StateSelection))
	assert.False(t, StateTerminal.CanAdvanceTo(StateReviewing))
	assert.False(t, StateTerminal.CanAdvanceTo(StateTerminal))
}

func TestStateUnknownNeverAdvances(t *testing.T) {
	assert.False(t, SessionState("bogus").CanAdvanceTo(StateActive))
	assert.False(t, StateSelection.CanAdvanceTo(SessionState("bogus")))
}

func TestLevelValid(t *testing.T) {
	for _, l := range Levels {
		assert.True(t, l.Valid(), string(l))
	}
	assert.False(t, Level("D1").Valid())
	assert.False(t, Level("").Valid())
	assert.False(t, Level("a1").Valid())
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, ErrorCategory("spelling").Valid())
	assert.False(t, ErrorCategory("").Valid())
}

func TestRatingValid(t *testing.T) {
	for _, r := range Ratings {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, Rating("perfect").Valid())
}

func TestNewErrorAggregateZeroed(t *testing.T) {
	agg := NewErrorAggregate()
	require.Len(t, agg.ByCategory, 3)
	for _, c := range Categories {
		assert.Equal(t, 0, agg.ByCategory[c])
	}
	assert.Equal(t, 0, agg.Total())
	assert.Empty(t, agg.All)
}

func TestAggregateCloneIsDeep(t *testing.T) {
	agg := NewErrorAggregate()
	agg.ByCategory[CategoryGrammar] = 2
	agg.All = append(agg.All, AggregateEntry{
		TurnNumber: 1,
		Record:     ErrorRecord{ErrorText: "vis", Correction: "velis", Category: CategoryGrammar},
	})

	clone := agg.Clone()
	clone.ByCategory[CategoryGrammar] = 99
	clone.All[0].TurnNumber = 42

	assert.Equal(t, 2, agg.ByCategory[CategoryGrammar])
	assert.Equal(t, 1, agg.All[0].TurnNumber)
}

func TestAggregateEqual(t *testing.T) {
	a := NewErrorAggregate()
	b := NewErrorAggregate()
	assert.True(t, a.Equal(b))

	rec := ErrorRecord{ErrorText: "amas", Correction: "amat", Category: CategoryGrammar}
	a.ByCategory[CategoryGrammar]++
	a.All = append(a.All, AggregateEntry{TurnNumber: 3, Record: rec})
	assert.False(t, a.Equal(b))

	b.ByCategory[CategoryGrammar]++
	b.All = append(b.All, AggregateEntry{TurnNumber: 3, Record: rec})
	assert.True(t, a.Equal(b))

	// Same counts, different order-relevant content
	c := a.Clone()
	c.All[0].Record.Explanation = "third person singular"
	assert.False(t, a.Equal(c))
}

func TestAggregateTotal(t *testing.T) {
	agg := NewErrorAggregate()
	agg.ByCategory[CategoryGrammar] = 2
	agg.ByCategory[CategoryVocabulary] = 1
	agg.ByCategory[CategorySyntax] = 4
	assert.Equal(t, 7, agg.Total())
}

func TestReviewCloneIsDeep(t *testing.T) {
	orig := &Review{
		Rating:         RatingVeryGood,
		Summary:        "strong session",
		ErrorBreakdown: map[ErrorCategory]int{CategoryGrammar: 2, CategoryVocabulary: 0, CategorySyntax: 1},
		Strengths:      []string{"fluency"},
		Improvements:   []string{"word order"},
	}

	cp := orig.Clone()
	cp.ErrorBreakdown[CategoryGrammar] = 99
	cp.Strengths[0] = "mangled"
	cp.Improvements[0] = "mangled"

	assert.Equal(t, 2, orig.ErrorBreakdown[CategoryGrammar])
	assert.Equal(t, "fluency", orig.Strengths[0])
	assert.Equal(t, "word order", orig.Improvements[0])

	var nilReview *Review
	assert.Nil(t, nilReview.Clone())
}
