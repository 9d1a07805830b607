package session

import "github.com/Peleke/colloquium/internal/domain"

// aggregator maintains the session-wide error rollup incrementally.
// The manager folds each graded learner turn in exactly once (it only
// ever appends, never re-processes a turn number), which makes the
// incremental result identical to a full recomputation.
type aggregator struct {
	agg domain.ErrorAggregate
}

func newAggregator() *aggregator {
	return &aggregator{agg: domain.NewErrorAggregate()}
}

// Fold adds the errors of one graded learner turn to the aggregate.
// Non-learner and error-free turns are no-ops.
func (a *aggregator) Fold(turn domain.Turn) {
	if turn.Speaker != domain.SpeakerLearner || turn.Correction == nil {
		return
	}
	if !turn.Correction.HasErrors {
		return
	}
	for _, rec := range turn.Correction.Errors {
		a.agg.ByCategory[rec.Category]++
		a.agg.All = append(a.agg.All, domain.AggregateEntry{
			TurnNumber: turn.TurnNumber,
			Record:     rec,
		})
	}
}

// Snapshot returns a deep copy of the current aggregate.
func (a *aggregator) Snapshot() domain.ErrorAggregate {
	return a.agg.Clone()
}

// RecomputeFromTranscript rebuilds the aggregate from scratch. It is a
// pure function with no hidden state, used to verify that the live
// incremental aggregate matches a full replay.
func RecomputeFromTranscript(turns []domain.Turn) domain.ErrorAggregate {
	a := newAggregator()
	for _, turn := range turns {
		a.Fold(turn)
	}
	return a.Snapshot()
}
