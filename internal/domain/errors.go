package domain

import "errors"

// Engine error taxonomy. Input and state errors are the caller's to fix
// and never retried; upstream errors are retryable by re-invoking the
// failed operation.
var (
	// ErrInvalidSelection means the start request is missing or carries an
	// unknown role, level, or language.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrEmptyTurn means the submitted learner content is empty or
	// whitespace-only; rejected locally without a model call.
	ErrEmptyTurn = errors.New("empty turn")

	// ErrSessionClosed means the session is terminal and accepts no
	// further operations.
	ErrSessionClosed = errors.New("session closed")

	// ErrTurnInFlight means another turn is currently being processed for
	// the same session.
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrUpstreamFailure means the model collaborator failed or returned
	// unusable output after the internal retry.
	ErrUpstreamFailure = errors.New("upstream model failure")

	// ErrReviewSynthesisFailed means review synthesis produced an
	// incomplete artifact; endSession may be retried.
	ErrReviewSynthesisFailed = errors.New("review synthesis failed")

	// ErrSourceNotFound means the referenced source material does not exist.
	ErrSourceNotFound = errors.New("source material not found")

	// ErrSessionNotFound means no session exists with the given id.
	ErrSessionNotFound = errors.New("session not found")
)

// IsRetryable reports whether the caller may safely retry the failed
// operation with the same input. Only upstream failures qualify: nothing
// was committed, so resubmission is safe.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamFailure) || errors.Is(err, ErrReviewSynthesisFailed)
}
