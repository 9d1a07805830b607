// Package session implements the practice session engine: the lifecycle
// state machine, the append-only transcript, the incremental error
// aggregate, and the single-flight turn protocol.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/logging"
	"github.com/Peleke/colloquium/internal/source"
)

// OpenRequest asks the processor for the counterpart's opening line.
type OpenRequest struct {
	CounterpartRole string
	LearnerRole     string
	Level           domain.Level
	TargetLanguage  string
	Setting         string
}

// ExchangeRequest is one turn-protocol step: the transcript so far plus
// the learner's newest utterance.
type ExchangeRequest struct {
	Transcript      []domain.Turn
	LearnerContent  string
	CounterpartRole string
	LearnerRole     string
	Level           domain.Level
	TargetLanguage  string
	Setting         string
}

// ExchangeResult is the processor's output for one learner turn: the
// grading of that utterance and the counterpart's next in-character
// reply, produced in a single model exchange so the two stay mutually
// consistent. ShouldEnd is advisory.
type ExchangeResult struct {
	Correction domain.Correction
	Reply      string
	ShouldEnd  bool
}

// Processor is the per-turn protocol with the model collaborator.
type Processor interface {
	Open(ctx context.Context, req OpenRequest) (string, error)
	Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error)
}

// ReviewRequest carries everything review synthesis needs: the full
// transcript and the final aggregate as grounding context.
type ReviewRequest struct {
	Transcript      []domain.Turn
	Aggregate       domain.ErrorAggregate
	CounterpartRole string
	LearnerRole     string
	Level           domain.Level
	TargetLanguage  string
}

// Synthesizer produces the end-of-session review. A partial review is
// never returned; synthesis fails as a whole.
type Synthesizer interface {
	Synthesize(ctx context.Context, req ReviewRequest) (*domain.Review, error)
}

// Config tunes the manager.
type Config struct {
	// TurnTimeout bounds each model exchange. A hung upstream call must
	// not leave a session stuck in flight. Zero disables the bound.
	TurnTimeout time.Duration

	// ReviewTimeout bounds review synthesis. Zero falls back to TurnTimeout.
	ReviewTimeout time.Duration

	// MaxLearnerTurns, when positive, flips the advisory end hint once a
	// session reaches this many learner turns.
	MaxLearnerTurns int
}

// StartRequest begins a session.
type StartRequest struct {
	SourceID        string       `json:"sourceMaterialId"`
	CounterpartRole string       `json:"counterpartRole"`
	Level           domain.Level `json:"proficiencyLevel"`
	TargetLanguage  string       `json:"targetLanguage,omitempty"`
}

// StartResult is the successful outcome of Start.
type StartResult struct {
	SessionID   string `json:"sessionId"`
	LearnerRole string `json:"learnerRole"`
	OpeningLine string `json:"openingLine"`
	TurnNumber  int    `json:"turnNumber"`
}

// TurnResult is the successful outcome of SubmitTurn.
type TurnResult struct {
	TurnNumber       int               `json:"turnNumber"`
	Correction       domain.Correction `json:"correction"`
	CounterpartReply string            `json:"counterpartReply"`
	ShouldEnd        bool              `json:"shouldEnd"`
}

// handle is the live state of one session. Sessions are independent
// aggregates: nothing here is shared across handles.
type handle struct {
	mu       sync.Mutex
	inFlight bool

	meta       domain.Session
	transcript *Transcript
	agg        *aggregator
	setting    string
}

// Manager owns session lifecycles and mediates every turn submission.
type Manager struct {
	cfg       Config
	processor Processor
	synth     Synthesizer
	sources   source.Lookup
	events    EventSink
	log       *logging.Logger
	now       func() time.Time
	newID     func() string

	mu       sync.RWMutex
	sessions map[string]*handle
}

// NewManager creates a session manager. events may be nil.
func NewManager(cfg Config, proc Processor, synth Synthesizer, sources source.Lookup, events EventSink, log *logging.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		processor: proc,
		synth:     synth,
		sources:   sources,
		events:    events,
		log:       log.Sub("session"),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		sessions:  make(map[string]*handle),
	}
}

// Start validates the selection, resolves the source material, asks the
// processor for the opening counterpart line, and registers the session
// in the active state with turn 1 already on the transcript. Nothing is
// registered if the opening exchange fails.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if req.CounterpartRole == "" {
		return nil, fmt.Errorf("%w: counterpart role is required", domain.ErrInvalidSelection)
	}
	if !req.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown proficiency level %q", domain.ErrInvalidSelection, req.Level)
	}

	material, err := m.sources.Get(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}
	if !material.HasRole(req.CounterpartRole) {
		return nil, fmt.Errorf("%w: role %q is not part of scene %q", domain.ErrInvalidSelection, req.CounterpartRole, material.ID)
	}

	lang := req.TargetLanguage
	if lang == "" {
		lang = material.TargetLanguage
	}
	learnerRole := material.Complement(req.CounterpartRole)

	openCtx, cancel := m.bound(ctx, m.cfg.TurnTimeout)
	defer cancel()

	opening, err := m.processor.Open(openCtx, OpenRequest{
		CounterpartRole: req.CounterpartRole,
		LearnerRole:     learnerRole,
		Level:           req.Level,
		TargetLanguage:  lang,
		Setting:         material.Setting,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening line: %w", domain.ErrUpstreamFailure, err)
	}

	now := m.now()
	h := &handle{
		meta: domain.Session{
			ID:              m.newID(),
			State:           domain.StateActive,
			SourceID:        material.ID,
			CounterpartRole: req.CounterpartRole,
			LearnerRole:     learnerRole,
			Level:           req.Level,
			TargetLanguage:  lang,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		transcript: NewTranscript(),
		agg:        newAggregator(),
		setting:    material.Setting,
	}

	openingTurn := domain.Turn{
		ID:         m.newID(),
		TurnNumber: 1,
		Speaker:    domain.SpeakerCounterpart,
		Content:    opening,
		Timestamp:  now,
	}
	if err := h.transcript.Append(openingTurn); err != nil {
		return nil, fmt.Errorf("appending opening turn: %w", err)
	}

	m.mu.Lock()
	m.sessions[h.meta.ID] = h
	m.mu.Unlock()

	m.log.Info().
		Str("sessionId", h.meta.ID).
		Str("source", material.ID).
		Str("counterpartRole", req.CounterpartRole).
		Str("level", string(req.Level)).
		Msg("session started")

	m.publish(Event{Type: EventSessionStarted, SessionID: h.meta.ID, Payload: openingTurn})

	return &StartResult{
		SessionID:   h.meta.ID,
		LearnerRole: learnerRole,
		OpeningLine: opening,
		TurnNumber:  1,
	}, nil
}

// SubmitTurn runs one protocol step for the learner's utterance. Either
// both the graded learner turn and the counterpart reply are appended,
// or nothing is; a failed or timed-out exchange leaves the session
// active with the transcript unchanged, so the caller may retry with
// the same content.
func (m *Manager) SubmitTurn(ctx context.Context, sessionID, content string) (*TurnResult, error) {
	h, err := m.handleFor(sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.meta.State != domain.StateActive {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", domain.ErrSessionClosed, h.meta.State)
	}
	if h.inFlight {
		h.mu.Unlock()
		return nil, domain.ErrTurnInFlight
	}
	if strings.TrimSpace(content) == "" {
		h.mu.Unlock()
		return nil, domain.ErrEmptyTurn
	}
	h.inFlight = true
	req := ExchangeRequest{
		Transcript:      h.transcript.All(),
		LearnerContent:  content,
		CounterpartRole: h.meta.CounterpartRole,
		LearnerRole:     h.meta.LearnerRole,
		Level:           h.meta.Level,
		TargetLanguage:  h.meta.TargetLanguage,
		Setting:         h.setting,
	}
	h.mu.Unlock()

	exCtx, cancel := m.bound(ctx, m.cfg.TurnTimeout)
	defer cancel()

	result, exErr := m.processor.Exchange(exCtx, req)

	h.mu.Lock()
	h.inFlight = false

	if exErr != nil {
		h.mu.Unlock()
		m.log.Warn().
			Str("sessionId", sessionID).
			Err(exErr).
			Msg("turn exchange failed, nothing committed")
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, exErr)
	}

	now := m.now()
	learnerTurn := domain.Turn{
		ID:         m.newID(),
		TurnNumber: h.transcript.NextTurnNumber(),
		Speaker:    domain.SpeakerLearner,
		Content:    content,
		Correction: &result.Correction,
		Timestamp:  now,
	}
	replyTurn := domain.Turn{
		ID:         m.newID(),
		TurnNumber: learnerTurn.TurnNumber + 1,
		Speaker:    domain.SpeakerCounterpart,
		Content:    result.Reply,
		Timestamp:  now,
	}

	// Both turns commit together or not at all.
	if err := h.transcript.Append(learnerTurn, replyTurn); err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("appending turns: %w", err)
	}
	h.agg.Fold(learnerTurn)
	h.meta.UpdatedAt = now

	shouldEnd := result.ShouldEnd
	if m.cfg.MaxLearnerTurns > 0 && m.learnerTurnCountLocked(h) >= m.cfg.MaxLearnerTurns {
		shouldEnd = true
	}
	h.mu.Unlock()

	m.log.Info().
		Str("sessionId", sessionID).
		Int("turnNumber", learnerTurn.TurnNumber).
		Bool("hasErrors", result.Correction.HasErrors).
		Bool("shouldEnd", shouldEnd).
		Msg("turn completed")

	// Published after the handle lock is released: the sink must never
	// be able to stall this session or any other.
	m.publish(Event{Type: EventTurnCompleted, SessionID: sessionID, Payload: []domain.Turn{learnerTurn, replyTurn}})

	return &TurnResult{
		TurnNumber:       learnerTurn.TurnNumber,
		Correction:       result.Correction,
		CounterpartReply: result.Reply,
		ShouldEnd:        shouldEnd,
	}, nil
}

// EndSession moves the session to reviewing and synthesizes the review.
// Synthesis has no side effects until it succeeds, so a failed call
// leaves the session in reviewing and EndSession may simply be called
// again. On success the session becomes terminal and read-only.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (*domain.Review, error) {
	h, err := m.handleFor(sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.meta.State == domain.StateTerminal {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: session is terminal", domain.ErrSessionClosed)
	}
	if h.inFlight {
		h.mu.Unlock()
		return nil, domain.ErrTurnInFlight
	}
	if h.meta.State == domain.StateActive {
		h.meta.State = domain.StateReviewing
	}
	h.inFlight = true
	req := ReviewRequest{
		Transcript:      h.transcript.All(),
		Aggregate:       h.agg.Snapshot(),
		CounterpartRole: h.meta.CounterpartRole,
		LearnerRole:     h.meta.LearnerRole,
		Level:           h.meta.Level,
		TargetLanguage:  h.meta.TargetLanguage,
	}
	h.mu.Unlock()

	timeout := m.cfg.ReviewTimeout
	if timeout == 0 {
		timeout = m.cfg.TurnTimeout
	}
	synthCtx, cancel := m.bound(ctx, timeout)
	defer cancel()

	review, synthErr := m.synth.Synthesize(synthCtx, req)

	h.mu.Lock()
	h.inFlight = false

	if synthErr != nil {
		h.mu.Unlock()
		m.log.Warn().
			Str("sessionId", sessionID).
			Err(synthErr).
			Msg("review synthesis failed, session stays in reviewing")
		return nil, fmt.Errorf("%w: %w", domain.ErrReviewSynthesisFailed, synthErr)
	}

	if err := validateReview(review, req.Aggregate); err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", domain.ErrReviewSynthesisFailed, err)
	}

	h.meta.Review = review
	h.meta.State = domain.StateTerminal
	h.meta.UpdatedAt = m.now()
	h.mu.Unlock()

	m.log.Info().
		Str("sessionId", sessionID).
		Str("rating", string(review.Rating)).
		Int("errors", req.Aggregate.Total()).
		Msg("session reviewed")

	// Published after the handle lock is released; see SubmitTurn.
	m.publish(Event{Type: EventSessionReviewed, SessionID: sessionID, Payload: review.Clone()})

	return review.Clone(), nil
}

// Snapshot returns a deep copy of the session's current state,
// including its transcript and aggregate.
func (m *Manager) Snapshot(sessionID string) (*domain.Session, error) {
	h, err := m.handleFor(sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	snap := h.meta
	snap.Turns = h.transcript.All()
	snap.Aggregate = h.agg.Snapshot()
	snap.Review = h.meta.Review.Clone()
	return &snap, nil
}

func (m *Manager) handleFor(sessionID string) (*handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return h, nil
}

func (m *Manager) learnerTurnCountLocked(h *handle) int {
	n := 0
	for _, t := range h.transcript.All() {
		if t.Speaker == domain.SpeakerLearner {
			n++
		}
	}
	return n
}

func (m *Manager) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *Manager) publish(evt Event) {
	if m.events != nil {
		m.events.Publish(evt)
	}
}

// validateReview enforces the whole-artifact contract: a review missing
// any part, carrying an unknown rating, or whose breakdown disagrees
// with the aggregate counts is rejected as a whole.
func validateReview(r *domain.Review, agg domain.ErrorAggregate) error {
	if r == nil {
		return fmt.Errorf("nil review")
	}
	if !r.Rating.Valid() {
		return fmt.Errorf("unknown rating %q", r.Rating)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("empty summary")
	}
	for _, c := range domain.Categories {
		if r.ErrorBreakdown[c] != agg.ByCategory[c] {
			return fmt.Errorf("breakdown mismatch for %s: review %d, aggregate %d",
				c, r.ErrorBreakdown[c], agg.ByCategory[c])
		}
	}
	return nil
}
