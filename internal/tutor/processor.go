// Package tutor implements the model-facing side of the session engine:
// the per-turn grade-and-reply protocol and end-of-session review
// synthesis, both over the llm.Client collaborator.
package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/llm"
	"github.com/Peleke/colloquium/internal/logging"
	"github.com/Peleke/colloquium/internal/session"
)

// Processor runs one protocol exchange per learner turn. On a malformed
// model payload it retries once with a clarifying re-prompt before
// surfacing the failure; it never fabricates a correction.
type Processor struct {
	client    llm.Client
	model     string
	maxTokens int
	log       *logging.Logger
}

// NewProcessor creates a turn processor over the given model client.
func NewProcessor(client llm.Client, model string, maxTokens int, log *logging.Logger) *Processor {
	return &Processor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		log:       log.Sub("tutor"),
	}
}

// Open asks the model for the counterpart's opening line.
func (p *Processor) Open(ctx context.Context, req session.OpenRequest) (string, error) {
	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Model:     p.model,
		System:    openSystemPrompt(req),
		MaxTokens: p.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Begin the scene."},
		},
	})
	if err != nil {
		return "", fmt.Errorf("opening completion: %w", err)
	}

	line := strings.TrimSpace(resp.Content)
	if line == "" {
		return "", fmt.Errorf("model returned an empty opening line")
	}
	return line, nil
}

// Exchange grades the learner's latest utterance and produces the
// counterpart's next reply in a single model call.
func (p *Processor) Exchange(ctx context.Context, req session.ExchangeRequest) (*session.ExchangeResult, error) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: p.exchangeUserMessage(req)},
	}

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Model:     p.model,
		System:    exchangeSystemPrompt(req),
		MaxTokens: p.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange completion: %w", err)
	}

	correction, reply, shouldEnd, parseErr := parseExchange(resp.Content)
	if parseErr == nil {
		return &session.ExchangeResult{Correction: correction, Reply: reply, ShouldEnd: shouldEnd}, nil
	}

	p.log.Warn().
		Err(parseErr).
		Msg("malformed exchange payload, re-prompting once")

	// One clarifying retry, carrying the bad output so the model can
	// see what it got wrong.
	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
		llm.Message{Role: llm.RoleUser, Content: clarifyPrompt},
	)
	resp, err = p.client.Complete(ctx, llm.CompletionRequest{
		Model:     p.model,
		System:    exchangeSystemPrompt(req),
		MaxTokens: p.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange retry completion: %w", err)
	}

	correction, reply, shouldEnd, parseErr = parseExchange(resp.Content)
	if parseErr != nil {
		return nil, fmt.Errorf("malformed exchange payload after retry: %w", parseErr)
	}
	return &session.ExchangeResult{Correction: correction, Reply: reply, ShouldEnd: shouldEnd}, nil
}

func (p *Processor) exchangeUserMessage(req session.ExchangeRequest) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	b.WriteString(renderTranscript(req.Transcript, req.CounterpartRole, req.LearnerRole))
	fmt.Fprintf(&b, "\nLearner's latest utterance:\n%s\n", req.LearnerContent)
	return b.String()
}

// Synthesizer produces the end-of-session review. It does not retry:
// synthesis has no side effects, so the caller simply re-invokes
// endSession on failure.
type Synthesizer struct {
	client    llm.Client
	model     string
	maxTokens int
	log       *logging.Logger
}

// NewSynthesizer creates a review synthesizer over the given model client.
func NewSynthesizer(client llm.Client, model string, maxTokens int, log *logging.Logger) *Synthesizer {
	return &Synthesizer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		log:       log.Sub("review"),
	}
}

// Synthesize builds one complete Review from the transcript and the
// final aggregate. The quantitative breakdown is copied from the
// aggregate, never re-derived from the model; qualitative fields come
// from the model and are validated before anything is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, req session.ReviewRequest) (*domain.Review, error) {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(renderTranscript(req.Transcript, req.CounterpartRole, req.LearnerRole))
	b.WriteString("\nErrors found during the session:\n")
	b.WriteString(renderErrorList(req.Aggregate))

	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		Model:     s.model,
		System:    reviewSystemPrompt(req),
		MaxTokens: s.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("review completion: %w", err)
	}

	review, err := parseReview(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("malformed review payload: %w", err)
	}

	breakdown := make(map[domain.ErrorCategory]int, len(domain.Categories))
	for _, c := range domain.Categories {
		breakdown[c] = req.Aggregate.ByCategory[c]
	}
	review.ErrorBreakdown = breakdown

	s.log.Info().
		Str("rating", string(review.Rating)).
		Int("errors", req.Aggregate.Total()).
		Msg("review synthesized")

	return review, nil
}
