package tutor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Peleke/colloquium/internal/domain"
)

// exchangePayload is the JSON the model must return for a turn exchange.
type exchangePayload struct {
	Correction *correctionPayload `json:"correction"`
	Reply      *string            `json:"reply"`
	ShouldEnd  bool               `json:"shouldEnd"`
}

type correctionPayload struct {
	HasErrors *bool          `json:"hasErrors"`
	Errors    []errorPayload `json:"errors"`
}

type errorPayload struct {
	ErrorText   string `json:"errorText"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	Category    string `json:"category"`
}

// reviewPayload is the JSON the model must return for review synthesis.
type reviewPayload struct {
	Rating       *string  `json:"rating"`
	Summary      *string  `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// extractJSON pulls the outermost JSON object out of model output,
// tolerating surrounding prose and markdown code fences.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return text[start : end+1], nil
}

// parseExchange decodes and validates a turn-exchange payload. Any
// missing required field or internal inconsistency is an error; the
// processor never fabricates a correction.
func parseExchange(text string) (domain.Correction, string, bool, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return domain.Correction{}, "", false, err
	}

	var p exchangePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Correction{}, "", false, fmt.Errorf("decoding exchange payload: %w", err)
	}
	if p.Correction == nil {
		return domain.Correction{}, "", false, fmt.Errorf("missing correction field")
	}
	if p.Correction.HasErrors == nil {
		return domain.Correction{}, "", false, fmt.Errorf("missing correction.hasErrors field")
	}
	if p.Reply == nil || strings.TrimSpace(*p.Reply) == "" {
		return domain.Correction{}, "", false, fmt.Errorf("missing reply field")
	}

	hasErrors := *p.Correction.HasErrors
	if hasErrors != (len(p.Correction.Errors) > 0) {
		return domain.Correction{}, "", false, fmt.Errorf("hasErrors=%v inconsistent with %d errors", hasErrors, len(p.Correction.Errors))
	}

	correction := domain.Correction{HasErrors: hasErrors}
	for _, e := range p.Correction.Errors {
		cat := domain.ErrorCategory(strings.ToLower(strings.TrimSpace(e.Category)))
		if !cat.Valid() {
			return domain.Correction{}, "", false, fmt.Errorf("unknown error category %q", e.Category)
		}
		if strings.TrimSpace(e.ErrorText) == "" {
			return domain.Correction{}, "", false, fmt.Errorf("error record missing errorText")
		}
		correction.Errors = append(correction.Errors, domain.ErrorRecord{
			ErrorText:   e.ErrorText,
			Correction:  e.Correction,
			Explanation: e.Explanation,
			Category:    cat,
		})
	}

	return correction, strings.TrimSpace(*p.Reply), p.ShouldEnd, nil
}

// parseReview decodes and validates a review payload. The error
// breakdown is never taken from the model; the caller fills it from the
// session aggregate.
func parseReview(text string) (*domain.Review, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var p reviewPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decoding review payload: %w", err)
	}
	if p.Rating == nil {
		return nil, fmt.Errorf("missing rating field")
	}
	rating := domain.Rating(strings.ToLower(strings.TrimSpace(*p.Rating)))
	if !rating.Valid() {
		return nil, fmt.Errorf("unknown rating %q", *p.Rating)
	}
	if p.Summary == nil || strings.TrimSpace(*p.Summary) == "" {
		return nil, fmt.Errorf("missing summary field")
	}

	return &domain.Review{
		Rating:       rating,
		Summary:      strings.TrimSpace(*p.Summary),
		Strengths:    append([]string{}, p.Strengths...),
		Improvements: append([]string{}, p.Improvements...),
	}, nil
}
