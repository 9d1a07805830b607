package domain

// Rating is the qualitative band of an end-of-session review,
// worst to best.
type Rating string

const (
	RatingNeedsWork Rating = "needs-work"
	RatingGood      Rating = "good"
	RatingVeryGood  Rating = "very-good"
	RatingExcellent Rating = "excellent"
)

// Ratings lists the bands in ascending order.
var Ratings = []Rating{RatingNeedsWork, RatingGood, RatingVeryGood, RatingExcellent}

// Valid reports whether r is one of the known bands.
func (r Rating) Valid() bool {
	for _, known := range Ratings {
		if r == known {
			return true
		}
	}
	return false
}

// Review is the structured end-of-session assessment. Created exactly
// once per session when it leaves reviewing, immutable thereafter.
// ErrorBreakdown must equal the session aggregate's ByCategory at the
// moment of synthesis.
type Review struct {
	Rating         Rating                `json:"rating"`
	Summary        string                `json:"summary"`
	ErrorBreakdown map[ErrorCategory]int `json:"errorBreakdown"`
	Strengths      []string              `json:"strengths"`
	Improvements   []string              `json:"improvements"`
}

// Clone returns a deep copy. Callers get their own breakdown map and
// slices, so mutating a returned review never touches the stored one.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	cp := *r
	cp.ErrorBreakdown = make(map[ErrorCategory]int, len(r.ErrorBreakdown))
	for k, v := range r.ErrorBreakdown {
		cp.ErrorBreakdown[k] = v
	}
	cp.Strengths = append([]string(nil), r.Strengths...)
	cp.Improvements = append([]string(nil), r.Improvements...)
	return &cp
}
