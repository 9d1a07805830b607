package tutor

import (
	"fmt"
	"strings"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/session"
)

// levelGuidance maps proficiency levels to register constraints passed
// to the model.
var levelGuidance = map[domain.Level]string{
	domain.LevelA1: "Use only the most common words and very short, simple sentences.",
	domain.LevelA2: "Use common vocabulary and short sentences; avoid subordinate clauses.",
	domain.LevelB1: "Use everyday vocabulary; occasional compound sentences are fine.",
	domain.LevelB2: "Use a broad vocabulary and natural sentence structure.",
	domain.LevelC1: "Speak naturally, including idiom and complex constructions.",
	domain.LevelC2: "Speak with full native range, including rhetorical flourish.",
}

// openSystemPrompt sets up the scene for the opening counterpart line.
func openSystemPrompt(req session.OpenRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are playing the role of %q in a %s conversation practice scene.\n", req.CounterpartRole, req.TargetLanguage)
	fmt.Fprintf(&b, "Scene: %s\n", req.Setting)
	fmt.Fprintf(&b, "Your conversation partner is a language learner playing %q at CEFR level %s. %s\n",
		req.LearnerRole, req.Level, levelGuidance[req.Level])
	b.WriteString("Open the conversation in character, in the target language, with one or two short sentences. ")
	b.WriteString("Reply with the opening line only: no translation, no commentary, no quotation marks.")
	return b.String()
}

// exchangeSystemPrompt drives the combined grade-and-reply protocol
// step. Grading and reply come from one exchange so the two stay
// mutually consistent.
func exchangeSystemPrompt(req session.ExchangeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are playing the role of %q in a %s conversation practice scene, and you are also grading the learner.\n", req.CounterpartRole, req.TargetLanguage)
	fmt.Fprintf(&b, "Scene: %s\n", req.Setting)
	fmt.Fprintf(&b, "The learner plays %q at CEFR level %s. %s\n", req.LearnerRole, req.Level, levelGuidance[req.Level])
	b.WriteString(`
For the learner's latest utterance, do two things:
1. Grade it for grammar, vocabulary, and syntax errors. For each error give
   the offending span exactly as the learner wrote it, the corrected form,
   a one-sentence explanation, and a category of "grammar", "vocabulary",
   or "syntax".
2. Reply in character, in the target language.

If the conversation has reached a natural close (farewells exchanged,
business concluded), set "shouldEnd" to true.

Respond with a single JSON object and nothing else:
{
  "correction": {
    "hasErrors": <bool>,
    "errors": [
      {"errorText": "...", "correction": "...", "explanation": "...", "category": "grammar|vocabulary|syntax"}
    ]
  },
  "reply": "<your in-character reply>",
  "shouldEnd": <bool>
}
"errors" must be empty exactly when "hasErrors" is false.`)
	return b.String()
}

// clarifyPrompt is the re-prompt sent when the model's payload was
// malformed. Sent once; a second malformed payload surfaces upstream.
const clarifyPrompt = "Your previous response was not a single valid JSON object in the required shape. " +
	"Respond again with only the JSON object described in the instructions, with all required fields."

// reviewSystemPrompt drives end-of-session review synthesis. The
// structured error list is supplied as grounding so qualitative
// judgments stay consistent with the quantitative breakdown.
func reviewSystemPrompt(req session.ReviewRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s language tutor writing an end-of-session assessment.\n", req.TargetLanguage)
	fmt.Fprintf(&b, "The learner played %q opposite %q at CEFR level %s.\n", req.LearnerRole, req.CounterpartRole, req.Level)
	b.WriteString(`
You will receive the full conversation transcript and the complete list of
errors found during the session. Ground your judgments in that error list.

Respond with a single JSON object and nothing else:
{
  "rating": "needs-work|good|very-good|excellent",
  "summary": "<one short paragraph>",
  "strengths": ["<short bullet>", ...],
  "improvements": ["<short bullet>", ...]
}`)
	return b.String()
}

// renderTranscript formats the conversation for the model.
func renderTranscript(turns []domain.Turn, counterpartRole, learnerRole string) string {
	var b strings.Builder
	for _, t := range turns {
		role := learnerRole
		if t.Speaker == domain.SpeakerCounterpart {
			role = counterpartRole
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", t.TurnNumber, role, t.Content)
	}
	return b.String()
}

// renderErrorList formats the aggregated errors for the review prompt.
func renderErrorList(agg domain.ErrorAggregate) string {
	if len(agg.All) == 0 {
		return "No errors were recorded this session.\n"
	}
	var b strings.Builder
	for _, e := range agg.All {
		fmt.Fprintf(&b, "turn %d [%s]: %q -> %q (%s)\n",
			e.TurnNumber, e.Record.Category, e.Record.ErrorText, e.Record.Correction, e.Record.Explanation)
	}
	fmt.Fprintf(&b, "Totals: grammar=%d vocabulary=%d syntax=%d\n",
		agg.ByCategory[domain.CategoryGrammar],
		agg.ByCategory[domain.CategoryVocabulary],
		agg.ByCategory[domain.CategorySyntax])
	return b.String()
}
