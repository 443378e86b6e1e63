package validation

import (
	"context"
	"log"
	"strings"

	"github.com/wifikids/backend/internal/models"
)

// Judge is an AI-assisted evaluator for free-form answers. LLM-backed
// providers implement it; the pipeline treats it as optional and
// unreliable.
type Judge interface {
	JudgeAnswer(ctx context.Context, q models.Question, correctAnswer, studentAnswer string, persona models.Persona, locale string) (*models.ValidationOutcome, error)
}

// Pipeline evaluates answers through up to three tiers: AI judge, then
// the rule-based engine, then literal option matching. It never returns
// an error; the weakest tier always produces an outcome.
type Pipeline struct {
	judge Judge
}

func NewPipeline(judge Judge) *Pipeline {
	return &Pipeline{judge: judge}
}

// Evaluate scores one answer. The returned outcome is tagged with the
// tier that produced it.
func (p *Pipeline) Evaluate(ctx context.Context, q models.Question, studentAnswer, correctAnswer string, persona models.Persona, locale string) *models.ValidationOutcome {
	if p.judge != nil {
		outcome, err := p.judge.JudgeAnswer(ctx, q, correctAnswer, studentAnswer, persona, locale)
		if err == nil {
			return outcome
		}
		log.Printf("WARN: AI judge failed for question %s, falling back to rules: %v", q.ID, err)
	}

	if strings.TrimSpace(correctAnswer) != "" {
		return Validate(q, studentAnswer, correctAnswer, persona, locale)
	}

	return literalMatch(q, studentAnswer, persona, locale)
}

// literalMatch is the last-resort tier: case and whitespace insensitive
// equality against the question's options. Without a known correct
// answer it can only confirm that the learner picked a real option.
func literalMatch(q models.Question, studentAnswer string, persona models.Persona, locale string) *models.ValidationOutcome {
	normalized := normalizeLiteral(studentAnswer)
	matched := false
	for _, opt := range q.Options {
		if normalizeLiteral(opt) == normalized {
			matched = true
			break
		}
	}

	score := 0.0
	if matched {
		score = 1.0
	}
	return &models.ValidationOutcome{
		Correct:     matched,
		Score:       score,
		Feedback:    feedbackFor(persona, matched, locale, q.Explanation),
		Explanation: "Literal option match; no answer key available.",
		Metadata: models.OutcomeMetadata{
			Tier:       models.TierLiteral,
			Confidence: 0.3,
		},
	}
}

func normalizeLiteral(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
