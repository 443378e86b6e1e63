package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/wifikids/backend/internal/models"
)

type stubJudge struct {
	outcome *models.ValidationOutcome
	err     error
	calls   int
}

func (s *stubJudge) JudgeAnswer(_ context.Context, _ models.Question, _, _ string, _ models.Persona, _ string) (*models.ValidationOutcome, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

var pipelineQuestion = models.Question{
	ID:      "q1",
	Type:    models.QuestionMultipleChoice,
	Prompt:  "What is 2+2?",
	Options: []string{"3", "4", "5"},
}

func TestPipelineJudgeTier(t *testing.T) {
	judge := &stubJudge{outcome: &models.ValidationOutcome{
		Correct: true,
		Score:   1.0,
		Metadata: models.OutcomeMetadata{
			Tier:       models.TierAIJudge,
			Confidence: 0.95,
		},
	}}
	p := NewPipeline(judge)

	outcome := p.Evaluate(context.Background(), pipelineQuestion, "four", "4", models.PersonaTutor, "en")
	if outcome.Metadata.Tier != models.TierAIJudge {
		t.Errorf("expected judge tier, got %q", outcome.Metadata.Tier)
	}
	if judge.calls != 1 {
		t.Errorf("judge called %d times", judge.calls)
	}
}

func TestPipelineFallsBackToRules(t *testing.T) {
	judge := &stubJudge{err: errors.New("model timeout")}
	p := NewPipeline(judge)

	outcome := p.Evaluate(context.Background(), pipelineQuestion, "4", "4", models.PersonaTutor, "en")
	if outcome.Metadata.Tier != models.TierRules {
		t.Errorf("judge failure should fall back to the rules tier, got %q", outcome.Metadata.Tier)
	}
	if !outcome.Correct {
		t.Error("exact match should be correct on the rules tier")
	}
}

func TestPipelineNoJudgeUsesRules(t *testing.T) {
	p := NewPipeline(nil)

	outcome := p.Evaluate(context.Background(), pipelineQuestion, "4", "4", models.PersonaGeneral, "en")
	if outcome.Metadata.Tier != models.TierRules {
		t.Errorf("expected rules tier, got %q", outcome.Metadata.Tier)
	}
}

func TestPipelineLiteralTier(t *testing.T) {
	judge := &stubJudge{err: errors.New("unreachable")}
	p := NewPipeline(judge)

	// No known correct answer: only literal option matching can run.
	outcome := p.Evaluate(context.Background(), pipelineQuestion, " FOUR ", "", models.PersonaGeneral, "en")
	if outcome.Metadata.Tier != models.TierLiteral {
		t.Fatalf("expected literal tier, got %q", outcome.Metadata.Tier)
	}
	if outcome.Correct {
		t.Error("answer not among options should not match literally")
	}

	outcome = p.Evaluate(context.Background(), pipelineQuestion, "  4 ", "", models.PersonaGeneral, "en")
	if !outcome.Correct {
		t.Error("option text should match case/whitespace insensitively")
	}
}

func TestPipelineNeverErrors(t *testing.T) {
	judge := &stubJudge{err: errors.New("boom")}
	p := NewPipeline(judge)

	// Worst case: judge down, no answer key, no options.
	q := models.Question{ID: "q2", Type: models.QuestionShortAnswer, Prompt: "?"}
	outcome := p.Evaluate(context.Background(), q, "anything", "", models.PersonaMaternal, "pt-BR")
	if outcome == nil {
		t.Fatal("pipeline must always produce an outcome")
	}
	if outcome.Metadata.Tier != models.TierLiteral {
		t.Errorf("expected literal tier, got %q", outcome.Metadata.Tier)
	}
	if outcome.Feedback == "" {
		t.Error("every outcome carries persona feedback")
	}
}
