package provider

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/wifikids/backend/internal/models"
)

func TestOfflineProviderGenerate(t *testing.T) {
	p := NewOfflineProvider("offline_fallback")
	lctx := models.LearnerContext{
		DeviceID: "aa:bb:cc:dd:ee:ff",
		Persona:  models.PersonaGeneral,
		Locale:   "en",
	}

	payload, err := p.Generate(context.Background(), lctx)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(payload.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(payload.Questions))
	}

	q := payload.Questions[0]
	if q.Type != models.QuestionMultipleChoice {
		t.Errorf("expected multiple choice, got %q", q.Type)
	}
	if q.Subject != models.SubjectMath {
		t.Errorf("offline questions are arithmetic, got subject %q", q.Subject)
	}

	answer, ok := payload.AnswerKey[q.ID]
	if !ok {
		t.Fatal("answer key missing entry for generated question")
	}
	found := false
	for _, opt := range q.Options {
		if opt == answer {
			found = true
		}
	}
	if !found {
		t.Errorf("correct answer %q not among options %v", answer, q.Options)
	}

	// The answer must actually be the sum in the prompt.
	if _, err := strconv.Atoi(answer); err != nil {
		t.Errorf("answer should be numeric, got %q", answer)
	}
}

func TestOfflineProviderLocale(t *testing.T) {
	p := NewOfflineProvider("offline_fallback")

	payload, err := p.Generate(context.Background(), models.LearnerContext{
		DeviceID: "dev", Persona: models.PersonaMaternal, Locale: "pt-BR",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.HasPrefix(payload.Questions[0].Prompt, "Quanto é") {
		t.Errorf("expected Portuguese prompt, got %q", payload.Questions[0].Prompt)
	}
}

func TestOfflineProviderVariesPerTurn(t *testing.T) {
	p := NewOfflineProvider("offline_fallback")
	lctx := models.LearnerContext{DeviceID: "dev", Persona: models.PersonaGeneral}

	first, err := p.Generate(context.Background(), lctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Generate(context.Background(), lctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Questions[0].Prompt == second.Questions[0].Prompt {
		t.Error("consecutive turns for the same device should not repeat the question")
	}
}

func TestOfflineProviderDifficultyRange(t *testing.T) {
	p := NewOfflineProvider("offline_fallback")
	hard := models.DifficultyHard

	payload, err := p.Generate(context.Background(), models.LearnerContext{
		DeviceID: "dev", Persona: models.PersonaGeneral, Difficulty: &hard,
	})
	if err != nil {
		t.Fatal(err)
	}
	if payload.Questions[0].Difficulty != models.DifficultyHard {
		t.Errorf("requested difficulty not honored: %q", payload.Questions[0].Difficulty)
	}
}
