package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wifikids/backend/internal/models"
)

type stubClient struct {
	response string
	err      error
	prompts  []string
}

func (s *stubClient) Generate(_ context.Context, _, userPrompt string) (*LLMResponse, error) {
	s.prompts = append(s.prompts, userPrompt)
	if s.err != nil {
		return nil, s.err
	}
	return &LLMResponse{Content: s.response}, nil
}

func newTestProvider(client LLMClient) *LLMProvider {
	return NewLLMProvider(LLMConfig{
		ID:             "tutor_openai",
		Backend:        BackendOpenAI,
		Persona:        models.PersonaTutor,
		Model:          "gpt-4o-mini",
		DefaultSubject: models.SubjectMath,
	}, client, NewHistoryCache())
}

func TestLLMProviderGenerate(t *testing.T) {
	client := &stubClient{response: `{"questions": [{"id": "q1", "type": "mc", "prompt": "What is 3+4?", "options": ["6", "7", "8"]}], "answer_key": {"q1": "7"}}`}
	p := newTestProvider(client)

	payload, err := p.Generate(context.Background(), models.LearnerContext{
		DeviceID: "dev", Persona: models.PersonaTutor, Locale: "en",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if payload.Metadata.ProviderID != "tutor_openai" {
		t.Errorf("provider identity missing from metadata: %+v", payload.Metadata)
	}
	if payload.Metadata.Model != "gpt-4o-mini" {
		t.Errorf("model missing from metadata: %+v", payload.Metadata)
	}
}

func TestLLMProviderGenerateClientError(t *testing.T) {
	p := newTestProvider(&stubClient{err: errors.New("connection refused")})

	_, err := p.Generate(context.Background(), models.LearnerContext{DeviceID: "dev", Persona: models.PersonaTutor})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("client failure should wrap ErrGenerationFailed, got %v", err)
	}
}

func TestLLMProviderThreadsHistory(t *testing.T) {
	client := &stubClient{response: `{"questions": [{"id": "q1", "type": "mc", "prompt": "Next?", "options": ["a", "b"]}], "answer_key": {"q1": "a"}}`}
	p := newTestProvider(client)

	p.RecordExchange("dev", "What is 3+4?", "7")
	if _, err := p.Generate(context.Background(), models.LearnerContext{DeviceID: "dev", Persona: models.PersonaTutor}); err != nil {
		t.Fatal(err)
	}

	if len(client.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(client.prompts))
	}
	if !strings.Contains(client.prompts[0], "What is 3+4?") {
		t.Error("prior exchange should appear in the generation prompt")
	}

	// Another device must not see this history.
	client.prompts = nil
	if _, err := p.Generate(context.Background(), models.LearnerContext{DeviceID: "other", Persona: models.PersonaTutor}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(client.prompts[0], "What is 3+4?") {
		t.Error("history leaked across devices")
	}
}

func TestJudgeAnswer(t *testing.T) {
	client := &stubClient{response: `{"correct": true, "score": 0.95, "confidence": 0.9, "feedback": "Great work!", "explanation": "Brasília is the capital.", "reasoning": "accent variation"}`}
	p := newTestProvider(client)

	q := models.Question{ID: "q1", Type: models.QuestionShortAnswer, Prompt: "Capital of Brazil?", Subject: models.SubjectGeography}
	outcome, err := p.JudgeAnswer(context.Background(), q, "Brasília", "brasilia", models.PersonaTutor, "en")
	if err != nil {
		t.Fatalf("JudgeAnswer returned error: %v", err)
	}
	if !outcome.Correct {
		t.Error("expected correct outcome")
	}
	if outcome.Metadata.Tier != models.TierAIJudge {
		t.Errorf("outcome must be tagged with the judge tier, got %q", outcome.Metadata.Tier)
	}
	if outcome.Metadata.Confidence != 0.9 {
		t.Errorf("confidence not carried: %v", outcome.Metadata.Confidence)
	}
}

func TestJudgeAnswerClampsScore(t *testing.T) {
	client := &stubClient{response: `{"correct": true, "score": 1.7, "confidence": -0.2, "feedback": "ok", "explanation": "", "reasoning": ""}`}
	p := newTestProvider(client)

	q := models.Question{ID: "q1", Type: models.QuestionShortAnswer, Prompt: "?"}
	outcome, err := p.JudgeAnswer(context.Background(), q, "x", "x", models.PersonaGeneral, "en")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Score != 1.0 {
		t.Errorf("score should clamp to 1.0, got %v", outcome.Score)
	}
	if outcome.Metadata.Confidence != 0.0 {
		t.Errorf("confidence should clamp to 0.0, got %v", outcome.Metadata.Confidence)
	}
}

func TestJudgeAnswerMalformedResponse(t *testing.T) {
	p := newTestProvider(&stubClient{response: "I think the answer looks right to me."})

	q := models.Question{ID: "q1", Type: models.QuestionShortAnswer, Prompt: "?"}
	if _, err := p.JudgeAnswer(context.Background(), q, "x", "x", models.PersonaGeneral, "en"); err == nil {
		t.Fatal("malformed judge response must error so callers can fall back")
	}
}
