package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/wifikids/backend/internal/models"
)

// ExchangeRecorder is implemented by providers that keep conversational
// context between turns.
type ExchangeRecorder interface {
	RecordExchange(deviceID, prompt, answer string)
}

// LLMConfig is the static identity of one conversational provider.
type LLMConfig struct {
	ID             string
	Backend        Backend
	Persona        models.Persona
	Model          string
	DefaultSubject models.Subject
}

// LLMProvider generates one question per turn through a completion
// service, threading recent device history into the prompt.
type LLMProvider struct {
	cfg     LLMConfig
	client  LLMClient
	history *HistoryCache
}

func NewLLMProvider(cfg LLMConfig, client LLMClient, history *HistoryCache) *LLMProvider {
	if history == nil {
		history = NewHistoryCache()
	}
	return &LLMProvider{cfg: cfg, client: client, history: history}
}

func (p *LLMProvider) ID() string { return p.cfg.ID }

func (p *LLMProvider) Kind() Kind { return KindLLM }

func (p *LLMProvider) Generate(ctx context.Context, lctx models.LearnerContext) (*models.ChallengePayload, error) {
	subject := p.cfg.DefaultSubject
	if lctx.Subject != nil {
		subject = *lctx.Subject
	}
	difficulty := models.DifficultyEasy
	if lctx.Difficulty != nil {
		difficulty = *lctx.Difficulty
	}
	locale := lctx.Locale
	if locale == "" {
		locale = "en"
	}

	history := p.history.Recent(lctx.DeviceID)
	systemPrompt := buildGenerationSystemPrompt(lctx.Persona)
	userPrompt := buildGenerationPrompt(subject, difficulty, locale, 1, history)

	resp, err := p.client.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGenerationFailed, p.cfg.ID, err)
	}
	log.Printf("[provider] %s generated batch (prompt=%d output=%d tokens)",
		p.cfg.ID, resp.PromptTokens, resp.OutputTokens)

	payload, err := ParsePayload(resp.Content, models.PayloadMetadata{
		Persona:      lctx.Persona,
		Subject:      subject,
		Difficulty:   difficulty,
		ProviderID:   p.cfg.ID,
		ProviderKind: string(KindLLM),
		Model:        p.cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// RecordExchange stores a completed question/answer turn for prompt
// context on the next generation.
func (p *LLMProvider) RecordExchange(deviceID, prompt, answer string) {
	p.history.Record(deviceID, prompt, answer)
}

type judgeResponse struct {
	Correct     bool    `json:"correct"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Feedback    string  `json:"feedback"`
	Explanation string  `json:"explanation"`
	Reasoning   string  `json:"reasoning"`
}

// JudgeAnswer asks the completion service to evaluate a free-form answer.
// A failure here is not terminal: callers fall back to rule-based scoring.
func (p *LLMProvider) JudgeAnswer(ctx context.Context, q models.Question, correctAnswer, studentAnswer string, persona models.Persona, locale string) (*models.ValidationOutcome, error) {
	resp, err := p.client.Generate(ctx, judgeSystemPrompt(locale), buildJudgePrompt(q, correctAnswer, studentAnswer, persona, locale))
	if err != nil {
		return nil, fmt.Errorf("judge call: %w", err)
	}

	var jr judgeResponse
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content)), &jr); err != nil {
		return nil, fmt.Errorf("parse judge response: %w", err)
	}

	return &models.ValidationOutcome{
		Correct:     jr.Correct,
		Score:       clamp01(jr.Score),
		Feedback:    jr.Feedback,
		Explanation: jr.Explanation,
		Metadata: models.OutcomeMetadata{
			Tier:       models.TierAIJudge,
			Confidence: clamp01(jr.Confidence),
		},
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
