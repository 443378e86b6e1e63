package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/wifikids/backend/internal/models"
)

// OfflineProvider produces simple arithmetic questions without any
// external service. It is always available and serves as the terminal
// fallback so a network outage never locks a child out entirely.
type OfflineProvider struct {
	id  string
	seq atomic.Uint64
}

func NewOfflineProvider(id string) *OfflineProvider {
	return &OfflineProvider{id: id}
}

func (p *OfflineProvider) ID() string { return p.id }

func (p *OfflineProvider) Kind() Kind { return KindOffline }

func (p *OfflineProvider) Generate(_ context.Context, lctx models.LearnerContext) (*models.ChallengePayload, error) {
	difficulty := models.DifficultyEasy
	if lctx.Difficulty != nil {
		difficulty = *lctx.Difficulty
	}

	// Operands derive from the device id plus a call counter, so the same
	// device gets a fresh question each turn without shared RNG state.
	h := fnv.New64a()
	h.Write([]byte(lctx.DeviceID))
	n := h.Sum64() + p.seq.Add(1)

	max := uint64(9)
	if difficulty == models.DifficultyMedium {
		max = 20
	} else if difficulty == models.DifficultyHard {
		max = 50
	}
	a := int(n%max) + 1
	b := int((n/max)%max) + 1
	sum := a + b

	prompt := fmt.Sprintf("What is %d + %d?", a, b)
	if strings.HasPrefix(lctx.Locale, "pt") {
		prompt = fmt.Sprintf("Quanto é %d + %d?", a, b)
	}

	correct := strconv.Itoa(sum)
	options := []string{correct, strconv.Itoa(sum + 1), strconv.Itoa(sum - 1), strconv.Itoa(sum + 2)}
	// Rotate so the correct option does not always sit first.
	rot := int(n % uint64(len(options)))
	options = append(options[rot:], options[:rot]...)

	id := NewQuestionID(1)
	return &models.ChallengePayload{
		Questions: []models.Question{{
			ID:          id,
			Type:        models.QuestionMultipleChoice,
			Prompt:      prompt,
			Options:     options,
			Subject:     models.SubjectMath,
			Difficulty:  difficulty,
			Explanation: fmt.Sprintf("%d + %d = %d", a, b, sum),
		}},
		AnswerKey: map[string]string{id: correct},
		Metadata: models.PayloadMetadata{
			Persona:      lctx.Persona,
			Subject:      models.SubjectMath,
			Difficulty:   difficulty,
			ProviderID:   p.id,
			ProviderKind: string(KindOffline),
		},
	}, nil
}
