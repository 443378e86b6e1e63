package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wifikids/backend/internal/models"
)

type rawPayload struct {
	Questions []rawQuestion     `json:"questions"`
	AnswerKey map[string]string `json:"answer_key"`
}

type rawQuestion struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	AnswerLen   *int     `json:"answer_len"`
	Subject     string   `json:"subject"`
	Difficulty  string   `json:"difficulty"`
	Explanation string   `json:"explanation"`
}

// ParsePayload turns raw completion output into a ChallengePayload. Any
// structural defect fails the whole batch: partially-parsed content must
// never reach the session.
func ParsePayload(responseBody string, meta models.PayloadMetadata) (*models.ChallengePayload, error) {
	cleaned := stripCodeFences(responseBody)

	var raw rawPayload
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: parse JSON response: %v", ErrGenerationFailed, err)
	}

	if len(raw.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in response", ErrGenerationFailed)
	}

	seen := make(map[string]bool, len(raw.Questions))
	payload := &models.ChallengePayload{
		AnswerKey: make(map[string]string, len(raw.Questions)),
		Metadata:  meta,
	}

	for i, rq := range raw.Questions {
		qNum := i + 1

		if rq.ID == "" {
			rq.ID = fmt.Sprintf("q%d", qNum)
		}
		if seen[rq.ID] {
			return nil, fmt.Errorf("%w: question %d: duplicate id %q", ErrGenerationFailed, qNum, rq.ID)
		}
		seen[rq.ID] = true

		if strings.TrimSpace(rq.Prompt) == "" {
			return nil, fmt.Errorf("%w: question %d: empty prompt", ErrGenerationFailed, qNum)
		}

		qType := models.QuestionType(rq.Type)
		if qType == "" {
			qType = models.QuestionMultipleChoice
		}
		if qType != models.QuestionMultipleChoice && qType != models.QuestionShortAnswer {
			return nil, fmt.Errorf("%w: question %d: invalid type %q", ErrGenerationFailed, qNum, rq.Type)
		}
		if qType == models.QuestionMultipleChoice && len(rq.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d: multiple-choice with %d options", ErrGenerationFailed, qNum, len(rq.Options))
		}

		answer, ok := raw.AnswerKey[rq.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			return nil, fmt.Errorf("%w: question %d: missing answer key entry for %q", ErrGenerationFailed, qNum, rq.ID)
		}

		subject := models.Subject(rq.Subject)
		if !models.ValidSubjects[subject] {
			subject = meta.Subject
		}
		difficulty := models.Difficulty(rq.Difficulty)
		if !models.ValidDifficulties[difficulty] {
			difficulty = meta.Difficulty
		}

		// Ids are remapped so they stay unique across the batches a
		// session accumulates, not just within one response.
		id := NewQuestionID(qNum)
		payload.Questions = append(payload.Questions, models.Question{
			ID:          id,
			Type:        qType,
			Prompt:      rq.Prompt,
			Options:     rq.Options,
			AnswerLen:   rq.AnswerLen,
			Subject:     subject,
			Difficulty:  difficulty,
			Explanation: rq.Explanation,
		})
		payload.AnswerKey[id] = answer
	}

	return payload, nil
}

// NewQuestionID returns an id unique across all batches of a challenge.
func NewQuestionID(n int) string {
	return fmt.Sprintf("q%d-%s", n, uuid.NewString()[:8])
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
