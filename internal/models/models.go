package models

import (
	"strings"
	"time"
)

// Persona is the interaction style that parameterizes thresholds, tone,
// and provider preference.
type Persona string

const (
	PersonaTutor    Persona = "tutor"
	PersonaMaternal Persona = "maternal"
	PersonaGeneral  Persona = "general"
)

var ValidPersonas = map[Persona]bool{
	PersonaTutor:    true,
	PersonaMaternal: true,
	PersonaGeneral:  true,
}

type Subject string

const (
	SubjectMath       Subject = "math"
	SubjectScience    Subject = "science"
	SubjectEnglish    Subject = "english"
	SubjectHistory    Subject = "history"
	SubjectGeography  Subject = "geography"
	SubjectLiterature Subject = "literature"
	SubjectArt        Subject = "art"
	SubjectPhysics    Subject = "physics"
)

var AllSubjects = []Subject{
	SubjectMath, SubjectScience, SubjectEnglish, SubjectHistory,
	SubjectGeography, SubjectLiterature, SubjectArt, SubjectPhysics,
}

var ValidSubjects = map[Subject]bool{
	SubjectMath: true, SubjectScience: true, SubjectEnglish: true,
	SubjectHistory: true, SubjectGeography: true, SubjectLiterature: true,
	SubjectArt: true, SubjectPhysics: true,
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// Rank orders difficulties so a provider's supported range can be checked
// as an interval.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	default:
		return -1
	}
}

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "mc"
	QuestionShortAnswer    QuestionType = "short"
)

// Question is one prompt unit inside a challenge batch.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Options     []string     `json:"options,omitempty"`
	AnswerLen   *int         `json:"answer_len,omitempty"`
	Subject     Subject      `json:"subject"`
	Difficulty  Difficulty   `json:"difficulty"`
	Explanation string       `json:"explanation,omitempty"`
}

// PublicQuestion is the client-facing view: no explanation, and the answer
// key lives elsewhere entirely.
type PublicQuestion struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"prompt"`
	Options    []string     `json:"options,omitempty"`
	AnswerLen  *int         `json:"answer_len,omitempty"`
	Subject    Subject      `json:"subject"`
	Difficulty Difficulty   `json:"difficulty"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Type:       q.Type,
		Prompt:     q.Prompt,
		Options:    q.Options,
		AnswerLen:  q.AnswerLen,
		Subject:    q.Subject,
		Difficulty: q.Difficulty,
	}
}

func PublicQuestions(qs []Question) []PublicQuestion {
	out := make([]PublicQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Public())
	}
	return out
}

// PayloadMetadata travels with every generated batch.
type PayloadMetadata struct {
	Persona      Persona    `json:"persona"`
	Subject      Subject    `json:"subject"`
	Difficulty   Difficulty `json:"difficulty"`
	ProviderID   string     `json:"provider_id"`
	ProviderKind string     `json:"provider_kind"`
	Model        string     `json:"model,omitempty"`
}

// ChallengePayload is what a provider's Generate returns: a question batch
// plus its answer key. Every question id has a matching key entry.
type ChallengePayload struct {
	Questions []Question        `json:"questions"`
	AnswerKey map[string]string `json:"answer_key"`
	Metadata  PayloadMetadata   `json:"metadata"`
}

// LearnerContext is the ephemeral per-request input to provider selection
// and generation. It is never persisted directly.
type LearnerContext struct {
	Locale           string
	DeviceID         string
	NetworkID        string
	Persona          Persona
	Subject          *Subject
	Difficulty       *Difficulty
	PriorPerformance map[Subject]float64
}

type SessionStatus string

const (
	StatusOpen    SessionStatus = "open"
	StatusPassed  SessionStatus = "passed"
	StatusFailed  SessionStatus = "failed"
	StatusExpired SessionStatus = "expired"
)

// Terminal reports whether the status is final. Terminal statuses never
// revert.
func (s SessionStatus) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusExpired
}

// Progress is the multi-question progress record on a session.
type Progress struct {
	QuestionsAnsweredCorrectly int `json:"questions_answered_correctly"`
	TotalQuestionsRequired     int `json:"total_questions_required"`
	QuestionsAttempted         int `json:"questions_attempted"`
}

// SessionMetadata pins the context a session was created with, so answers
// are always evaluated by the same provider/config family that generated
// the questions.
type SessionMetadata struct {
	Persona    Persona    `json:"persona"`
	Subject    Subject    `json:"subject"`
	Difficulty Difficulty `json:"difficulty"`
	ProviderID string     `json:"provider_id"`
	Locale     string     `json:"locale"`
}

// ChallengeSession is the core mutable entity. Mutated exclusively by the
// challenge engine; saved as a whole-row replace guarded by Version.
type ChallengeSession struct {
	ID           string            `json:"id"`
	DeviceID     string            `json:"device_id"`
	NetworkID    string            `json:"network_id"`
	Questions    []Question        `json:"questions"`
	AnswerKey    map[string]string `json:"answer_key"`
	Metadata     SessionMetadata   `json:"metadata"`
	Progress     Progress          `json:"progress"`
	AttemptsLeft int               `json:"attempts_left"`
	AttemptsMade int               `json:"attempts_made"`
	// AwaitingNext is set when the last answer was accepted but the
	// follow-up batch could not be generated; a retry then re-attempts
	// generation instead of re-scoring.
	AwaitingNext bool          `json:"awaiting_next"`
	Status       SessionStatus `json:"status"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Answer is one submitted answer, keyed by question id.
type Answer struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type ValidationTier string

const (
	TierAIJudge ValidationTier = "ai_judge"
	TierRules   ValidationTier = "rules"
	TierLiteral ValidationTier = "literal"
)

// OutcomeMetadata records which tier produced an outcome, for observability.
type OutcomeMetadata struct {
	Tier       ValidationTier `json:"tier"`
	Confidence float64        `json:"confidence"`
}

// ValidationOutcome is the transient result of scoring one answer.
type ValidationOutcome struct {
	Correct     bool            `json:"correct"`
	Score       float64         `json:"score"`
	Feedback    string          `json:"feedback"`
	Explanation string          `json:"explanation"`
	Metadata    OutcomeMetadata `json:"metadata"`
}

type DecisionKind string

const (
	DecisionAllow    DecisionKind = "ALLOW"
	DecisionDeny     DecisionKind = "DENY"
	DecisionContinue DecisionKind = "CONTINUE"
)

type DenyReason string

const (
	DenyIncorrectAnswer    DenyReason = "incorrect_answer"
	DenyMaxAttemptsReached DenyReason = "max_attempts_reached"
)

// Decision is the outcome of an answer submission.
type Decision struct {
	Decision       DecisionKind     `json:"decision"`
	AllowedMinutes int              `json:"allowed_minutes,omitempty"`
	SessionGrantID string           `json:"session_grant_id,omitempty"`
	AttemptsLeft   *int             `json:"attempts_left,omitempty"`
	Reason         DenyReason       `json:"reason,omitempty"`
	Questions      []PublicQuestion `json:"questions,omitempty"`
	Progress       *Progress        `json:"progress,omitempty"`
	Feedback       string           `json:"feedback"`
}

// NormalizeMAC lowercases a device/network identifier and unifies the
// separator, matching what the gateway reports.
func NormalizeMAC(v string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), "-", ":")
}
