package models

import (
	"fmt"
	"time"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// InputError is a client error tied to a named request field. It is always
// raised before any state mutation.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

type CreateChallengeRequest struct {
	DeviceID   string `json:"device_id"`
	NetworkID  string `json:"network_id"`
	Locale     string `json:"locale"`
	Persona    string `json:"persona"`
	Subject    string `json:"subject,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type CreateChallengeResponse struct {
	SessionID    string           `json:"session_id"`
	Questions    []PublicQuestion `json:"questions"`
	Metadata     SessionMetadata  `json:"metadata"`
	AttemptsLeft int              `json:"attempts_left"`
	Progress     Progress         `json:"progress"`
}

type SubmitAnswerRequest struct {
	Answers []Answer `json:"answers"`
}

type SessionStatusResponse struct {
	Allowed      bool       `json:"allowed"`
	Status       string     `json:"status"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	RemainingSec int        `json:"remaining_sec"`
}

// ProviderInfo is the discovery view of a registry entry.
type ProviderInfo struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Backend     string       `json:"backend"`
	Persona     Persona      `json:"persona"`
	Subjects    []Subject    `json:"subjects"`
	Difficulty  []Difficulty `json:"difficulty_range"`
	Description string       `json:"description"`
	Available   bool         `json:"available"`
}

// ── Parent accounts ─────────────────────────────────────

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ── Analytics ───────────────────────────────────────────

type SubjectStats struct {
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	AvgScore  float64 `json:"avg_score"`
}

type AnalyticsSummary struct {
	TotalSessions  int     `json:"total_sessions"`
	PassedSessions int     `json:"passed_sessions"`
	FailedSessions int     `json:"failed_sessions"`
	OpenSessions   int     `json:"open_sessions"`
	PassRate       float64 `json:"pass_rate"`
}

type DeviceStats struct {
	DeviceID string                   `json:"device_id"`
	Sessions int                      `json:"sessions"`
	Passed   int                      `json:"passed"`
	Subjects map[Subject]SubjectStats `json:"subjects"`
}
