package provider

import (
	"context"
	"errors"

	"github.com/wifikids/backend/internal/models"
)

// Kind distinguishes content-generating backends from fixed/offline ones.
type Kind string

const (
	KindLLM     Kind = "llm"
	KindOffline Kind = "offline"
)

// Backend names the completion service behind an LLM provider.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
	BackendOffline   Backend = "offline"
)

// ErrGenerationFailed marks any failure to produce a well-formed question
// batch: unreachable completion service, or content that cannot be parsed
// into the payload shape. Callers never see partially-parsed content.
var ErrGenerationFailed = errors.New("generation failed")

// Provider is the capability interface every backend implements.
type Provider interface {
	ID() string
	Kind() Kind
	// Generate returns 1..N questions with a complete answer key. The
	// conversational backend always returns exactly one question so the
	// multi-turn flow stays incremental.
	Generate(ctx context.Context, lctx models.LearnerContext) (*models.ChallengePayload, error)
}
