package router

import (
	"github.com/wifikids/backend/internal/models"
	"github.com/wifikids/backend/internal/provider"
)

// ClientSet holds the constructed completion clients, nil when the
// corresponding credential is absent.
type ClientSet struct {
	OpenAI    provider.LLMClient
	Anthropic provider.LLMClient

	OpenAIModel    string
	AnthropicModel string
}

// DefaultEntries builds the standard registry. Order is part of the
// selection contract: it is the final tie-break, so entries must not be
// reordered casually.
func DefaultEntries(clients ClientSet, history *provider.HistoryCache) []Entry {
	tutorSubjects := personaPolicies[models.PersonaTutor].DefaultSubjects
	maternalSubjects := personaPolicies[models.PersonaMaternal].DefaultSubjects
	generalSubjects := personaPolicies[models.PersonaGeneral].DefaultSubjects

	llm := func(id string, backend provider.Backend, persona models.Persona, model string, client provider.LLMClient, defaultSubject models.Subject) provider.Provider {
		return provider.NewLLMProvider(provider.LLMConfig{
			ID:             id,
			Backend:        backend,
			Persona:        persona,
			Model:          model,
			DefaultSubject: defaultSubject,
		}, client, history)
	}

	return []Entry{
		{
			Provider:      llm("tutor_openai", provider.BackendOpenAI, models.PersonaTutor, clients.OpenAIModel, clients.OpenAI, models.SubjectMath),
			Backend:       provider.BackendOpenAI,
			Persona:       models.PersonaTutor,
			Subjects:      tutorSubjects,
			MinDifficulty: models.DifficultyEasy,
			MaxDifficulty: models.DifficultyHard,
			Description:   "Educational tutor backed by OpenAI",
			Available:     clients.OpenAI != nil,
		},
		{
			Provider:      llm("tutor_anthropic", provider.BackendAnthropic, models.PersonaTutor, clients.AnthropicModel, clients.Anthropic, models.SubjectMath),
			Backend:       provider.BackendAnthropic,
			Persona:       models.PersonaTutor,
			Subjects:      tutorSubjects,
			MinDifficulty: models.DifficultyEasy,
			MaxDifficulty: models.DifficultyHard,
			Description:   "Educational tutor backed by Anthropic",
			Available:     clients.Anthropic != nil,
		},
		{
			Provider:      llm("maternal_openai", provider.BackendOpenAI, models.PersonaMaternal, clients.OpenAIModel, clients.OpenAI, models.SubjectMath),
			Backend:       provider.BackendOpenAI,
			Persona:       models.PersonaMaternal,
			Subjects:      maternalSubjects,
			MinDifficulty: models.DifficultyEasy,
			MaxDifficulty: models.DifficultyMedium,
			Description:   "Gentle, encouraging guide backed by OpenAI",
			Available:     clients.OpenAI != nil,
		},
		{
			Provider:      llm("general_openai", provider.BackendOpenAI, models.PersonaGeneral, clients.OpenAIModel, clients.OpenAI, models.SubjectMath),
			Backend:       provider.BackendOpenAI,
			Persona:       models.PersonaGeneral,
			Subjects:      generalSubjects,
			MinDifficulty: models.DifficultyEasy,
			MaxDifficulty: models.DifficultyHard,
			Description:   "General-purpose assistant backed by OpenAI",
			Available:     clients.OpenAI != nil,
		},
		{
			Provider:      llm("general_anthropic", provider.BackendAnthropic, models.PersonaGeneral, clients.AnthropicModel, clients.Anthropic, models.SubjectMath),
			Backend:       provider.BackendAnthropic,
			Persona:       models.PersonaGeneral,
			Subjects:      generalSubjects,
			MinDifficulty: models.DifficultyEasy,
			MaxDifficulty: models.DifficultyHard,
			Description:   "General-purpose assistant backed by Anthropic",
			Available:     clients.Anthropic != nil,
		},
		{
			Provider:      provider.NewOfflineProvider("offline_fallback"),
			Backend:       provider.BackendOffline,
			Subjects:      []models.Subject{models.SubjectMath},
			MinDifficulty: models.DifficultyEasy,
			MaxDifficulty: models.DifficultyHard,
			Description:   "Deterministic arithmetic questions, no network required",
			Available:     true,
		},
	}
}
