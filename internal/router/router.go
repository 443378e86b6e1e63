package router

import (
	"errors"
	"fmt"
	"log"

	"github.com/wifikids/backend/internal/models"
	"github.com/wifikids/backend/internal/provider"
)

var (
	ErrInvalidPersona       = errors.New("invalid persona")
	ErrNoProviderAvailable  = errors.New("no provider available")
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrRegistryMisconfigure = errors.New("registry misconfigured")
)

// Entry is one registered provider with its routing attributes. Entries
// keep their registration order; that order is the public tie-break when
// several candidates remain after filtering.
type Entry struct {
	Provider      provider.Provider
	Backend       provider.Backend
	Persona       models.Persona
	Subjects      []models.Subject
	MinDifficulty models.Difficulty
	MaxDifficulty models.Difficulty
	Description   string
	Available     bool
}

func (e Entry) supportsSubject(s models.Subject) bool {
	for _, sub := range e.Subjects {
		if sub == s {
			return true
		}
	}
	return false
}

func (e Entry) supportsDifficulty(d models.Difficulty) bool {
	return d.Rank() >= e.MinDifficulty.Rank() && d.Rank() <= e.MaxDifficulty.Rank()
}

// PersonaPolicy parameterizes a persona's session behavior.
type PersonaPolicy struct {
	MaxAttempts     int
	ScoreThreshold  float64
	Tone            string
	Style           string
	DefaultSubjects []models.Subject
}

var personaPolicies = map[models.Persona]PersonaPolicy{
	models.PersonaTutor: {
		MaxAttempts:    3,
		ScoreThreshold: 0.80,
		Tone:           "educational",
		Style:          "adaptive",
		DefaultSubjects: []models.Subject{
			models.SubjectMath, models.SubjectScience, models.SubjectEnglish,
		},
	},
	models.PersonaMaternal: {
		MaxAttempts:    5,
		ScoreThreshold: 0.70,
		Tone:           "encouraging",
		Style:          "gentle",
		DefaultSubjects: []models.Subject{
			models.SubjectMath, models.SubjectHistory, models.SubjectLiterature, models.SubjectArt,
		},
	},
	models.PersonaGeneral: {
		MaxAttempts:     4,
		ScoreThreshold:  0.75,
		Tone:            "balanced",
		Style:           "balanced",
		DefaultSubjects: models.AllSubjects,
	},
}

// GetPersonaPolicy returns the policy for a persona.
func GetPersonaPolicy(p models.Persona) (PersonaPolicy, error) {
	policy, ok := personaPolicies[p]
	if !ok {
		return PersonaPolicy{}, fmt.Errorf("%w: %q", ErrInvalidPersona, p)
	}
	return policy, nil
}

// Settings controls routing behavior, sourced from the environment.
type Settings struct {
	Enabled           bool
	PreferredBackend  provider.Backend
	FallbackToOffline bool
}

// Router selects a provider for each generation request by filtering the
// registry against the learner context.
type Router struct {
	entries  []Entry
	settings Settings
}

func New(entries []Entry, settings Settings) (*Router, error) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		id := e.Provider.ID()
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate provider id %q", ErrRegistryMisconfigure, id)
		}
		seen[id] = true
	}
	return &Router{entries: entries, settings: settings}, nil
}

// SelectProvider picks the provider for a request. The persona is
// validated before any filtering, so a bad persona is reported as such
// even when no provider would match anyway.
func (r *Router) SelectProvider(lctx models.LearnerContext) (provider.Provider, error) {
	if _, err := GetPersonaPolicy(lctx.Persona); err != nil {
		return nil, err
	}

	if !r.settings.Enabled {
		return r.offlineEntry()
	}

	var candidates []Entry
	for _, e := range r.entries {
		// An offline entry serves every persona.
		if e.Provider.Kind() != provider.KindOffline && e.Persona != lctx.Persona {
			continue
		}
		if lctx.Subject != nil && !e.supportsSubject(*lctx.Subject) {
			continue
		}
		if lctx.Difficulty != nil && !e.supportsDifficulty(*lctx.Difficulty) {
			continue
		}
		if !e.Available {
			continue
		}
		candidates = append(candidates, e)
	}

	if len(candidates) > 0 {
		if r.settings.PreferredBackend != "" {
			for _, e := range candidates {
				if e.Backend == r.settings.PreferredBackend {
					return e.Provider, nil
				}
			}
		}
		for _, e := range candidates {
			if e.Provider.Kind() != provider.KindOffline {
				return e.Provider, nil
			}
		}
		// Only offline entries remain; registration order decides.
		return candidates[0].Provider, nil
	}

	if r.settings.FallbackToOffline {
		log.Printf("[router] no provider matched persona=%s, using offline fallback", lctx.Persona)
		return r.offlineEntry()
	}
	return nil, fmt.Errorf("%w: persona=%s", ErrNoProviderAvailable, lctx.Persona)
}

func (r *Router) offlineEntry() (provider.Provider, error) {
	for _, e := range r.entries {
		if e.Provider.Kind() == provider.KindOffline && e.Available {
			return e.Provider, nil
		}
	}
	return nil, fmt.Errorf("%w: no offline provider registered", ErrNoProviderAvailable)
}

// Get returns the registered provider with the given id. Used to pin
// follow-up generations to the provider that opened the session.
func (r *Router) Get(id string) (provider.Provider, error) {
	for _, e := range r.entries {
		if e.Provider.ID() == id {
			return e.Provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
}

// List returns the discovery view of every registry entry, in
// registration order.
func (r *Router) List() []models.ProviderInfo {
	out := make([]models.ProviderInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, models.ProviderInfo{
			ID:          e.Provider.ID(),
			Kind:        string(e.Provider.Kind()),
			Backend:     string(e.Backend),
			Persona:     e.Persona,
			Subjects:    e.Subjects,
			Difficulty:  []models.Difficulty{e.MinDifficulty, e.MaxDifficulty},
			Description: e.Description,
			Available:   e.Available,
		})
	}
	return out
}
