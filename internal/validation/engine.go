package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/wifikids/backend/internal/models"
)

// Strategy names a rule-based scoring algorithm.
type Strategy string

const (
	StrategyExact         Strategy = "exact_match"
	StrategyFuzzy         Strategy = "fuzzy_match"
	StrategySemantic      Strategy = "semantic_match"
	StrategyPartialCredit Strategy = "partial_credit"
	StrategyBalanced      Strategy = "balanced"
)

// Config is one persona's scoring configuration. The table is fixed at
// compile time; personas never change strategy mid-session.
type Config struct {
	Strategy           Strategy
	ScoreThreshold     float64
	AllowPartialCredit bool
	MaxPartialCredit   float64
	CaseSensitive      bool
	CollapseWhitespace bool
}

var personaConfigs = map[models.Persona]Config{
	models.PersonaTutor: {
		Strategy:           StrategyPartialCredit,
		ScoreThreshold:     0.80,
		AllowPartialCredit: true,
		MaxPartialCredit:   0.70,
		CollapseWhitespace: true,
	},
	models.PersonaMaternal: {
		Strategy:           StrategyFuzzy,
		ScoreThreshold:     0.70,
		AllowPartialCredit: true,
		MaxPartialCredit:   0.80,
		CollapseWhitespace: true,
	},
	models.PersonaGeneral: {
		Strategy:           StrategyBalanced,
		ScoreThreshold:     0.75,
		AllowPartialCredit: true,
		MaxPartialCredit:   0.60,
		CollapseWhitespace: true,
	},
}

// ConfigFor returns the persona's scoring configuration, defaulting to
// the general persona for unknown values.
func ConfigFor(p models.Persona) Config {
	if cfg, ok := personaConfigs[p]; ok {
		return cfg
	}
	return personaConfigs[models.PersonaGeneral]
}

// Normalize applies the persona's normalization rules.
func Normalize(s string, cfg Config) string {
	s = strings.TrimSpace(s)
	if !cfg.CaseSensitive {
		s = strings.ToLower(s)
	}
	if cfg.CollapseWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	return s
}

func exactScore(student, correct string) float64 {
	if student == correct {
		return 1.0
	}
	return 0.0
}

// fuzzyScore blends character-set overlap with length similarity.
func fuzzyScore(student, correct string) float64 {
	if student == "" || correct == "" {
		return 0.0
	}
	jaccard := charJaccard(student, correct)
	lenA := float64(len([]rune(student)))
	lenB := float64(len([]rune(correct)))
	lenSim := 1.0 - math.Abs(lenA-lenB)/math.Max(math.Max(lenA, lenB), 1)
	return 0.7*jaccard + 0.3*lenSim
}

func charJaccard(a, b string) float64 {
	setA := make(map[rune]bool)
	for _, r := range a {
		setA[r] = true
	}
	setB := make(map[rune]bool)
	for _, r := range b {
		setB[r] = true
	}
	inter := 0
	for r := range setA {
		if setB[r] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// semanticScore is recall over the correct answer's vocabulary.
func semanticScore(student, correct string) float64 {
	correctWords := wordSet(correct)
	if len(correctWords) == 0 {
		return 0.0
	}
	studentWords := wordSet(student)
	hit := 0
	for w := range correctWords {
		if studentWords[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(correctWords))
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

// Score applies the persona strategy to already-normalized strings.
func Score(student, correct string, cfg Config) float64 {
	switch cfg.Strategy {
	case StrategyExact:
		return exactScore(student, correct)
	case StrategyFuzzy:
		return fuzzyScore(student, correct)
	case StrategySemantic:
		return semanticScore(student, correct)
	case StrategyPartialCredit:
		if student == correct {
			return 1.0
		}
		blend := 0.5*exactScore(student, correct) + 0.3*fuzzyScore(student, correct) + 0.2*semanticScore(student, correct)
		return math.Min(blend, cfg.MaxPartialCredit)
	case StrategyBalanced:
		if student == correct {
			return 1.0
		}
		return math.Max(exactScore(student, correct), fuzzyScore(student, correct)*cfg.MaxPartialCredit)
	default:
		return exactScore(student, correct)
	}
}

// Validate is the rule-based scoring tier. It is a pure function of its
// inputs and never fails.
func Validate(q models.Question, studentAnswer, correctAnswer string, persona models.Persona, locale string) *models.ValidationOutcome {
	cfg := ConfigFor(persona)
	student := Normalize(studentAnswer, cfg)
	correct := Normalize(correctAnswer, cfg)

	score := Score(student, correct, cfg)
	isCorrect := score >= cfg.ScoreThreshold

	return &models.ValidationOutcome{
		Correct:     isCorrect,
		Score:       score,
		Feedback:    feedbackFor(persona, isCorrect, locale, q.Explanation),
		Explanation: fmt.Sprintf("Score: %.2f/1.0 (threshold: %.2f)", score, cfg.ScoreThreshold),
		Metadata: models.OutcomeMetadata{
			Tier:       models.TierRules,
			Confidence: 1.0,
		},
	}
}
