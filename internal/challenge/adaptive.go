package challenge

import "github.com/wifikids/backend/internal/models"

// adaptDifficulty picks a difficulty from the learner's prior average
// score in the subject. An explicit request always wins; with no history
// the learner starts easy.
func adaptDifficulty(lctx models.LearnerContext, subject models.Subject) models.Difficulty {
	if lctx.Difficulty != nil {
		return *lctx.Difficulty
	}

	avg, ok := lctx.PriorPerformance[subject]
	if !ok {
		return models.DifficultyEasy
	}
	switch {
	case avg >= 0.8:
		return models.DifficultyHard
	case avg >= 0.5:
		return models.DifficultyMedium
	default:
		return models.DifficultyEasy
	}
}
