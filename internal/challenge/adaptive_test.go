package challenge

import (
	"testing"

	"github.com/wifikids/backend/internal/models"
)

func TestAdaptDifficulty(t *testing.T) {
	tests := []struct {
		name  string
		prior map[models.Subject]float64
		want  models.Difficulty
	}{
		{"no history starts easy", nil, models.DifficultyEasy},
		{"strong history goes hard", map[models.Subject]float64{models.SubjectMath: 0.9}, models.DifficultyHard},
		{"middling history goes medium", map[models.Subject]float64{models.SubjectMath: 0.6}, models.DifficultyMedium},
		{"weak history stays easy", map[models.Subject]float64{models.SubjectMath: 0.3}, models.DifficultyEasy},
		{"other subject history is ignored", map[models.Subject]float64{models.SubjectArt: 0.95}, models.DifficultyEasy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lctx := models.LearnerContext{PriorPerformance: tt.prior}
			if got := adaptDifficulty(lctx, models.SubjectMath); got != tt.want {
				t.Errorf("adaptDifficulty = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdaptDifficultyExplicitWins(t *testing.T) {
	hard := models.DifficultyHard
	lctx := models.LearnerContext{
		Difficulty:       &hard,
		PriorPerformance: map[models.Subject]float64{models.SubjectMath: 0.1},
	}
	if got := adaptDifficulty(lctx, models.SubjectMath); got != models.DifficultyHard {
		t.Errorf("explicit difficulty overridden: %q", got)
	}
}
