package validation

import (
	"fmt"
	"strings"

	"github.com/wifikids/backend/internal/models"
)

type feedbackTemplates struct {
	success       string
	encouragement string
}

// Templates are keyed by persona and language. The encouragement string
// takes the question explanation as its single argument when one exists.
var feedbackByPersona = map[models.Persona]map[string]feedbackTemplates{
	models.PersonaTutor: {
		"pt": {
			success:       "Excelente trabalho! Você acertou.",
			encouragement: "Quase lá! %s Tente novamente.",
		},
		"en": {
			success:       "Excellent work! You got it right.",
			encouragement: "Almost there! %s Try again.",
		},
	},
	models.PersonaMaternal: {
		"pt": {
			success:       "Muito bem, meu amor! Você conseguiu!",
			encouragement: "Não desanima, querido! %s Vamos tentar de novo?",
		},
		"en": {
			success:       "Well done, sweetheart! You did it!",
			encouragement: "Don't give up, dear! %s Shall we try again?",
		},
	},
	models.PersonaGeneral: {
		"pt": {
			success:       "Correto! Boa resposta.",
			encouragement: "Resposta incorreta. %s Tente mais uma vez.",
		},
		"en": {
			success:       "Correct! Good answer.",
			encouragement: "That's not quite right. %s Give it another try.",
		},
	},
}

// SuccessFeedback returns the persona's success template, for decisions
// produced without scoring a fresh answer.
func SuccessFeedback(persona models.Persona, locale string) string {
	return feedbackFor(persona, true, locale, "")
}

func feedbackFor(persona models.Persona, correct bool, locale, explanation string) string {
	templates, ok := feedbackByPersona[persona]
	if !ok {
		templates = feedbackByPersona[models.PersonaGeneral]
	}
	lang := "en"
	if strings.HasPrefix(locale, "pt") {
		lang = "pt"
	}
	t := templates[lang]

	if correct {
		return t.success
	}
	// Fields-join collapses the gap left by an absent explanation.
	msg := fmt.Sprintf(t.encouragement, explanation)
	return strings.Join(strings.Fields(msg), " ")
}
