package provider

import (
	"fmt"
	"strings"

	"github.com/wifikids/backend/internal/models"
)

var personaPrompts = map[models.Persona]string{
	models.PersonaTutor: `You are a friendly, encouraging tutor who helps students learn through engaging questions. Be supportive and educational in your tone. Provide clear explanations and positive reinforcement.`,

	models.PersonaMaternal: `You are a caring, maternal figure who guides children with warmth and patience. Use gentle, nurturing language and show understanding when they make mistakes.`,

	models.PersonaGeneral: `You are a helpful educational assistant who creates engaging learning experiences. Be clear, encouraging, and focused on making learning fun and accessible.`,
}

func personaPrompt(p models.Persona) string {
	if prompt, ok := personaPrompts[p]; ok {
		return prompt
	}
	return personaPrompts[models.PersonaGeneral]
}

func buildGenerationSystemPrompt(persona models.Persona) string {
	return personaPrompt(persona) + "\nRespond ONLY with a JSON object."
}

func buildGenerationPrompt(subject models.Subject, difficulty models.Difficulty, locale string, numQuestions int, history []Exchange) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Generate %d educational question(s) for a student.\n", numQuestions)
	sb.WriteString("The questions must be:\n")
	fmt.Fprintf(&sb, "- Subject: %s\n", subject)
	fmt.Fprintf(&sb, "- Difficulty: %s\n", difficulty)
	fmt.Fprintf(&sb, "- Language: %s\n", locale)
	sb.WriteString("- Age-appropriate and engaging\n\n")

	if len(history) > 0 {
		sb.WriteString("Questions already asked to this learner (do not repeat them; a natural follow-up is welcome):\n")
		for _, ex := range history {
			fmt.Fprintf(&sb, "- Q: %s | learner answered: %s\n", ex.Prompt, ex.Answer)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`For each question provide a clear prompt, multiple choice options when type is "mc", the correct answer, and a brief explanation.

Return a JSON object with this exact structure:
{
  "questions": [
    {
      "id": "q1",
      "type": "mc",
      "prompt": "Question text here?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "answer_len": null,
      "subject": "` + string(subject) + `",
      "difficulty": "` + string(difficulty) + `",
      "explanation": "Brief explanation of the answer"
    }
  ],
  "answer_key": {
    "q1": "correct_answer_here"
  }
}
`)

	return sb.String()
}

// ── AI judge prompts ───────────────────────────────────────

func judgeSystemPrompt(locale string) string {
	if strings.HasPrefix(locale, "pt") {
		return `Você é um avaliador educacional inteligente. Avalie se a resposta de um estudante está correta, considerando:

1. FLEXIBILIDADE: aceite variações equivalentes da resposta correta
2. CONTEXTO: entenda o contexto da pergunta (múltipla escolha, texto livre)
3. SINÔNIMOS: reconheça sinônimos e formas alternativas corretas
4. FORMATO: ignore diferenças de formatação (maiúsculas, pontuação, espaços, acentos)

SEMPRE retorne um JSON válido com:
{"correct": boolean, "score": float (0.0-1.0), "confidence": float (0.0-1.0), "feedback": "feedback apropriado", "explanation": "explicação da resposta correta", "reasoning": "seu raciocínio de avaliação"}`
	}
	return `You are an intelligent educational evaluator. Assess if a student's answer is correct, considering:

1. FLEXIBILITY: accept equivalent variations of the correct answer
2. CONTEXT: understand the question context (multiple choice, free text)
3. SYNONYMS: recognize synonyms and alternative correct forms
4. FORMAT: ignore formatting differences (capitalization, punctuation, spaces, accents)

ALWAYS return valid JSON with:
{"correct": boolean, "score": float (0.0-1.0), "confidence": float (0.0-1.0), "feedback": "appropriate feedback string", "explanation": "explanation of the correct answer", "reasoning": "your evaluation reasoning"}`
}

var judgePersonaContexts = map[models.Persona]map[string]string{
	models.PersonaTutor: {
		"pt": "Professor educativo que oferece feedback detalhado e explicações claras",
		"en": "Educational teacher who provides detailed feedback and clear explanations",
	},
	models.PersonaMaternal: {
		"pt": "Figura maternal carinhosa que encoraja e motiva com gentileza",
		"en": "Caring maternal figure who encourages and motivates gently",
	},
	models.PersonaGeneral: {
		"pt": "Assistente equilibrado que fornece feedback construtivo",
		"en": "Balanced assistant who provides constructive feedback",
	},
}

func judgePersonaContext(persona models.Persona, locale string) string {
	contexts, ok := judgePersonaContexts[persona]
	if !ok {
		contexts = judgePersonaContexts[models.PersonaGeneral]
	}
	lang := "en"
	if strings.HasPrefix(locale, "pt") {
		lang = "pt"
	}
	return contexts[lang]
}

func buildJudgePrompt(q models.Question, correctAnswer, studentAnswer string, persona models.Persona, locale string) string {
	var sb strings.Builder

	sb.WriteString("QUESTION:\n")
	sb.WriteString(q.Prompt)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "TYPE: %s\nSUBJECT: %s\n\n", q.Type, q.Subject)

	if len(q.Options) > 0 {
		sb.WriteString("OPTIONS:\n")
		for i, option := range q.Options {
			fmt.Fprintf(&sb, "%c) %s\n", 'A'+i, option)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "CORRECT ANSWER (not shown to student): %q\n", correctAnswer)
	fmt.Fprintf(&sb, "STUDENT ANSWER: %q\n\n", studentAnswer)
	fmt.Fprintf(&sb, "PERSONA CONTEXT: %s\n\n", judgePersonaContext(persona, locale))

	if q.Explanation != "" {
		fmt.Fprintf(&sb, "ADDITIONAL CONTEXT: %s\n\n", q.Explanation)
	}

	sb.WriteString("Accept both option letters (A, B, C, D) and full option text. ")
	sb.WriteString("Be flexible with formatting, case and accents. If the student's answer is synonymous or equivalent to the correct answer, consider it correct.\n\n")
	sb.WriteString("Return JSON with your evaluation.")

	return sb.String()
}
