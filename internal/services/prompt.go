package services

import (
	"fmt"
	"strings"

	"alfredoptarigan/interview-evaluator/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

type EvaluationPromptInput struct {
	QuestionText             string
	QuestionKind             models.QuestionKind
	Transcription            string
	OfferTitle               string
	ExpectedSkills           []string
	Guidelines               []SearchResult
	TranscriptionUnavailable bool
}

// EvaluationKeys are the only keys the evaluation prompt allows in the reply.
var EvaluationKeys = []string{
	"communication_score",
	"relevance_score",
	"confidence_score",
	"overall_score",
	"feedback",
}

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// BuildEvaluationPrompt creates prompt for one interview answer
func (pb *PromptBuilder) BuildEvaluationPrompt(in EvaluationPromptInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an expert recruiter evaluating a candidate's recorded video answer for a %s position.\n\n",
		fallbackText(in.OfferTitle, "open"))

	sb.WriteString("INTERVIEW QUESTION:\n")
	sb.WriteString(strings.TrimSpace(in.QuestionText))
	sb.WriteString("\n\n")

	if in.QuestionKind != "" {
		fmt.Fprintf(&sb, "QUESTION TYPE: %s\n\n", in.QuestionKind)
	}

	sb.WriteString("EXPECTED SKILLS:\n")
	if len(in.ExpectedSkills) == 0 {
		sb.WriteString("- none specified\n")
	}
	for _, skill := range in.ExpectedSkills {
		fmt.Fprintf(&sb, "- %s\n", strings.TrimSpace(skill))
	}
	sb.WriteString("\n")

	if len(in.Guidelines) > 0 {
		sb.WriteString("EVALUATION GUIDELINES:\n")
		sb.WriteString(FormatRAGContext(in.Guidelines))
		sb.WriteString("\n\n")
	}

	if in.TranscriptionUnavailable {
		sb.WriteString("CANDIDATE ANSWER:\nThe transcription of the answer is not available. ")
		sb.WriteString("Evaluate from the question and the expected skills only, stay conservative and say so in the feedback.\n\n")
	} else {
		sb.WriteString("CANDIDATE ANSWER (TRANSCRIPTION):\n")
		sb.WriteString(strings.TrimSpace(in.Transcription))
		sb.WriteString("\n\n")
	}

	sb.WriteString(`Evaluate the answer on the following parameters (0-10 scale, decimals allowed):
1. Communication - clarity, structure and fluency of the answer
2. Relevance - how directly the answer addresses the question and the expected skills
3. Confidence - assurance and conviction shown by the candidate
4. Overall - global assessment of the answer

Respond with JSON only. No markdown, no text before or after the object.
The object must contain exactly these keys: `)
	sb.WriteString(strings.Join(EvaluationKeys, ", "))
	sb.WriteString(`.
{
  "communication_score": <0-10>,
  "relevance_score": <0-10>,
  "confidence_score": <0-10>,
  "overall_score": <0-10>,
  "feedback": "<constructive feedback, 3-5 sentences>"
}`)

	return sb.String()
}

// BuildQuestionGenerationPrompt creates prompt for the technical part of a campaign
func (pb *PromptBuilder) BuildQuestionGenerationPrompt(title, description, requirements, difficulty string, count int) string {
	return fmt.Sprintf(`Tu es un recruteur technique expérimenté. Génère exactement %d questions techniques d'entretien vidéo pour le poste suivant.

POSTE: %s

DESCRIPTION:
%s

EXIGENCES:
%s

NIVEAU DE DIFFICULTÉ: %s

Règles:
- Chaque question tient en une seule phrase, sur une ou deux lignes.
- Les questions portent sur les compétences techniques du poste, pas sur le comportement.
- Les questions sont rédigées en français.

Réponds uniquement avec un tableau JSON de %d éléments, sans texte autour:
[
  {"question": "<texte de la question>", "type": "technique"}
]`,
		count,
		strings.TrimSpace(title),
		strings.TrimSpace(description),
		fallbackText(requirements, "Non précisées"),
		NormalizeDifficulty(difficulty),
		count)
}

// NormalizeDifficulty maps unknown levels to medium.
func NormalizeDifficulty(difficulty string) string {
	switch strings.ToLower(strings.TrimSpace(difficulty)) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// BuildRetrievalQuery creates query for RAG retrieval
func (pb *PromptBuilder) BuildRetrievalQuery(kind models.QuestionKind, questionText, offerTitle string) string {
	switch kind {
	case models.QuestionTechnical:
		return fmt.Sprintf("Technical answer evaluation criteria for %s: %s", offerTitle, questionText)
	case models.QuestionMandatoryIntro:
		return "Self-introduction evaluation criteria and scoring guidelines"
	default:
		return fmt.Sprintf("Behavioural answer evaluation criteria: %s", questionText)
	}
}

// Helper to clean and format context from RAG results
func FormatRAGContext(results []SearchResult) string {
	if len(results) == 0 {
		return "No relevant context found."
	}

	var parts []string
	for i, result := range results {
		parts = append(parts, fmt.Sprintf("--- Guideline %d (Score: %.2f) ---\n%s",
			i+1, result.Score, strings.TrimSpace(result.Text)))
	}

	return strings.Join(parts, "\n\n")
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
