package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"alfredoptarigan/interview-evaluator/internal/models"
)

func TestBuildEvaluationPrompt(t *testing.T) {
	pb := NewPromptBuilder()
	in := EvaluationPromptInput{
		QuestionText:   "Describe a challenging project.",
		QuestionKind:   models.QuestionBehavioural,
		Transcription:  "I migrated our billing system.",
		OfferTitle:     "Backend Engineer",
		ExpectedSkills: []string{"ownership", "communication"},
	}

	prompt := pb.BuildEvaluationPrompt(in)

	assert.Contains(t, prompt, "Backend Engineer")
	assert.Contains(t, prompt, "Describe a challenging project.")
	assert.Contains(t, prompt, "I migrated our billing system.")
	assert.Contains(t, prompt, "- ownership\n- communication")
	assert.Contains(t, prompt, "Respond with JSON only")
	assert.Contains(t, prompt, "exactly these keys: "+strings.Join(EvaluationKeys, ", "))
	assert.NotContains(t, prompt, "EVALUATION GUIDELINES")

	assert.Equal(t, prompt, pb.BuildEvaluationPrompt(in), "same input gives the same prompt")
}

func TestBuildEvaluationPrompt_Variants(t *testing.T) {
	pb := NewPromptBuilder()

	unavailable := pb.BuildEvaluationPrompt(EvaluationPromptInput{
		QuestionText:             "Why us?",
		Transcription:            "ignored",
		TranscriptionUnavailable: true,
	})
	assert.Contains(t, unavailable, "transcription of the answer is not available")
	assert.NotContains(t, unavailable, "ignored")
	assert.Contains(t, unavailable, "- none specified")
	assert.Contains(t, unavailable, "for a open position")

	guided := pb.BuildEvaluationPrompt(EvaluationPromptInput{
		QuestionText: "Why us?",
		Guidelines:   []SearchResult{{Score: 0.8, Text: "Look for motivation."}},
	})
	assert.Contains(t, guided, "--- Guideline 1 (Score: 0.80) ---\nLook for motivation.")
}

func TestBuildQuestionGenerationPrompt(t *testing.T) {
	prompt := NewPromptBuilder().BuildQuestionGenerationPrompt("Data Engineer", "Build pipelines", "", "HARD", 3)

	assert.Contains(t, prompt, "exactement 3 questions")
	assert.Contains(t, prompt, "Data Engineer")
	assert.Contains(t, prompt, "Non précisées")
	assert.Contains(t, prompt, "NIVEAU DE DIFFICULTÉ: hard")
	assert.Contains(t, prompt, `"type": "technique"`)
}

func TestNormalizeDifficulty(t *testing.T) {
	assert.Equal(t, DifficultyEasy, NormalizeDifficulty(" Easy "))
	assert.Equal(t, DifficultyHard, NormalizeDifficulty("hard"))
	assert.Equal(t, DifficultyMedium, NormalizeDifficulty("expert"))
	assert.Equal(t, DifficultyMedium, NormalizeDifficulty(""))
}

func TestBuildRetrievalQuery(t *testing.T) {
	pb := NewPromptBuilder()

	assert.Contains(t, pb.BuildRetrievalQuery(models.QuestionTechnical, "Explain goroutines", "Go Developer"), "Go Developer")
	assert.Contains(t, pb.BuildRetrievalQuery(models.QuestionBehavioural, "Tell us about a conflict", ""), "Behavioural")
	assert.Contains(t, pb.BuildRetrievalQuery(models.QuestionMandatoryIntro, "", ""), "Self-introduction")
}

func TestFormatRAGContext_Empty(t *testing.T) {
	assert.Equal(t, "No relevant context found.", FormatRAGContext(nil))
}
