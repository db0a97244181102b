package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"alfredoptarigan/interview-evaluator/internal/models"
)

func TestBuildAnswerContext(t *testing.T) {
	campaignID := uuid.New()
	answer := models.Answer{
		ID: uuid.New(),
		Question: models.Question{
			CampaignID: campaignID,
			Text:       "Explain how you would shard a table.",
			Kind:       models.QuestionTechnical,
			Campaign: models.Campaign{
				ID: campaignID,
				JobOffer: models.JobOffer{
					Title:          "Database Engineer",
					Description:    "Own our Postgres fleet.",
					Requirements:   "5 years of SQL",
					RequiredSkills: []string{"postgres", "sharding"},
				},
			},
		},
	}

	t.Run("offer skills when campaign has none", func(t *testing.T) {
		ac := buildAnswerContext(answer)

		assert.Equal(t, answer.ID, ac.Answer.ID)
		assert.Equal(t, "Explain how you would shard a table.", ac.QuestionText)
		assert.Equal(t, models.QuestionTechnical, ac.QuestionKind)
		assert.Equal(t, campaignID, ac.CampaignID)
		assert.Equal(t, "Database Engineer", ac.OfferTitle)
		assert.Equal(t, "5 years of SQL", ac.Requirements)
		assert.Equal(t, []string{"postgres", "sharding"}, ac.ExpectedSkills)
	})

	t.Run("campaign skills take precedence", func(t *testing.T) {
		withSkills := answer
		withSkills.Question.Campaign.ExpectedSkills = []string{"communication"}

		ac := buildAnswerContext(withSkills)

		assert.Equal(t, []string{"communication"}, ac.ExpectedSkills)
	})
}
