package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/interview-evaluator/internal/models"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrCampaignHasAnswers = errors.New("campaign already has recorded answers")
)

type QuestionRepository interface {
	ReplaceForCampaign(ctx context.Context, campaignID uuid.UUID, questions []models.Question) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

// ReplaceForCampaign swaps the campaign's question list in one transaction.
// Once a candidate has answered any question the list is frozen, since
// deleting a question cascades to its answers and their evaluations.
func (r *questionRepository) ReplaceForCampaign(ctx context.Context, campaignID uuid.UUID, questions []models.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Campaign{}).Where("id = ?", campaignID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check campaign: %w", err)
		}
		if count == 0 {
			return ErrCampaignNotFound
		}

		var answered int64
		err := tx.Model(&models.Answer{}).
			Joins("JOIN questions ON questions.id = answers.question_id").
			Where("questions.campaign_id = ?", campaignID).
			Count(&answered).Error
		if err != nil {
			return fmt.Errorf("failed to check campaign answers: %w", err)
		}
		if answered > 0 {
			return ErrCampaignHasAnswers
		}

		if err := tx.Where("campaign_id = ?", campaignID).Delete(&models.Question{}).Error; err != nil {
			return fmt.Errorf("failed to delete questions: %w", err)
		}

		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].CampaignID = campaignID
		}
		if err := tx.Omit("Campaign").Create(&questions).Error; err != nil {
			return fmt.Errorf("failed to create questions: %w", err)
		}
		return nil
	})
}

func (r *questionRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}
