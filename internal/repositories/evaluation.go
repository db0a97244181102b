package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/interview-evaluator/internal/models"
)

var (
	ErrAnswerNotFound     = errors.New("answer not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrStaleTransition    = errors.New("evaluation status changed concurrently")
)

type AcquireOutcome int

const (
	// AcquireStarted means this caller moved the row to processing and owns the run.
	AcquireStarted AcquireOutcome = iota
	// AcquireCompleted means a completed row exists and force was not set.
	AcquireCompleted
	// AcquireBusy means another caller is processing the answer.
	AcquireBusy
)

type StatusChange struct {
	From                  models.EvaluationStatus
	To                    models.EvaluationStatus
	ErrorMessage          *string
	ProcessingTimeSeconds *float64
	Provider              models.Provider
	ClearScores           bool
	// Metadata replaces processing_metadata when set.
	Metadata datatypes.JSONMap
}

// EvaluationStore is everything the evaluation pipeline needs from
// persistence.
type EvaluationStore interface {
	LoadAnswer(ctx context.Context, answerID uuid.UUID) (*models.AnswerContext, error)
	AcquireAnswerLock(ctx context.Context, answerID uuid.UUID, force bool) (*models.Evaluation, AcquireOutcome, error)
	UpsertEvaluation(ctx context.Context, eval *models.Evaluation) error
	TransitionStatus(ctx context.Context, evalID uuid.UUID, change StatusChange) (*models.Evaluation, error)
	FindByAnswerID(ctx context.Context, answerID uuid.UUID) (*models.Evaluation, error)
	ListCampaignAnswers(ctx context.Context, campaignID uuid.UUID, candidateIDs []uuid.UUID) ([]models.Answer, error)
	FindAnswersAwaitingEvaluation(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type evaluationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEvaluationRepository(db *gorm.DB) EvaluationStore {
	return &evaluationRepository{db: db, now: time.Now}
}

func (r *evaluationRepository) LoadAnswer(ctx context.Context, answerID uuid.UUID) (*models.AnswerContext, error) {
	var answer models.Answer
	err := r.db.WithContext(ctx).
		Preload("Question.Campaign.JobOffer").
		Where("id = ?", answerID).
		First(&answer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to load answer: %w", err)
	}

	return buildAnswerContext(answer), nil
}

func buildAnswerContext(answer models.Answer) *models.AnswerContext {
	question := answer.Question
	campaign := question.Campaign
	offer := campaign.JobOffer

	skills := []string(campaign.ExpectedSkills)
	if len(skills) == 0 {
		skills = []string(offer.RequiredSkills)
	}

	return &models.AnswerContext{
		Answer:           answer,
		QuestionText:     question.Text,
		QuestionKind:     question.Kind,
		CampaignID:       question.CampaignID,
		OfferTitle:       offer.Title,
		OfferDescription: offer.Description,
		Requirements:     offer.Requirements,
		ExpectedSkills:   skills,
	}
}

func (r *evaluationRepository) AcquireAnswerLock(ctx context.Context, answerID uuid.UUID, force bool) (*models.Evaluation, AcquireOutcome, error) {
	var eval models.Evaluation
	outcome := AcquireStarted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answer models.Answer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", answerID).
			First(&answer).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAnswerNotFound
			}
			return fmt.Errorf("failed to lock answer: %w", err)
		}

		err = tx.Where("answer_id = ?", answerID).First(&eval).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			now := r.now()
			eval = models.Evaluation{
				ID:        uuid.New(),
				AnswerID:  answerID,
				Status:    models.StatusPending,
				Language:  "unknown",
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Omit(clause.Associations).Create(&eval).Error; err != nil {
				return fmt.Errorf("failed to create evaluation: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to find evaluation: %w", err)
		}

		switch {
		case eval.Status == models.StatusProcessing:
			outcome = AcquireBusy
			return nil
		case eval.Status == models.StatusCompleted && !force:
			outcome = AcquireCompleted
			return nil
		}

		eval.Status = models.StatusProcessing
		eval.ErrorMessage = nil
		eval.ResetTranscription()
		eval.Touch(r.now())

		result := tx.Model(&models.Evaluation{}).
			Where("id = ?", eval.ID).
			Updates(map[string]interface{}{
				"status":                   eval.Status,
				"error_message":            nil,
				"transcription":            "",
				"language":                 eval.Language,
				"transcription_confidence": 0,
				"segments":                 nil,
				"processing_metadata":      nil,
				"updated_at":               eval.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to start evaluation: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, outcome, err
	}

	return &eval, outcome, nil
}

func (r *evaluationRepository) UpsertEvaluation(ctx context.Context, eval *models.Evaluation) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(eval).Error
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}

// created_at and id are left alone on conflict.
var upsertColumns = []string{
	"transcription", "language", "transcription_confidence", "segments",
	"communication_score", "relevance_score", "confidence_score", "technical_score", "overall_score",
	"strengths", "weaknesses", "feedback", "provider", "status",
	"error_message", "processing_time_seconds", "processing_metadata",
	"updated_at", "completed_at",
}

func (r *evaluationRepository) TransitionStatus(ctx context.Context, evalID uuid.UUID, change StatusChange) (*models.Evaluation, error) {
	var eval models.Evaluation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", evalID).
			First(&eval).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEvaluationNotFound
			}
			return fmt.Errorf("failed to load evaluation: %w", err)
		}
		if eval.Status != change.From {
			return ErrStaleTransition
		}

		eval.Status = change.To
		eval.ErrorMessage = change.ErrorMessage
		if change.ProcessingTimeSeconds != nil {
			eval.ProcessingTimeSeconds = change.ProcessingTimeSeconds
		}
		if change.Provider != "" {
			eval.Provider = change.Provider
		}
		if change.ClearScores {
			eval.ClearScores()
		}
		if change.Metadata != nil {
			eval.ProcessingMetadata = change.Metadata
		}
		eval.Touch(r.now())

		updates := map[string]interface{}{
			"status":                  eval.Status,
			"error_message":           eval.ErrorMessage,
			"processing_time_seconds": eval.ProcessingTimeSeconds,
			"provider":                eval.Provider,
			"updated_at":              eval.UpdatedAt,
		}
		if change.ClearScores {
			for _, column := range []string{"communication_score", "relevance_score", "confidence_score", "technical_score", "overall_score", "completed_at"} {
				updates[column] = nil
			}
			updates["strengths"] = ""
			updates["weaknesses"] = ""
			updates["feedback"] = ""
		}
		if change.Metadata != nil {
			updates["processing_metadata"] = change.Metadata
		}

		result := tx.Model(&models.Evaluation{}).
			Where("id = ? AND status = ?", evalID, change.From).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrStaleTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &eval, nil
}

func (r *evaluationRepository) FindByAnswerID(ctx context.Context, answerID uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := r.db.WithContext(ctx).Where("answer_id = ?", answerID).First(&eval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) ListCampaignAnswers(ctx context.Context, campaignID uuid.UUID, candidateIDs []uuid.UUID) ([]models.Answer, error) {
	query := r.db.WithContext(ctx).
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("questions.campaign_id = ?", campaignID)

	if len(candidateIDs) > 0 {
		query = query.Where("answers.candidate_id IN ?", candidateIDs)
	}

	var answers []models.Answer
	if err := query.Order("answers.candidate_id ASC, questions.position ASC").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaign answers: %w", err)
	}
	return answers, nil
}

func (r *evaluationRepository) FindAnswersAwaitingEvaluation(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("answers.status = ?", models.AnswerReadyForEvaluation).
		Where("NOT EXISTS (SELECT 1 FROM evaluations WHERE evaluations.answer_id = answers.id)").
		Order("answers.created_at ASC").
		Limit(limit).
		Pluck("answers.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find answers awaiting evaluation: %w", err)
	}
	return ids, nil
}
