package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/interview-evaluator/internal/models"
	"alfredoptarigan/interview-evaluator/internal/repositories"
	"alfredoptarigan/interview-evaluator/internal/services"
)

type QuestionHandler struct {
	generator    services.QuestionGenerator
	questionRepo repositories.QuestionRepository
}

func NewQuestionHandler(generator services.QuestionGenerator, questionRepo repositories.QuestionRepository) *QuestionHandler {
	return &QuestionHandler{
		generator:    generator,
		questionRepo: questionRepo,
	}
}

// HandleGenerate handles POST /questions/generate
func (h *QuestionHandler) HandleGenerate(c *fiber.Ctx) error {
	var req models.GenerateQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	var campaignID uuid.UUID
	if req.CampaignID != "" {
		id, err := uuid.Parse(req.CampaignID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid campaign_id format",
			})
		}
		campaignID = id
	}

	questions, err := h.generator.Generate(c.UserContext(), services.GenerateQuestionsInput{
		OfferTitle:       req.OfferTitle,
		OfferDescription: req.OfferDescription,
		Requirements:     req.Requirements,
		Difficulty:       req.Difficulty,
		Count:            req.Count,
		BehaviouralCount: req.BehaviouralCount,
		TechnicalCount:   req.TechnicalCount,
	})
	if err != nil {
		if services.KindOf(err) == services.ErrKindInvalidInput {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":      err.Error(),
				"error_kind": services.ErrKindInvalidInput,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate questions",
		})
	}

	if campaignID != uuid.Nil && h.questionRepo != nil {
		if err := h.questionRepo.ReplaceForCampaign(c.UserContext(), campaignID, services.ToModels(questions)); err != nil {
			if errors.Is(err, repositories.ErrCampaignNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Campaign not found",
				})
			}
			if errors.Is(err, repositories.ErrCampaignHasAnswers) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "Campaign questions cannot be replaced once answers are recorded",
				})
			}
			log.Printf("❌ Failed to save questions for campaign %s: %v\n", campaignID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to save questions",
			})
		}
	}

	return c.JSON(fiber.Map{
		"questions": questions,
		"count":     len(questions),
	})
}

// HandleListCampaignQuestions handles GET /campaigns/:id/questions
func (h *QuestionHandler) HandleListCampaignQuestions(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign ID format",
		})
	}

	if h.questionRepo == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Question storage is not configured",
		})
	}

	questions, err := h.questionRepo.ListByCampaign(c.UserContext(), campaignID)
	if err != nil {
		log.Printf("❌ Failed to list questions for campaign %s: %v\n", campaignID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list questions",
		})
	}

	return c.JSON(fiber.Map{
		"campaign_id": campaignID.String(),
		"questions":   questions,
		"count":       len(questions),
	})
}
