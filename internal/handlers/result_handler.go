package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/interview-evaluator/internal/models"
	"alfredoptarigan/interview-evaluator/internal/repositories"
)

type ResultHandler struct {
	store repositories.EvaluationStore
}

func NewResultHandler(store repositories.EvaluationStore) *ResultHandler {
	return &ResultHandler{
		store: store,
	}
}

// HandleGetEvaluation handles GET /answers/:id/evaluation
func (h *ResultHandler) HandleGetEvaluation(c *fiber.Ctx) error {
	answerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid answer ID format",
		})
	}

	evaluation, err := h.store.FindByAnswerID(c.UserContext(), answerID)
	if err != nil {
		if errors.Is(err, repositories.ErrEvaluationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Evaluation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load evaluation",
		})
	}

	response := models.EvaluationResponse{
		AnswerID: answerID.String(),
		Status:   string(evaluation.Status),
	}

	switch evaluation.Status {
	case models.StatusCompleted:
		response.Evaluation = evaluation
	case models.StatusFailed:
		response.ErrorMessage = evaluation.ErrorMessage
	}

	return c.JSON(response)
}
