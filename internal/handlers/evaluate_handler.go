package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/interview-evaluator/internal/models"
	"alfredoptarigan/interview-evaluator/internal/services"
)

type EvaluationHandler struct {
	orchestrator   services.EvaluationOrchestrator
	worker         services.Worker
	forceOnRequest bool
}

func NewEvaluationHandler(
	orchestrator services.EvaluationOrchestrator,
	worker services.Worker,
	forceOnRequest bool,
) *EvaluationHandler {
	return &EvaluationHandler{
		orchestrator:   orchestrator,
		worker:         worker,
		forceOnRequest: forceOnRequest,
	}
}

// HandleEvaluate handles POST /answers/:id/evaluate
func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	answerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid answer ID format",
		})
	}

	var req models.EvaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request payload",
			})
		}
	}
	force := h.resolveForce(c, req.Force)

	if c.QueryBool("async") {
		if h.worker == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Background worker is not running",
			})
		}
		job := services.EvaluationJob{AnswerID: answerID, Force: force}
		if err := h.worker.EnqueueJob(c.UserContext(), job); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Failed to enqueue evaluation job",
			})
		}
		return c.Status(fiber.StatusAccepted).JSON(models.EnqueueResponse{
			AnswerID: answerID.String(),
			Status:   "queued",
		})
	}

	result := h.orchestrator.Evaluate(c.UserContext(), answerID, force)
	return c.Status(statusForResult(result)).JSON(result)
}

// HandleBulkEvaluate handles POST /campaigns/:id/evaluate
func (h *EvaluationHandler) HandleBulkEvaluate(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign ID format",
		})
	}

	var req models.BulkEvaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request payload",
			})
		}
	}

	candidateIDs := make([]uuid.UUID, 0, len(req.CandidateIDs))
	for _, raw := range req.CandidateIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid candidate ID format: " + raw,
			})
		}
		candidateIDs = append(candidateIDs, id)
	}

	bulk, err := h.orchestrator.EvaluateBulk(c.UserContext(), campaignID, candidateIDs, h.resolveForce(c, req.Force))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "Failed to evaluate campaign",
			"error_kind": services.KindOf(err),
		})
	}

	return c.JSON(bulk)
}

// HandleMetrics handles GET /metrics
func (h *EvaluationHandler) HandleMetrics(c *fiber.Ctx) error {
	return c.JSON(h.orchestrator.Metrics())
}

// resolveForce: body field, then ?force=, then the configured default.
func (h *EvaluationHandler) resolveForce(c *fiber.Ctx, bodyForce *bool) bool {
	if bodyForce != nil {
		return *bodyForce
	}
	if raw := c.Query("force"); raw != "" {
		if force, err := strconv.ParseBool(raw); err == nil {
			return force
		}
	}
	return h.forceOnRequest
}

// statusForResult keeps 200 for evaluation outcomes, including failed ones:
// the envelope carries the outcome. Only caller-side problems change it.
func statusForResult(result *services.EvaluationResult) int {
	if result.Busy {
		return fiber.StatusConflict
	}
	switch result.ErrorKind {
	case services.ErrKindAnswerNotFound:
		return fiber.StatusNotFound
	case services.ErrKindInvalidInput:
		return fiber.StatusBadRequest
	case services.ErrKindConfigurationMissing:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusOK
	}
}
