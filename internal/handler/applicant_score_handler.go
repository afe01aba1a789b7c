package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/service"
	"github.com/noah-isme/screening-api/internal/utils"
)

// ApplicantScoreHandler serves derived scores and operator score edits.
type ApplicantScoreHandler struct {
	service   service.ApplicantScoreService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewApplicantScoreHandler constructs the handler.
func NewApplicantScoreHandler(service service.ApplicantScoreService, validate *validator.Validate, logger zerolog.Logger) *ApplicantScoreHandler {
	return &ApplicantScoreHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "applicant_score_handler").Logger(),
	}
}

// Register binds the routes under the admin group.
func (h *ApplicantScoreHandler) Register(router fiber.Router) {
	router.Get("/applicants/:id/scores", h.summary)
	router.Post("/applicants/:id/scores/reset", h.reset)
	router.Delete("/applicants/:id", h.delete)
	router.Patch("/responses/:id/score", h.override)
}

func (h *ApplicantScoreHandler) summary(c *fiber.Ctx) error {
	applicantID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.Summary(requestContext(c), applicantID)
	if err != nil {
		return h.fail(c, err, "failed to load applicant scores")
	}

	return utils.SendSuccess(c, "applicant scores", summary)
}

func (h *ApplicantScoreHandler) override(c *fiber.Ctx) error {
	responseID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ScoreOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return sendValidationError(c, err)
	}

	summary, err := h.service.OverrideScore(requestContext(c), responseID, *payload.Score)
	if err != nil {
		return h.fail(c, err, "failed to update response score")
	}

	requestLogger(h.logger, c).Info().
		Uint("response_id", responseID).
		Uint("operator_id", userIDFromContext(c)).
		Float64("score", *payload.Score).
		Msg("response score updated by operator")

	return utils.SendSuccess(c, "response score updated", summary)
}

func (h *ApplicantScoreHandler) reset(c *fiber.Ctx) error {
	applicantID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.ResetScores(requestContext(c), applicantID)
	if err != nil {
		return h.fail(c, err, "failed to reset applicant scores")
	}

	return utils.SendSuccess(c, "applicant scores reset", summary)
}

func (h *ApplicantScoreHandler) delete(c *fiber.Ctx) error {
	applicantID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteApplicant(requestContext(c), applicantID); err != nil {
		return h.fail(c, err, "failed to delete applicant")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ApplicantScoreHandler) fail(c *fiber.Ctx, err error, message string) error {
	status := scoringErrorStatus(err)
	if status >= fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, status, message)
	}
	return utils.SendError(c, status, err.Error())
}
