package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/service"
	"github.com/noah-isme/screening-api/internal/utils"
)

// ScoringHandler exposes the batch scoring controls and the one-off scoring
// endpoint to operators.
type ScoringHandler struct {
	batch     service.BatchScoringService
	scorer    service.ResponseScoringService
	validator *validator.Validate
	logger    zerolog.Logger
	keepAlive time.Duration
	startRate fiber.Handler
}

// NewScoringHandler constructs a scoring handler. startRate guards the
// endpoints that trigger provider calls and may be nil.
func NewScoringHandler(batch service.BatchScoringService, scorer service.ResponseScoringService, validate *validator.Validate, logger zerolog.Logger, keepAlive time.Duration, startRate fiber.Handler) *ScoringHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	if startRate == nil {
		startRate = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &ScoringHandler{
		batch:     batch,
		scorer:    scorer,
		validator: validate,
		logger:    logger.With().Str("component", "scoring_handler").Logger(),
		keepAlive: keepAlive,
		startRate: startRate,
	}
}

// Register binds the scoring routes.
func (h *ScoringHandler) Register(router fiber.Router) {
	router.Post("/start", h.startRate, h.start)
	router.Post("/stop", h.stop)
	router.Get("/status", h.status)
	router.Get("/logs", h.logs)
	router.Get("/failures", h.failures)
	router.Get("/stream", h.stream)
	router.Post("/responses/score", h.startRate, h.scoreOne)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleSocket))
}

func (h *ScoringHandler) start(c *fiber.Ctx) error {
	operatorID := userIDFromContext(c)
	if operatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	status, err := h.batch.Start(requestContext(c), operatorID)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("operator_id", operatorID).Msg("batch scoring not started")
		return utils.SendError(c, scoringErrorStatus(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "scoring started", status)
}

func (h *ScoringHandler) stop(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "scoring stop requested", h.batch.Stop())
}

func (h *ScoringHandler) status(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "scoring status", h.batch.Status())
}

func (h *ScoringHandler) logs(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "scoring logs", h.batch.Logs())
}

func (h *ScoringHandler) failures(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "scoring failures", h.batch.Failures())
}

func (h *ScoringHandler) scoreOne(c *fiber.Ctx) error {
	operatorID := userIDFromContext(c)
	if operatorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ScoreResponseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return sendValidationError(c, err)
	}

	result, err := h.scorer.ScoreStored(requestContext(c), operatorID, payload.ApplicantID, payload.QuestionID)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).
			Uint("applicant_id", payload.ApplicantID).
			Uint("question_id", payload.QuestionID).
			Msg("response scoring failed")
		return utils.SendError(c, scoringErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "response scored", dto.ScoreResultResponse{
		ApplicantID: payload.ApplicantID,
		QuestionID:  payload.QuestionID,
		Score:       result.Score,
		Attempts:    result.Attempts,
		Provider:    result.Provider.String(),
		Model:       result.Model,
	})
}

func (h *ScoringHandler) stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	events, cleanup := h.batch.Subscribe()
	initial := h.batch.Status()
	keepAlive := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		if err := writeBatchEvent(w, dto.BatchEvent{Type: dto.BatchEventStatus, Status: &initial}); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeBatchEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write scoring event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write scoring keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *ScoringHandler) handleSocket(conn *websocket.Conn) {
	events, cleanup := h.batch.Subscribe()
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	status := h.batch.Status()
	if err := conn.WriteJSON(dto.BatchEvent{Type: dto.BatchEventStatus, Status: &status}); err != nil {
		return
	}

	h.logger.Debug().Msg("scoring websocket connected")
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("failed to write scoring websocket event")
				return
			}
		case <-closed:
			h.logger.Debug().Msg("scoring websocket disconnected")
			return
		}
	}
}

func writeBatchEvent(w *bufio.Writer, event dto.BatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
