package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/screening-api/internal/middleware"
	"github.com/noah-isme/screening-api/internal/service"
	"github.com/noah-isme/screening-api/internal/utils"
	"github.com/noah-isme/screening-api/pkg/ai"
)

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	if raw == "" {
		return 0, errors.New(name + " required")
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.WithCorrelationID(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func sendValidationError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", details)
}

// scoringErrorStatus maps scoring errors onto HTTP status codes.
func scoringErrorStatus(err error) int {
	var (
		cfgErr      *service.ConfigurationError
		rateErr     *ai.RateLimitError
		providerErr *ai.ProviderError
	)
	switch {
	case isValidationError(err):
		return fiber.StatusBadRequest
	case service.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrBatchRunning):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrNothingToScore), errors.As(err, &cfgErr), errors.Is(err, ai.ErrIncompletePrompt):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &rateErr):
		return fiber.StatusTooManyRequests
	case errors.As(err, &providerErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
