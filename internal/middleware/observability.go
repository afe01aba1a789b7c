package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/screening-api/internal/observability"
)

const adminPrefix = "/api/admin"

// streamingRoutes hold the connection open for the whole batch run, so their
// duration is not a request latency.
var streamingRoutes = map[string]struct{}{
	adminPrefix + "/scoring/stream": {},
	adminPrefix + "/scoring/ws":     {},
}

// Observability records request counters, latency and a structured log line
// for operator endpoints under /api/admin.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		if !strings.HasPrefix(c.Path(), adminPrefix) {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := responseStatus(c, err)
		statusLabel := strconv.Itoa(status)
		_, streaming := streamingRoutes[route]

		observability.AdminRequests().WithLabelValues(method, route, statusLabel).Inc()
		if !streaming {
			observability.AdminLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		}
		if status >= fiber.StatusBadRequest {
			observability.AdminErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := logger.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		case streaming:
			event = logger.Debug()
		}
		if operatorID, ok := c.Locals("user_id").(uint); ok {
			event = event.Uint("operator_id", operatorID)
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Dur("latency", duration).
			Msg("admin request completed")

		return err
	}
}

// responseStatus accounts for handler errors that fiber turns into a status
// only after the middleware chain unwinds.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}
