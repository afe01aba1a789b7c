package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/screening-api/internal/config"
	"github.com/noah-isme/screening-api/internal/service"
	"github.com/noah-isme/screening-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheckFunc checks one backing dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Scoring      string            `json:"scoring,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck reports the batch scorer state and the result of every check.
// Any failing check turns the response into a 503 with status "degraded".
func HealthCheck(cfg config.Config, batch service.BatchScoringService, checks map[string]HealthCheckFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if batch != nil {
			payload.Scoring = batch.Status().State
		}

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
			defer cancel()

			payload.Dependencies = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					payload.Dependencies[name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Dependencies[name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
