package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/screening-api/internal/config"
	"github.com/noah-isme/screening-api/internal/handler"
	"github.com/noah-isme/screening-api/internal/middleware"
	"github.com/noah-isme/screening-api/internal/observability"
	"github.com/noah-isme/screening-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ScoringHandler        *handler.ScoringHandler
	ApplicantScoreHandler *handler.ApplicantScoreHandler
	BatchService          service.BatchScoringService
	JWTMiddleware         fiber.Handler
	HealthChecks          map[string]handler.HealthCheckFunc
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.BatchService, deps.HealthChecks))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(cfg.AdminRoles...))

	if deps.ScoringHandler != nil {
		deps.ScoringHandler.Register(admin.Group("/scoring"))
	}
	if deps.ApplicantScoreHandler != nil {
		deps.ApplicantScoreHandler.Register(admin)
	}
}
