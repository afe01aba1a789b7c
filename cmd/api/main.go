package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/config"
	"github.com/noah-isme/screening-api/internal/database"
	"github.com/noah-isme/screening-api/internal/handler"
	"github.com/noah-isme/screening-api/internal/middleware"
	"github.com/noah-isme/screening-api/internal/observability"
	"github.com/noah-isme/screening-api/internal/repository"
	"github.com/noah-isme/screening-api/internal/router"
	"github.com/noah-isme/screening-api/internal/service"
	"github.com/noah-isme/screening-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.AppName,
		Environment: cfg.AppEnv,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		log.Fatalf("failed to initialise tracing: %v", err)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient == nil {
		logger.Warn().Msg("redis url not set, applicant score cache disabled")
	} else {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("score events disabled")
		} else {
			defer natsConn.Drain()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	applicantRepo := repository.NewApplicantRepository(db)
	settingsRepo := repository.NewOperatorSettingsRepository(db)

	httpClient := &http.Client{Timeout: cfg.Scoring.HTTPTimeout}
	registry := ai.NewRegistry(
		ai.NewOpenAIScorer(ai.OpenAIConfig{BaseURL: cfg.OpenAIBaseURL, HTTPClient: httpClient, Logger: logger}),
		ai.NewDeepSeekScorer(ai.DeepSeekConfig{BaseURL: cfg.DeepSeekBaseURL, HTTPClient: httpClient, Logger: logger}),
	)

	scoreEvents := service.NewNATSScoreEventPublisher(natsConn, cfg.NATSSubject)
	applicantScoreService := service.NewApplicantScoreService(applicantRepo, responseRepo, redisClient, cfg.ScoresCacheTTL, scoreEvents, logger)
	responseScoringService := service.NewResponseScoringService(
		questionRepo,
		responseRepo,
		service.NewSettingsProviderResolver(settingsRepo),
		registry,
		applicantScoreService,
		service.RetryPolicy{
			MaxAttempts:   cfg.Scoring.MaxAttempts,
			BaseDelay:     cfg.Scoring.BaseDelay,
			MaxDelay:      cfg.Scoring.MaxDelay,
			MaxRetryAfter: cfg.Scoring.MaxRetryAfter,
		},
		validate,
		logger,
	)
	batchService := service.NewBatchScoringService(responseRepo, responseScoringService, service.BatchConfig{
		ItemDelay:      cfg.Scoring.ItemDelay,
		ItemRetryLimit: cfg.Scoring.ItemRetryLimit,
		LogCapacity:    cfg.Scoring.LogCapacity,
	}, logger)

	scoringHandler := handler.NewScoringHandler(
		batchService,
		responseScoringService,
		validate,
		logger,
		30*time.Second,
		middleware.RateLimit("scoring", cfg.Scoring.StartRateLimit, time.Minute),
	)
	applicantScoreHandler := handler.NewApplicantScoreHandler(applicantScoreService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, CORSOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ScoringHandler:        scoringHandler,
		ApplicantScoreHandler: applicantScoreHandler,
		BatchService:          batchService,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks:          healthChecks(db, redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, batchService, logger)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn().Err(err).Msg("span flush failed")
	}
}

func healthChecks(db *gorm.DB, cache *redis.Client, bus *nats.Conn) map[string]handler.HealthCheckFunc {
	checks := map[string]handler.HealthCheckFunc{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if cache != nil {
		checks["redis"] = func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		}
	}
	if bus != nil {
		checks["nats"] = func(context.Context) error {
			if !bus.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App, batch service.BatchScoringService, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if err := batch.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("batch scoring did not stop in time")
	}

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
