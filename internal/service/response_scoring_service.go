package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/observability"
	"github.com/noah-isme/screening-api/internal/repository"
	"github.com/noah-isme/screening-api/pkg/ai"
)

// ScoreRequest identifies the answer to score and the operator whose provider
// settings apply.
type ScoreRequest struct {
	OperatorID   uint
	ApplicantID  uint `validate:"required"`
	QuestionID   uint `validate:"required"`
	ResponseText string
}

// ScoreResult is the outcome of a successful ScoreOne call.
type ScoreResult struct {
	Score    float64
	Attempts int
	Provider ai.ProviderKind
	Model    string
}

// ScoreRefresher recomputes the derived scores of an applicant.
type ScoreRefresher interface {
	Refresh(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error)
}

// ResponseScoringService scores a single applicant answer end to end.
type ResponseScoringService interface {
	ScoreOne(ctx context.Context, req ScoreRequest) (ScoreResult, error)
	ScoreStored(ctx context.Context, operatorID, applicantID, questionID uint) (ScoreResult, error)
}

// RetryPolicy controls how ScoreOne retries transient failures.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy waits 5s, 10s, 20s, 30s between five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     5 * time.Second,
		MaxDelay:      30 * time.Second,
		MaxRetryAfter: 2 * time.Minute,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxRetryAfter <= 0 {
		p.MaxRetryAfter = def.MaxRetryAfter
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based). A provider
// Retry-After hint wins when it is longer than the exponential delay.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	var rateErr *ai.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > delay {
		delay = rateErr.RetryAfter
		if p.MaxRetryAfter > 0 && delay > p.MaxRetryAfter {
			delay = p.MaxRetryAfter
		}
	}
	return delay
}

type responseScoringService struct {
	questions  repository.QuestionRepository
	responses  repository.ResponseRepository
	configs    ProviderConfigResolver
	scorers    *ai.Registry
	aggregates ScoreRefresher
	policy     RetryPolicy
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewResponseScoringService wires the single-item scorer. aggregates may be nil.
func NewResponseScoringService(
	questions repository.QuestionRepository,
	responses repository.ResponseRepository,
	configs ProviderConfigResolver,
	scorers *ai.Registry,
	aggregates ScoreRefresher,
	policy RetryPolicy,
	validate *validator.Validate,
	logger zerolog.Logger,
) ResponseScoringService {
	return &responseScoringService{
		questions:  questions,
		responses:  responses,
		configs:    configs,
		scorers:    scorers,
		aggregates: aggregates,
		policy:     policy.normalized(),
		validator:  validate,
		logger:     logger.With().Str("component", "response_scoring_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/screening-api/internal/service/response_scoring"),
		sleep:      sleepContext,
	}
}

func (s *responseScoringService) ScoreOne(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return ScoreResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "scoring.score_one", trace.WithAttributes(
		attribute.Int("scoring.applicant_id", int(req.ApplicantID)),
		attribute.Int("scoring.question_id", int(req.QuestionID)),
	))
	defer span.End()

	logger := s.logger.With().
		Uint("applicant_id", req.ApplicantID).
		Uint("question_id", req.QuestionID).
		Logger()

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		attempts = attempt
		result, err := s.attempt(ctx, req)
		if err == nil {
			result.Attempts = attempt
			observability.ScoringAttempts().WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Float64("scoring.score", result.Score), attribute.Int("scoring.attempts", attempt))
			logger.Info().Int("attempt", attempt).Float64("score", result.Score).Msg("response scored")
			return result, nil
		}
		lastErr = err

		if IsFatal(err) {
			observability.ScoringAttempts().WithLabelValues("fatal").Inc()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("scoring failed permanently")
			break
		}
		observability.ScoringAttempts().WithLabelValues("retryable").Inc()
		if attempt == s.policy.MaxAttempts {
			logger.Error().Err(err).Int("attempt", attempt).Msg("scoring retries exhausted")
			break
		}

		delay := s.policy.Delay(attempt, err)
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("scoring attempt failed")
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return ScoreResult{}, &ScoringError{Attempts: attempts, Err: lastErr}
}

// ScoreStored scores the stored answer of applicantID to questionID.
func (s *responseScoringService) ScoreStored(ctx context.Context, operatorID, applicantID, questionID uint) (ScoreResult, error) {
	response, err := s.responses.GetByApplicantQuestion(ctx, applicantID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ScoreResult{}, ErrResponseNotFound
		}
		return ScoreResult{}, fmt.Errorf("load response: %w", err)
	}

	return s.ScoreOne(ctx, ScoreRequest{
		OperatorID:   operatorID,
		ApplicantID:  applicantID,
		QuestionID:   questionID,
		ResponseText: response.ResponseText,
	})
}

func (s *responseScoringService) attempt(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	question, err := s.questions.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ScoreResult{}, ErrQuestionNotFound
		}
		return ScoreResult{}, fmt.Errorf("load question: %w", err)
	}

	cfg, err := s.configs.Resolve(ctx, req.OperatorID)
	if err != nil {
		return ScoreResult{}, err
	}

	prompt, err := ai.BuildScoringPrompt(ai.PromptInput{
		QuestionText:      question.QuestionText,
		Rubric:            question.Measurement,
		ExtraInstructions: question.Prompt,
		Answer:            req.ResponseText,
	})
	if err != nil {
		return ScoreResult{}, err
	}

	scorer, err := s.scorers.Lookup(cfg.Provider)
	if err != nil {
		return ScoreResult{}, &ConfigurationError{Reason: err.Error()}
	}

	score, err := scorer.Score(ctx, prompt, cfg.APIKey, cfg.Model)
	if err != nil {
		return ScoreResult{}, err
	}

	rows, err := s.responses.UpdateScore(ctx, req.ApplicantID, req.QuestionID, score)
	if err != nil || rows != 1 {
		return ScoreResult{}, &PersistenceError{
			ApplicantID:  req.ApplicantID,
			QuestionID:   req.QuestionID,
			RowsAffected: rows,
			Err:          err,
		}
	}

	if s.aggregates != nil {
		if _, err := s.aggregates.Refresh(ctx, req.ApplicantID); err != nil {
			s.logger.Warn().Err(err).Uint("applicant_id", req.ApplicantID).Msg("failed to refresh applicant scores")
		}
	}

	return ScoreResult{Score: score, Provider: cfg.Provider, Model: cfg.Model}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
