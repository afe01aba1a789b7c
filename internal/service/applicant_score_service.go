package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/repository"
)

const applicantScoresKeyPrefix = "applicant:scores:"

// ApplicantScoreService maintains the derived score view of applicants and
// the operator mutations that change it.
type ApplicantScoreService interface {
	Summary(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error)
	Refresh(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error)
	OverrideScore(ctx context.Context, responseID uint, score float64) (dto.ApplicantScoreSummary, error)
	ResetScores(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error)
	DeleteApplicant(ctx context.Context, applicantID uint) error
}

type applicantScoreService struct {
	applicants repository.ApplicantRepository
	responses  repository.ResponseRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	events     ScoreEventPublisher
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewApplicantScoreService constructs the aggregation service. cache and
// events may be nil.
func NewApplicantScoreService(
	applicants repository.ApplicantRepository,
	responses repository.ResponseRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
	events ScoreEventPublisher,
	logger zerolog.Logger,
) ApplicantScoreService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if events == nil {
		events = noopScoreEventPublisher{}
	}
	return &applicantScoreService{
		applicants: applicants,
		responses:  responses,
		cache:      cache,
		cacheTTL:   cacheTTL,
		events:     events,
		logger:     logger.With().Str("component", "applicant_score_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/screening-api/internal/service/applicant_scores"),
		now:        time.Now,
	}
}

func (s *applicantScoreService) Summary(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.cacheKey(applicantID)).Result()
		if err == nil && cached != "" {
			var summary dto.ApplicantScoreSummary
			if err := json.Unmarshal([]byte(cached), &summary); err == nil {
				summary.CacheHit = true
				return summary, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("applicant_id", applicantID).Msg("failed to read applicant score cache")
		}
	}

	summary, err := s.compute(ctx, applicantID)
	if err != nil {
		return dto.ApplicantScoreSummary{}, err
	}
	s.store(ctx, summary)
	return summary, nil
}

func (s *applicantScoreService) Refresh(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	ctx, span := s.tracer.Start(ctx, "scores.refresh", trace.WithAttributes(attribute.Int("applicant.id", int(applicantID))))
	defer span.End()

	summary, err := s.compute(ctx, applicantID)
	if err != nil {
		// The caller may already have committed a score write; the cached
		// projection no longer matches the store.
		s.evict(ctx, applicantID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ApplicantScoreSummary{}, err
	}
	s.store(ctx, summary)

	event := ScoreEvent{Type: ScoreEventUpdated, ApplicantID: applicantID, Summary: &summary, SentAt: s.now().UTC()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("applicant_id", applicantID).Msg("failed to publish score event")
	}
	return summary, nil
}

// OverrideScore applies an operator's manual score. It is last write wins
// against a running batch writing the same response.
func (s *applicantScoreService) OverrideScore(ctx context.Context, responseID uint, score float64) (dto.ApplicantScoreSummary, error) {
	if score < 0 || score > 1 {
		return dto.ApplicantScoreSummary{}, fmt.Errorf("score %v outside [0, 1]", score)
	}

	response, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicantScoreSummary{}, ErrResponseNotFound
		}
		return dto.ApplicantScoreSummary{}, err
	}

	rows, err := s.responses.UpdateScoreByID(ctx, responseID, score)
	if err != nil || rows != 1 {
		return dto.ApplicantScoreSummary{}, &PersistenceError{ResponseID: responseID, RowsAffected: rows, Err: err}
	}

	s.logger.Info().
		Uint("response_id", responseID).
		Uint("applicant_id", response.ApplicantID).
		Float64("score", score).
		Msg("response score overridden")

	return s.Refresh(ctx, response.ApplicantID)
}

func (s *applicantScoreService) ResetScores(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	if _, err := s.applicants.GetByID(ctx, applicantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicantScoreSummary{}, ErrApplicantNotFound
		}
		return dto.ApplicantScoreSummary{}, err
	}

	rows, err := s.responses.ResetScores(ctx, applicantID)
	if err != nil {
		return dto.ApplicantScoreSummary{}, err
	}
	s.logger.Info().Uint("applicant_id", applicantID).Int64("responses", rows).Msg("applicant scores reset")

	return s.Refresh(ctx, applicantID)
}

func (s *applicantScoreService) DeleteApplicant(ctx context.Context, applicantID uint) error {
	if err := s.applicants.DeleteWithResponses(ctx, applicantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApplicantNotFound
		}
		return err
	}

	s.evict(ctx, applicantID)
	if err := s.events.Publish(ctx, ScoreEvent{Type: ScoreEventDeleted, ApplicantID: applicantID, SentAt: s.now().UTC()}); err != nil {
		s.logger.Warn().Err(err).Uint("applicant_id", applicantID).Msg("failed to publish score event")
	}
	s.logger.Info().Uint("applicant_id", applicantID).Msg("applicant deleted")
	return nil
}

func (s *applicantScoreService) compute(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	if _, err := s.applicants.GetByID(ctx, applicantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicantScoreSummary{}, ErrApplicantNotFound
		}
		return dto.ApplicantScoreSummary{}, err
	}

	responses, err := s.responses.ListByApplicant(ctx, applicantID)
	if err != nil {
		return dto.ApplicantScoreSummary{}, err
	}

	scored := ScoredResponsesFrom(responses)
	summary := dto.ApplicantScoreSummary{
		ApplicantID:    applicantID,
		CategoryScores: ComputeCategoryScores(scored),
		DistressLevel:  ComputeDistressLevel(scored),
		GeneratedAt:    s.now().UTC(),
	}
	for _, response := range responses {
		switch {
		case response.IsScored():
			summary.Scored++
		case !response.IsSelectionResponse:
			// only free-text answers wait for the scoring pipeline
			summary.Pending++
		}
	}
	return summary, nil
}

func (s *applicantScoreService) store(ctx context.Context, summary dto.ApplicantScoreSummary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		s.evict(ctx, summary.ApplicantID)
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(summary.ApplicantID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("applicant_id", summary.ApplicantID).Msg("failed to write applicant score cache")
		s.evict(ctx, summary.ApplicantID)
	}
}

func (s *applicantScoreService) evict(ctx context.Context, applicantID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(applicantID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("applicant_id", applicantID).Msg("failed to evict applicant score cache")
	}
}

func (s *applicantScoreService) cacheKey(applicantID uint) string {
	return fmt.Sprintf("%s%d", applicantScoresKeyPrefix, applicantID)
}
