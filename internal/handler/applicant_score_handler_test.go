package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/handler"
	"github.com/noah-isme/screening-api/internal/service"
)

type stubApplicantScoreService struct {
	summary   dto.ApplicantScoreSummary
	err       error
	overrides map[uint]float64
	resets    []uint
	deletes   []uint
}

func (s *stubApplicantScoreService) Summary(_ context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	if s.err != nil {
		return dto.ApplicantScoreSummary{}, s.err
	}
	summary := s.summary
	summary.ApplicantID = applicantID
	return summary, nil
}

func (s *stubApplicantScoreService) Refresh(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	return s.Summary(ctx, applicantID)
}

func (s *stubApplicantScoreService) OverrideScore(ctx context.Context, responseID uint, score float64) (dto.ApplicantScoreSummary, error) {
	if s.overrides == nil {
		s.overrides = make(map[uint]float64)
	}
	s.overrides[responseID] = score
	return s.Summary(ctx, 1)
}

func (s *stubApplicantScoreService) ResetScores(ctx context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	s.resets = append(s.resets, applicantID)
	return s.Summary(ctx, applicantID)
}

func (s *stubApplicantScoreService) DeleteApplicant(_ context.Context, applicantID uint) error {
	if s.err != nil {
		return s.err
	}
	s.deletes = append(s.deletes, applicantID)
	return nil
}

func newApplicantScoreApp(svc service.ApplicantScoreService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/admin", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		return c.Next()
	})
	handler.NewApplicantScoreHandler(svc, validator.New(), zerolog.Nop()).Register(group)
	return app
}

func TestApplicantScoreHandlerSummary(t *testing.T) {
	svc := &stubApplicantScoreService{summary: dto.ApplicantScoreSummary{
		CategoryScores: map[string]dto.CategoryScore{"teamwork": {Score: 1.5, Total: 2, Percentage: 75}},
		DistressLevel:  &dto.DistressLevel{Level: dto.DistressLow, Score: 0.4, Percentage: 40},
		Scored:         3,
		GeneratedAt:    time.Now().UTC(),
	}}
	app := newApplicantScoreApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/applicants/12/scores", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summary dto.ApplicantScoreSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &summary))
	require.Equal(t, uint(12), summary.ApplicantID)
	require.Equal(t, 75.0, summary.CategoryScores["teamwork"].Percentage)
	require.Equal(t, dto.DistressLow, summary.DistressLevel.Level)
}

func TestApplicantScoreHandlerErrors(t *testing.T) {
	app := newApplicantScoreApp(&stubApplicantScoreService{err: service.ErrApplicantNotFound})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/applicants/12/scores", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/applicants/abc/scores", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	app = newApplicantScoreApp(&stubApplicantScoreService{err: errors.New("connection reset")})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/applicants/12/scores", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "failed to load applicant scores", decodeEnvelope(t, resp).Message)
}

func TestApplicantScoreHandlerOverride(t *testing.T) {
	svc := &stubApplicantScoreService{}
	app := newApplicantScoreApp(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/responses/40/score", strings.NewReader(`{"score":0.35}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 0.35, svc.overrides[40])

	for _, body := range []string{`{"score":1.2}`, `{"score":-0.1}`, `{}`} {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/responses/40/score", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestApplicantScoreHandlerResetAndDelete(t *testing.T) {
	svc := &stubApplicantScoreService{}
	app := newApplicantScoreApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/admin/applicants/5/scores/reset", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []uint{5}, svc.resets)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/admin/applicants/5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, []uint{5}, svc.deletes)
}
