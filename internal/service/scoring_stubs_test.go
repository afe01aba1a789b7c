package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/models"
	"github.com/noah-isme/screening-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func floatPtr(v float64) *float64 {
	return &v
}

type memoryQuestionRepo struct {
	questions map[uint]models.Question
}

func (r *memoryQuestionRepo) GetByID(_ context.Context, id uint) (models.Question, error) {
	question, ok := r.questions[id]
	if !ok {
		return models.Question{}, gorm.ErrRecordNotFound
	}
	return question, nil
}

type memoryResponseRepo struct {
	mu          sync.Mutex
	questions   *memoryQuestionRepo
	responses   []models.Response
	forceRows   *int64
	listErr     error
	updateCalls int
}

func (r *memoryResponseRepo) GetByID(_ context.Context, id uint) (models.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, response := range r.responses {
		if response.ID == id {
			return r.withQuestion(response), nil
		}
	}
	return models.Response{}, gorm.ErrRecordNotFound
}

func (r *memoryResponseRepo) GetByApplicantQuestion(_ context.Context, applicantID, questionID uint) (models.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, response := range r.responses {
		if response.ApplicantID == applicantID && response.QuestionID == questionID {
			return r.withQuestion(response), nil
		}
	}
	return models.Response{}, gorm.ErrRecordNotFound
}

func (r *memoryResponseRepo) ListUnscored(_ context.Context) ([]models.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Response
	for _, response := range r.responses {
		full := r.withQuestion(response)
		if full.Score != nil || full.IsSelectionResponse || full.Question.IsHidden {
			continue
		}
		out = append(out, full)
	}
	return out, nil
}

func (r *memoryResponseRepo) ListByApplicant(_ context.Context, applicantID uint) ([]models.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Response
	for _, response := range r.responses {
		if response.ApplicantID == applicantID {
			out = append(out, r.withQuestion(response))
		}
	}
	return out, nil
}

func (r *memoryResponseRepo) UpdateScore(_ context.Context, applicantID, questionID uint, score float64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.forceRows != nil {
		return *r.forceRows, nil
	}
	var rows int64
	for i := range r.responses {
		if r.responses[i].ApplicantID == applicantID && r.responses[i].QuestionID == questionID {
			r.responses[i].Score = floatPtr(score)
			rows++
		}
	}
	return rows, nil
}

func (r *memoryResponseRepo) UpdateScoreByID(_ context.Context, id uint, score float64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.responses {
		if r.responses[i].ID == id {
			r.responses[i].Score = floatPtr(score)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *memoryResponseRepo) ResetScores(_ context.Context, applicantID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows int64
	for i := range r.responses {
		if r.responses[i].ApplicantID == applicantID && !r.responses[i].IsSelectionResponse {
			r.responses[i].Score = nil
			rows++
		}
	}
	return rows, nil
}

func (r *memoryResponseRepo) score(applicantID, questionID uint) *float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, response := range r.responses {
		if response.ApplicantID == applicantID && response.QuestionID == questionID {
			return response.Score
		}
	}
	return nil
}

func (r *memoryResponseRepo) withQuestion(response models.Response) models.Response {
	if r.questions != nil {
		if question, ok := r.questions.questions[response.QuestionID]; ok {
			response.Question = question
		}
	}
	return response
}

type memoryApplicantRepo struct {
	mu         sync.Mutex
	applicants map[uint]models.Applicant
	responses  *memoryResponseRepo
}

func (r *memoryApplicantRepo) GetByID(_ context.Context, id uint) (models.Applicant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	applicant, ok := r.applicants[id]
	if !ok {
		return models.Applicant{}, gorm.ErrRecordNotFound
	}
	return applicant, nil
}

func (r *memoryApplicantRepo) DeleteWithResponses(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.applicants[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.applicants, id)
	if r.responses != nil {
		r.responses.mu.Lock()
		kept := r.responses.responses[:0]
		for _, response := range r.responses.responses {
			if response.ApplicantID != id {
				kept = append(kept, response)
			}
		}
		r.responses.responses = kept
		r.responses.mu.Unlock()
	}
	return nil
}

// stubScorer replays results in order; the last one repeats.
type stubScorer struct {
	mu      sync.Mutex
	kind    ai.ProviderKind
	results []stubResult
	calls   int
	prompts []string
	block   chan struct{}
	entered chan struct{}
}

type stubResult struct {
	score float64
	err   error
}

func (s *stubScorer) Provider() ai.ProviderKind {
	if s.kind == "" {
		return ai.ProviderOpenAI
	}
	return s.kind
}

func (s *stubScorer) Score(_ context.Context, prompt, _, _ string) (float64, error) {
	s.mu.Lock()
	index := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}

	if len(s.results) == 0 {
		return 0.5, nil
	}
	if index >= len(s.results) {
		index = len(s.results) - 1
	}
	return s.results[index].score, s.results[index].err
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type stubRefresher struct {
	mu    sync.Mutex
	calls []uint
	err   error
}

func (r *stubRefresher) Refresh(_ context.Context, applicantID uint) (dto.ApplicantScoreSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, applicantID)
	return dto.ApplicantScoreSummary{ApplicantID: applicantID}, r.err
}

func staticResolver(cfg ProviderConfig) ProviderConfigResolver {
	return ProviderConfigResolverFunc(func(context.Context, uint) (ProviderConfig, error) {
		return cfg, nil
	})
}

func openAIConfig() ProviderConfig {
	return ProviderConfig{Provider: ai.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test"}
}

// scoringFixture holds one applicant with a free-text answer to a question
// that carries a rubric.
type scoringFixture struct {
	questions  *memoryQuestionRepo
	responses  *memoryResponseRepo
	applicants *memoryApplicantRepo
}

func newScoringFixture() *scoringFixture {
	questions := &memoryQuestionRepo{questions: map[uint]models.Question{
		10: {ID: 10, CategoryID: 1, QuestionText: "Describe a conflict you resolved.", Measurement: "Empathy and ownership", Category: models.Category{ID: 1, Name: "teamwork"}},
		11: {ID: 11, CategoryID: 2, QuestionText: "How do you feel most days?", Measurement: "Signs of hopelessness", IsDespair: true, Category: models.Category{ID: 2, Name: "wellbeing"}},
	}}
	responses := &memoryResponseRepo{questions: questions, responses: []models.Response{
		{ID: 100, ApplicantID: 1, QuestionID: 10, ResponseText: "I listened to both sides."},
		{ID: 101, ApplicantID: 1, QuestionID: 11, ResponseText: "Mostly fine."},
	}}
	applicants := &memoryApplicantRepo{
		applicants: map[uint]models.Applicant{1: {ID: 1, FirstName: "Ana", LastName: "Ruiz"}},
		responses:  responses,
	}
	return &scoringFixture{questions: questions, responses: responses, applicants: applicants}
}
