package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/observability"
	"github.com/noah-isme/screening-api/internal/repository"
)

const (
	batchEventBufferSize = 32
	batchExcerptLength   = 100
)

// BatchConfig tunes the batch scoring loop.
type BatchConfig struct {
	ItemDelay      time.Duration
	ItemRetryLimit int
	LogCapacity    int
}

// DefaultBatchConfig waits 2s between items, gives each item two requeues and
// keeps the last 500 log lines.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ItemDelay:      2 * time.Second,
		ItemRetryLimit: 2,
		LogCapacity:    500,
	}
}

// BatchScoringService drives scoring of every unscored response, one at a
// time, and reports progress to operators.
type BatchScoringService interface {
	Start(ctx context.Context, operatorID uint) (dto.BatchStatus, error)
	Stop() dto.BatchStatus
	Status() dto.BatchStatus
	Logs() []dto.BatchLogEntry
	Failures() []dto.BatchFailure
	Subscribe() (<-chan dto.BatchEvent, func())
	Shutdown(ctx context.Context) error
}

// batchItem is one queued response. Requeues produce a new value.
type batchItem struct {
	ResponseID   uint
	ApplicantID  uint
	QuestionID   uint
	QuestionText string
	ResponseText string
	RetryCount   int
}

func (i batchItem) Retry() batchItem {
	i.RetryCount++
	return i
}

type batchScoringService struct {
	responses repository.ResponseRepository
	scorer    ResponseScoringService
	cfg       BatchConfig
	logger    zerolog.Logger
	sanitizer *bluemonday.Policy
	broker    *batchBroker
	now       func() time.Time

	mu            sync.Mutex
	state         string
	active        bool
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}
	runID         string
	operatorID    uint
	queue         []batchItem
	current       *dto.BatchCurrentItem
	progress      dto.BatchProgress
	failures      []dto.BatchFailure
	logs          []dto.BatchLogEntry
	startedAt     *time.Time
	finishedAt    *time.Time
}

// NewBatchScoringService constructs the batch orchestrator.
func NewBatchScoringService(responses repository.ResponseRepository, scorer ResponseScoringService, cfg BatchConfig, logger zerolog.Logger) BatchScoringService {
	def := DefaultBatchConfig()
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	if cfg.ItemRetryLimit <= 0 {
		cfg.ItemRetryLimit = def.ItemRetryLimit
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = def.LogCapacity
	}

	return &batchScoringService{
		responses: responses,
		scorer:    scorer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "batch_scoring_service").Logger(),
		sanitizer: bluemonday.StrictPolicy(),
		broker:    &batchBroker{subscribers: make(map[chan dto.BatchEvent]struct{})},
		now:       time.Now,
		state:     dto.BatchStateIdle,
	}
}

func (s *batchScoringService) Start(ctx context.Context, operatorID uint) (dto.BatchStatus, error) {
	s.mu.Lock()
	if s.active {
		status := s.statusLocked()
		s.mu.Unlock()
		return status, ErrBatchRunning
	}
	s.mu.Unlock()

	s.appendLog(dto.BatchLogInfo, "Finding unscored responses...")
	responses, err := s.responses.ListUnscored(ctx)
	if err != nil {
		s.appendLog(dto.BatchLogError, fmt.Sprintf("Failed to load unscored responses: %v", err))
		return s.Status(), fmt.Errorf("list unscored responses: %w", err)
	}

	queue := make([]batchItem, 0, len(responses))
	for _, response := range responses {
		queue = append(queue, batchItem{
			ResponseID:   response.ID,
			ApplicantID:  response.ApplicantID,
			QuestionID:   response.QuestionID,
			QuestionText: response.Question.QuestionText,
			ResponseText: response.ResponseText,
		})
	}
	s.appendLog(dto.BatchLogInfo, fmt.Sprintf("Found %d unscored responses", len(queue)))

	if len(queue) == 0 {
		s.appendLog(dto.BatchLogError, "No responses to score")
		return s.Status(), ErrNothingToScore
	}

	s.mu.Lock()
	if s.active {
		status := s.statusLocked()
		s.mu.Unlock()
		return status, ErrBatchRunning
	}
	startedAt := s.now().UTC()
	s.active = true
	s.state = dto.BatchStateRunning
	s.stopRequested = false
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.runID = uuid.NewString()
	s.operatorID = operatorID
	s.queue = queue
	s.current = nil
	s.progress = dto.BatchProgress{Total: len(queue)}
	s.failures = nil
	s.startedAt = &startedAt
	s.finishedAt = nil
	stopCh, done := s.stopCh, s.done
	status := s.statusLocked()
	s.mu.Unlock()

	observability.BatchRunning().Set(1)
	s.publishProgress(status)
	s.logger.Info().Str("run_id", status.RunID).Int("total", len(queue)).Uint("operator_id", operatorID).Msg("batch scoring started")
	s.appendLog(dto.BatchLogInfo, "Starting scoring process")

	// The run outlives the request that started it.
	go s.run(context.Background(), stopCh, done)

	return status, nil
}

func (s *batchScoringService) Stop() dto.BatchStatus {
	s.mu.Lock()
	if !s.active || s.stopRequested {
		status := s.statusLocked()
		s.mu.Unlock()
		return status
	}
	s.stopRequested = true
	s.state = dto.BatchStateStopped
	close(s.stopCh)
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info().Str("run_id", status.RunID).Msg("batch scoring stop requested")
	s.appendLog(dto.BatchLogInfo, "Stopping scoring process")
	s.broker.broadcast(dto.BatchEvent{Type: dto.BatchEventStatus, Status: &status})
	return status
}

func (s *batchScoringService) Status() dto.BatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *batchScoringService) Logs() []dto.BatchLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.BatchLogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *batchScoringService) Failures() []dto.BatchFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.BatchFailure, len(s.failures))
	copy(out, s.failures)
	return out
}

func (s *batchScoringService) Subscribe() (<-chan dto.BatchEvent, func()) {
	channel := make(chan dto.BatchEvent, batchEventBufferSize)
	s.broker.subscribe(channel)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.StreamClientsActive().Dec()
		})
	}
	return channel, cleanup
}

// Shutdown stops a running batch and waits for the in-flight item.
func (s *batchScoringService) Shutdown(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *batchScoringService) run(ctx context.Context, stopCh <-chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		item, ok := s.next(stopCh)
		if !ok {
			break
		}

		s.processItem(ctx, item)

		if s.stopping(stopCh) || s.pending() == 0 {
			continue
		}
		if s.cfg.ItemDelay > 0 {
			s.appendLog(dto.BatchLogInfo, "Waiting before next request...")
			timer := time.NewTimer(s.cfg.ItemDelay)
			select {
			case <-stopCh:
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	s.finish()
}

func (s *batchScoringService) next(stopCh <-chan struct{}) (batchItem, bool) {
	if s.stopping(stopCh) {
		return batchItem{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return batchItem{}, false
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &dto.BatchCurrentItem{
		ApplicantID:  item.ApplicantID,
		QuestionID:   item.QuestionID,
		QuestionText: item.QuestionText,
		RetryCount:   item.RetryCount,
	}
	return item, true
}

func (s *batchScoringService) processItem(ctx context.Context, item batchItem) {
	questionText := item.QuestionText
	if strings.TrimSpace(questionText) == "" {
		questionText = "Unknown"
	}
	s.appendLog(dto.BatchLogInfo, fmt.Sprintf("Processing response for question: %s", questionText))
	s.appendLog(dto.BatchLogInfo, fmt.Sprintf("Response (%d chars): %q", utf8.RuneCountInString(item.ResponseText), s.excerpt(item.ResponseText)))

	s.mu.Lock()
	operatorID := s.operatorID
	s.mu.Unlock()

	result, err := s.scorer.ScoreOne(ctx, ScoreRequest{
		OperatorID:   operatorID,
		ApplicantID:  item.ApplicantID,
		QuestionID:   item.QuestionID,
		ResponseText: item.ResponseText,
	})
	if err == nil {
		s.mu.Lock()
		s.progress.Completed++
		status := s.statusLocked()
		s.mu.Unlock()

		observability.ScoringItems().WithLabelValues("completed").Inc()
		s.appendLog(dto.BatchLogSuccess, fmt.Sprintf("Score received: %g", result.Score))
		s.publishProgress(status)
		return
	}

	message := err.Error()
	s.appendLog(dto.BatchLogError, fmt.Sprintf("Error scoring response: %s", message))

	s.mu.Lock()
	permanent := IsNotFound(err) || IsFatal(err) || item.RetryCount >= s.cfg.ItemRetryLimit
	if permanent {
		s.progress.Failed++
		s.failures = append(s.failures, dto.BatchFailure{
			ApplicantID:  item.ApplicantID,
			QuestionID:   item.QuestionID,
			ResponseText: item.ResponseText,
			Error:        message,
			FailedAt:     s.now().UTC(),
		})
	} else {
		s.queue = append(s.queue, item.Retry())
	}
	status := s.statusLocked()
	s.mu.Unlock()

	if permanent {
		observability.ScoringItems().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Uint("applicant_id", item.ApplicantID).Uint("question_id", item.QuestionID).Msg("response failed permanently")
	} else {
		observability.ScoringItems().WithLabelValues("requeued").Inc()
	}
	s.publishProgress(status)
}

func (s *batchScoringService) finish() {
	s.mu.Lock()
	failed := s.progress.Failed
	s.mu.Unlock()

	s.appendLog(dto.BatchLogInfo, "Scoring process completed")
	if failed > 0 {
		s.appendLog(dto.BatchLogError, fmt.Sprintf("%d responses failed after max retries", failed))
	}

	finishedAt := s.now().UTC()
	s.mu.Lock()
	s.active = false
	s.current = nil
	s.finishedAt = &finishedAt
	if s.stopRequested {
		s.state = dto.BatchStateStopped
	} else {
		s.state = dto.BatchStateIdle
	}
	status := s.statusLocked()
	s.mu.Unlock()

	observability.BatchRunning().Set(0)
	s.logger.Info().
		Str("run_id", status.RunID).
		Int("completed", status.Progress.Completed).
		Int("failed", status.Progress.Failed).
		Str("state", status.State).
		Msg("batch scoring finished")
	s.publishProgress(status)
}

func (s *batchScoringService) stopping(stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

func (s *batchScoringService) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *batchScoringService) statusLocked() dto.BatchStatus {
	status := dto.BatchStatus{
		RunID:         s.runID,
		State:         s.state,
		StopRequested: s.stopRequested,
		Progress:      s.progress,
		Pending:       len(s.queue),
	}
	if s.current != nil {
		current := *s.current
		status.Current = &current
	}
	if s.startedAt != nil {
		startedAt := *s.startedAt
		status.StartedAt = &startedAt
	}
	if s.finishedAt != nil {
		finishedAt := *s.finishedAt
		status.FinishedAt = &finishedAt
	}
	return status
}

func (s *batchScoringService) appendLog(level, message string) {
	entry := dto.BatchLogEntry{Timestamp: s.now().UTC(), Level: level, Message: message}

	s.mu.Lock()
	s.logs = append(s.logs, entry)
	if overflow := len(s.logs) - s.cfg.LogCapacity; overflow > 0 {
		s.logs = append([]dto.BatchLogEntry(nil), s.logs[overflow:]...)
	}
	s.mu.Unlock()

	s.broker.broadcast(dto.BatchEvent{Type: dto.BatchEventLog, Log: &entry})
}

func (s *batchScoringService) publishProgress(status dto.BatchStatus) {
	gauge := observability.BatchProgress()
	gauge.WithLabelValues("total").Set(float64(status.Progress.Total))
	gauge.WithLabelValues("completed").Set(float64(status.Progress.Completed))
	gauge.WithLabelValues("failed").Set(float64(status.Progress.Failed))
	s.broker.broadcast(dto.BatchEvent{Type: dto.BatchEventStatus, Status: &status})
}

func (s *batchScoringService) excerpt(text string) string {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(text))
	if utf8.RuneCountInString(clean) <= batchExcerptLength {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:batchExcerptLength]) + "..."
}

type batchBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.BatchEvent]struct{}
}

func (b *batchBroker) subscribe(ch chan dto.BatchEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *batchBroker) unsubscribe(ch chan dto.BatchEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *batchBroker) broadcast(event dto.BatchEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
