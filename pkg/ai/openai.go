package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 10
	defaultHTTPTimeout = 60 * time.Second
)

var (
	scoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "screening",
		Subsystem: "ai",
		Name:      "score_duration_seconds",
		Help:      "Duration of provider scoring requests",
	}, []string{"provider", "model"})

	scoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screening",
		Subsystem: "ai",
		Name:      "score_failures_total",
		Help:      "Number of failed provider scoring requests",
	}, []string{"provider", "model", "reason"})
)

// ChatConfig configures an OpenAI-compatible scorer.
type ChatConfig struct {
	BaseURL     string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// OpenAIConfig defines configuration options for the OpenAI scorer.
type OpenAIConfig = ChatConfig

// chatScorer speaks the chat completion protocol shared by OpenAI and DeepSeek.
type chatScorer struct {
	kind   ProviderKind
	cfg    ChatConfig
	tracer trace.Tracer
	logger zerolog.Logger
	now    func() time.Time
}

func newChatScorer(kind ProviderKind, cfg ChatConfig) *chatScorer {
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &chatScorer{
		kind:   kind,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/screening-api/pkg/ai/" + string(kind)),
		logger: logger.With().Str("provider", string(kind)).Logger(),
		now:    time.Now,
	}
}

// OpenAIScorer implements Scorer against the OpenAI chat completion API.
type OpenAIScorer struct {
	*chatScorer
}

// NewOpenAIScorer builds a scorer for api.openai.com or a compatible base URL.
func NewOpenAIScorer(cfg OpenAIConfig) *OpenAIScorer {
	return &OpenAIScorer{chatScorer: newChatScorer(ProviderOpenAI, cfg)}
}

// Provider reports the backend served by the scorer.
func (s *chatScorer) Provider() ProviderKind {
	return s.kind
}

// Score sends the prompt and validates the numeric reply.
func (s *chatScorer) Score(parent context.Context, prompt, apiKey, model string) (float64, error) {
	if strings.TrimSpace(prompt) == "" {
		return 0, &ProviderError{Provider: s.kind, Message: "prompt is empty"}
	}
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(model) == "" {
		return 0, &ProviderError{Provider: s.kind, Message: "api key and model are required"}
	}

	ctx, span := s.tracer.Start(parent, string(s.kind)+".score", trace.WithAttributes(
		attribute.String("model", model),
	))
	defer span.End()

	recorder := &headerRecorder{doer: s.cfg.HTTPClient}
	config := openai.DefaultConfig(apiKey)
	if s.cfg.BaseURL != "" {
		config.BaseURL = s.cfg.BaseURL
	}
	config.HTTPClient = recorder
	client := openai.NewClientWithConfig(config)

	request := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scoringSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	start := s.now()
	resp, err := client.CreateChatCompletion(ctx, request)
	scoreDuration.WithLabelValues(string(s.kind), model).Observe(time.Since(start).Seconds())
	if err != nil {
		classified := s.classify(err, recorder)
		s.fail(span, model, classified)
		return 0, classified
	}

	if len(resp.Choices) == 0 {
		perr := &ProviderError{Provider: s.kind, Validation: true, Message: "invalid api response structure"}
		s.fail(span, model, perr)
		return 0, perr
	}

	content := resp.Choices[0].Message.Content
	score, err := ParseScore(content)
	if err != nil {
		perr := &ProviderError{Provider: s.kind, Validation: true, Message: "response is not a valid score number", Err: err}
		s.fail(span, model, perr)
		return 0, perr
	}

	span.SetAttributes(attribute.Float64("score", score))
	s.logger.Debug().Str("model", model).Float64("score", score).Msg("provider returned score")
	return score, nil
}

func (s *chatScorer) classify(err error, recorder *headerRecorder) error {
	status, header := recorder.last()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0:
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0:
		status = reqErr.HTTPStatusCode
	case status < http.StatusBadRequest:
		// transport failure or a client-side decode error on a 2xx
		status = 0
	}

	if status == http.StatusTooManyRequests {
		return &RateLimitError{
			Provider:   s.kind,
			RetryAfter: parseRetryAfter(header.Get("Retry-After"), s.now()),
		}
	}
	if status != 0 {
		return &ProviderError{Provider: s.kind, StatusCode: status, Err: err}
	}
	return &ProviderError{Provider: s.kind, Message: "request failed", Err: err}
}

func (s *chatScorer) fail(span trace.Span, model string, err error) {
	reason := "provider"
	var rateErr *RateLimitError
	var perr *ProviderError
	switch {
	case errors.As(err, &rateErr):
		reason = "rate_limited"
	case errors.As(err, &perr) && perr.Validation:
		reason = "validation"
	}
	scoreFailures.WithLabelValues(string(s.kind), model, reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn().Err(err).Str("model", model).Str("reason", reason).Msg("provider scoring failed")
}

// headerRecorder keeps the status and headers of the last response so a 429
// can surface the provider's Retry-After hint whatever the error body looks like.
type headerRecorder struct {
	doer   openai.HTTPDoer
	mu     sync.Mutex
	status int
	header http.Header
}

func (r *headerRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.doer.Do(req)
	if resp != nil {
		r.mu.Lock()
		r.status = resp.StatusCode
		r.header = resp.Header.Clone()
		r.mu.Unlock()
	}
	return resp, err
}

func (r *headerRecorder) last() (int, http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.header == nil {
		return r.status, http.Header{}
	}
	return r.status, r.header
}
