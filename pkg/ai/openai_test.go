package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chatCompletionBody(content string) string {
	payload := map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func newProviderServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIScorerReturnsScore(t *testing.T) {
	var captured map[string]interface{}
	var authorization string
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		authorization = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody("0.7")))
	})

	scorer := NewOpenAIScorer(OpenAIConfig{BaseURL: server.URL + "/v1"})
	score, err := scorer.Score(context.Background(), "grade this", "sk-test", "gpt-4o")
	require.NoError(t, err)
	require.InDelta(t, 0.7, score, 1e-9)
	require.Equal(t, ProviderOpenAI, scorer.Provider())

	require.Equal(t, "Bearer sk-test", authorization)
	require.Equal(t, "gpt-4o", captured["model"])
	require.InDelta(t, 0.1, captured["temperature"], 1e-6)
	require.EqualValues(t, 10, captured["max_tokens"])
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	require.Equal(t, "grade this", messages[1].(map[string]interface{})["content"])
}

func TestOpenAIScorerRejectsMalformedReply(t *testing.T) {
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody("I think it's good, maybe 0.8")))
	})

	scorer := NewOpenAIScorer(OpenAIConfig{BaseURL: server.URL + "/v1"})
	_, err := scorer.Score(context.Background(), "grade this", "sk-test", "gpt-4o")
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.True(t, perr.Validation)
}

func TestOpenAIScorerSurfacesRateLimit(t *testing.T) {
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	})

	scorer := NewOpenAIScorer(OpenAIConfig{BaseURL: server.URL + "/v1"})
	_, err := scorer.Score(context.Background(), "grade this", "sk-test", "gpt-4o")

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	require.Equal(t, 12*time.Second, rateErr.RetryAfter)
}

func TestOpenAIScorerRateLimitWithoutHeaderUsesDefault(t *testing.T) {
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	scorer := NewOpenAIScorer(OpenAIConfig{BaseURL: server.URL + "/v1"})
	_, err := scorer.Score(context.Background(), "grade this", "sk-test", "gpt-4o")

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	require.Equal(t, DefaultRetryAfter, rateErr.RetryAfter)
}

func TestOpenAIScorerSurfacesStatus(t *testing.T) {
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	scorer := NewOpenAIScorer(OpenAIConfig{BaseURL: server.URL + "/v1"})
	_, err := scorer.Score(context.Background(), "grade this", "sk-test", "gpt-4o")

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	require.False(t, perr.Validation)
}

func TestScorerValidatesInputsBeforeCalling(t *testing.T) {
	calls := 0
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	scorer := NewDeepSeekScorer(DeepSeekConfig{BaseURL: server.URL})
	_, err := scorer.Score(context.Background(), "", "key", "deepseek-chat")
	require.Error(t, err)
	_, err = scorer.Score(context.Background(), "prompt", "", "deepseek-chat")
	require.Error(t, err)
	require.Zero(t, calls)
}

func TestDeepSeekScorerUsesConfiguredEndpoint(t *testing.T) {
	server := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody("1")))
	})

	scorer := NewDeepSeekScorer(DeepSeekConfig{BaseURL: server.URL})
	score, err := scorer.Score(context.Background(), "grade this", "ds-key", "deepseek-chat")
	require.NoError(t, err)
	require.Equal(t, 1.0, score)
	require.Equal(t, ProviderDeepSeek, scorer.Provider())
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(NewOpenAIScorer(OpenAIConfig{}), NewDeepSeekScorer(DeepSeekConfig{}))

	scorer, err := registry.Lookup(ProviderDeepSeek)
	require.NoError(t, err)
	require.Equal(t, ProviderDeepSeek, scorer.Provider())

	_, err = NewRegistry().Lookup(ProviderOpenAI)
	require.Error(t, err)
}
