package ai

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseScore(t *testing.T) {
	valid := map[string]float64{
		"0":      0,
		"0.0":    0,
		"0.7":    0.7,
		" 0.25 ": 0.25,
		"0.123":  0.123,
		"1":      1,
		"1.0":    1,
	}
	for input, expected := range valid {
		score, err := ParseScore(input)
		require.NoError(t, err, input)
		require.InDelta(t, expected, score, 1e-9, input)
	}

	invalid := []string{"", "1.5", "2", "-0.1", ".5", "0.", "1.00", "0.8.", "0,8", "NaN", "score: 0.8", "I think it's good, maybe 0.8"}
	for _, input := range invalid {
		_, err := ParseScore(input)
		require.Error(t, err, input)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 7*time.Second, parseRetryAfter("7", now))
	require.Equal(t, DefaultRetryAfter, parseRetryAfter("", now))
	require.Equal(t, DefaultRetryAfter, parseRetryAfter("soon", now))
	require.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))

	longest := time.Duration(maxRetryAfterSeconds) * time.Second
	require.Equal(t, longest, parseRetryAfter("9223372036854775807", now))
	require.Equal(t, longest, parseRetryAfter("99999999999999999999999", now))
	require.Positive(t, parseRetryAfter("9300000000", now))
}

func TestProviderCatalog(t *testing.T) {
	kind, ok := ParseProviderKind(" OpenAI ")
	require.True(t, ok)
	require.Equal(t, ProviderOpenAI, kind)
	require.True(t, SupportsModel(ProviderOpenAI, "gpt-4o"))
	require.False(t, SupportsModel(ProviderOpenAI, "deepseek-chat"))
	require.Equal(t, "deepseek_api_key", ProviderDeepSeek.APIKeyField())

	_, ok = ParseProviderKind("anthropic")
	require.False(t, ok)
}
