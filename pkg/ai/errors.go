package ai

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter applies when a 429 carries no usable Retry-After header.
const DefaultRetryAfter = 30 * time.Second

// maxRetryAfterSeconds keeps delta-seconds within a time.Duration.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// ErrIncompletePrompt indicates the question text or rubric was empty.
var ErrIncompletePrompt = errors.New("scoring prompt requires question text and rubric")

// RateLimitError is returned when the provider throttles the caller.
type RateLimitError struct {
	Provider   ProviderKind
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, retry after %d seconds", e.Provider, int(e.RetryAfter.Seconds()))
}

// ProviderError covers non-success responses, transport failures and replies
// that are not a valid score.
type ProviderError struct {
	Provider   ProviderKind
	StatusCode int
	Validation bool
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s api error: %d", e.Provider, e.StatusCode)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Delta-seconds too
// large for a time.Duration are clamped.
func parseRetryAfter(header string, now time.Time) time.Duration {
	value := strings.TrimSpace(header)
	if value == "" {
		return DefaultRetryAfter
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	switch {
	case err == nil && seconds < 0:
		return DefaultRetryAfter
	case err == nil && seconds > maxRetryAfterSeconds:
		return time.Duration(maxRetryAfterSeconds) * time.Second
	case err == nil:
		return time.Duration(seconds) * time.Second
	case errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(value, "-"):
		return time.Duration(maxRetryAfterSeconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if delay := at.Sub(now); delay > 0 {
			return delay
		}
		return 0
	}
	return DefaultRetryAfter
}
