package ai

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var scorePattern = regexp.MustCompile(`^(?:0(?:\.\d+)?|1(?:\.0)?)$`)

// ParseScore validates a provider reply. Only 0, 0.<digits>, 1 and 1.0 are
// accepted; nothing is clamped.
func ParseScore(content string) (float64, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0, fmt.Errorf("empty score reply")
	}
	if !scorePattern.MatchString(trimmed) {
		return 0, fmt.Errorf("reply is not a valid score number: %q", truncate(trimmed, 64))
	}
	score, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse score: %w", err)
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("invalid score value: %v", score)
	}
	return score, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
