package service

import (
	"sort"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/models"
)

// Distress thresholds on the average distress-question score.
const (
	distressNoneMax   = 0.25
	distressLowMax    = 0.5
	distressMediumMax = 0.75
)

// ScoredResponse is the aggregation input for one response.
type ScoredResponse struct {
	Category  string
	IsDespair bool
	Score     *float64
}

// ScoredResponsesFrom projects stored responses into aggregation input.
func ScoredResponsesFrom(responses []models.Response) []ScoredResponse {
	out := make([]ScoredResponse, 0, len(responses))
	for _, response := range responses {
		out = append(out, ScoredResponse{
			Category:  response.Question.Category.Name,
			IsDespair: response.Question.IsDespair,
			Score:     response.Score,
		})
	}
	return out
}

// ComputeCategoryScores sums the scored responses per category. Categories
// without a scored response are omitted.
func ComputeCategoryScores(responses []ScoredResponse) map[string]dto.CategoryScore {
	values := make(map[string][]float64)
	for _, response := range responses {
		if response.Score == nil || response.Category == "" {
			continue
		}
		values[response.Category] = append(values[response.Category], *response.Score)
	}

	scores := make(map[string]dto.CategoryScore, len(values))
	for category, list := range values {
		sum := sortedSum(list)
		scores[category] = dto.CategoryScore{
			Score:      sum,
			Total:      len(list),
			Percentage: sum / float64(len(list)) * 100,
		}
	}
	return scores
}

// ComputeDistressLevel classifies the average score of the scored distress
// questions. It returns nil when none of them has a score.
func ComputeDistressLevel(responses []ScoredResponse) *dto.DistressLevel {
	var values []float64
	for _, response := range responses {
		if response.IsDespair && response.Score != nil {
			values = append(values, *response.Score)
		}
	}
	if len(values) == 0 {
		return nil
	}

	sum := sortedSum(values)
	average := sum / float64(len(values))
	return &dto.DistressLevel{
		Level:      ClassifyDistress(average),
		Score:      average,
		Percentage: average * 100,
	}
}

// ClassifyDistress maps an average score to a distress level. Upper bounds
// are inclusive.
func ClassifyDistress(average float64) string {
	switch {
	case average <= distressNoneMax:
		return dto.DistressNone
	case average <= distressLowMax:
		return dto.DistressLow
	case average <= distressMediumMax:
		return dto.DistressMedium
	default:
		return dto.DistressHigh
	}
}

// sortedSum adds values in ascending order so the result does not depend on
// the order scores were written.
func sortedSum(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var sum float64
	for _, value := range sorted {
		sum += value
	}
	return sum
}
