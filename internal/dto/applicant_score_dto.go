package dto

import "time"

// CategoryScore aggregates the scored responses of one category.
type CategoryScore struct {
	Score      float64 `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Distress level classifications.
const (
	DistressNone   = "none"
	DistressLow    = "low"
	DistressMedium = "medium"
	DistressHigh   = "high"
)

// DistressLevel is derived from the distress-indicator questions.
type DistressLevel struct {
	Level      string  `json:"level"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
}

// ApplicantScoreSummary is the derived score view of an applicant.
type ApplicantScoreSummary struct {
	ApplicantID    uint                     `json:"applicant_id"`
	CategoryScores map[string]CategoryScore `json:"category_scores"`
	DistressLevel  *DistressLevel           `json:"distress_level,omitempty"`
	Scored         int                      `json:"scored"`
	Pending        int                      `json:"pending"`
	GeneratedAt    time.Time                `json:"generated_at"`
	CacheHit       bool                     `json:"cache_hit"`
}

// ScoreOverrideRequest sets a response score manually.
type ScoreOverrideRequest struct {
	Score *float64 `json:"score" validate:"required,gte=0,lte=1"`
}
