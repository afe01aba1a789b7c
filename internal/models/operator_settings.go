package models

import (
	"time"

	"gorm.io/datatypes"
)

// Operator settings metadata keys.
const (
	SettingScoringProvider = "scoring_provider"
	SettingScoringModel    = "scoring_model"
)

// OperatorSettings stores per-operator metadata such as the scoring provider,
// model and provider API keys.
type OperatorSettings struct {
	OperatorID uint              `gorm:"primaryKey;autoIncrement:false" json:"operator_id"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// String returns the metadata value for key when it is a string.
func (s OperatorSettings) String(key string) string {
	if s.Metadata == nil {
		return ""
	}
	if value, ok := s.Metadata[key].(string); ok {
		return value
	}
	return ""
}
