package models

import "time"

// Category groups questions for per-category scoring.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is a prompt shown to applicants on the questionnaire.
type Question struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CategoryID      uint      `gorm:"index;not null" json:"category_id"`
	QuestionText    string    `gorm:"type:text;not null" json:"question_text"`
	Measurement     string    `gorm:"type:text" json:"measurement"`
	Prompt          string    `gorm:"type:text" json:"prompt"`
	IsDespair       bool      `gorm:"default:false" json:"is_despair"`
	IsSelection     bool      `gorm:"default:false" json:"is_selection"`
	IsHidden        bool      `gorm:"default:false" json:"is_hidden"`
	Order           int       `gorm:"column:sort_order;default:0" json:"order"`
	Selection1      string    `gorm:"size:255" json:"selection_1,omitempty"`
	Selection2      string    `gorm:"size:255" json:"selection_2,omitempty"`
	Selection3      string    `gorm:"size:255" json:"selection_3,omitempty"`
	Selection4      string    `gorm:"size:255" json:"selection_4,omitempty"`
	Selection1Score *float64  `json:"selection_1_score,omitempty"`
	Selection2Score *float64  `json:"selection_2_score,omitempty"`
	Selection3Score *float64  `json:"selection_3_score,omitempty"`
	Selection4Score *float64  `json:"selection_4_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Category        Category  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category"`
}

// HasRubric reports whether the question carries grading criteria.
func (q Question) HasRubric() bool {
	return q.Measurement != ""
}
