package models

import "time"

// Response is one applicant's answer to one question. Score stays nil until
// the scoring pipeline or an operator sets it.
type Response struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ApplicantID         uint      `gorm:"not null;uniqueIndex:idx_response_applicant_question" json:"applicant_id"`
	QuestionID          uint      `gorm:"not null;uniqueIndex:idx_response_applicant_question" json:"question_id"`
	ResponseText        string    `gorm:"type:text" json:"response_text"`
	IsSelectionResponse bool      `gorm:"default:false" json:"is_selection_response"`
	SelectedOption      *int      `json:"selected_option,omitempty"`
	Score               *float64  `json:"score"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Question            Question  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
}

// IsScored reports whether the response carries a score.
func (r Response) IsScored() bool {
	return r.Score != nil
}
