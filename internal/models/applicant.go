package models

import "time"

// Applicant is a person who submitted the screening questionnaire.
type Applicant struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Email           string     `gorm:"size:255;index" json:"email"`
	FirstName       string     `gorm:"size:255" json:"first_name"`
	LastName        string     `gorm:"size:255" json:"last_name"`
	Role            string     `gorm:"size:64" json:"role"`
	ExperienceLevel string     `gorm:"size:32" json:"experience_level"`
	CompletionTime  *int       `json:"completion_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Responses       []Response `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"responses,omitempty"`
}

// DisplayName returns the applicant's full name.
func (a Applicant) DisplayName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}
