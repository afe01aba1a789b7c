package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/screening-api/pkg/ai"
)

var (
	// ErrQuestionNotFound indicates the referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResponseNotFound indicates the referenced response does not exist.
	ErrResponseNotFound = errors.New("response not found")
	// ErrApplicantNotFound indicates the referenced applicant does not exist.
	ErrApplicantNotFound = errors.New("applicant not found")
	// ErrBatchRunning indicates a batch run is already in progress.
	ErrBatchRunning = errors.New("scoring batch already running")
	// ErrNothingToScore indicates no unscored responses were found.
	ErrNothingToScore = errors.New("no responses to score")
)

// ConfigurationError reports a missing or inconsistent provider setup.
// Retrying cannot fix it; the operator has to change their settings.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "scoring configuration error: " + e.Reason
}

// PersistenceError reports a score write that did not land on exactly one row.
type PersistenceError struct {
	ApplicantID  uint
	QuestionID   uint
	ResponseID   uint
	RowsAffected int64
	Err          error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persist score: %v", e.Err)
	}
	if e.ResponseID != 0 {
		return fmt.Sprintf("persist score: expected 1 row for response %d, affected %d", e.ResponseID, e.RowsAffected)
	}
	return fmt.Sprintf("persist score: expected 1 row for applicant %d question %d, affected %d", e.ApplicantID, e.QuestionID, e.RowsAffected)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ScoringError is returned by ScoreOne once it gives up.
type ScoringError struct {
	Attempts int
	Err      error
}

func (e *ScoringError) Error() string {
	return e.Err.Error()
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether retrying err cannot succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ai.ErrIncompletePrompt)
}

// IsNotFound reports whether err refers to missing records.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrResponseNotFound) ||
		errors.Is(err, ErrApplicantNotFound)
}
