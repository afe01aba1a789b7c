package dto

import "time"

// ScoreResponseRequest asks for one (applicant, question) answer to be scored now.
type ScoreResponseRequest struct {
	ApplicantID uint `json:"applicant_id" validate:"required"`
	QuestionID  uint `json:"question_id" validate:"required"`
}

// ScoreResultResponse is returned after a synchronous scoring call.
type ScoreResultResponse struct {
	ApplicantID uint    `json:"applicant_id"`
	QuestionID  uint    `json:"question_id"`
	Score       float64 `json:"score"`
	Attempts    int     `json:"attempts"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
}

// Batch states.
const (
	BatchStateIdle    = "idle"
	BatchStateRunning = "running"
	BatchStateStopped = "stopped"
)

// Batch log levels.
const (
	BatchLogInfo    = "info"
	BatchLogError   = "error"
	BatchLogSuccess = "success"
)

// BatchProgress counts processed items of the current or last run.
type BatchProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchCurrentItem describes the response being scored right now.
type BatchCurrentItem struct {
	ApplicantID  uint   `json:"applicant_id"`
	QuestionID   uint   `json:"question_id"`
	QuestionText string `json:"question_text"`
	RetryCount   int    `json:"retry_count"`
}

// BatchStatus is a point-in-time view of the batch scorer.
type BatchStatus struct {
	RunID         string            `json:"run_id,omitempty"`
	State         string            `json:"state"`
	StopRequested bool              `json:"stop_requested"`
	Progress      BatchProgress     `json:"progress"`
	Pending       int               `json:"pending"`
	Current       *BatchCurrentItem `json:"current,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
}

// BatchLogEntry is one line of the operator console.
type BatchLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// BatchFailure records a response that exhausted its retries.
type BatchFailure struct {
	ApplicantID  uint      `json:"applicant_id"`
	QuestionID   uint      `json:"question_id"`
	ResponseText string    `json:"response_text"`
	Error        string    `json:"error"`
	FailedAt     time.Time `json:"failed_at"`
}

// Batch event types.
const (
	BatchEventLog    = "log"
	BatchEventStatus = "status"
)

// BatchEvent is pushed to stream subscribers.
type BatchEvent struct {
	Type   string         `json:"type"`
	Log    *BatchLogEntry `json:"log,omitempty"`
	Status *BatchStatus   `json:"status,omitempty"`
}
