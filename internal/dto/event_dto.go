package dto

import "time"

// StatusEvent announces that a submission reached a terminal generation status.
type StatusEvent struct {
	SubmissionID uint      `json:"submission_id"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
