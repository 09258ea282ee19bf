package models

import "time"

// Like records a single student's like on a shared submission.
type Like struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;uniqueIndex:idx_like_submission_student" json:"submission_id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_like_submission_student" json:"student_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a short remark a classmate left on a shared submission.
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	StudentID    uint      `gorm:"not null;index" json:"student_id"`
	Body         string    `gorm:"type:text;not null" json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
