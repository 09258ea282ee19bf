package models

import "time"

// DefaultMaxStudentEdits is the refinement cap applied to new classroom sessions.
const DefaultMaxStudentEdits = 3

// ClassroomSession represents a teacher-led class in which students generate images.
type ClassroomSession struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	TeacherID       uint      `gorm:"not null;index" json:"teacher_id"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	MaxStudentEdits int       `gorm:"not null;default:3" json:"max_student_edits"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
