package dto

import (
	"time"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// SessionCreateRequest describes the payload for opening a classroom session.
type SessionCreateRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=255"`
	MaxStudentEdits int    `json:"max_student_edits" validate:"omitempty,gt=0"`
}

// SessionUpdateRequest adjusts a classroom session.
type SessionUpdateRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	IsActive        *bool   `json:"is_active"`
	MaxStudentEdits *int    `json:"max_student_edits" validate:"omitempty,gt=0"`
}

// SessionResponse is returned to API clients when viewing a classroom session.
type SessionResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	TeacherID       uint      `json:"teacher_id"`
	IsActive        bool      `json:"is_active"`
	MaxStudentEdits int       `json:"max_student_edits"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSessionResponse converts a ClassroomSession model into a DTO.
func NewSessionResponse(model models.ClassroomSession) SessionResponse {
	return SessionResponse{
		ID:              model.ID,
		Name:            model.Name,
		TeacherID:       model.TeacherID,
		IsActive:        model.IsActive,
		MaxStudentEdits: model.MaxStudentEdits,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewSessionResponseSlice converts session models into DTOs.
func NewSessionResponseSlice(models []models.ClassroomSession) []SessionResponse {
	responses := make([]SessionResponse, 0, len(models))
	for _, session := range models {
		responses = append(responses, NewSessionResponse(session))
	}

	return responses
}
