package dto

import (
	"time"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// GenerationRequest describes the payload for requesting a new image generation.
type GenerationRequest struct {
	SessionID          uint     `json:"session_id" validate:"required,gt=0"`
	Prompt             string   `json:"prompt" validate:"required,min=1,max=2000"`
	ParentSubmissionID *uint    `json:"parent_submission_id" validate:"omitempty,gt=0"`
	Size               string   `json:"size" validate:"omitempty,oneof=256x256 512x512 1024x1024 1792x1024 1024x1792"`
	ReferenceImages    [][]byte `json:"-"`
}

// ShareRequest toggles gallery visibility for a submission.
type ShareRequest struct {
	Shared bool `json:"shared"`
}

// SubmissionResponse is returned to API clients when viewing a submission.
// Image bytes are served from a dedicated endpoint rather than inlined.
type SubmissionResponse struct {
	ID                 uint       `json:"id"`
	SessionID          uint       `json:"session_id"`
	StudentID          *uint      `json:"student_id"`
	Prompt             string     `json:"prompt"`
	Status             string     `json:"status"`
	ParentSubmissionID *uint      `json:"parent_submission_id"`
	RootSubmissionID   uint       `json:"root_submission_id"`
	RevisionIndex      int        `json:"revision_index"`
	HasImage           bool       `json:"has_image"`
	ImageMimeType      string     `json:"image_mime_type,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	IsShared           bool       `json:"is_shared"`
	SharedImageURL     string     `json:"shared_image_url,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ChainResponse lists a chain root and its refinements with cap accounting.
type ChainResponse struct {
	RootID          uint                 `json:"root_id"`
	LiveCount       int64                `json:"live_count"`
	MaxStudentEdits int                  `json:"max_student_edits"`
	Submissions     []SubmissionResponse `json:"submissions"`
}

// GalleryItemResponse is one shared submission in the session gallery.
type GalleryItemResponse struct {
	SubmissionID   uint      `json:"submission_id"`
	StudentID      *uint     `json:"student_id"`
	Prompt         string    `json:"prompt"`
	SharedImageURL string    `json:"shared_image_url,omitempty"`
	LikeCount      int64     `json:"like_count"`
	SharedAt       time.Time `json:"shared_at"`
}

// GalleryResponse is the cached session gallery listing.
type GalleryResponse struct {
	SessionID uint                  `json:"session_id"`
	Items     []GalleryItemResponse `json:"items"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:                 model.ID,
		SessionID:          model.SessionID,
		StudentID:          model.StudentID,
		Prompt:             model.Prompt,
		Status:             model.Status,
		ParentSubmissionID: model.ParentSubmissionID,
		RootSubmissionID:   model.RootID(),
		RevisionIndex:      model.RevisionIndex,
		HasImage:           model.HasImage(),
		ImageMimeType:      model.ImageMimeType,
		ErrorMessage:       model.ErrorMessage,
		IsShared:           model.IsShared,
		SharedImageURL:     model.SharedImageURL,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
