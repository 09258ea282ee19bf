package dto

import (
	"time"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// CommentCreateRequest describes the payload for commenting on a shared submission.
type CommentCreateRequest struct {
	Body string `json:"body" validate:"required,min=1,max=1000"`
}

// CommentResponse is a single comment on a shared submission.
type CommentResponse struct {
	ID           uint      `json:"id"`
	SubmissionID uint      `json:"submission_id"`
	StudentID    uint      `json:"student_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReactionSummaryResponse aggregates reactions on a shared submission.
type ReactionSummaryResponse struct {
	SubmissionID uint              `json:"submission_id"`
	LikeCount    int64             `json:"like_count"`
	Comments     []CommentResponse `json:"comments"`
}

// NewCommentResponse converts a Comment model into a DTO.
func NewCommentResponse(model models.Comment) CommentResponse {
	return CommentResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		StudentID:    model.StudentID,
		Body:         model.Body,
		CreatedAt:    model.CreatedAt,
	}
}

// NewCommentResponseSlice converts comment models into DTOs.
func NewCommentResponseSlice(models []models.Comment) []CommentResponse {
	responses := make([]CommentResponse, 0, len(models))
	for _, comment := range models {
		responses = append(responses, NewCommentResponse(comment))
	}

	return responses
}
