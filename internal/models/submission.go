package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusPending indicates the image has not been generated yet.
	SubmissionStatusPending = "PENDING"
	// SubmissionStatusSuccess indicates the image was generated and stored.
	SubmissionStatusSuccess = "SUCCESS"
	// SubmissionStatusError indicates generation failed; ErrorMessage explains why.
	SubmissionStatusError = "ERROR"
)

// Submission represents one image-generation request made in a classroom
// session, either an original prompt or a refinement of an earlier result.
type Submission struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	SessionID          uint           `gorm:"not null;index" json:"session_id"`
	StudentID          *uint          `gorm:"index" json:"student_id"`
	Prompt             string         `gorm:"type:text;not null" json:"prompt"`
	Status             string         `gorm:"size:16;not null;index" json:"status"`
	ParentSubmissionID *uint          `json:"parent_submission_id"`
	RootSubmissionID   *uint          `gorm:"index" json:"root_submission_id"`
	RevisionIndex      int            `gorm:"not null;default:0" json:"revision_index"`
	ImageData          []byte         `json:"-"`
	ImageMimeType      string         `gorm:"size:64" json:"image_mime_type,omitempty"`
	ErrorMessage       string         `gorm:"type:text" json:"error_message,omitempty"`
	IsShared           bool           `gorm:"not null;default:false" json:"is_shared"`
	SharedImageURL     string         `gorm:"size:512" json:"shared_image_url,omitempty"`
	ReferenceImages    datatypes.JSON `json:"reference_images,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// RootID resolves the chain root: a submission without a RootSubmissionID is
// itself the root of its chain.
func (s Submission) RootID() uint {
	if s.RootSubmissionID != nil {
		return *s.RootSubmissionID
	}
	return s.ID
}

// IsLive reports whether the submission consumes a refinement slot in its chain.
func (s Submission) IsLive() bool {
	return s.Status == SubmissionStatusPending || s.Status == SubmissionStatusSuccess
}

// IsTerminal reports whether the generation outcome has been recorded.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusSuccess || s.Status == SubmissionStatusError
}

// HasImage reports whether the submission carries a generated image payload.
func (s Submission) HasImage() bool {
	return s.Status == SubmissionStatusSuccess && len(s.ImageData) > 0
}

// OwnedBy reports whether the submission belongs to the given student.
func (s Submission) OwnedBy(studentID uint) bool {
	return s.StudentID != nil && *s.StudentID == studentID
}
