package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// SubmissionRepository defines data operations for image submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	MarkSuccess(ctx context.Context, id uint, imageData []byte, mimeType string) error
	MarkError(ctx context.Context, id uint, message string) error
	SetShared(ctx context.Context, id uint, shared bool, sharedImageURL string) error
	CountLive(ctx context.Context, rootID uint) (int64, error)
	ListChain(ctx context.Context, rootID uint) ([]models.Submission, error)
	ListShared(ctx context.Context, sessionID uint) ([]models.Submission, error)
	ListByStudent(ctx context.Context, sessionID, studentID uint) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) MarkSuccess(ctx context.Context, id uint, imageData []byte, mimeType string) error {
	return r.updateOne(ctx, id, map[string]interface{}{
		"status":          models.SubmissionStatusSuccess,
		"image_data":      imageData,
		"image_mime_type": mimeType,
		"error_message":   "",
	})
}

func (r *submissionRepository) MarkError(ctx context.Context, id uint, message string) error {
	return r.updateOne(ctx, id, map[string]interface{}{
		"status":          models.SubmissionStatusError,
		"image_data":      []byte(nil),
		"image_mime_type": "",
		"error_message":   message,
	})
}

func (r *submissionRepository) SetShared(ctx context.Context, id uint, shared bool, sharedImageURL string) error {
	return r.updateOne(ctx, id, map[string]interface{}{
		"is_shared":        shared,
		"shared_image_url": sharedImageURL,
	})
}

func (r *submissionRepository) updateOne(ctx context.Context, id uint, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *submissionRepository) CountLive(ctx context.Context, rootID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("(id = ? OR root_submission_id = ?)", rootID, rootID).
		Where("status IN ?", []string{models.SubmissionStatusPending, models.SubmissionStatusSuccess}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *submissionRepository) ListChain(ctx context.Context, rootID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("id = ? OR root_submission_id = ?", rootID, rootID).
		Order("revision_index ASC, id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListShared(ctx context.Context, sessionID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("is_shared = ?", true).
		Where("status = ?", models.SubmissionStatusSuccess).
		Order("updated_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, sessionID, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}
