package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// ReactionRepository defines data operations for likes and comments on shared submissions.
type ReactionRepository interface {
	AddLike(ctx context.Context, like *models.Like) error
	RemoveLike(ctx context.Context, submissionID, studentID uint) error
	CountLikes(ctx context.Context, submissionID uint) (int64, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, submissionID uint) ([]models.Comment, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository instantiates the repository.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// AddLike is idempotent: liking an already-liked submission is a no-op.
func (r *reactionRepository) AddLike(ctx context.Context, like *models.Like) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}

	return err
}

func (r *reactionRepository) RemoveLike(ctx context.Context, submissionID, studentID uint) error {
	return r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Where("student_id = ?", studentID).
		Delete(&models.Like{}).Error
}

func (r *reactionRepository) CountLikes(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("submission_id = ?", submissionID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *reactionRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *reactionRepository) ListComments(ctx context.Context, submissionID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	return comments, nil
}
