package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// SessionRepository defines data operations for classroom sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.ClassroomSession) error
	GetByID(ctx context.Context, id uint) (models.ClassroomSession, error)
	List(ctx context.Context, teacherID uint) ([]models.ClassroomSession, error)
	Update(ctx context.Context, session *models.ClassroomSession) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository instantiates the repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.ClassroomSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uint) (models.ClassroomSession, error) {
	var session models.ClassroomSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return models.ClassroomSession{}, err
	}

	return session, nil
}

func (r *sessionRepository) List(ctx context.Context, teacherID uint) ([]models.ClassroomSession, error) {
	var sessions []models.ClassroomSession
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *sessionRepository) Update(ctx context.Context, session *models.ClassroomSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}
