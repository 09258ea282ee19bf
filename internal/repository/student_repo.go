package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

// StudentRepository defines data operations for enrolled students.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (models.Student, error)
	ListBySession(ctx context.Context, sessionID uint) ([]models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) ListBySession(ctx context.Context, sessionID uint) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("name ASC").
		Find(&students).Error
	if err != nil {
		return nil, err
	}

	return students, nil
}
