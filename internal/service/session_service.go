package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/models"
	"github.com/noah-isme/atelier-go-api/internal/repository"
)

// SessionService manages classroom sessions and their refinement caps.
type SessionService interface {
	Create(ctx context.Context, teacherID uint, payload dto.SessionCreateRequest) (dto.SessionResponse, error)
	Get(ctx context.Context, id uint) (dto.SessionResponse, error)
	List(ctx context.Context, teacherID uint) ([]dto.SessionResponse, error)
	Update(ctx context.Context, id, teacherID uint, payload dto.SessionUpdateRequest) (dto.SessionResponse, error)
}

type sessionService struct {
	sessions        repository.SessionRepository
	validator       *validator.Validate
	logger          zerolog.Logger
	defaultMaxEdits int
}

// NewSessionService constructs a SessionService instance. defaultMaxEdits is
// applied to sessions created without an explicit refinement cap.
func NewSessionService(sessionRepo repository.SessionRepository, validate *validator.Validate, defaultMaxEdits int, logger zerolog.Logger) SessionService {
	if defaultMaxEdits <= 0 {
		defaultMaxEdits = models.DefaultMaxStudentEdits
	}

	return &sessionService{
		sessions:        sessionRepo,
		validator:       validate,
		logger:          logger.With().Str("component", "session_service").Logger(),
		defaultMaxEdits: defaultMaxEdits,
	}
}

func (s *sessionService) Create(ctx context.Context, teacherID uint, payload dto.SessionCreateRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	maxEdits := payload.MaxStudentEdits
	if maxEdits <= 0 {
		maxEdits = s.defaultMaxEdits
	}

	session := models.ClassroomSession{
		Name:            payload.Name,
		TeacherID:       teacherID,
		IsActive:        true,
		MaxStudentEdits: maxEdits,
	}

	if err := s.sessions.Create(ctx, &session); err != nil {
		return dto.SessionResponse{}, err
	}

	s.logger.Info().Uint("session_id", session.ID).Int("max_student_edits", maxEdits).Msg("classroom session created")

	return dto.NewSessionResponse(session), nil
}

func (s *sessionService) Get(ctx context.Context, id uint) (dto.SessionResponse, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, err
	}

	return dto.NewSessionResponse(session), nil
}

func (s *sessionService) List(ctx context.Context, teacherID uint) ([]dto.SessionResponse, error) {
	sessions, err := s.sessions.List(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return dto.NewSessionResponseSlice(sessions), nil
}

func (s *sessionService) Update(ctx context.Context, id, teacherID uint, payload dto.SessionUpdateRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, err
	}

	if session.TeacherID != teacherID {
		return dto.SessionResponse{}, ErrNotOwner
	}

	if payload.Name != nil {
		session.Name = *payload.Name
	}
	if payload.IsActive != nil {
		session.IsActive = *payload.IsActive
	}
	if payload.MaxStudentEdits != nil {
		session.MaxStudentEdits = *payload.MaxStudentEdits
	}

	if err := s.sessions.Update(ctx, &session); err != nil {
		return dto.SessionResponse{}, err
	}

	s.logger.Info().Uint("session_id", session.ID).Bool("is_active", session.IsActive).Msg("classroom session updated")

	return dto.NewSessionResponse(session), nil
}
