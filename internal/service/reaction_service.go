package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/models"
	"github.com/noah-isme/atelier-go-api/internal/repository"
)

// ErrNotShared indicates the submission is not visible to classmates.
var ErrNotShared = errors.New("submission is not shared")

// ErrEmptyComment indicates the comment had no content left after sanitization.
var ErrEmptyComment = errors.New("comment is empty")

// ReactionService handles likes and comments on shared submissions.
type ReactionService interface {
	Like(ctx context.Context, studentID, submissionID uint) error
	Unlike(ctx context.Context, studentID, submissionID uint) error
	Comment(ctx context.Context, studentID, submissionID uint, payload dto.CommentCreateRequest) (dto.CommentResponse, error)
	Reactions(ctx context.Context, submissionID uint) (dto.ReactionSummaryResponse, error)
}

type reactionService struct {
	submissions repository.SubmissionRepository
	reactions   repository.ReactionRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewReactionService constructs a ReactionService instance.
func NewReactionService(submissionRepo repository.SubmissionRepository, reactionRepo repository.ReactionRepository, validate *validator.Validate, logger zerolog.Logger) ReactionService {
	return &reactionService{
		submissions: submissionRepo,
		reactions:   reactionRepo,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "reaction_service").Logger(),
	}
}

func (s *reactionService) Like(ctx context.Context, studentID, submissionID uint) error {
	if err := s.requireShared(ctx, submissionID); err != nil {
		return err
	}

	return s.reactions.AddLike(ctx, &models.Like{SubmissionID: submissionID, StudentID: studentID})
}

func (s *reactionService) Unlike(ctx context.Context, studentID, submissionID uint) error {
	if err := s.requireShared(ctx, submissionID); err != nil {
		return err
	}

	return s.reactions.RemoveLike(ctx, submissionID, studentID)
}

func (s *reactionService) Comment(ctx context.Context, studentID, submissionID uint, payload dto.CommentCreateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CommentResponse{}, err
	}

	if err := s.requireShared(ctx, submissionID); err != nil {
		return dto.CommentResponse{}, err
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return dto.CommentResponse{}, ErrEmptyComment
	}

	comment := models.Comment{
		SubmissionID: submissionID,
		StudentID:    studentID,
		Body:         body,
	}

	if err := s.reactions.CreateComment(ctx, &comment); err != nil {
		return dto.CommentResponse{}, err
	}

	s.logger.Info().Uint("submission_id", submissionID).Uint("student_id", studentID).Msg("comment created")

	return dto.NewCommentResponse(comment), nil
}

func (s *reactionService) Reactions(ctx context.Context, submissionID uint) (dto.ReactionSummaryResponse, error) {
	if err := s.requireShared(ctx, submissionID); err != nil {
		return dto.ReactionSummaryResponse{}, err
	}

	likes, err := s.reactions.CountLikes(ctx, submissionID)
	if err != nil {
		return dto.ReactionSummaryResponse{}, err
	}

	comments, err := s.reactions.ListComments(ctx, submissionID)
	if err != nil {
		return dto.ReactionSummaryResponse{}, err
	}

	return dto.ReactionSummaryResponse{
		SubmissionID: submissionID,
		LikeCount:    likes,
		Comments:     dto.NewCommentResponseSlice(comments),
	}, nil
}

// requireShared enforces that reactions only ever target shared, successfully
// generated submissions.
func (s *reactionService) requireShared(ctx context.Context, submissionID uint) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if !submission.HasImage() || !submission.IsShared {
		return ErrNotShared
	}

	return nil
}
