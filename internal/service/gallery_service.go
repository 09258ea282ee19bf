package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/observability"
	"github.com/noah-isme/atelier-go-api/internal/repository"
)

// ErrNotShareable indicates the submission has no successful image to share.
var ErrNotShareable = errors.New("only successfully generated images can be shared")

// ImageMirror copies an image payload to a CDN and returns its public URL.
type ImageMirror interface {
	UploadBytes(ctx context.Context, name string, payload []byte) (string, error)
}

// GalleryService manages sharing and the classmates-facing gallery.
type GalleryService interface {
	SetShared(ctx context.Context, studentID, submissionID uint, shared bool) (dto.SubmissionResponse, error)
	Gallery(ctx context.Context, sessionID uint) (dto.GalleryResponse, error)
}

type galleryService struct {
	submissions repository.SubmissionRepository
	reactions   repository.ReactionRepository
	mirror      ImageMirror
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewGalleryService constructs the gallery service. The mirror and cache may be nil.
func NewGalleryService(submissionRepo repository.SubmissionRepository, reactionRepo repository.ReactionRepository, mirror ImageMirror, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) GalleryService {
	return &galleryService{
		submissions: submissionRepo,
		reactions:   reactionRepo,
		mirror:      mirror,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "gallery_service").Logger(),
	}
}

func (s *galleryService) SetShared(ctx context.Context, studentID, submissionID uint, shared bool) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !submission.OwnedBy(studentID) {
		return dto.SubmissionResponse{}, ErrNotOwner
	}

	if !submission.HasImage() {
		return dto.SubmissionResponse{}, ErrNotShareable
	}

	sharedURL := submission.SharedImageURL
	if shared && sharedURL == "" && s.mirror != nil {
		name := fmt.Sprintf("submission-%d", submission.ID)
		url, uploadErr := s.mirror.UploadBytes(ctx, name, submission.ImageData)
		if uploadErr != nil {
			// The database copy stays authoritative; classmates fall back to
			// the image endpoint when no CDN URL is recorded.
			s.logger.Warn().Err(uploadErr).Uint("submission_id", submission.ID).Msg("failed to mirror shared image")
		} else {
			sharedURL = url
		}
	}

	if err := s.submissions.SetShared(ctx, submission.ID, shared, sharedURL); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.invalidateGallery(ctx, submission.SessionID)

	submission.IsShared = shared
	submission.SharedImageURL = sharedURL

	s.logger.Info().Uint("submission_id", submission.ID).Bool("shared", shared).Msg("submission share state updated")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *galleryService) Gallery(ctx context.Context, sessionID uint) (dto.GalleryResponse, error) {
	cacheKey := galleryCacheKey(sessionID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.GalleryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("session_id", sessionID).Msg("gallery cache hit")
				observability.GalleryRequests().WithLabelValues("cache_hit").Inc()
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read gallery cache")
		}
	}

	shared, err := s.submissions.ListShared(ctx, sessionID)
	if err != nil {
		observability.GalleryRequests().WithLabelValues("error").Inc()
		return dto.GalleryResponse{}, err
	}

	items := make([]dto.GalleryItemResponse, 0, len(shared))
	for _, submission := range shared {
		likes, likeErr := s.reactions.CountLikes(ctx, submission.ID)
		if likeErr != nil {
			observability.GalleryRequests().WithLabelValues("error").Inc()
			return dto.GalleryResponse{}, likeErr
		}

		items = append(items, dto.GalleryItemResponse{
			SubmissionID:   submission.ID,
			StudentID:      submission.StudentID,
			Prompt:         submission.Prompt,
			SharedImageURL: submission.SharedImageURL,
			LikeCount:      likes,
			SharedAt:       submission.UpdatedAt,
		})
	}

	response := dto.GalleryResponse{SessionID: sessionID, Items: items}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(response); marshalErr == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store gallery cache")
			}
		}
	}

	observability.GalleryRequests().WithLabelValues("success").Inc()

	return response, nil
}

func (s *galleryService) invalidateGallery(ctx context.Context, sessionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, galleryCacheKey(sessionID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to invalidate gallery cache")
	}
}

func galleryCacheKey(sessionID uint) string {
	return fmt.Sprintf("gallery:session:%d", sessionID)
}
