package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/models"
	"github.com/noah-isme/atelier-go-api/internal/repository"
	"github.com/noah-isme/atelier-go-api/internal/scheduler"
)

// ErrSubmissionNotFound indicates a submission could not be found in the caller's classroom.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSessionNotFound indicates the classroom session does not exist.
var ErrSessionNotFound = errors.New("classroom session not found")

// ErrSessionInactive indicates the classroom session has been deactivated.
var ErrSessionInactive = errors.New("classroom session is not active")

// ErrNotOwner indicates the acting student does not own the parent submission.
var ErrNotOwner = errors.New("submission belongs to another student")

// ErrParentNotReady indicates the parent submission has no image to refine.
var ErrParentNotReady = errors.New("parent submission has no generated image")

// ErrRefinementLimitReached indicates the chain has used up its edit cap.
var ErrRefinementLimitReached = errors.New("refinement limit reached for this image")

// ErrImageNotReady indicates the submission has no stored image payload.
var ErrImageNotReady = errors.New("image is not ready")

// ErrUnsupportedImageType indicates a reference image is not a supported format.
var ErrUnsupportedImageType = errors.New("unsupported reference image type")

// GenerationService admits generation requests and exposes submission state.
type GenerationService interface {
	RequestGeneration(ctx context.Context, studentID uint, payload dto.GenerationRequest) (dto.SubmissionResponse, error)
	GetSubmission(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	GetImage(ctx context.Context, id uint) ([]byte, string, error)
	GetChain(ctx context.Context, submissionID uint) (dto.ChainResponse, error)
	ListByStudent(ctx context.Context, sessionID, studentID uint) ([]dto.SubmissionResponse, error)
}

// JobQueue accepts generation jobs for asynchronous execution.
type JobQueue interface {
	Enqueue(job scheduler.Job)
}

type generationService struct {
	submissions repository.SubmissionRepository
	sessions    repository.SessionRepository
	queue       JobQueue
	validator   *validator.Validate
	logger      zerolog.Logger
	chains      *chainLocks
}

// NewGenerationService constructs a GenerationService instance.
func NewGenerationService(submissionRepo repository.SubmissionRepository, sessionRepo repository.SessionRepository, queue JobQueue, validate *validator.Validate, logger zerolog.Logger) GenerationService {
	return &generationService{
		submissions: submissionRepo,
		sessions:    sessionRepo,
		queue:       queue,
		validator:   validate,
		logger:      logger.With().Str("component", "generation_service").Logger(),
		chains:      newChainLocks(),
	}
}

// RequestGeneration performs admission control, records a PENDING submission and
// queues the generation job. It returns before generation begins; callers poll
// GetSubmission (or subscribe to status events) for the outcome.
func (s *generationService) RequestGeneration(ctx context.Context, studentID uint, payload dto.GenerationRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	session, err := s.sessions.GetByID(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSessionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !session.IsActive {
		return dto.SubmissionResponse{}, ErrSessionInactive
	}

	for _, image := range payload.ReferenceImages {
		if err := validateReferenceImage(image); err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	references, err := encodeReferenceImages(payload.ReferenceImages)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		SessionID:       payload.SessionID,
		StudentID:       &studentID,
		Prompt:          payload.Prompt,
		Status:          models.SubmissionStatusPending,
		ReferenceImages: references,
	}

	var baseImage []byte
	if payload.ParentSubmissionID != nil {
		parent, admitErr := s.admitRefinement(ctx, studentID, session, *payload.ParentSubmissionID, &submission)
		if admitErr != nil {
			return dto.SubmissionResponse{}, admitErr
		}
		baseImage = parent.ImageData
	} else {
		if createErr := s.submissions.Create(ctx, &submission); createErr != nil {
			return dto.SubmissionResponse{}, createErr
		}
	}

	s.queue.Enqueue(scheduler.Job{
		SubmissionID:    submission.ID,
		Prompt:          submission.Prompt,
		BaseImage:       baseImage,
		ReferenceImages: payload.ReferenceImages,
		Size:            payload.Size,
	})

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("session_id", submission.SessionID).
		Int("revision_index", submission.RevisionIndex).
		Msg("generation request admitted")

	return dto.NewSubmissionResponse(submission), nil
}

// admitRefinement validates the parent and assigns chain placement. The count
// and insert run under a per-chain lock so two concurrent refinements of the
// same image cannot both pass the cap check or claim the same revision index.
func (s *generationService) admitRefinement(ctx context.Context, studentID uint, session models.ClassroomSession, parentID uint, submission *models.Submission) (models.Submission, error) {
	parent, err := s.submissions.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if parent.SessionID != session.ID {
		return models.Submission{}, ErrSubmissionNotFound
	}

	if !parent.OwnedBy(studentID) {
		return models.Submission{}, ErrNotOwner
	}

	if !parent.HasImage() {
		return models.Submission{}, ErrParentNotReady
	}

	rootID := parent.RootID()

	unlock := s.chains.lock(rootID)
	defer unlock()

	liveCount, err := s.submissions.CountLive(ctx, rootID)
	if err != nil {
		return models.Submission{}, err
	}

	if liveCount >= int64(session.MaxStudentEdits) {
		return models.Submission{}, ErrRefinementLimitReached
	}

	submission.ParentSubmissionID = &parent.ID
	submission.RootSubmissionID = &rootID
	submission.RevisionIndex = int(liveCount)

	if err := s.submissions.Create(ctx, submission); err != nil {
		return models.Submission{}, err
	}

	return parent, nil
}

func (s *generationService) GetSubmission(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *generationService) GetImage(ctx context.Context, id uint) ([]byte, string, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrSubmissionNotFound
		}
		return nil, "", err
	}

	if !submission.HasImage() {
		return nil, "", ErrImageNotReady
	}

	return submission.ImageData, submission.ImageMimeType, nil
}

func (s *generationService) GetChain(ctx context.Context, submissionID uint) (dto.ChainResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChainResponse{}, ErrSubmissionNotFound
		}
		return dto.ChainResponse{}, err
	}

	session, err := s.sessions.GetByID(ctx, submission.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChainResponse{}, ErrSessionNotFound
		}
		return dto.ChainResponse{}, err
	}

	rootID := submission.RootID()
	members, err := s.submissions.ListChain(ctx, rootID)
	if err != nil {
		return dto.ChainResponse{}, err
	}

	liveCount, err := s.submissions.CountLive(ctx, rootID)
	if err != nil {
		return dto.ChainResponse{}, err
	}

	return dto.ChainResponse{
		RootID:          rootID,
		LiveCount:       liveCount,
		MaxStudentEdits: session.MaxStudentEdits,
		Submissions:     dto.NewSubmissionResponseSlice(members),
	}, nil
}

func (s *generationService) ListByStudent(ctx context.Context, sessionID, studentID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByStudent(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func validateReferenceImage(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("reference image must not be empty")
	}

	mime := mimetype.Detect(payload)
	allowed := []string{"image/png", "image/jpeg", "image/webp"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedImageType, mime.String())
}

func encodeReferenceImages(images [][]byte) (datatypes.JSON, error) {
	if len(images) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode reference images: %w", err)
	}

	return datatypes.JSON(payload), nil
}

// chainLocks serializes admission decisions per chain root while leaving
// unrelated chains fully concurrent. Entries are reference counted so the map
// does not grow with every chain ever refined.
type chainLocks struct {
	mu    sync.Mutex
	locks map[uint]*chainLock
}

type chainLock struct {
	mu   sync.Mutex
	refs int
}

func newChainLocks() *chainLocks {
	return &chainLocks{locks: make(map[uint]*chainLock)}
}

func (c *chainLocks) lock(rootID uint) func() {
	c.mu.Lock()
	entry, ok := c.locks[rootID]
	if !ok {
		entry = &chainLock{}
		c.locks[rootID] = entry
	}
	entry.refs++
	c.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		c.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(c.locks, rootID)
		}
		c.mu.Unlock()
	}
}
