package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/models"
	"github.com/noah-isme/atelier-go-api/internal/repository"
	"github.com/noah-isme/atelier-go-api/internal/scheduler"
)

type stubQueue struct {
	mu   sync.Mutex
	jobs []scheduler.Job
}

func (q *stubQueue) Enqueue(job scheduler.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *stubQueue) jobCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ClassroomSession{}, &models.Student{}, &models.Submission{}, &models.Like{}, &models.Comment{}))
	return db
}

type generationFixture struct {
	service     GenerationService
	submissions repository.SubmissionRepository
	sessions    repository.SessionRepository
	queue       *stubQueue
	db          *gorm.DB
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	db := setupServiceDB(t)
	submissions := repository.NewSubmissionRepository(db)
	sessions := repository.NewSessionRepository(db)
	queue := &stubQueue{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGenerationService(submissions, sessions, queue, validate, zerolog.Nop())

	return &generationFixture{service: svc, submissions: submissions, sessions: sessions, queue: queue, db: db}
}

func (f *generationFixture) createSession(t *testing.T, maxEdits int, active bool) models.ClassroomSession {
	t.Helper()
	session := models.ClassroomSession{Name: "Art Class", TeacherID: 1, IsActive: active, MaxStudentEdits: maxEdits}
	require.NoError(t, f.sessions.Create(context.Background(), &session))
	return session
}

func (f *generationFixture) succeed(t *testing.T, submissionID uint) {
	t.Helper()
	require.NoError(t, f.submissions.MarkSuccess(context.Background(), submissionID, []byte("image-bytes"), "image/png"))
}

func TestRequestGenerationCreatesPendingRoot(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, true)

	response, err := f.service.RequestGeneration(context.Background(), 7, dto.GenerationRequest{
		SessionID: session.ID,
		Prompt:    "a lighthouse in a storm",
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, response.Status)
	require.Equal(t, 0, response.RevisionIndex)
	require.Equal(t, response.ID, response.RootSubmissionID)
	require.False(t, response.HasImage)
	require.Equal(t, 1, f.queue.jobCount())
}

func TestRequestGenerationRejectsInactiveSession(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, false)

	_, err := f.service.RequestGeneration(context.Background(), 7, dto.GenerationRequest{
		SessionID: session.ID,
		Prompt:    "a lighthouse",
	})
	require.ErrorIs(t, err, ErrSessionInactive)
	require.Equal(t, 0, f.queue.jobCount())
}

func TestRequestGenerationUnknownSession(t *testing.T) {
	f := newGenerationFixture(t)

	_, err := f.service.RequestGeneration(context.Background(), 7, dto.GenerationRequest{
		SessionID: 999,
		Prompt:    "a lighthouse",
	})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefinementAssignsSequentialRevisions(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, true)
	ctx := context.Background()

	root, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a castle"})
	require.NoError(t, err)
	f.succeed(t, root.ID)

	first, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a castle at night", ParentSubmissionID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, 1, first.RevisionIndex)
	require.Equal(t, root.ID, first.RootSubmissionID)
	f.succeed(t, first.ID)

	second, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a castle at night, snowing", ParentSubmissionID: &first.ID})
	require.NoError(t, err)
	require.Equal(t, 2, second.RevisionIndex)
	require.Equal(t, root.ID, second.RootSubmissionID, "refining a refinement stays in the same chain")
	f.succeed(t, second.ID)

	// Chain is now at its cap of 3 live submissions.
	_, err = f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "one more", ParentSubmissionID: &second.ID})
	require.ErrorIs(t, err, ErrRefinementLimitReached)
	require.Equal(t, 3, f.queue.jobCount())
}

func TestErroredRefinementFreesItsSlot(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 2, true)
	ctx := context.Background()

	root, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a fox"})
	require.NoError(t, err)
	f.succeed(t, root.ID)

	failed, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a red fox", ParentSubmissionID: &root.ID})
	require.NoError(t, err)
	require.NoError(t, f.submissions.MarkError(ctx, failed.ID, "provider error"))

	retry, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a red fox again", ParentSubmissionID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, 1, retry.RevisionIndex, "errored attempt must not consume a refinement slot")
}

func TestRefinementParentChecks(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, true)
	otherSession := f.createSession(t, 3, true)
	ctx := context.Background()

	root, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a whale"})
	require.NoError(t, err)

	// Parent still PENDING: nothing to refine yet.
	_, err = f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "refine", ParentSubmissionID: &root.ID})
	require.ErrorIs(t, err, ErrParentNotReady)

	f.succeed(t, root.ID)

	// Another student must not refine someone else's image.
	_, err = f.service.RequestGeneration(ctx, 8, dto.GenerationRequest{SessionID: session.ID, Prompt: "refine", ParentSubmissionID: &root.ID})
	require.ErrorIs(t, err, ErrNotOwner)

	// A parent from a different classroom is treated as missing.
	_, err = f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: otherSession.ID, Prompt: "refine", ParentSubmissionID: &root.ID})
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "rejected admissions must not create rows")
}

func TestConcurrentRefinementsNeverExceedCap(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, true)
	ctx := context.Background()

	root, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a dragon"})
	require.NoError(t, err)
	f.succeed(t, root.ID)

	const attempts = 10
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{
				SessionID:          session.ID,
				Prompt:             fmt.Sprintf("a dragon, attempt %d", n),
				ParentSubmissionID: &root.ID,
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	admitted := 0
	rejected := 0
	for err := range results {
		switch {
		case err == nil:
			admitted++
		default:
			require.ErrorIs(t, err, ErrRefinementLimitReached)
			rejected++
		}
	}

	// Root is live, so only two refinement slots exist under a cap of 3.
	require.Equal(t, 2, admitted)
	require.Equal(t, attempts-2, rejected)

	liveCount, err := f.submissions.CountLive(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), liveCount)

	chain, err := f.submissions.ListChain(ctx, root.ID)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, member := range chain {
		require.False(t, seen[member.RevisionIndex], "revision indices must be unique within a chain")
		seen[member.RevisionIndex] = true
	}
}

func TestRequestGenerationRejectsBadReferenceImage(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, true)

	_, err := f.service.RequestGeneration(context.Background(), 7, dto.GenerationRequest{
		SessionID:       session.ID,
		Prompt:          "a boat",
		ReferenceImages: [][]byte{[]byte("%PDF-1.4 not an image")},
	})
	require.ErrorIs(t, err, ErrUnsupportedImageType)
	require.Equal(t, 0, f.queue.jobCount())
}

func TestGetSubmissionAndImage(t *testing.T) {
	f := newGenerationFixture(t)
	session := f.createSession(t, 3, true)
	ctx := context.Background()

	created, err := f.service.RequestGeneration(ctx, 7, dto.GenerationRequest{SessionID: session.ID, Prompt: "a meadow"})
	require.NoError(t, err)

	_, _, err = f.service.GetImage(ctx, created.ID)
	require.ErrorIs(t, err, ErrImageNotReady)

	f.succeed(t, created.ID)

	fetched, err := f.service.GetSubmission(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSuccess, fetched.Status)
	require.True(t, fetched.HasImage)

	payload, mimeType, err := f.service.GetImage(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("image-bytes"), payload)
	require.Equal(t, "image/png", mimeType)

	_, err = f.service.GetSubmission(ctx, 9999)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
