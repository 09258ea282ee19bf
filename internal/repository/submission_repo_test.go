package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ClassroomSession{}, &models.Student{}, &models.Submission{}, &models.Like{}, &models.Comment{}))
	return db
}

func uintPtr(v uint) *uint {
	return &v
}

func TestSubmissionRepositoryCreateStartsPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	submission := models.Submission{
		SessionID: 1,
		StudentID: uintPtr(7),
		Prompt:    "a lighthouse in a storm",
		Status:    models.SubmissionStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), &submission))
	require.NotZero(t, submission.ID)

	stored, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, stored.Status)
	require.Empty(t, stored.ImageData)
	require.Empty(t, stored.ErrorMessage)
	require.Equal(t, stored.ID, stored.RootID(), "submission without a root is its own root")
}

func TestSubmissionRepositoryMarkSuccessStoresImage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	submission := models.Submission{SessionID: 1, StudentID: uintPtr(7), Prompt: "sunset", Status: models.SubmissionStatusPending}
	require.NoError(t, repo.Create(context.Background(), &submission))

	require.NoError(t, repo.MarkSuccess(context.Background(), submission.ID, []byte{0x89, 0x50, 0x4e, 0x47}, "image/png"))

	stored, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSuccess, stored.Status)
	require.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, stored.ImageData)
	require.Equal(t, "image/png", stored.ImageMimeType)
	require.Empty(t, stored.ErrorMessage)
	require.True(t, stored.HasImage())
}

func TestSubmissionRepositoryMarkErrorClearsImage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	submission := models.Submission{SessionID: 1, StudentID: uintPtr(7), Prompt: "sunset", Status: models.SubmissionStatusPending}
	require.NoError(t, repo.Create(context.Background(), &submission))

	require.NoError(t, repo.MarkError(context.Background(), submission.ID, "rate limited"))

	stored, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusError, stored.Status)
	require.Empty(t, stored.ImageData)
	require.Equal(t, "rate limited", stored.ErrorMessage)
	require.False(t, stored.IsLive())
}

func TestSubmissionRepositoryMarkUnknownSubmission(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	err := repo.MarkSuccess(context.Background(), 999, []byte("img"), "image/png")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.MarkError(context.Background(), 999, "boom")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryCountLiveExcludesErrored(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	root := models.Submission{SessionID: 1, StudentID: uintPtr(7), Prompt: "castle", Status: models.SubmissionStatusSuccess}
	require.NoError(t, repo.Create(ctx, &root))

	first := models.Submission{SessionID: 1, StudentID: uintPtr(7), Prompt: "castle, night", Status: models.SubmissionStatusPending, ParentSubmissionID: &root.ID, RootSubmissionID: &root.ID, RevisionIndex: 1}
	require.NoError(t, repo.Create(ctx, &first))

	failed := models.Submission{SessionID: 1, StudentID: uintPtr(7), Prompt: "castle, fire", Status: models.SubmissionStatusError, ParentSubmissionID: &root.ID, RootSubmissionID: &root.ID, RevisionIndex: 2, ErrorMessage: "provider error"}
	require.NoError(t, repo.Create(ctx, &failed))

	other := models.Submission{SessionID: 1, StudentID: uintPtr(9), Prompt: "unrelated", Status: models.SubmissionStatusPending}
	require.NoError(t, repo.Create(ctx, &other))

	count, err := repo.CountLive(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count, "errored refinement must not consume a slot")

	chain, err := repo.ListChain(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Equal(t, root.ID, chain[0].ID)
	require.Equal(t, 1, chain[1].RevisionIndex)
}

func TestSubmissionRepositoryListSharedFiltersStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	shared := models.Submission{SessionID: 4, StudentID: uintPtr(1), Prompt: "dragon", Status: models.SubmissionStatusSuccess, IsShared: true, ImageData: []byte("png"), ImageMimeType: "image/png"}
	hidden := models.Submission{SessionID: 4, StudentID: uintPtr(2), Prompt: "moon", Status: models.SubmissionStatusSuccess}
	pendingShared := models.Submission{SessionID: 4, StudentID: uintPtr(3), Prompt: "sun", Status: models.SubmissionStatusPending, IsShared: true}
	otherSession := models.Submission{SessionID: 5, StudentID: uintPtr(1), Prompt: "sea", Status: models.SubmissionStatusSuccess, IsShared: true}

	for _, s := range []*models.Submission{&shared, &hidden, &pendingShared, &otherSession} {
		require.NoError(t, repo.Create(ctx, s))
	}

	listed, err := repo.ListShared(ctx, 4)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, shared.ID, listed[0].ID)
}

func TestSubmissionRepositorySetShared(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{SessionID: 1, StudentID: uintPtr(7), Prompt: "forest", Status: models.SubmissionStatusSuccess, ImageData: []byte("png")}
	require.NoError(t, repo.Create(ctx, &submission))

	require.NoError(t, repo.SetShared(ctx, submission.ID, true, "https://cdn.example/forest.png"))

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.True(t, stored.IsShared)
	require.Equal(t, "https://cdn.example/forest.png", stored.SharedImageURL)

	require.NoError(t, repo.SetShared(ctx, submission.ID, false, ""))
	stored, err = repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.False(t, stored.IsShared)
}
