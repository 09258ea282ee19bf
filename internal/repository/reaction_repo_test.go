package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atelier-go-api/internal/models"
)

func TestReactionRepositoryLikeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AddLike(ctx, &models.Like{SubmissionID: 1, StudentID: 2}))
	require.NoError(t, repo.AddLike(ctx, &models.Like{SubmissionID: 1, StudentID: 2}))
	require.NoError(t, repo.AddLike(ctx, &models.Like{SubmissionID: 1, StudentID: 3}))

	count, err := repo.CountLikes(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, repo.RemoveLike(ctx, 1, 2))
	count, err = repo.CountLikes(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestReactionRepositoryCommentsOrderedOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	first := models.Comment{SubmissionID: 1, StudentID: 2, Body: "love the colours"}
	second := models.Comment{SubmissionID: 1, StudentID: 3, Body: "try a wider shot"}
	unrelated := models.Comment{SubmissionID: 2, StudentID: 2, Body: "other image"}

	require.NoError(t, repo.CreateComment(ctx, &first))
	require.NoError(t, repo.CreateComment(ctx, &second))
	require.NoError(t, repo.CreateComment(ctx, &unrelated))

	comments, err := repo.ListComments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, first.ID, comments[0].ID)
	require.Equal(t, second.ID, comments[1].ID)
}
