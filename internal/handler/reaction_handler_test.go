package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/handler"
	"github.com/noah-isme/atelier-go-api/internal/service"
)

type mockReactionService struct {
	liked   []uint
	unliked []uint
	comment dto.CommentResponse
	summary dto.ReactionSummaryResponse
	err     error
}

func (m *mockReactionService) Like(_ context.Context, _, submissionID uint) error {
	m.liked = append(m.liked, submissionID)
	return m.err
}

func (m *mockReactionService) Unlike(_ context.Context, _, submissionID uint) error {
	m.unliked = append(m.unliked, submissionID)
	return m.err
}

func (m *mockReactionService) Comment(_ context.Context, _, _ uint, _ dto.CommentCreateRequest) (dto.CommentResponse, error) {
	if m.err != nil {
		return dto.CommentResponse{}, m.err
	}
	return m.comment, nil
}

func (m *mockReactionService) Reactions(_ context.Context, _ uint) (dto.ReactionSummaryResponse, error) {
	if m.err != nil {
		return dto.ReactionSummaryResponse{}, m.err
	}
	return m.summary, nil
}

func newReactionApp(svc service.ReactionService) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(8))
		return c.Next()
	})
	handler.NewReactionHandler(svc, validator.New(), zerolog.New(io.Discard)).Register(app.Group("/api/submissions"))
	return app
}

func TestReactionHandler_LikeAndUnlike(t *testing.T) {
	svc := &mockReactionService{}
	app := newReactionApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/submissions/3/like", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/submissions/3/like", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, []uint{3}, svc.liked)
	require.Equal(t, []uint{3}, svc.unliked)
}

func TestReactionHandler_NotShared(t *testing.T) {
	app := newReactionApp(&mockReactionService{err: service.ErrNotShared})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/submissions/3/like", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestReactionHandler_Comment(t *testing.T) {
	svc := &mockReactionService{comment: dto.CommentResponse{ID: 1, Body: "so cool"}}
	app := newReactionApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/submissions/3/comments", strings.NewReader(`{"body": "so cool"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                `json:"success"`
		Data    dto.CommentResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "so cool", body.Data.Body)
}
