package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/service"
	"github.com/noah-isme/atelier-go-api/internal/utils"
)

// ReactionHandler manages likes and comments on shared submissions.
type ReactionHandler struct {
	service   service.ReactionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReactionHandler builds a reaction handler instance.
func NewReactionHandler(service service.ReactionService, validator *validator.Validate, logger zerolog.Logger) *ReactionHandler {
	return &ReactionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "reaction_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReactionHandler) Register(router fiber.Router) {
	router.Get("/:id/reactions", h.reactions)
	router.Post("/:id/like", h.like)
	router.Delete("/:id/like", h.unlike)
	router.Post("/:id/comments", h.comment)
}

func (h *ReactionHandler) like(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Like(c.Context(), userIDFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission liked", nil)
}

func (h *ReactionHandler) unlike(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Unlike(c.Context(), userIDFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "like removed", nil)
}

func (h *ReactionHandler) comment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CommentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	comment, err := h.service.Comment(c.Context(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comment created", comment)
}

func (h *ReactionHandler) reactions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.Reactions(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "reactions retrieved", summary)
}

func (h *ReactionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrNotShared):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "submission is not shared")
	case errors.Is(err, service.ErrEmptyComment):
		return utils.SendError(c, fiber.StatusBadRequest, "comment is empty")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
