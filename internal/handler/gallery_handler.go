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

// GalleryHandler manages sharing and the session gallery.
type GalleryHandler struct {
	service   service.GalleryService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGalleryHandler builds a gallery handler instance.
func NewGalleryHandler(service service.GalleryService, validator *validator.Validate, logger zerolog.Logger) *GalleryHandler {
	return &GalleryHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "gallery_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GalleryHandler) Register(router fiber.Router) {
	router.Put("/submissions/:id/share", h.share)
	router.Get("/sessions/:id/gallery", h.gallery)
}

func (h *GalleryHandler) share(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ShareRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.SetShared(c.Context(), userIDFromContext(c), id, payload.Shared)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "share state updated", submission)
}

func (h *GalleryHandler) gallery(c *fiber.Ctx) error {
	sessionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	gallery, err := h.service.Gallery(c.Context(), sessionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "gallery retrieved", gallery)
}

func (h *GalleryHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrNotOwner):
		return utils.SendError(c, fiber.StatusForbidden, "submission belongs to another student")
	case errors.Is(err, service.ErrNotShareable):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "only successfully generated images can be shared")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
