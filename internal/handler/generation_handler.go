package handler

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/service"
	"github.com/noah-isme/atelier-go-api/internal/utils"
)

const maxReferenceImages = 4

// GenerationHandler manages image generation submissions.
type GenerationHandler struct {
	service   service.GenerationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGenerationHandler builds a generation handler instance.
func NewGenerationHandler(service service.GenerationService, validator *validator.Validate, logger zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "generation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Extra guards,
// such as a rate limiter, only apply to the create route so status polling
// stays unthrottled.
func (h *GenerationHandler) Register(router fiber.Router, createGuards ...fiber.Handler) {
	router.Get("", h.list)
	router.Post("", append(createGuards, h.create)...)
	router.Get("/:id", h.get)
	router.Get("/:id/image", h.image)
	router.Get("/:id/chain", h.chain)
}

func (h *GenerationHandler) create(c *fiber.Ctx) error {
	payload, err := h.parseGenerationRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.RequestGeneration(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "generation accepted", submission)
}

// parseGenerationRequest accepts either a JSON body or a multipart form. The
// multipart variant carries optional reference image files alongside the
// prompt fields.
func (h *GenerationHandler) parseGenerationRequest(c *fiber.Ctx) (dto.GenerationRequest, error) {
	var payload dto.GenerationRequest

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&payload); err != nil {
			return payload, errors.New("invalid request body")
		}
		return payload, nil
	}

	sessionID, err := strconv.ParseUint(c.FormValue("session_id"), 10, 64)
	if err != nil {
		return payload, errors.New("invalid session_id")
	}
	payload.SessionID = uint(sessionID)
	payload.Prompt = c.FormValue("prompt")
	payload.Size = c.FormValue("size")

	if parentRaw := c.FormValue("parent_submission_id"); parentRaw != "" {
		parentID, parseErr := strconv.ParseUint(parentRaw, 10, 64)
		if parseErr != nil {
			return payload, errors.New("invalid parent_submission_id")
		}
		parent := uint(parentID)
		payload.ParentSubmissionID = &parent
	}

	form, err := c.MultipartForm()
	if err != nil {
		return payload, errors.New("invalid multipart form")
	}

	files := form.File["reference_images"]
	if len(files) > maxReferenceImages {
		return payload, errors.New("too many reference images")
	}
	for _, header := range files {
		file, openErr := header.Open()
		if openErr != nil {
			return payload, errors.New("failed to read reference image")
		}
		data, readErr := io.ReadAll(file)
		_ = file.Close()
		if readErr != nil {
			return payload, errors.New("failed to read reference image")
		}
		payload.ReferenceImages = append(payload.ReferenceImages, data)
	}

	return payload, nil
}

func (h *GenerationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.GetSubmission(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *GenerationHandler) image(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	data, mimeType, err := h.service.GetImage(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, mimeType)
	return c.Send(data)
}

func (h *GenerationHandler) chain(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	chain, err := h.service.GetChain(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "chain retrieved", chain)
}

func (h *GenerationHandler) list(c *fiber.Ctx) error {
	sessionID, err := parseQueryUint(c, "session_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if sessionID == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "session_id required")
	}

	submissions, err := h.service.ListByStudent(c.Context(), *sessionID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *GenerationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "classroom session not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrNotOwner):
		return utils.SendError(c, fiber.StatusForbidden, "submission belongs to another student")
	case errors.Is(err, service.ErrSessionInactive):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "classroom session is not active")
	case errors.Is(err, service.ErrParentNotReady):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "parent submission has no generated image")
	case errors.Is(err, service.ErrUnsupportedImageType):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "unsupported reference image type")
	case errors.Is(err, service.ErrRefinementLimitReached):
		return utils.SendError(c, fiber.StatusConflict, "refinement limit reached for this image")
	case errors.Is(err, service.ErrImageNotReady):
		return utils.SendError(c, fiber.StatusConflict, "image is not ready")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
