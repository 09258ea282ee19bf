package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/atelier-go-api/internal/service"
)

// EventsHandler streams submission status transitions over websockets.
type EventsHandler struct {
	service service.EventsService
	logger  zerolog.Logger
}

// NewEventsHandler creates an events handler instance.
func NewEventsHandler(service service.EventsService, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		service: service,
		logger:  logger.With().Str("component", "events_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *EventsHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *EventsHandler) handleConnection(conn *websocket.Conn) {
	raw := strings.TrimSpace(conn.Query("submission_id"))
	submissionID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || submissionID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "submission_id required"))
		_ = conn.Close()
		return
	}

	events, cleanup := h.service.Subscribe(uint(submissionID))
	defer cleanup()

	h.logger.Info().Uint64("submission_id", submissionID).Msg("status stream connected")
	defer h.logger.Info().Uint64("submission_id", submissionID).Msg("status stream disconnected")

	// The read loop only exists to observe the client closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if writeErr := conn.WriteJSON(event); writeErr != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
