package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/atelier-go-api/internal/config"
	"github.com/noah-isme/atelier-go-api/internal/handler"
	"github.com/noah-isme/atelier-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GenerationHandler *handler.GenerationHandler
	GalleryHandler    *handler.GalleryHandler
	ReactionHandler   *handler.ReactionHandler
	SessionHandler    *handler.SessionHandler
	EventsHandler     *handler.EventsHandler
	JWTMiddleware     fiber.Handler
	GenerationLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Submissions: generation requests, polling, image and chain reads.
	if deps.GenerationHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)

		var createGuards []fiber.Handler
		if deps.GenerationLimiter != nil {
			createGuards = append(createGuards, deps.GenerationLimiter)
		}
		deps.GenerationHandler.Register(submissions, createGuards...)

		if deps.ReactionHandler != nil {
			deps.ReactionHandler.Register(submissions)
		}
	}

	// Sharing and the session gallery.
	if deps.GalleryHandler != nil {
		deps.GalleryHandler.Register(api.Group("", jwtMiddleware))
	}

	// Classroom session management.
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions", jwtMiddleware))
	}

	// Status event stream.
	if deps.EventsHandler != nil {
		deps.EventsHandler.Register(api.Group("/events", jwtMiddleware))
	}
}
