package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/atelier-go-api/internal/config"
	"github.com/noah-isme/atelier-go-api/internal/database"
	"github.com/noah-isme/atelier-go-api/internal/handler"
	"github.com/noah-isme/atelier-go-api/internal/middleware"
	"github.com/noah-isme/atelier-go-api/internal/models"
	"github.com/noah-isme/atelier-go-api/internal/repository"
	"github.com/noah-isme/atelier-go-api/internal/router"
	"github.com/noah-isme/atelier-go-api/internal/scheduler"
	"github.com/noah-isme/atelier-go-api/internal/service"
	"github.com/noah-isme/atelier-go-api/pkg/ai"
	cloud "github.com/noah-isme/atelier-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.ClassroomSession{}, &models.Submission{}, &models.Like{}, &models.Comment{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, gallery caching and cross-node events disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var mirror service.ImageMirror
	if cfg.CloudinaryCloudName != "" {
		uploader, uploadErr := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if uploadErr != nil {
			log.Fatalf("failed to create cloudinary client: %v", uploadErr)
		}
		mirror = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, shared images are served from the database only")
	}

	generator, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		DefaultSize: cfg.OpenAIImageSize,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create image generator: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	reactionRepo := repository.NewReactionRepository(db)

	eventsService := service.NewEventsService(redisClient, natsConn, cfg.EventChannelBase, logger)

	generationScheduler := scheduler.New(submissionRepo, generator, eventsService, scheduler.Config{
		MaxConcurrent: cfg.MaxConcurrentGenerations,
		PollInterval:  cfg.SchedulerPollInterval,
	}, logger)

	generationService := service.NewGenerationService(submissionRepo, sessionRepo, generationScheduler, validate, logger)
	galleryService := service.NewGalleryService(submissionRepo, reactionRepo, mirror, redisClient, cfg.GalleryCacheTTL, logger)
	reactionService := service.NewReactionService(submissionRepo, reactionRepo, validate, logger)
	sessionService := service.NewSessionService(sessionRepo, validate, cfg.DefaultMaxStudentEdits, logger)

	generationHandler := handler.NewGenerationHandler(generationService, validate, logger)
	galleryHandler := handler.NewGalleryHandler(galleryService, validate, logger)
	reactionHandler := handler.NewReactionHandler(reactionService, validate, logger)
	sessionHandler := handler.NewSessionHandler(sessionService, validate, logger)
	eventsHandler := handler.NewEventsHandler(eventsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    32 * 1024 * 1024,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventsService.Start(runCtx)

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GenerationHandler: generationHandler,
		GalleryHandler:    galleryHandler,
		ReactionHandler:   reactionHandler,
		SessionHandler:    sessionHandler,
		EventsHandler:     eventsHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		GenerationLimiter: middleware.RateLimit("generation", cfg.GenerationsPerMinute, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, generationScheduler)
}

func waitForShutdown(app *fiber.App, generationScheduler *scheduler.Scheduler) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	// Give in-flight generations a chance to record their outcome; anything
	// still queued is lost and stays PENDING until resubmitted.
	if err := generationScheduler.WaitIdle(ctx); err != nil {
		log.Printf("shutdown with generations still in flight: %v", err)
	}

	log.Println("server stopped")
}
