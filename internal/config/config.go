package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                  string
	AppEnv                   string
	AppPort                  string
	DatabaseURL              string
	RedisURL                 string
	NATSURL                  string
	EventChannelBase         string
	JWTSecret                string
	CloudinaryCloudName      string
	CloudinaryAPIKey         string
	CloudinaryAPISecret      string
	CloudinaryUploadFolder   string
	GalleryCacheTTL          time.Duration
	MaxConcurrentGenerations int
	SchedulerPollInterval    time.Duration
	GenerationsPerMinute     int
	DefaultMaxStudentEdits   int
	OpenAIAPIKey             string
	OpenAIModel              string
	OpenAIImageSize          string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ATELIER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Atelier API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel_base", "atelier")
	v.SetDefault("cloudinary.folder", "atelier/gallery")
	v.SetDefault("gallery.cache_ttl", "1m")
	v.SetDefault("scheduler.max_concurrent", 20)
	v.SetDefault("scheduler.poll_interval", "100ms")
	v.SetDefault("generations.per_minute", 10)
	v.SetDefault("sessions.default_max_student_edits", 3)

	ttlString := v.GetString("gallery.cache_ttl")
	if ttlString == "" {
		ttlString = "1m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid gallery cache ttl: %w", err)
	}

	pollString := v.GetString("scheduler.poll_interval")
	if pollString == "" {
		pollString = "100ms"
	}

	pollInterval, err := time.ParseDuration(pollString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid scheduler poll interval: %w", err)
	}

	cfg := Config{
		AppName:                  v.GetString("app.name"),
		AppEnv:                   v.GetString("app.env"),
		AppPort:                  v.GetString("app.port"),
		DatabaseURL:              v.GetString("database.url"),
		RedisURL:                 v.GetString("redis.url"),
		NATSURL:                  v.GetString("nats.url"),
		EventChannelBase:         v.GetString("events.channel_base"),
		JWTSecret:                v.GetString("jwt.secret"),
		CloudinaryCloudName:      v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:         v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:      v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:   v.GetString("cloudinary.folder"),
		GalleryCacheTTL:          ttl,
		MaxConcurrentGenerations: v.GetInt("scheduler.max_concurrent"),
		SchedulerPollInterval:    pollInterval,
		GenerationsPerMinute:     v.GetInt("generations.per_minute"),
		DefaultMaxStudentEdits:   v.GetInt("sessions.default_max_student_edits"),
		OpenAIAPIKey:             v.GetString("openai_api_key"),
		OpenAIModel:              v.GetString("openai.model"),
		OpenAIImageSize:          v.GetString("openai.image_size"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 20
	}

	if cfg.DefaultMaxStudentEdits <= 0 {
		cfg.DefaultMaxStudentEdits = 3
	}

	return cfg, nil
}
