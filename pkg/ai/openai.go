package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "atelier",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of image generation requests",
	}, []string{"model"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atelier",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed image generation requests",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI image generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	DefaultSize string
	Logger      zerolog.Logger
}

// OpenAIGenerator implements ImageGenerator against the OpenAI image API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = openai.CreateImageModelDallE3
	}

	if cfg.DefaultSize == "" {
		cfg.DefaultSize = openai.CreateImageSize1024x1024
	}

	tracer := otel.Tracer("github.com/noah-isme/atelier-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Generate sends the prompt to OpenAI and decodes the returned image payload.
func (g *OpenAIGenerator) Generate(parent context.Context, input GenerateInput) (GenerateResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate_image", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Bool("refinement", len(input.BaseImage) > 0),
	))
	defer span.End()

	size := input.Size
	if size == "" {
		size = g.cfg.DefaultSize
	}

	start := time.Now()
	request := openai.ImageRequest{
		Model:          g.cfg.Model,
		Prompt:         buildImagePrompt(input),
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}

	resp, err := g.client.CreateImage(ctx, request)
	duration := time.Since(start)
	generationDuration.WithLabelValues(g.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		generationFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GenerateResult{}, fmt.Errorf("openai generate image: %w", err)
	}

	if len(resp.Data) == 0 {
		err := fmt.Errorf("no image data returned from openai")
		generationFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GenerateResult{}, err
	}

	payload, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		generationFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GenerateResult{}, fmt.Errorf("decode image payload: %w", err)
	}

	if len(payload) == 0 {
		err := fmt.Errorf("empty image payload returned from openai")
		generationFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GenerateResult{}, err
	}

	return GenerateResult{
		ImageBytes: payload,
		MimeType:   mimetype.Detect(payload).String(),
	}, nil
}

// buildImagePrompt folds refinement context into the generation prompt. The
// image API is text-to-image only, so base and reference images steer the
// prompt rather than being uploaded.
func buildImagePrompt(input GenerateInput) string {
	builder := strings.Builder{}
	builder.WriteString(input.Prompt)

	if len(input.BaseImage) > 0 {
		builder.WriteString("\n\nThis is a refinement of an earlier image; keep the overall composition and apply the requested changes.")
	}
	if len(input.ReferenceImages) > 0 {
		builder.WriteString(fmt.Sprintf("\nThe student supplied %d reference image(s) for style guidance.", len(input.ReferenceImages)))
	}

	return builder.String()
}
