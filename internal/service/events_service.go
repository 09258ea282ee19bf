package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/atelier-go-api/internal/dto"
	"github.com/noah-isme/atelier-go-api/internal/observability"
)

const eventBufferSize = 16

// EventsService fans submission status transitions out to subscribed clients.
// The scheduler publishes; websocket handlers subscribe. Redis and NATS carry
// events between nodes when configured; both are optional.
type EventsService interface {
	PublishStatus(ctx context.Context, submissionID uint, status, message string)
	Subscribe(submissionID uint) (<-chan dto.StatusEvent, func())
	Start(ctx context.Context)
}

type eventsService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	broker      *eventBroker
	nodeID      string
}

type statusEnvelope struct {
	Source string          `json:"source"`
	Event  dto.StatusEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

// NewEventsService constructs the status event fan-out service.
func NewEventsService(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventsService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":status"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".status"
	}

	return &eventsService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "events_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/atelier-go-api/internal/service/events"),
		broker:      &eventBroker{subscribers: make(map[uint]map[chan dto.StatusEvent]struct{})},
		nodeID:      uuid.NewString(),
	}
}

func (s *eventsService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// PublishStatus broadcasts the transition locally and, when configured,
// across nodes. It never fails the caller: the submission row already holds the
// authoritative outcome and polling remains the fallback.
func (s *eventsService) PublishStatus(ctx context.Context, submissionID uint, status, message string) {
	spanCtx, span := s.tracer.Start(ctx, "events.publish_status", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.String("submission.status", status),
	))
	defer span.End()

	event := dto.StatusEvent{
		SubmissionID: submissionID,
		Status:       status,
		ErrorMessage: message,
		OccurredAt:   time.Now().UTC(),
	}

	s.broker.broadcast(submissionID, event)
	observability.StatusEventsPublished().WithLabelValues(status).Inc()

	if err := s.publish(spanCtx, event); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to publish status event to broker")
	}
}

func (s *eventsService) Subscribe(submissionID uint) (<-chan dto.StatusEvent, func()) {
	channel := make(chan dto.StatusEvent, eventBufferSize)

	s.broker.subscribe(submissionID, channel)
	observability.EventStreamClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(submissionID, channel)
		observability.EventStreamClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *eventsService) publish(ctx context.Context, event dto.StatusEvent) error {
	envelope := statusEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *eventsService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("status event redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *eventsService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "atelier-status-events", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats status subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain status event nats subscription")
		}
	}()
}

func (s *eventsService) handleEnvelope(payload []byte) {
	var envelope statusEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid status event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	observability.StatusEventsPublished().WithLabelValues(envelope.Event.Status).Inc()
	s.broker.broadcast(envelope.Event.SubmissionID, envelope.Event)
}

type eventBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.StatusEvent]struct{}
}

func (b *eventBroker) subscribe(submissionID uint, ch chan dto.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[submissionID]; !exists {
		b.subscribers[submissionID] = make(map[chan dto.StatusEvent]struct{})
	}
	b.subscribers[submissionID][ch] = struct{}{}
}

func (b *eventBroker) unsubscribe(submissionID uint, ch chan dto.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[submissionID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, submissionID)
		}
	}
}

func (b *eventBroker) broadcast(submissionID uint, event dto.StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[submissionID]
	for ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
