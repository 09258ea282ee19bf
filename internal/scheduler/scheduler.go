package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/atelier-go-api/internal/models"
	"github.com/noah-isme/atelier-go-api/internal/observability"
	"github.com/noah-isme/atelier-go-api/pkg/ai"
)

const (
	defaultMaxConcurrent = 20
	defaultPollInterval  = 100 * time.Millisecond
)

// ResultStore records terminal generation outcomes on submission rows.
type ResultStore interface {
	MarkSuccess(ctx context.Context, id uint, imageData []byte, mimeType string) error
	MarkError(ctx context.Context, id uint, message string) error
}

// StatusPublisher is notified after a submission reaches a terminal status.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, submissionID uint, status, message string)
}

// Job describes one queued generation request.
type Job struct {
	SubmissionID    uint
	Prompt          string
	BaseImage       []byte
	ReferenceImages [][]byte
	Size            string
}

// Config tunes the scheduler.
type Config struct {
	// MaxConcurrent caps how many generation calls run at once, process-wide.
	MaxConcurrent int
	// PollInterval is how long the drain loop sleeps between dispatch rounds.
	PollInterval time.Duration
}

// Scheduler executes image-generation jobs with a bounded number of concurrent
// provider calls. Jobs are held only in memory: a process restart discards all
// pending and in-flight work, and any submission left PENDING at that point
// stays PENDING until the caller resubmits.
type Scheduler struct {
	store     ResultStore
	generator ai.ImageGenerator
	publisher StatusPublisher
	cfg       Config
	logger    zerolog.Logger

	mu       sync.Mutex
	pending  []Job
	inflight map[uint]struct{}
	active   int
	running  bool
}

// New constructs a scheduler. The publisher may be nil.
func New(store ResultStore, generator ai.ImageGenerator, publisher StatusPublisher, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Scheduler{
		store:     store,
		generator: generator,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "generation_scheduler").Logger(),
		inflight:  make(map[uint]struct{}),
	}
}

// Enqueue appends a job and wakes the drain loop if it is idle. It never
// blocks; the caller has already recorded the submission as PENDING.
func (s *Scheduler) Enqueue(job Job) {
	s.mu.Lock()
	s.pending = append(s.pending, job)
	observability.SchedulerQueueDepth().Set(float64(len(s.pending)))
	start := !s.running
	if start {
		s.running = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
}

// PendingCount reports how many jobs are queued but not yet dispatched.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ActiveCount reports how many generation calls are currently running.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// WaitIdle blocks until every queued and in-flight job has finished, or the
// context is done. Used by graceful shutdown and by tests.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		idle := len(s.pending) == 0 && s.active == 0
		s.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain dispatches pending jobs until both the queue and the in-flight set are
// empty, then exits; the next Enqueue restarts it.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		for s.active < s.cfg.MaxConcurrent && len(s.pending) > 0 {
			job := s.pending[0]
			s.pending = s.pending[1:]
			observability.SchedulerQueueDepth().Set(float64(len(s.pending)))

			if _, exists := s.inflight[job.SubmissionID]; exists {
				// Already being generated; a duplicate enqueue must not
				// trigger a second provider call.
				s.logger.Debug().Uint("submission_id", job.SubmissionID).Msg("skipping duplicate job")
				continue
			}

			s.inflight[job.SubmissionID] = struct{}{}
			s.active++
			observability.SchedulerActiveWorkers().Set(float64(s.active))
			go s.run(job)
		}

		if s.active == 0 && len(s.pending) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		time.Sleep(s.cfg.PollInterval)
	}
}

func (s *Scheduler) run(job Job) {
	defer s.finish(job.SubmissionID)

	// Jobs run to completion even if the originating session is deactivated
	// mid-flight, so the work is not bound to a request context.
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Uint("submission_id", job.SubmissionID).Interface("panic", r).Msg("generation job panicked")
			s.record(ctx, job.SubmissionID, models.SubmissionStatusError, fmt.Sprintf("generation failed: %v", r), nil, "")
		}
	}()

	result, err := s.generator.Generate(ctx, ai.GenerateInput{
		Prompt:          job.Prompt,
		BaseImage:       job.BaseImage,
		ReferenceImages: job.ReferenceImages,
		Size:            job.Size,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", job.SubmissionID).Msg("generation failed")
		s.record(ctx, job.SubmissionID, models.SubmissionStatusError, err.Error(), nil, "")
		return
	}

	s.record(ctx, job.SubmissionID, models.SubmissionStatusSuccess, "", result.ImageBytes, result.MimeType)
}

func (s *Scheduler) record(ctx context.Context, submissionID uint, status, message string, imageData []byte, mimeType string) {
	var err error
	if status == models.SubmissionStatusSuccess {
		err = s.store.MarkSuccess(ctx, submissionID, imageData, mimeType)
	} else {
		err = s.store.MarkError(ctx, submissionID, message)
	}
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Str("status", status).Msg("failed to record generation outcome")
		return
	}

	observability.SchedulerJobsProcessed().WithLabelValues(status).Inc()

	if s.publisher != nil {
		s.publisher.PublishStatus(ctx, submissionID, status, message)
	}
}

func (s *Scheduler) finish(submissionID uint) {
	s.mu.Lock()
	delete(s.inflight, submissionID)
	s.active--
	observability.SchedulerActiveWorkers().Set(float64(s.active))
	s.mu.Unlock()
}
