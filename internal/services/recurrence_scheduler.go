package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
)

// RecurrenceSchedulerConfig holds configuration for the recurrence scheduler
type RecurrenceSchedulerConfig struct {
	// Interval is how often a sweep runs (default: 1h)
	Interval time.Duration

	// Clock supplies the time each sweep runs at (default: time.Now)
	Clock func() time.Time
}

// DefaultRecurrenceSchedulerConfig returns sensible defaults
func DefaultRecurrenceSchedulerConfig() RecurrenceSchedulerConfig {
	return RecurrenceSchedulerConfig{
		Interval: time.Hour,
		Clock:    time.Now,
	}
}

// sweeper is what the scheduler triggers. *RecurrenceGenerator implements it.
type sweeper interface {
	Generate(ctx context.Context, now time.Time) (RecurrenceResult, error)
}

// RecurrenceScheduler triggers a RecurrenceGenerator sweep on start and then
// on every interval tick. It only decides when; the generator decides what.
type RecurrenceScheduler struct {
	generator sweeper
	config    RecurrenceSchedulerConfig
	logger    *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecurrenceScheduler creates a new scheduler
func NewRecurrenceScheduler(generator *RecurrenceGenerator, config RecurrenceSchedulerConfig, logger *log.Logger) *RecurrenceScheduler {
	return newRecurrenceScheduler(generator, config, logger)
}

func newRecurrenceScheduler(generator sweeper, config RecurrenceSchedulerConfig, logger *log.Logger) *RecurrenceScheduler {
	def := DefaultRecurrenceSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Clock == nil {
		config.Clock = def.Clock
	}
	return &RecurrenceScheduler{
		generator: generator,
		config:    config,
		logger:    logger.WithComponent(log.ComponentRecurrence),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *RecurrenceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("recurrence scheduler is already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Recurrence scheduler started",
		"interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the sweep in progress to finish.
func (s *RecurrenceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Recurrence scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Recurrence scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *RecurrenceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until the loop exits, either after Stop or when ctx passed to
// Start is cancelled.
func (s *RecurrenceScheduler) Wait() {
	s.mu.Lock()
	doneCh := s.doneCh
	s.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

// runLoop clears running on exit, so a loop ended by ctx can be started again.
func (s *RecurrenceScheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RecurrenceScheduler) sweep(ctx context.Context) {
	start := time.Now()
	now := s.config.Clock()
	result, err := s.generator.Generate(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Recurrence sweep failed",
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return
	}
	s.logger.InfoContext(ctx, "Recurrence sweep finished",
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())
}
