package recommend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubjectLister enumerates the subjects to analyze in one sweep.
// Typically backed by the workspace repository.
type SubjectLister func(ctx context.Context) ([]uuid.UUID, error)

// Scheduler periodically runs the engine over every subject, independent
// of the request path. A slow or failing analysis never delays quota
// checks, only the next sweep.
type Scheduler struct {
	engine     *Engine
	subjects   SubjectLister
	interval   time.Duration
	windowDays int
	log        *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the sweep interval, default 24h.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithWindowDays sets the trailing analysis window, default 90 days.
func WithWindowDays(days int) SchedulerOption {
	return func(s *Scheduler) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler creates a sweep scheduler over the given engine.
func NewScheduler(engine *Engine, subjects SubjectLister, opts ...SchedulerOption) *Scheduler {
	if engine == nil {
		panic("recommend: engine is required")
	}
	if subjects == nil {
		panic("recommend: subject lister is required")
	}

	s := &Scheduler{
		engine:     engine,
		subjects:   subjects,
		interval:   24 * time.Hour,
		windowDays: 90,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs sweeps until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-progress sweep to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
	})
}

// Sweep runs one analysis pass immediately. Exposed for on-demand runs
// and tests; Start calls it on every tick.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) {
	subjects, err := s.subjects(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "recommendation sweep: listing subjects failed", slog.Any("error", err))
		return
	}

	for _, subjectID := range subjects {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.engine.Analyze(ctx, subjectID, s.windowDays); err != nil {
			// One subject's failure must not starve the rest.
			s.log.ErrorContext(ctx, "recommendation analysis failed",
				slog.String("subject_id", subjectID.String()),
				slog.Any("error", err))
		}
	}
}
