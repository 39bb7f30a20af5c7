// Package scheduler runs voice maintenance on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/quartz"
	"github.com/rpggio/voicetally/internal/domain/voice"
)

// DefaultInterval is how often maintenance runs.
const DefaultInterval = 24 * time.Hour

// Job is the periodic maintenance work.
type Job interface {
	Tick(ctx context.Context) (voice.TickReport, error)
}

// Scheduler invokes a Job once per interval until its context ends. The first
// run happens one interval after Run is called; startup cleanup is separate.
type Scheduler struct {
	job      Job
	interval time.Duration
	clock    quartz.Clock
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock that drives the ticker.
func WithClock(clock quartz.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New creates a Scheduler for job.
func New(job Job, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{
		job:      job,
		interval: DefaultInterval,
		clock:    quartz.NewReal(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is canceled. A failed run is logged and the next one
// still happens on schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduling voice maintenance", "interval", s.interval)

	w := s.clock.TickerFunc(ctx, s.interval, func() error {
		report, err := s.job.Tick(ctx)
		if err != nil {
			s.logger.Error("voice maintenance failed", "run_id", report.RunID, "error", err)
		}
		return nil
	}, "scheduler", "maintenance")

	err := w.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
