package voice

import (
	"time"

	"github.com/coder/quartz"
)

// ListOpenOptions filters open sessions.
type ListOpenOptions struct {
	JoinedBefore *time.Time
}

// ListStatsOptions controls a guild leaderboard read.
type ListStatsOptions struct {
	Since *time.Time
	Limit int
}

// StatsOptions controls the period of a stats query. A nil Days means all time.
type StatsOptions struct {
	Days  *int
	Limit int
}

const (
	// DefaultMaxSessionAge caps sessions closed by recovery.
	DefaultMaxSessionAge = 24 * time.Hour
	// DefaultRetention is how long sessions and daily buckets are kept.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultSplitTolerance is the allowed gap, in seconds, between a session
	// duration and the sum of its daily segments.
	DefaultSplitTolerance = 1
)

type settings struct {
	clock          quartz.Clock
	metrics        *Metrics
	maxSessionAge  time.Duration
	retention      time.Duration
	splitTolerance int64
}

func newSettings(opts []Option) settings {
	s := settings{
		clock:          quartz.NewReal(),
		maxSessionAge:  DefaultMaxSessionAge,
		retention:      DefaultRetention,
		splitTolerance: DefaultSplitTolerance,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a Tracker or Stats service.
type Option func(*settings)

// WithClock overrides the clock used for "now".
func WithClock(clock quartz.Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithMetrics records session counters on m.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithMaxSessionAge sets the cap used by Startup and Tick.
func WithMaxSessionAge(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.maxSessionAge = d
		}
	}
}

// WithRetention sets how far back Tick keeps sessions and buckets.
func WithRetention(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSplitTolerance sets the accepted mismatch between a duration and its daily split.
func WithSplitTolerance(seconds int64) Option {
	return func(s *settings) {
		if seconds >= 0 {
			s.splitTolerance = seconds
		}
	}
}
