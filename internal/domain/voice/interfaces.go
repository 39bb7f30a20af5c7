package voice

import (
	"context"
	"time"
)

// PresenceEventSink receives voice presence changes from the platform integration.
type PresenceEventSink interface {
	OnJoin(ctx context.Context, guildID, userID string)
	OnLeave(ctx context.Context, guildID, userID string)
}

// Tx is the set of writes available inside one store transaction.
type Tx interface {
	FindOpen(ctx context.Context, guildID, userID string) (*Session, error)
	Insert(ctx context.Context, sess *Session) error
	Close(ctx context.Context, id int64, leftAt time.Time, duration int64) error
	AddDaily(ctx context.Context, guildID, userID string, day time.Time, seconds int64) error
	AddLifetime(ctx context.Context, guildID, userID string, seconds int64) error
}

// SessionStore provides transactional persistence for sessions and their totals.
type SessionStore interface {
	// WithTx runs fn in a transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	ListOpen(ctx context.Context, opts ListOpenOptions) ([]Session, error)
	Purge(ctx context.Context, cutoff time.Time) (PurgeResult, error)
}

// StatsReader provides read access to lifetime totals and daily buckets.
type StatsReader interface {
	GetTotals(ctx context.Context, guildID, userID string) (*Totals, error)
	SumPeriod(ctx context.Context, guildID, userID string, since time.Time) (voiceSeconds, messages int64, err error)
	ListStats(ctx context.Context, guildID string, opts ListStatsOptions) ([]UserStats, error)
}
