package mocks

import (
	"context"
	"time"

	"github.com/rpggio/voicetally/internal/domain/voice"
	"github.com/stretchr/testify/mock"
)

// SessionStore is a mock for voice.SessionStore. WithTx hands Tx to the
// callback after recording the call.
type SessionStore struct {
	mock.Mock
	Tx *Tx
}

func (m *SessionStore) WithTx(ctx context.Context, fn func(tx voice.Tx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

func (m *SessionStore) ListOpen(ctx context.Context, opts voice.ListOpenOptions) ([]voice.Session, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]voice.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStore) Purge(ctx context.Context, cutoff time.Time) (voice.PurgeResult, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(voice.PurgeResult), args.Error(1)
}

// Tx is a mock for voice.Tx.
type Tx struct {
	mock.Mock
}

func (m *Tx) FindOpen(ctx context.Context, guildID, userID string) (*voice.Session, error) {
	args := m.Called(ctx, guildID, userID)
	if sess, ok := args.Get(0).(*voice.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Tx) Insert(ctx context.Context, sess *voice.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *Tx) Close(ctx context.Context, id int64, leftAt time.Time, duration int64) error {
	args := m.Called(ctx, id, leftAt, duration)
	return args.Error(0)
}

func (m *Tx) AddDaily(ctx context.Context, guildID, userID string, day time.Time, seconds int64) error {
	args := m.Called(ctx, guildID, userID, day, seconds)
	return args.Error(0)
}

func (m *Tx) AddLifetime(ctx context.Context, guildID, userID string, seconds int64) error {
	args := m.Called(ctx, guildID, userID, seconds)
	return args.Error(0)
}

// StatsReader is a mock for voice.StatsReader.
type StatsReader struct {
	mock.Mock
}

func (m *StatsReader) GetTotals(ctx context.Context, guildID, userID string) (*voice.Totals, error) {
	args := m.Called(ctx, guildID, userID)
	if totals, ok := args.Get(0).(*voice.Totals); ok {
		return totals, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StatsReader) SumPeriod(ctx context.Context, guildID, userID string, since time.Time) (int64, int64, error) {
	args := m.Called(ctx, guildID, userID, since)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *StatsReader) ListStats(ctx context.Context, guildID string, opts voice.ListStatsOptions) ([]voice.UserStats, error) {
	args := m.Called(ctx, guildID, opts)
	if list, ok := args.Get(0).([]voice.UserStats); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
