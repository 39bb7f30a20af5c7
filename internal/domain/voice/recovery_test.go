package voice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/voicetally/internal/domain/voice"
	"github.com/rpggio/voicetally/internal/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTracker_CloseHanging_CapsDuration(t *testing.T) {
	ctx := context.Background()
	store, tx := newStore()
	cutoff := now.Add(-24 * time.Hour)
	joined := now.Add(-50 * time.Hour)

	store.On("ListOpen", ctx, voice.ListOpenOptions{JoinedBefore: &cutoff}).Return([]voice.Session{
		{ID: 1, GuildID: "g1", UserID: "u1", JoinedAt: joined},
		{ID: 2, GuildID: "g1", UserID: "u2", JoinedAt: joined},
	}, nil)
	store.On("WithTx", ctx).Return(nil)
	tx.On("Close", ctx, int64(1), joined.Add(24*time.Hour), int64(86400)).Return(nil)
	tx.On("Close", ctx, int64(2), joined.Add(24*time.Hour), int64(86400)).Return(repository.ErrNotFound)
	tx.On("AddLifetime", ctx, "g1", "u1", int64(86400)).Return(nil)
	tx.On("AddDaily", ctx, "g1", "u1", mock.Anything, mock.Anything).Return(nil)

	tracker := voice.NewTracker(store, nil, voice.WithClock(mockClock(t)))
	closed, err := tracker.CloseHanging(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	var split int64
	for _, call := range tx.Calls {
		if call.Method == "AddDaily" {
			split += call.Arguments.Get(4).(int64)
		}
	}
	require.Equal(t, int64(86400), split)
}

func TestTracker_CloseHanging_SkipsFailedSession(t *testing.T) {
	ctx := context.Background()
	store, tx := newStore()
	cutoff := now.Add(-24 * time.Hour)
	joined := now.Add(-30 * time.Hour)

	store.On("ListOpen", ctx, voice.ListOpenOptions{JoinedBefore: &cutoff}).Return([]voice.Session{
		{ID: 1, GuildID: "g1", UserID: "u1", JoinedAt: joined},
		{ID: 2, GuildID: "g1", UserID: "u2", JoinedAt: joined},
	}, nil)
	store.On("WithTx", ctx).Return(nil)
	tx.On("Close", ctx, int64(1), mock.Anything, mock.Anything).Return(errors.New("locked"))
	tx.On("Close", ctx, int64(2), mock.Anything, mock.Anything).Return(nil)
	tx.On("AddLifetime", ctx, "g1", "u2", int64(86400)).Return(nil)
	tx.On("AddDaily", ctx, "g1", "u2", mock.Anything, mock.Anything).Return(nil)

	tracker := voice.NewTracker(store, nil, voice.WithClock(mockClock(t)))
	closed, err := tracker.CloseHanging(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, closed)
}

func TestTracker_CloseHanging_InvalidCap(t *testing.T) {
	store, _ := newStore()
	tracker := voice.NewTracker(store, nil)

	_, err := tracker.CloseHanging(context.Background(), 0)
	require.ErrorIs(t, err, voice.ErrInvalidInput)

	_, err = tracker.CloseHanging(context.Background(), 500*time.Millisecond)
	require.ErrorIs(t, err, voice.ErrInvalidInput)
}

func TestTracker_ForceCloseAll(t *testing.T) {
	ctx := context.Background()
	store, tx := newStore()

	store.On("ListOpen", ctx, voice.ListOpenOptions{}).Return([]voice.Session{
		{ID: 1, GuildID: "g1", UserID: "u1", JoinedAt: now.Add(-90 * time.Minute)},
		{ID: 2, GuildID: "g1", UserID: "u2", JoinedAt: now.Add(time.Minute)},
	}, nil)
	store.On("WithTx", ctx).Return(nil)
	tx.On("Close", ctx, int64(1), now, int64(5400)).Return(nil)
	tx.On("AddLifetime", ctx, "g1", "u1", int64(5400)).Return(nil)
	tx.On("AddDaily", ctx, "g1", "u1", day(2024, 3, 10), int64(1800)).Return(nil)
	tx.On("AddDaily", ctx, "g1", "u1", day(2024, 3, 11), int64(3600)).Return(nil)

	tracker := voice.NewTracker(store, nil, voice.WithClock(mockClock(t)))
	closed, err := tracker.ForceCloseAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)
	tx.AssertExpectations(t)
	tx.AssertNotCalled(t, "Close", ctx, int64(2), mock.Anything, mock.Anything)
}

func TestTracker_Startup(t *testing.T) {
	ctx := context.Background()
	store, tx := newStore()
	cutoff := now.Add(-24 * time.Hour)

	store.On("ListOpen", ctx, voice.ListOpenOptions{JoinedBefore: &cutoff}).Return([]voice.Session{}, nil)
	store.On("ListOpen", ctx, voice.ListOpenOptions{}).Return([]voice.Session{
		{ID: 4, GuildID: "g1", UserID: "u1", JoinedAt: now.Add(-time.Minute)},
	}, nil)
	store.On("WithTx", ctx).Return(nil)
	tx.On("Close", ctx, int64(4), now, int64(60)).Return(nil)
	tx.On("AddLifetime", ctx, "g1", "u1", int64(60)).Return(nil)
	tx.On("AddDaily", ctx, "g1", "u1", day(2024, 3, 11), int64(60)).Return(nil)

	tracker := voice.NewTracker(store, nil, voice.WithClock(mockClock(t)))
	report, err := tracker.Startup(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Zero(t, report.Hanging)
	require.Equal(t, 1, report.Forced)
}

func TestTracker_Startup_AbortsWhenHangingFails(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	boom := errors.New("database is locked")

	store.On("ListOpen", ctx, mock.Anything).Return(nil, boom).Once()

	tracker := voice.NewTracker(store, nil, voice.WithClock(mockClock(t)))
	_, err := tracker.Startup(ctx)
	require.ErrorIs(t, err, boom)
	store.AssertNumberOfCalls(t, "ListOpen", 1)
}

func TestTracker_Tick(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	cutoff := now.Add(-12 * time.Hour)

	store.On("ListOpen", ctx, voice.ListOpenOptions{JoinedBefore: &cutoff}).Return([]voice.Session{}, nil)
	store.On("Purge", ctx, now.Add(-7*24*time.Hour)).Return(voice.PurgeResult{Sessions: 3, Buckets: 5}, nil)

	tracker := voice.NewTracker(store, nil,
		voice.WithClock(mockClock(t)),
		voice.WithMaxSessionAge(12*time.Hour),
		voice.WithRetention(7*24*time.Hour),
	)
	report, err := tracker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, voice.PurgeResult{Sessions: 3, Buckets: 5}, report.Purged)
}

func TestTracker_Tick_JoinsErrors(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	listErr := errors.New("list failed")
	purgeErr := errors.New("purge failed")

	store.On("ListOpen", ctx, mock.Anything).Return(nil, listErr)
	store.On("Purge", ctx, mock.Anything).Return(voice.PurgeResult{}, purgeErr)

	tracker := voice.NewTracker(store, nil, voice.WithClock(mockClock(t)))
	_, err := tracker.Tick(ctx)
	require.ErrorIs(t, err, listErr)
	require.ErrorIs(t, err, purgeErr)
}
