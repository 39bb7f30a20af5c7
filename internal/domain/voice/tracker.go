package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/voicetally/internal/repository"
)

// Tracker opens and closes voice sessions and routes closed time into the
// lifetime and daily totals.
type Tracker struct {
	store  SessionStore
	logger *slog.Logger
	settings
}

var _ PresenceEventSink = (*Tracker)(nil)

// NewTracker creates a new Tracker.
func NewTracker(store SessionStore, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		store:    store,
		logger:   logger,
		settings: newSettings(opts),
	}
}

// Start opens a session for the member and returns its id. If a session is
// already open, its id is returned unchanged.
func (t *Tracker) Start(ctx context.Context, guildID, userID string) (int64, error) {
	if guildID == "" || userID == "" {
		return 0, ErrInvalidInput
	}

	var (
		id      int64
		created bool
	)
	err := t.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.FindOpen(ctx, guildID, userID)
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("loading open session: %w", err)
		}

		sess := &Session{
			GuildID:  guildID,
			UserID:   userID,
			JoinedAt: t.now(),
		}
		if err := tx.Insert(ctx, sess); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("creating session: %w", err)
			}
			// Lost the race against another start for the same member.
			existing, err := tx.FindOpen(ctx, guildID, userID)
			if err != nil {
				return fmt.Errorf("loading open session: %w", err)
			}
			id = existing.ID
			return nil
		}
		id = sess.ID
		created = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	if created {
		t.metrics.opened()
		t.logger.Debug("voice session opened", "guild_id", guildID, "user_id", userID, "session_id", id)
	}
	return id, nil
}

// End closes the member's open session. It returns false with a nil error
// when there is nothing to close.
func (t *Tracker) End(ctx context.Context, guildID, userID string) (bool, error) {
	if guildID == "" || userID == "" {
		return false, ErrInvalidInput
	}

	var (
		closed   bool
		duration int64
	)
	err := t.store.WithTx(ctx, func(tx Tx) error {
		sess, err := tx.FindOpen(ctx, guildID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading open session: %w", err)
		}

		leftAt := t.now()
		duration = wholeSeconds(leftAt.Sub(sess.JoinedAt))
		if duration < 0 {
			return ErrNegativeDuration
		}

		closed, err = t.closeInTx(ctx, tx, sess, leftAt, duration)
		return err
	})
	if err != nil {
		t.metrics.rejected(reasonLeave, errorType(err))
		return false, err
	}

	if closed {
		t.metrics.closed(reasonLeave)
		t.logger.Debug("voice session closed", "guild_id", guildID, "user_id", userID, "duration_seconds", duration)
	}
	return closed, nil
}

// OnJoin implements PresenceEventSink.
func (t *Tracker) OnJoin(ctx context.Context, guildID, userID string) {
	if _, err := t.Start(ctx, guildID, userID); err != nil {
		t.logger.Error("failed to start voice session", "guild_id", guildID, "user_id", userID, "error", err)
	}
}

// OnLeave implements PresenceEventSink.
func (t *Tracker) OnLeave(ctx context.Context, guildID, userID string) {
	closed, err := t.End(ctx, guildID, userID)
	switch {
	case errors.Is(err, ErrNegativeDuration):
		t.logger.Warn("rejected voice session close", "guild_id", guildID, "user_id", userID, "error", err)
	case err != nil:
		t.logger.Error("failed to end voice session", "guild_id", guildID, "user_id", userID, "error", err)
	case !closed:
		t.logger.Debug("no open voice session to close", "guild_id", guildID, "user_id", userID)
	}
}

// closeInTx marks sess closed and adds its duration to the lifetime total and
// the daily buckets. It reports false when the session was already closed.
func (t *Tracker) closeInTx(ctx context.Context, tx Tx, sess *Session, leftAt time.Time, duration int64) (bool, error) {
	if err := tx.Close(ctx, sess.ID, leftAt, duration); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("closing session: %w", err)
	}

	if err := tx.AddLifetime(ctx, sess.GuildID, sess.UserID, duration); err != nil {
		return false, fmt.Errorf("adding lifetime voice time: %w", err)
	}

	segments := SplitByDay(sess.JoinedAt, leftAt)
	for _, seg := range segments {
		if err := tx.AddDaily(ctx, sess.GuildID, sess.UserID, seg.Day, seg.Seconds); err != nil {
			return false, fmt.Errorf("adding daily voice time: %w", err)
		}
	}

	if gap := sumSegments(segments) - duration; gap > t.splitTolerance || -gap > t.splitTolerance {
		t.metrics.mismatch()
		t.logger.Warn("daily voice split does not match session duration",
			"session_id", sess.ID,
			"guild_id", sess.GuildID,
			"user_id", sess.UserID,
			"duration_seconds", duration,
			"split_seconds", duration+gap,
		)
	}

	return true, nil
}

func (t *Tracker) now() time.Time {
	return t.clock.Now().UTC().Truncate(time.Second)
}

func wholeSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		secs--
	}
	return secs
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNegativeDuration):
		return "negative_duration"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "storage"
	}
}
