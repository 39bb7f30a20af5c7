package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartupReport summarizes the cleanup run at process start.
type StartupReport struct {
	RunID   string `json:"run_id"`
	Hanging int    `json:"hanging"`
	Forced  int    `json:"forced"`
}

// TickReport summarizes one scheduled maintenance run.
type TickReport struct {
	RunID   string      `json:"run_id"`
	Hanging int         `json:"hanging"`
	Purged  PurgeResult `json:"purged"`
}

// CloseHanging closes every open session that has been open longer than
// maxAge. Each one is truncated at join+maxAge since its real end is unknown.
// It returns how many sessions were closed.
func (t *Tracker) CloseHanging(ctx context.Context, maxAge time.Duration) (int, error) {
	capSeconds := int64(maxAge / time.Second)
	if capSeconds <= 0 {
		return 0, ErrInvalidInput
	}

	cutoff := t.now().Add(-time.Duration(capSeconds) * time.Second)
	sessions, err := t.store.ListOpen(ctx, ListOpenOptions{JoinedBefore: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("listing hanging sessions: %w", err)
	}

	closed := 0
	for i := range sessions {
		sess := sessions[i]
		leftAt := sess.JoinedAt.Add(time.Duration(capSeconds) * time.Second)
		if t.recover(ctx, &sess, leftAt, capSeconds, reasonHanging) {
			closed++
		}
	}
	return closed, nil
}

// ForceCloseAll closes every remaining open session at the current time.
func (t *Tracker) ForceCloseAll(ctx context.Context) (int, error) {
	sessions, err := t.store.ListOpen(ctx, ListOpenOptions{})
	if err != nil {
		return 0, fmt.Errorf("listing open sessions: %w", err)
	}

	now := t.now()
	closed := 0
	for i := range sessions {
		sess := sessions[i]
		duration := wholeSeconds(now.Sub(sess.JoinedAt))
		if duration < 0 {
			t.metrics.rejected(reasonForced, errorType(ErrNegativeDuration))
			t.logger.Warn("skipping session with join time in the future",
				"session_id", sess.ID, "guild_id", sess.GuildID, "user_id", sess.UserID, "joined_at", sess.JoinedAt)
			continue
		}
		if t.recover(ctx, &sess, now, duration, reasonForced) {
			closed++
		}
	}
	return closed, nil
}

// Startup caps hanging sessions and then force-closes the rest, so that no
// session opened before the restart survives it.
func (t *Tracker) Startup(ctx context.Context) (StartupReport, error) {
	report := StartupReport{RunID: uuid.NewString()}

	hanging, err := t.CloseHanging(ctx, t.maxSessionAge)
	if err != nil {
		return report, fmt.Errorf("closing hanging sessions: %w", err)
	}
	report.Hanging = hanging

	forced, err := t.ForceCloseAll(ctx)
	if err != nil {
		return report, fmt.Errorf("force closing sessions: %w", err)
	}
	report.Forced = forced

	t.logger.Info("startup voice cleanup complete", "run_id", report.RunID, "hanging", hanging, "forced", forced)
	return report, nil
}

// Tick caps hanging sessions and purges rows older than the retention window.
func (t *Tracker) Tick(ctx context.Context) (TickReport, error) {
	report := TickReport{RunID: uuid.NewString()}

	var errs []error
	hanging, err := t.CloseHanging(ctx, t.maxSessionAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("closing hanging sessions: %w", err))
	}
	report.Hanging = hanging

	purged, err := t.store.Purge(ctx, t.now().Add(-t.retention))
	if err != nil {
		errs = append(errs, fmt.Errorf("purging old voice data: %w", err))
	}
	report.Purged = purged
	t.metrics.purged(purged)

	t.logger.Info("voice maintenance complete",
		"run_id", report.RunID,
		"hanging", hanging,
		"purged_sessions", purged.Sessions,
		"purged_buckets", purged.Buckets,
	)
	return report, errors.Join(errs...)
}

func (t *Tracker) recover(ctx context.Context, sess *Session, leftAt time.Time, duration int64, reason string) bool {
	var closed bool
	err := t.store.WithTx(ctx, func(tx Tx) error {
		var err error
		closed, err = t.closeInTx(ctx, tx, sess, leftAt, duration)
		return err
	})
	if err != nil {
		t.metrics.rejected(reason, errorType(err))
		t.logger.Warn("failed to recover voice session",
			"session_id", sess.ID, "guild_id", sess.GuildID, "user_id", sess.UserID, "reason", reason, "error", err)
		return false
	}
	if closed {
		t.metrics.closed(reason)
		t.logger.Info("recovered voice session",
			"session_id", sess.ID, "guild_id", sess.GuildID, "user_id", sess.UserID, "reason", reason, "duration_seconds", duration)
	}
	return closed
}
