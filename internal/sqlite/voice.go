package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/voicetally/internal/domain/voice"
	"github.com/rpggio/voicetally/internal/repository"
)

// VoiceRepository implements voice.SessionStore and voice.StatsReader for SQLite
type VoiceRepository struct {
	db *DB
}

var (
	_ voice.SessionStore = (*VoiceRepository)(nil)
	_ voice.StatsReader  = (*VoiceRepository)(nil)
)

// NewVoiceRepository creates a new VoiceRepository
func NewVoiceRepository(db *DB) *VoiceRepository {
	return &VoiceRepository{db: db}
}

// WithTx runs fn inside one transaction and rolls back on any error
func (r *VoiceRepository) WithTx(ctx context.Context, fn func(tx voice.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&voiceTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListOpen returns open sessions, oldest first
func (r *VoiceRepository) ListOpen(ctx context.Context, opts voice.ListOpenOptions) ([]voice.Session, error) {
	query := `
		SELECT id, guild_id, user_id, join_time
		FROM voice_sessions
		WHERE leave_time IS NULL
	`
	args := []interface{}{}
	if opts.JoinedBefore != nil {
		query += " AND join_time < ?"
		args = append(args, opts.JoinedBefore.Unix())
	}
	query += " ORDER BY join_time ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	defer rows.Close()

	var sessions []voice.Session
	for rows.Next() {
		var sess voice.Session
		var joinTime int64
		if err := rows.Scan(&sess.ID, &sess.GuildID, &sess.UserID, &joinTime); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.JoinedAt = fromUnix(joinTime)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetSession retrieves a session by ID
func (r *VoiceRepository) GetSession(ctx context.Context, id int64) (*voice.Session, error) {
	query := `
		SELECT id, guild_id, user_id, join_time, leave_time, duration_seconds
		FROM voice_sessions
		WHERE id = ?
	`

	var sess voice.Session
	var joinTime int64
	var leaveTime, duration sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID,
		&sess.GuildID,
		&sess.UserID,
		&joinTime,
		&leaveTime,
		&duration,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.JoinedAt = fromUnix(joinTime)
	if leaveTime.Valid {
		left := fromUnix(leaveTime.Int64)
		sess.LeftAt = &left
	}
	if duration.Valid {
		sess.Duration = &duration.Int64
	}
	return &sess, nil
}

// Purge deletes closed sessions that joined before cutoff and daily buckets
// for days before cutoff. Lifetime totals are kept.
func (r *VoiceRepository) Purge(ctx context.Context, cutoff time.Time) (voice.PurgeResult, error) {
	var res voice.PurgeResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM voice_sessions WHERE leave_time IS NOT NULL AND join_time < ?`,
		cutoff.Unix())
	if err != nil {
		return res, fmt.Errorf("failed to purge sessions: %w", err)
	}
	sessions, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("failed to get rows affected: %w", err)
	}

	result, err = tx.ExecContext(ctx,
		`DELETE FROM voice_daily WHERE day < ?`,
		voice.StartOfDay(cutoff).Format(voice.DayFormat))
	if err != nil {
		return res, fmt.Errorf("failed to purge daily buckets: %w", err)
	}
	buckets, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit purge: %w", err)
	}

	return voice.PurgeResult{Sessions: sessions, Buckets: buckets}, nil
}

// GetTotals retrieves the lifetime counters of a member
func (r *VoiceRepository) GetTotals(ctx context.Context, guildID, userID string) (*voice.Totals, error) {
	query := `
		SELECT guild_id, user_id, total_messages, total_voice_seconds
		FROM voice_totals
		WHERE guild_id = ? AND user_id = ?
	`

	var totals voice.Totals
	err := r.db.QueryRowContext(ctx, query, guildID, userID).Scan(
		&totals.GuildID,
		&totals.UserID,
		&totals.TotalMessages,
		&totals.TotalVoiceSeconds,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get totals: %w", err)
	}

	return &totals, nil
}

// SumPeriod sums a member's daily buckets from since onwards
func (r *VoiceRepository) SumPeriod(ctx context.Context, guildID, userID string, since time.Time) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(voice_seconds), 0), COALESCE(SUM(message_count), 0)
		FROM voice_daily
		WHERE guild_id = ? AND user_id = ? AND day >= ?
	`

	var voiceSeconds, messages int64
	err := r.db.QueryRowContext(ctx, query, guildID, userID, since.UTC().Format(voice.DayFormat)).Scan(&voiceSeconds, &messages)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum daily buckets: %w", err)
	}

	return voiceSeconds, messages, nil
}

// ListStats returns every tracked member of a guild ordered by period voice
// time, then period messages
func (r *VoiceRepository) ListStats(ctx context.Context, guildID string, opts voice.ListStatsOptions) ([]voice.UserStats, error) {
	var (
		query string
		args  []interface{}
	)
	if opts.Since == nil {
		query = `
			SELECT guild_id, user_id, total_voice_seconds, total_voice_seconds AS period_voice,
			       total_messages, total_messages AS period_messages
			FROM voice_totals
			WHERE guild_id = ?
		`
		args = append(args, guildID)
	} else {
		query = `
			SELECT t.guild_id, t.user_id AS user_id, t.total_voice_seconds, COALESCE(d.voice, 0) AS period_voice,
			       t.total_messages, COALESCE(d.messages, 0) AS period_messages
			FROM voice_totals t
			LEFT JOIN (
				SELECT user_id, SUM(voice_seconds) AS voice, SUM(message_count) AS messages
				FROM voice_daily
				WHERE guild_id = ? AND day >= ?
				GROUP BY user_id
			) d ON d.user_id = t.user_id
			WHERE t.guild_id = ?
		`
		args = append(args, guildID, opts.Since.UTC().Format(voice.DayFormat), guildID)
	}

	query += " ORDER BY period_voice DESC, period_messages DESC, user_id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats: %w", err)
	}
	defer rows.Close()

	var stats []voice.UserStats
	for rows.Next() {
		var s voice.UserStats
		if err := rows.Scan(
			&s.GuildID,
			&s.UserID,
			&s.TotalVoiceSeconds,
			&s.PeriodVoiceSeconds,
			&s.TotalMessages,
			&s.PeriodMessages,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}

	return stats, nil
}

// voiceTx implements voice.Tx on a single SQL transaction
type voiceTx struct {
	tx *sql.Tx
}

func (t *voiceTx) FindOpen(ctx context.Context, guildID, userID string) (*voice.Session, error) {
	query := `
		SELECT id, guild_id, user_id, join_time
		FROM voice_sessions
		WHERE guild_id = ? AND user_id = ? AND leave_time IS NULL
		ORDER BY join_time DESC, id DESC
		LIMIT 1
	`

	var sess voice.Session
	var joinTime int64
	err := t.tx.QueryRowContext(ctx, query, guildID, userID).Scan(&sess.ID, &sess.GuildID, &sess.UserID, &joinTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}

	sess.JoinedAt = fromUnix(joinTime)
	return &sess, nil
}

func (t *voiceTx) Insert(ctx context.Context, sess *voice.Session) error {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO voice_sessions (guild_id, user_id, join_time) VALUES (?, ?, ?)`,
		sess.GuildID, sess.UserID, sess.JoinedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get session id: %w", err)
	}
	sess.ID = id
	return nil
}

func (t *voiceTx) Close(ctx context.Context, id int64, leftAt time.Time, duration int64) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE voice_sessions
		SET leave_time = ?, duration_seconds = ?
		WHERE id = ? AND leave_time IS NULL
	`, leftAt.Unix(), duration, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *voiceTx) AddDaily(ctx context.Context, guildID, userID string, day time.Time, seconds int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO voice_daily (guild_id, user_id, day, voice_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id, day) DO UPDATE SET voice_seconds = voice_daily.voice_seconds + excluded.voice_seconds
	`, guildID, userID, day.UTC().Format(voice.DayFormat), seconds)
	if err != nil {
		return fmt.Errorf("failed to add daily voice seconds: %w", err)
	}
	return nil
}

func (t *voiceTx) AddLifetime(ctx context.Context, guildID, userID string, seconds int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO voice_totals (guild_id, user_id, total_voice_seconds)
		VALUES (?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET total_voice_seconds = voice_totals.total_voice_seconds + excluded.total_voice_seconds
	`, guildID, userID, seconds)
	if err != nil {
		return fmt.Errorf("failed to add lifetime voice seconds: %w", err)
	}
	return nil
}

func fromUnix(secs int64) time.Time {
	return time.Unix(secs, 0).UTC()
}
