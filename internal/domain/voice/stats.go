package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/voicetally/internal/repository"
)

// Stats answers voice time queries from the lifetime totals and daily buckets.
type Stats struct {
	reader StatsReader
	logger *slog.Logger
	settings
}

// NewStats creates a new Stats service.
func NewStats(reader StatsReader, logger *slog.Logger, opts ...Option) *Stats {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stats{
		reader:   reader,
		logger:   logger,
		settings: newSettings(opts),
	}
}

// GetUserStats returns lifetime and period voice time for one member, or
// ErrNoStats if the member has never been tracked.
func (s *Stats) GetUserStats(ctx context.Context, guildID, userID string, opts StatsOptions) (*UserStats, error) {
	if guildID == "" || userID == "" {
		return nil, ErrInvalidInput
	}
	if opts.Days != nil && *opts.Days < 0 {
		return nil, ErrInvalidInput
	}

	totals, err := s.reader.GetTotals(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoStats
		}
		return nil, fmt.Errorf("loading totals: %w", err)
	}

	stats := &UserStats{
		GuildID:            guildID,
		UserID:             userID,
		Days:               opts.Days,
		TotalVoiceSeconds:  totals.TotalVoiceSeconds,
		PeriodVoiceSeconds: totals.TotalVoiceSeconds,
		TotalMessages:      totals.TotalMessages,
		PeriodMessages:     totals.TotalMessages,
	}
	if opts.Days == nil {
		return stats, nil
	}

	voiceSeconds, messages, err := s.reader.SumPeriod(ctx, guildID, userID, s.periodStart(*opts.Days))
	if err != nil {
		return nil, fmt.Errorf("loading period totals: %w", err)
	}
	stats.PeriodVoiceSeconds = voiceSeconds
	stats.PeriodMessages = messages
	return stats, nil
}

// GetAllUsersStats ranks every tracked member of a guild by period voice
// time, then period messages.
func (s *Stats) GetAllUsersStats(ctx context.Context, guildID string, opts StatsOptions) ([]RankedStats, error) {
	if guildID == "" {
		return nil, ErrInvalidInput
	}
	if opts.Days != nil && *opts.Days < 0 {
		return nil, ErrInvalidInput
	}

	listOpts := ListStatsOptions{Limit: opts.Limit}
	if opts.Days != nil {
		since := s.periodStart(*opts.Days)
		listOpts.Since = &since
	}

	rows, err := s.reader.ListStats(ctx, guildID, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}

	ranked := make([]RankedStats, 0, len(rows))
	for i, row := range rows {
		row.Days = opts.Days
		ranked = append(ranked, RankedStats{Rank: i + 1, UserStats: row})
	}
	return ranked, nil
}

// periodStart is the first day counted by a "last N days" query.
func (s *Stats) periodStart(days int) time.Time {
	return StartOfDay(s.clock.Now()).AddDate(0, 0, -days)
}
