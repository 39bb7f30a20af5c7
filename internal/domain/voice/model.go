package voice

import "time"

// Session is one contiguous interval of voice presence for a member.
type Session struct {
	ID       int64      `json:"id"`
	GuildID  string     `json:"guild_id"`
	UserID   string     `json:"user_id"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
	Duration *int64     `json:"duration_seconds,omitempty"`
}

// IsOpen reports whether the session has not been closed yet.
func (s Session) IsOpen() bool {
	return s.LeftAt == nil
}

// DaySegment is the share of a session attributed to one UTC calendar day.
type DaySegment struct {
	Day     time.Time `json:"day"`
	Seconds int64     `json:"seconds"`
}

// Totals holds the lifetime counters of a member.
type Totals struct {
	GuildID           string `json:"guild_id"`
	UserID            string `json:"user_id"`
	TotalMessages     int64  `json:"total_messages"`
	TotalVoiceSeconds int64  `json:"total_voice_seconds"`
}

// UserStats is the answer to a per-member stats query.
type UserStats struct {
	GuildID            string `json:"guild_id"`
	UserID             string `json:"user_id"`
	Days               *int   `json:"days,omitempty"`
	TotalVoiceSeconds  int64  `json:"total_voice_seconds"`
	PeriodVoiceSeconds int64  `json:"period_voice_seconds"`
	TotalMessages      int64  `json:"total_messages"`
	PeriodMessages     int64  `json:"period_messages"`
}

// RankedStats is one row of a guild leaderboard.
type RankedStats struct {
	Rank int `json:"rank"`
	UserStats
}

// PurgeResult reports what a retention sweep removed.
type PurgeResult struct {
	Sessions int64 `json:"sessions"`
	Buckets  int64 `json:"buckets"`
}
