package mcp

import "github.com/rpggio/voicetally/internal/domain/voice"

type GetVoiceStatsParams struct {
	GuildID string `json:"guild_id" jsonschema:"Discord guild (server) ID"`
	UserID  string `json:"user_id" jsonschema:"Discord user ID"`
	Days    *int   `json:"days,omitempty" jsonschema:"Count only the last N days plus today; omit for all time"`
}

type GetVoiceLeaderboardParams struct {
	GuildID string `json:"guild_id" jsonschema:"Discord guild (server) ID"`
	Days    *int   `json:"days,omitempty" jsonschema:"Rank by the last N days plus today; omit for all time"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of members to return"`
}

type VoiceStatsResponse struct {
	GuildID            string `json:"guild_id"`
	UserID             string `json:"user_id"`
	Days               *int   `json:"days,omitempty"`
	TotalVoiceSeconds  int64  `json:"total_voice_seconds"`
	PeriodVoiceSeconds int64  `json:"period_voice_seconds"`
	TotalMessages      int64  `json:"total_messages"`
	PeriodMessages     int64  `json:"period_messages"`
}

type LeaderboardEntry struct {
	Rank               int    `json:"rank"`
	UserID             string `json:"user_id"`
	TotalVoiceSeconds  int64  `json:"total_voice_seconds"`
	PeriodVoiceSeconds int64  `json:"period_voice_seconds"`
	TotalMessages      int64  `json:"total_messages"`
	PeriodMessages     int64  `json:"period_messages"`
}

type LeaderboardResponse struct {
	GuildID string             `json:"guild_id"`
	Days    *int               `json:"days,omitempty"`
	Users   []LeaderboardEntry `json:"users"`
}

func toStatsResponse(s *voice.UserStats) VoiceStatsResponse {
	return VoiceStatsResponse{
		GuildID:            s.GuildID,
		UserID:             s.UserID,
		Days:               s.Days,
		TotalVoiceSeconds:  s.TotalVoiceSeconds,
		PeriodVoiceSeconds: s.PeriodVoiceSeconds,
		TotalMessages:      s.TotalMessages,
		PeriodMessages:     s.PeriodMessages,
	}
}

func toLeaderboardResponse(guildID string, days *int, ranked []voice.RankedStats) LeaderboardResponse {
	users := make([]LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		users = append(users, LeaderboardEntry{
			Rank:               r.Rank,
			UserID:             r.UserID,
			TotalVoiceSeconds:  r.TotalVoiceSeconds,
			PeriodVoiceSeconds: r.PeriodVoiceSeconds,
			TotalMessages:      r.TotalMessages,
			PeriodMessages:     r.PeriodMessages,
		})
	}
	return LeaderboardResponse{GuildID: guildID, Days: days, Users: users}
}
