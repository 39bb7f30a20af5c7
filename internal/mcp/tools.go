package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/voicetally/internal/domain/voice"
)

type tools struct {
	stats       StatsService
	authEnabled bool
}

func registerTools(server *sdkmcp.Server, t *tools) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_voice_stats",
		Description: "Get lifetime and recent voice time for one guild member",
	}, t.getVoiceStats)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_voice_leaderboard",
		Description: "Rank guild members by voice time over a period",
	}, t.getVoiceLeaderboard)
}

func (t *tools) getVoiceStats(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetVoiceStatsParams) (*sdkmcp.CallToolResult, VoiceStatsResponse, error) {
	if !t.allowed(ctx, in.GuildID) {
		return nil, VoiceStatsResponse{}, toolError(errForbidden)
	}

	stats, err := t.stats.GetUserStats(ctx, in.GuildID, in.UserID, voice.StatsOptions{Days: in.Days})
	if err != nil {
		return nil, VoiceStatsResponse{}, toolError(err)
	}
	return nil, toStatsResponse(stats), nil
}

func (t *tools) getVoiceLeaderboard(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetVoiceLeaderboardParams) (*sdkmcp.CallToolResult, LeaderboardResponse, error) {
	if !t.allowed(ctx, in.GuildID) {
		return nil, LeaderboardResponse{}, toolError(errForbidden)
	}
	if in.Limit < 0 {
		return nil, LeaderboardResponse{}, toolError(voice.ErrInvalidInput)
	}

	ranked, err := t.stats.GetAllUsersStats(ctx, in.GuildID, voice.StatsOptions{Days: in.Days, Limit: in.Limit})
	if err != nil {
		return nil, LeaderboardResponse{}, toolError(err)
	}
	return nil, toLeaderboardResponse(in.GuildID, in.Days, ranked), nil
}

func (t *tools) allowed(ctx context.Context, guildID string) bool {
	if !t.authEnabled {
		return true
	}
	return getGuildID(ctx) == guildID
}
