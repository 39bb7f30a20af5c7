package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/voicetally/internal/domain/voice"
	"github.com/stretchr/testify/require"
)

type statsStub struct {
	userFn  func(context.Context, string, string, voice.StatsOptions) (*voice.UserStats, error)
	boardFn func(context.Context, string, voice.StatsOptions) ([]voice.RankedStats, error)
}

func (s statsStub) GetUserStats(ctx context.Context, guildID, userID string, opts voice.StatsOptions) (*voice.UserStats, error) {
	return s.userFn(ctx, guildID, userID, opts)
}

func (s statsStub) GetAllUsersStats(ctx context.Context, guildID string, opts voice.StatsOptions) ([]voice.RankedStats, error) {
	return s.boardFn(ctx, guildID, opts)
}

func connect(t *testing.T, stats StatsService) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(Config{Stats: stats, TransportMode: "stdio"})
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (*sdkmcp.CallToolResult, string) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return result, text.Text
}

func TestServer_ListTools(t *testing.T) {
	session := connect(t, statsStub{})

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	require.True(t, names["get_voice_stats"])
	require.True(t, names["get_voice_leaderboard"])
}

func TestServer_GetVoiceStats(t *testing.T) {
	var gotOpts voice.StatsOptions
	session := connect(t, statsStub{
		userFn: func(_ context.Context, guildID, userID string, opts voice.StatsOptions) (*voice.UserStats, error) {
			require.Equal(t, "g1", guildID)
			require.Equal(t, "u1", userID)
			gotOpts = opts
			return &voice.UserStats{
				GuildID:            guildID,
				UserID:             userID,
				Days:               opts.Days,
				TotalVoiceSeconds:  7200,
				PeriodVoiceSeconds: 1800,
			}, nil
		},
	})

	result, text := callText(t, session, "get_voice_stats", map[string]any{
		"guild_id": "g1",
		"user_id":  "u1",
		"days":     7,
	})
	require.False(t, result.IsError)
	require.NotNil(t, gotOpts.Days)
	require.Equal(t, 7, *gotOpts.Days)

	var resp VoiceStatsResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Equal(t, int64(7200), resp.TotalVoiceSeconds)
	require.Equal(t, int64(1800), resp.PeriodVoiceSeconds)
}

func TestServer_GetVoiceStats_NoData(t *testing.T) {
	session := connect(t, statsStub{
		userFn: func(context.Context, string, string, voice.StatsOptions) (*voice.UserStats, error) {
			return nil, voice.ErrNoStats
		},
	})

	result, text := callText(t, session, "get_voice_stats", map[string]any{"guild_id": "g1", "user_id": "u1"})
	require.True(t, result.IsError)
	require.Contains(t, text, "NO_DATA")
}

func TestServer_GetVoiceLeaderboard(t *testing.T) {
	session := connect(t, statsStub{
		boardFn: func(_ context.Context, guildID string, opts voice.StatsOptions) ([]voice.RankedStats, error) {
			require.Equal(t, 3, opts.Limit)
			return []voice.RankedStats{
				{Rank: 1, UserStats: voice.UserStats{GuildID: guildID, UserID: "b", PeriodVoiceSeconds: 50}},
				{Rank: 2, UserStats: voice.UserStats{GuildID: guildID, UserID: "a", PeriodVoiceSeconds: 10}},
			}, nil
		},
	})

	result, text := callText(t, session, "get_voice_leaderboard", map[string]any{"guild_id": "g1", "limit": 3})
	require.False(t, result.IsError)

	var resp LeaderboardResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Len(t, resp.Users, 2)
	require.Equal(t, "b", resp.Users[0].UserID)
	require.Equal(t, 2, resp.Users[1].Rank)
}

func TestTools_GuildScope(t *testing.T) {
	called := false
	tl := &tools{
		authEnabled: true,
		stats: statsStub{
			userFn: func(context.Context, string, string, voice.StatsOptions) (*voice.UserStats, error) {
				called = true
				return &voice.UserStats{}, nil
			},
		},
	}

	ctx := context.WithValue(context.Background(), guildIDKey, "g1")
	_, _, err := tl.getVoiceStats(ctx, nil, GetVoiceStatsParams{GuildID: "g2", UserID: "u1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "FORBIDDEN", apiErr.Code)
	require.False(t, called)

	_, _, err = tl.getVoiceStats(ctx, nil, GetVoiceStatsParams{GuildID: "g1", UserID: "u1"})
	require.NoError(t, err)
	require.True(t, called)
}

type mapResolver map[string]string

func (m mapResolver) ResolveGuild(_ context.Context, token string) (string, error) {
	guildID, ok := m[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return guildID, nil
}

func TestAuthMiddleware(t *testing.T) {
	var seen string
	next := func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		seen = getGuildID(ctx)
		return &sdkmcp.CallToolResult{}, nil
	}
	handler := authMiddleware(mapResolver{"secret": "g1"})(next)

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	_, err := handler(context.Background(), "tools/call", &sdkmcp.CallToolRequest{Extra: &sdkmcp.RequestExtra{Header: header}})
	require.NoError(t, err)
	require.Equal(t, "g1", seen)

	header.Set("Authorization", "Bearer wrong")
	_, err = handler(context.Background(), "tools/call", &sdkmcp.CallToolRequest{Extra: &sdkmcp.RequestExtra{Header: header}})
	require.ErrorContains(t, err, "unauthorized")

	_, err = handler(context.Background(), "tools/call", &sdkmcp.CallToolRequest{})
	require.ErrorContains(t, err, "missing headers")

	seen = ""
	_, err = handler(context.Background(), "initialize", &sdkmcp.InitializeRequest{})
	require.NoError(t, err)
	require.Empty(t, seen)
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Nil(t, MapError(errors.New("other")))
	require.Equal(t, "NO_DATA", MapError(voice.ErrNoStats).Code)
	require.Equal(t, "INVALID_INPUT", MapError(voice.ErrInvalidInput).Code)
}
