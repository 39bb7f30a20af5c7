// Package testserver runs the full HTTP surface over an in-memory database
// with a controllable clock.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/voicetally/internal/domain/voice"
	"github.com/rpggio/voicetally/internal/mcp"
	"github.com/rpggio/voicetally/internal/sqlite"
	"github.com/rpggio/voicetally/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Clock   *quartz.Mock
	Tracker *voice.Tracker
	Token   string
	GuildID string

	apiKeys *sqlite.APIKeyRepository
}

func New(t *testing.T, token, guildID string, start time.Time) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	clock := quartz.NewMock(t)
	clock.Set(start)

	voiceRepo := sqlite.NewVoiceRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	registry := prometheus.NewRegistry()
	tracker := voice.NewTracker(voiceRepo, nil,
		voice.WithClock(clock),
		voice.WithMetrics(voice.NewMetrics(registry)),
	)
	stats := voice.NewStats(voiceRepo, nil, voice.WithClock(clock))

	mcpServer := mcp.NewServer(mcp.Config{
		Stats:         stats,
		Resolver:      apiKeys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		nil,
	)

	server := httptest.NewServer(transport.NewServer(transport.Config{
		Stats:    stats,
		Resolver: apiKeys,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MCP:      mcpHandler,
	}))

	ts := &TestServer{
		Server:  server,
		DB:      db,
		Clock:   clock,
		Tracker: tracker,
		Token:   token,
		GuildID: guildID,
		apiKeys: apiKeys,
	}

	require.NoError(t, ts.AddAPIKey(token, guildID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, guildID string) error {
	return ts.apiKeys.Create(context.Background(), token, guildID, "test")
}

// Play records one session for userID starting at the current mock time.
func (ts *TestServer) Play(t *testing.T, userID string, d time.Duration) {
	t.Helper()
	ctx := context.Background()
	_, err := ts.Tracker.Start(ctx, ts.GuildID, userID)
	require.NoError(t, err)
	ts.Clock.Advance(d)
	closed, err := ts.Tracker.End(ctx, ts.GuildID, userID)
	require.NoError(t, err)
	require.True(t, closed)
}
