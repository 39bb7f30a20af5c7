package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/voicetally/internal/domain/voice"
)

const serverInstructions = `voicetally records how long guild members spend in voice channels.
Use get_voice_stats for one member and get_voice_leaderboard to rank a guild.
Times are in seconds. "days" selects the last N UTC calendar days plus today; omit it for all time.`

// StatsService defines voice queries needed by MCP.
type StatsService interface {
	GetUserStats(ctx context.Context, guildID, userID string, opts voice.StatsOptions) (*voice.UserStats, error)
	GetAllUsersStats(ctx context.Context, guildID string, opts voice.StatsOptions) ([]voice.RankedStats, error)
}

// Config contains server configuration.
type Config struct {
	Stats         StatsService
	Resolver      GuildResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "voicetally",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	// Stdio is local only and never authenticates.
	authEnabled := cfg.AuthEnabled && cfg.TransportMode != "stdio" && cfg.Resolver != nil
	if authEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &tools{stats: cfg.Stats, authEnabled: authEnabled})

	return server
}
