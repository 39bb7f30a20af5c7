package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/voicetally/internal/config"
	"github.com/rpggio/voicetally/internal/discord"
	"github.com/rpggio/voicetally/internal/domain/voice"
	"github.com/rpggio/voicetally/internal/mcp"
	"github.com/rpggio/voicetally/internal/scheduler"
	"github.com/rpggio/voicetally/internal/sqlite"
	"github.com/rpggio/voicetally/internal/transport"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("voicetally stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	voiceRepo := sqlite.NewVoiceRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := voice.NewMetrics(registry)

	tracker := voice.NewTracker(voiceRepo, logger,
		voice.WithMetrics(metrics),
		voice.WithMaxSessionAge(cfg.Recovery.MaxSessionAge()),
		voice.WithRetention(cfg.Recovery.Retention()),
	)
	stats := voice.NewStats(voiceRepo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Nothing opened before this process started may stay open.
	if _, err := tracker.Startup(ctx); err != nil {
		return fmt.Errorf("startup cleanup: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Discord.Enabled {
		adapter, err := discord.New(cfg.Discord.Token, tracker, logger)
		if err != nil {
			return err
		}
		if err := adapter.Open(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("closing discord gateway")
			return adapter.Close()
		})
	}

	maintenance := scheduler.New(tracker, logger, scheduler.WithInterval(cfg.Recovery.TickInterval()))
	g.Go(func() error {
		return maintenance.Run(ctx)
	})

	mcpServer := mcp.NewServer(mcp.Config{
		Stats:         stats,
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		g.Go(func() error {
			logger.Info("starting stdio transport", "auth", "disabled")
			// Run blocks until stdin closes or ctx is canceled.
			err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
			stop()
			return err
		})
	} else {
		httpServer := newHTTPServer(cfg, logger, stats, apiKeys, registry, mcpServer)
		g.Go(func() error {
			logger.Info("server listening", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return shutdown(logger, httpServer)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newHTTPServer(cfg config.Config, logger *slog.Logger, stats transport.StatsService, keys transport.GuildResolver, registry *prometheus.Registry, mcpServer *sdkmcp.Server) *http.Server {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	routerCfg := transport.Config{
		Stats:   stats,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MCP:     mcpHandler,
		Logger:  logger,
	}
	if cfg.Auth.Enabled {
		routerCfg.Resolver = keys
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           transport.NewServer(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdown(logger *slog.Logger, server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
