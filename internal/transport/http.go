package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/voicetally/internal/domain/voice"
)

// StatsService defines the voice queries served over HTTP.
type StatsService interface {
	GetUserStats(ctx context.Context, guildID, userID string, opts voice.StatsOptions) (*voice.UserStats, error)
	GetAllUsersStats(ctx context.Context, guildID string, opts voice.StatsOptions) ([]voice.RankedStats, error)
}

// Config wires the HTTP server.
type Config struct {
	Stats StatsService
	// Resolver enables bearer auth on the stats routes when non-nil.
	Resolver GuildResolver
	// Metrics is served at /metrics when non-nil.
	Metrics http.Handler
	// MCP is mounted at /mcp when non-nil.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	stats       StatsService
	authEnabled bool
	logger      *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	srv := &Server{
		stats:       cfg.Stats,
		authEnabled: cfg.Resolver != nil,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Route("/guilds/{guildID}/voice", func(r chi.Router) {
		if cfg.Resolver != nil {
			r.Use(AuthMiddleware(cfg.Resolver))
		}
		r.Get("/users/{userID}", srv.handleUserStats)
		r.Get("/leaderboard", srv.handleLeaderboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	userID := chi.URLParam(r, "userID")
	if !allowGuild(r.Context(), s.authEnabled, guildID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	days, err := optionalInt(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid days")
		return
	}

	stats, err := s.stats.GetUserStats(r.Context(), guildID, userID, voice.StatsOptions{Days: days})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if !allowGuild(r.Context(), s.authEnabled, guildID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	days, err := optionalInt(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid days")
		return
	}
	limit, err := optionalInt(r, "limit")
	if err != nil || (limit != nil && *limit < 0) {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	opts := voice.StatsOptions{Days: days}
	if limit != nil {
		opts.Limit = *limit
	}

	ranked, err := s.stats.GetAllUsersStats(r.Context(), guildID, opts)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"guild_id": guildID,
		"days":     days,
		"users":    ranked,
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, voice.ErrNoStats):
		writeError(w, http.StatusNotFound, "no data")
	case errors.Is(err, voice.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	default:
		s.logger.Error("stats request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
