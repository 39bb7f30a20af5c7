package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type guildKey struct{}

// GuildResolver resolves the guild an API key is scoped to.
type GuildResolver interface {
	ResolveGuild(ctx context.Context, token string) (string, error)
}

// GuildFromContext returns the authorized guild ID from context, if present.
func GuildFromContext(ctx context.Context) (string, bool) {
	guildID, ok := ctx.Value(guildKey{}).(string)
	return guildID, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver GuildResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			guildID, err := resolver.ResolveGuild(r.Context(), token)
			if err != nil || guildID == "" {
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), guildKey{}, guildID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// allowGuild reports whether the request may read guildID. Requests without
// an authorized guild in context are only allowed when auth is disabled.
func allowGuild(ctx context.Context, authEnabled bool, guildID string) bool {
	if !authEnabled {
		return true
	}
	scoped, ok := GuildFromContext(ctx)
	return ok && scoped == guildID
}
