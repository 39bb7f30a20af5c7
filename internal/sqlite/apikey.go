package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rpggio/voicetally/internal/repository"
)

// APIKeyRepository maps bearer tokens to the guild they may read
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores the hash of token scoped to guildID
func (r *APIKeyRepository) Create(ctx context.Context, token, guildID, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, guild_id, description) VALUES (?, ?, ?)`,
		hashToken(token), guildID, description)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ResolveGuild returns the guild a token is scoped to
func (r *APIKeyRepository) ResolveGuild(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)

	var guildID string
	err := r.db.QueryRowContext(ctx, `SELECT guild_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&guildID)
	if err == sql.ErrNoRows || (err == nil && guildID == "") {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return guildID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
