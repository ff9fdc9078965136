package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/rpggio/studytrack/internal/repository"
)

// APIKeyRepository maps hashed API keys to user ids.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores the hash of token for userID.
func (r *APIKeyRepository) Create(ctx context.Context, userID, token, description string) error {
	if userID == "" || token == "" {
		return fmt.Errorf("%w: user id and token are required", repository.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, user_id, description) VALUES (?, ?, ?)`,
		HashToken(token), userID, description)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: key already registered", repository.ErrInvalidInput)
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ResolveUser returns the user owning token and records its use.
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)
	var userID string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&userID)
	if err == sql.ErrNoRows || (err == nil && userID == "") {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = CURRENT_TIMESTAMP WHERE key_hash = ?`, hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return userID, nil
}

// HashToken returns the stored form of an API key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
