package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// APIKey is the authentication record bound to a project.
type APIKey struct {
	Key          string
	ProjectID    string
	RateLimitRPM int
	Revoked      bool
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

// CreateAPIKey issues a new key for a project. Key generation (the
// sentinel prefix plus high-entropy tail) is the caller's responsibility;
// the Ledger only persists the opaque value.
func (s *Store) CreateAPIKey(ctx context.Context, key, projectID string, rateLimitRPM int) error {
	const q = `INSERT INTO api_keys (key, project_id, rate_limit_rpm) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, q, key, projectID, rateLimitRPM); err != nil {
		return storageErr(fmt.Errorf("create api key: %w", err))
	}
	return nil
}

// RevokeAPIKey disables a key permanently; revocation is the only way a
// key stops authenticating.
func (s *Store) RevokeAPIKey(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked = true WHERE key = $1`, key); err != nil {
		return storageErr(fmt.Errorf("revoke api key: %w", err))
	}
	return nil
}

// GetAPIKey looks up a key by opaque-string equality. It does not filter
// on revoked so callers can distinguish "absent" from "revoked".
func (s *Store) GetAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var k APIKey
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT key, project_id, rate_limit_rpm, revoked, created_at, last_used_at
		FROM api_keys WHERE key = $1`, key).
		Scan(&k.Key, &k.ProjectID, &k.RateLimitRPM, &k.Revoked, &k.CreatedAt, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, notFoundErr(fmt.Errorf("api key %s", key))
	}
	if err != nil {
		return nil, storageErr(fmt.Errorf("get api key: %w", err))
	}
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	return &k, nil
}

// TouchLastUsed records the authentication timestamp, best-effort.
func (s *Store) TouchLastUsed(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE key = $1`, key); err != nil {
		return storageErr(fmt.Errorf("touch last used: %w", err))
	}
	return nil
}
