package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const apiKeyColumns = `id, user_id, key_hash, key_prefix, description, scopes, created_at, expires_at, is_active`

func scanAPIKey(row rowScanner) (APIKey, error) {
	var (
		key    APIKey
		scopes string
	)
	if err := row.Scan(&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, &key.Description, &scopes, &key.CreatedAt, &key.ExpiresAt, &key.IsActive); err != nil {
		return APIKey{}, err
	}
	if err := json.Unmarshal([]byte(scopes), &key.Scopes); err != nil {
		return APIKey{}, fmt.Errorf("decode api key scopes: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) InsertAPIKey(ctx context.Context, key APIKey) error {
	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	raw, err := json.Marshal(scopes)
	if err != nil {
		return fmt.Errorf("encode api key scopes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, description, scopes, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.Description, string(raw), key.ExpiresAt, key.IsActive)
	return wrapWrite("insert api key", err)
}

func (s *PostgresStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error) {
	return scanAPIKey(s.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=$1`, keyHash))
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	items, err := collect(rows, scanAPIKey)
	if err != nil {
		return nil, fmt.Errorf("scan api keys: %w", err)
	}
	return items, nil
}

// RevokeAPIKey deactivates a key owned by userID. It reports false when no
// such key exists.
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, keyID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE api_keys SET is_active=FALSE WHERE id=$1 AND user_id=$2`, keyID, userID)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return affected(result)
}
