package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const settingColumns = `id, scope, scope_id, setting_key, setting_value, created_at, updated_at`

func scanSetting(row rowScanner) (SystemSetting, error) {
	var (
		s     SystemSetting
		value string
	)
	if err := row.Scan(&s.ID, &s.Scope, &s.ScopeID, &s.Key, &value, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return SystemSetting{}, err
	}
	s.Value = json.RawMessage(value)
	return s, nil
}

func (s *PostgresStore) GetSetting(ctx context.Context, scope, scopeID, key string) (SystemSetting, error) {
	return scanSetting(s.db.QueryRowContext(ctx, `
		SELECT `+settingColumns+`
		FROM system_settings
		WHERE scope=$1 AND scope_id=$2 AND setting_key=$3
	`, scope, scopeID, key))
}

func (s *PostgresStore) UpsertSetting(ctx context.Context, setting SystemSetting) (SystemSetting, error) {
	if setting.ID == "" {
		setting.ID = uuid.NewString()
	}
	out, err := scanSetting(s.db.QueryRowContext(ctx, `
		INSERT INTO system_settings (id, scope, scope_id, setting_key, setting_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, scope_id, setting_key)
		DO UPDATE SET setting_value=EXCLUDED.setting_value, updated_at=NOW()
		RETURNING `+settingColumns, setting.ID, setting.Scope, setting.ScopeID, setting.Key, string(setting.Value)))
	if err != nil {
		return SystemSetting{}, wrapWrite("upsert setting", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteSetting(ctx context.Context, scope, scopeID, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM system_settings WHERE scope=$1 AND scope_id=$2 AND setting_key=$3
	`, scope, scopeID, key)
	if err != nil {
		return false, fmt.Errorf("delete setting: %w", err)
	}
	return affected(result)
}

func (s *PostgresStore) ListSettings(ctx context.Context, scope, scopeID string) ([]SystemSetting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+settingColumns+`
		FROM system_settings
		WHERE scope=$1 AND scope_id=$2
		ORDER BY setting_key ASC
	`, scope, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	items, err := collect(rows, scanSetting)
	if err != nil {
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	return items, nil
}
