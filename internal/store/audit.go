package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

const auditColumns = `id, user_id, action, entity_type, entity_id, details, ip_address, timestamp`

func scanAuditLog(row rowScanner) (AuditLog, error) {
	var (
		entry   AuditLog
		details sql.NullString
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.EntityType, &entry.EntityID, &details, &entry.IPAddress, &entry.Timestamp); err != nil {
		return AuditLog{}, err
	}
	if details.Valid && details.String != "" {
		entry.Details = json.RawMessage(details.String)
	}
	return entry, nil
}

func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry AuditLog) error {
	var details *string
	if len(entry.Details) > 0 {
		raw := string(entry.Details)
		details = &raw
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, details, entry.IPAddress, entry.Timestamp)
	return wrapWrite("insert audit log", err)
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLog, error) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 5)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	add("action", filter.Action)
	add("entity_type", filter.EntityType)
	add("user_id", filter.UserID)

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	items, err := collect(rows, scanAuditLog)
	if err != nil {
		return nil, fmt.Errorf("scan audit logs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAuditLogsForEntity(ctx context.Context, entityType, entityID string) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE entity_type=$1 AND entity_id=$2
		ORDER BY timestamp DESC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list entity audit logs: %w", err)
	}
	items, err := collect(rows, scanAuditLog)
	if err != nil {
		return nil, fmt.Errorf("scan entity audit logs: %w", err)
	}
	return items, nil
}
