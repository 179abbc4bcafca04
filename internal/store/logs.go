package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const logColumns = `id, workspace_id, contact_id, type, content, status, timestamp`

func scanCommunicationLog(row rowScanner) (CommunicationLog, error) {
	var (
		entry   CommunicationLog
		content string
	)
	if err := row.Scan(&entry.ID, &entry.WorkspaceID, &entry.ContactID, &entry.Type, &content, &entry.Status, &entry.Timestamp); err != nil {
		return CommunicationLog{}, err
	}
	entry.Content = json.RawMessage(content)
	return entry, nil
}

func insertCommunicationLog(ctx context.Context, q queryer, entry CommunicationLog) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO communication_logs (id, workspace_id, contact_id, type, content, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.WorkspaceID, entry.ContactID, entry.Type, string(entry.Content), entry.Status, entry.Timestamp)
	return wrapWrite("insert communication log", err)
}

func (s *PostgresStore) InsertCommunicationLog(ctx context.Context, entry CommunicationLog) error {
	return insertCommunicationLog(ctx, s.db, entry)
}

func (s *PostgresStore) ListLogsByContact(ctx context.Context, contactID string) ([]CommunicationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM communication_logs
		WHERE contact_id=$1
		ORDER BY timestamp DESC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("list contact logs: %w", err)
	}
	items, err := collect(rows, scanCommunicationLog)
	if err != nil {
		return nil, fmt.Errorf("scan contact logs: %w", err)
	}
	return items, nil
}

// ListLogsByWorkspace returns the newest entries first. An empty logType
// matches every type.
func (s *PostgresStore) ListLogsByWorkspace(ctx context.Context, workspaceID, logType string, limit int) ([]CommunicationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM communication_logs
		WHERE workspace_id=$1 AND ($2 = '' OR type = $2)
		ORDER BY timestamp DESC
		LIMIT $3
	`, workspaceID, logType, limit)
	if err != nil {
		return nil, fmt.Errorf("list workspace logs: %w", err)
	}
	items, err := collect(rows, scanCommunicationLog)
	if err != nil {
		return nil, fmt.Errorf("scan workspace logs: %w", err)
	}
	return items, nil
}
