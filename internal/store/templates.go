package store

import (
	"context"
	"fmt"
)

const templateColumns = `id, workspace_id, name, template_type, subject, body, preheader, signature, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.TemplateType, &t.Subject, &t.Body, &t.Preheader, &t.Signature, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	return scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id=$1`, templateID))
}

func (s *PostgresStore) InsertTemplate(ctx context.Context, t Template) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, workspace_id, name, template_type, subject, body, preheader, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.WorkspaceID, t.Name, t.TemplateType, t.Subject, t.Body, t.Preheader, t.Signature)
	return wrapWrite("insert template", err)
}

func (s *PostgresStore) UpdateTemplate(ctx context.Context, t Template) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE templates
		SET name=$2, template_type=$3, subject=$4, body=$5, preheader=$6, signature=$7, updated_at=NOW()
		WHERE id=$1
	`, t.ID, t.Name, t.TemplateType, t.Subject, t.Body, t.Preheader, t.Signature)
	return wrapWrite("update template", err)
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, templateID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id=$1`, templateID); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func (s *PostgresStore) TemplateNameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	found, err := exists(ctx, s.db, `
		SELECT EXISTS(SELECT 1 FROM templates WHERE workspace_id=$1 AND name=$2 AND id<>$3)
	`, workspaceID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("check template name: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) ListTemplatesByWorkspace(ctx context.Context, workspaceID string) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE workspace_id=$1
		ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}
