package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const fieldDefinitionColumns = `id, user_id, workspace_id, field_name, label, field_type, is_required, default_value, created_at`

func scanFieldDefinition(row rowScanner) (CustomFieldDefinition, error) {
	var d CustomFieldDefinition
	err := row.Scan(&d.ID, &d.UserID, &d.WorkspaceID, &d.FieldName, &d.Label, &d.FieldType, &d.IsRequired, &d.DefaultValue, &d.CreatedAt)
	return d, err
}

func (s *PostgresStore) InsertFieldDefinition(ctx context.Context, d CustomFieldDefinition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_field_definitions (id, user_id, workspace_id, field_name, label, field_type, is_required, default_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.UserID, d.WorkspaceID, d.FieldName, d.Label, d.FieldType, d.IsRequired, d.DefaultValue)
	return wrapWrite("insert field definition", err)
}

func (s *PostgresStore) GetFieldDefinition(ctx context.Context, definitionID string) (CustomFieldDefinition, error) {
	return scanFieldDefinition(s.db.QueryRowContext(ctx, `SELECT `+fieldDefinitionColumns+` FROM custom_field_definitions WHERE id=$1`, definitionID))
}

// ListFieldDefinitions returns the user's global definitions plus, when
// workspaceID is set, the ones scoped to that workspace.
func (s *PostgresStore) ListFieldDefinitions(ctx context.Context, userID, workspaceID string) ([]CustomFieldDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldDefinitionColumns+`
		FROM custom_field_definitions
		WHERE user_id=$1 AND (workspace_id IS NULL OR workspace_id=$2)
		ORDER BY field_name ASC
	`, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list field definitions: %w", err)
	}
	items, err := collect(rows, scanFieldDefinition)
	if err != nil {
		return nil, fmt.Errorf("scan field definitions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteFieldDefinition(ctx context.Context, definitionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM custom_field_definitions WHERE id=$1`, definitionID); err != nil {
		return fmt.Errorf("delete field definition: %w", err)
	}
	return nil
}

const fieldValueColumns = `id, contact_id, field_name, field_value, field_type, created_at, updated_at`

func scanFieldValue(row rowScanner) (CustomFieldValue, error) {
	var v CustomFieldValue
	err := row.Scan(&v.ID, &v.ContactID, &v.FieldName, &v.FieldValue, &v.FieldType, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func upsertFieldValue(ctx context.Context, q queryer, v CustomFieldValue) (CustomFieldValue, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.FieldType == "" {
		v.FieldType = "text"
	}
	out, err := scanFieldValue(q.QueryRowContext(ctx, `
		INSERT INTO custom_field_values (id, contact_id, field_name, field_value, field_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contact_id, field_name)
		DO UPDATE SET field_value=EXCLUDED.field_value, field_type=EXCLUDED.field_type, updated_at=NOW()
		RETURNING `+fieldValueColumns, v.ID, v.ContactID, v.FieldName, v.FieldValue, v.FieldType))
	if err != nil {
		return CustomFieldValue{}, wrapWrite("upsert field value", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertFieldValue(ctx context.Context, v CustomFieldValue) (CustomFieldValue, error) {
	return upsertFieldValue(ctx, s.db, v)
}

func (s *PostgresStore) ListFieldValues(ctx context.Context, contactID string) ([]CustomFieldValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldValueColumns+`
		FROM custom_field_values
		WHERE contact_id=$1
		ORDER BY field_name ASC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("list field values: %w", err)
	}
	items, err := collect(rows, scanFieldValue)
	if err != nil {
		return nil, fmt.Errorf("scan field values: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteFieldValue(ctx context.Context, contactID, fieldName string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM custom_field_values WHERE contact_id=$1 AND field_name=$2`, contactID, fieldName)
	if err != nil {
		return false, fmt.Errorf("delete field value: %w", err)
	}
	return affected(result)
}
