package store

import (
	"context"
	"fmt"
)

const contactColumns = `id, user_id, workspace_id, first_name, last_name, primary_email, primary_phone, company, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.WorkspaceID,
		&c.FirstName,
		&c.LastName,
		&c.PrimaryEmail,
		&c.PrimaryPhone,
		&c.Company,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (s *PostgresStore) GetContact(ctx context.Context, contactID string) (Contact, error) {
	return scanContact(s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id=$1`, contactID))
}

func (s *PostgresStore) InsertContact(ctx context.Context, c Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, workspace_id, first_name, last_name, primary_email, primary_phone, company)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, c.WorkspaceID, c.FirstName, c.LastName, c.PrimaryEmail, c.PrimaryPhone, c.Company)
	return wrapWrite("insert contact", err)
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c Contact) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET workspace_id=$2, first_name=$3, last_name=$4, primary_email=$5, primary_phone=$6, company=$7, updated_at=NOW()
		WHERE id=$1
	`, c.ID, c.WorkspaceID, c.FirstName, c.LastName, c.PrimaryEmail, c.PrimaryPhone, c.Company)
	return wrapWrite("update contact", err)
}

func (s *PostgresStore) DeleteContact(ctx context.Context, contactID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id=$1`, contactID); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListContactsByWorkspace(ctx context.Context, workspaceID string) ([]Contact, error) {
	return s.listContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE workspace_id=$1
		ORDER BY last_name, first_name, created_at
	`, workspaceID)
}

func (s *PostgresStore) ListContactsByUser(ctx context.Context, userID string) ([]Contact, error) {
	return s.listContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
}

func (s *PostgresStore) listContacts(ctx context.Context, query string, args ...any) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}

// ContactEmailTaken reports whether another contact in the workspace already
// uses email (case-insensitive).
func (s *PostgresStore) ContactEmailTaken(ctx context.Context, workspaceID, email, excludeID string) (bool, error) {
	return contactEmailTaken(ctx, s.db, workspaceID, email, excludeID)
}

func (s *PostgresStore) ContactPhoneTaken(ctx context.Context, workspaceID, phone, excludeID string) (bool, error) {
	return contactPhoneTaken(ctx, s.db, workspaceID, phone, excludeID)
}

func contactEmailTaken(ctx context.Context, q queryer, workspaceID, email, excludeID string) (bool, error) {
	found, err := exists(ctx, q, `
		SELECT EXISTS(
			SELECT 1 FROM contacts
			WHERE workspace_id=$1 AND LOWER(primary_email)=LOWER($2) AND id<>$3
		)
	`, workspaceID, email, excludeID)
	if err != nil {
		return false, fmt.Errorf("check contact email: %w", err)
	}
	return found, nil
}

func contactPhoneTaken(ctx context.Context, q queryer, workspaceID, phone, excludeID string) (bool, error) {
	found, err := exists(ctx, q, `
		SELECT EXISTS(
			SELECT 1 FROM contacts
			WHERE workspace_id=$1 AND primary_phone=$2 AND id<>$3
		)
	`, workspaceID, phone, excludeID)
	if err != nil {
		return false, fmt.Errorf("check contact phone: %w", err)
	}
	return found, nil
}
