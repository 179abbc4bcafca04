package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const listColumns = `id, workspace_id, name, is_primary, created_at`

func scanList(row interface{ Scan(...any) error }) (List, error) {
	var l List
	err := row.Scan(&l.ID, &l.WorkspaceID, &l.Name, &l.IsPrimary, &l.CreatedAt)
	return l, err
}

func getList(ctx context.Context, q queryer, listID string) (List, error) {
	return scanList(q.QueryRowContext(ctx, `SELECT `+listColumns+` FROM contact_lists WHERE id=$1`, listID))
}

func getAssignment(ctx context.Context, q queryer, contactID, listID string) (Assignment, error) {
	var a Assignment
	err := q.QueryRowContext(ctx, `
		SELECT contact_id, list_id, workspace_id, is_primary, assigned_at
		FROM contact_list_assignments
		WHERE contact_id=$1 AND list_id=$2
	`, contactID, listID).Scan(&a.ContactID, &a.ListID, &a.WorkspaceID, &a.IsPrimary, &a.AssignedAt)
	return a, err
}

func (s *PostgresStore) GetList(ctx context.Context, listID string) (List, error) {
	return getList(ctx, s.db, listID)
}

func (s *PostgresStore) InsertList(ctx context.Context, l List) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_lists (id, workspace_id, name, is_primary)
		VALUES ($1, $2, $3, $4)
	`, l.ID, l.WorkspaceID, l.Name, l.IsPrimary)
	return wrapWrite("insert list", err)
}

func (s *PostgresStore) ListNameExists(ctx context.Context, workspaceID, name string) (bool, error) {
	found, err := exists(ctx, s.db, `SELECT EXISTS(SELECT 1 FROM contact_lists WHERE workspace_id=$1 AND name=$2)`, workspaceID, name)
	if err != nil {
		return false, fmt.Errorf("check list name: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) ListListsByWorkspace(ctx context.Context, workspaceID string) ([]List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listColumns+`
		FROM contact_lists
		WHERE workspace_id=$1
		ORDER BY created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	items := make([]List, 0)
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return items, nil
}

// DeleteList removes the list; assignments go with it through ON DELETE CASCADE.
func (s *PostgresStore) DeleteList(ctx context.Context, listID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contact_lists WHERE id=$1`, listID); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, contactID, listID string) (Assignment, error) {
	return getAssignment(ctx, s.db, contactID, listID)
}

func (s *PostgresStore) DeleteAssignment(ctx context.Context, contactID, listID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contact_list_assignments WHERE contact_id=$1 AND list_id=$2`, contactID, listID); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

const membershipQuery = `
	SELECT l.id, l.workspace_id, l.name, l.is_primary, l.created_at, a.is_primary, a.assigned_at
	FROM contact_list_assignments a
	JOIN contact_lists l ON l.id = a.list_id
`

func scanMembership(row interface{ Scan(...any) error }) (Membership, error) {
	var m Membership
	err := row.Scan(&m.List.ID, &m.List.WorkspaceID, &m.List.Name, &m.List.IsPrimary, &m.List.CreatedAt, &m.IsPrimary, &m.AssignedAt)
	return m, err
}

func (s *PostgresStore) ListMemberships(ctx context.Context, contactID string) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, membershipQuery+`
		WHERE a.contact_id=$1
		ORDER BY a.assigned_at ASC, l.name ASC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	items := make([]Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return items, nil
}

// PrimaryMembership returns the contact's primary list in the workspace, or
// nil when there is none.
func (s *PostgresStore) PrimaryMembership(ctx context.Context, contactID, workspaceID string) (*Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, membershipQuery+`
		WHERE a.contact_id=$1 AND a.workspace_id=$2 AND a.is_primary
	`, contactID, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get primary membership: %w", err)
	}
	return &m, nil
}
