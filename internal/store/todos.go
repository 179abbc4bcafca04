package store

import (
	"context"
	"fmt"
	"time"
)

const todoColumns = `id, workspace_id, contact_id, text, due_date, is_complete, created_by, created_at`

func scanTodo(row rowScanner) (Todo, error) {
	var t Todo
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.ContactID, &t.Text, &t.DueDate, &t.IsComplete, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

func insertTodo(ctx context.Context, q queryer, t Todo) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO todos (id, workspace_id, contact_id, text, due_date, is_complete, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.WorkspaceID, t.ContactID, t.Text, t.DueDate, t.IsComplete, t.CreatedBy)
	return wrapWrite("insert todo", err)
}

func (s *PostgresStore) InsertTodo(ctx context.Context, t Todo) error {
	return insertTodo(ctx, s.db, t)
}

func (s *PostgresStore) GetTodo(ctx context.Context, todoID string) (Todo, error) {
	return scanTodo(s.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id=$1`, todoID))
}

func (s *PostgresStore) UpdateTodo(ctx context.Context, t Todo) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE todos
		SET contact_id=$2, text=$3, due_date=$4, is_complete=$5
		WHERE id=$1
	`, t.ID, t.ContactID, t.Text, t.DueDate, t.IsComplete)
	return wrapWrite("update todo", err)
}

func (s *PostgresStore) DeleteTodo(ctx context.Context, todoID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id=$1`, todoID); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTodosByContact(ctx context.Context, contactID string) ([]Todo, error) {
	return s.listTodos(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE contact_id=$1
		ORDER BY is_complete ASC, due_date ASC NULLS LAST, created_at DESC
	`, contactID)
}

// ListTodosByWorkspace filters on completion when complete is non-nil.
func (s *PostgresStore) ListTodosByWorkspace(ctx context.Context, workspaceID string, complete *bool) ([]Todo, error) {
	if complete == nil {
		return s.listTodos(ctx, `
			SELECT `+todoColumns+`
			FROM todos
			WHERE workspace_id=$1
			ORDER BY is_complete ASC, due_date ASC NULLS LAST, created_at DESC
		`, workspaceID)
	}
	return s.listTodos(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE workspace_id=$1 AND is_complete=$2
		ORDER BY due_date ASC NULLS LAST, created_at DESC
	`, workspaceID, *complete)
}

func (s *PostgresStore) ListTodosByUser(ctx context.Context, userID string) ([]Todo, error) {
	return s.listTodos(ctx, `
		SELECT t.id, t.workspace_id, t.contact_id, t.text, t.due_date, t.is_complete, t.created_by, t.created_at
		FROM todos t
		JOIN workspaces w ON w.id = t.workspace_id
		WHERE w.user_id=$1
		ORDER BY t.is_complete ASC, t.due_date ASC NULLS LAST, t.created_at DESC
	`, userID)
}

func (s *PostgresStore) listTodos(ctx context.Context, query string, args ...any) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	items, err := collect(rows, scanTodo)
	if err != nil {
		return nil, fmt.Errorf("scan todos: %w", err)
	}
	return items, nil
}

// ListDueTodos returns open todos due before the cutoff together with the
// owning user. An empty userID spans every user.
func (s *PostgresStore) ListDueTodos(ctx context.Context, userID string, before time.Time) ([]DueTodo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.workspace_id, t.contact_id, t.text, t.due_date, t.is_complete, t.created_by, t.created_at,
			u.id, u.email, u.display_name
		FROM todos t
		JOIN workspaces w ON w.id = t.workspace_id
		JOIN users u ON u.id = w.user_id
		WHERE NOT t.is_complete
			AND t.due_date IS NOT NULL
			AND t.due_date <= $1
			AND ($2 = '' OR u.id = $2)
		ORDER BY t.due_date ASC
	`, before, userID)
	if err != nil {
		return nil, fmt.Errorf("list due todos: %w", err)
	}
	items, err := collect(rows, func(row rowScanner) (DueTodo, error) {
		var d DueTodo
		err := row.Scan(
			&d.ID, &d.WorkspaceID, &d.ContactID, &d.Text, &d.DueDate, &d.IsComplete, &d.CreatedBy, &d.CreatedAt,
			&d.OwnerID, &d.OwnerEmail, &d.OwnerName,
		)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan due todos: %w", err)
	}
	return items, nil
}
