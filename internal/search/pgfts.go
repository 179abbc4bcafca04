package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated contacts.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return []Result{}, 0, nil
	}
	q = q.normalized()

	tsQuery := "plainto_tsquery('simple', $1)"
	where := "c.fts @@ " + tsQuery + " AND c.user_id = $2"
	args := []any{q.Text, q.UserID}
	if q.WorkspaceID != "" {
		where += " AND c.workspace_id = $3"
		args = append(args, q.WorkspaceID)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM contacts c WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, coalesce(c.workspace_id, ''), c.first_name, c.last_name,
			coalesce(c.primary_email, ''), coalesce(c.primary_phone, ''), coalesce(c.company, ''),
			ts_headline('simple', c.first_name || ' ' || c.last_name || ' ' || coalesce(c.company, ''), %s, 'MaxFragments=1,MaxWords=20') AS snippet
		FROM contacts c
		WHERE %s
		ORDER BY ts_rank(c.fts, %s) DESC, c.created_at DESC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, q.Limit, q.Offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		var first, last string
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &first, &last, &r.Email, &r.Phone, &r.Company, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Name = displayName(first, last)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadContacts returns every contact for a full reindex.
func (p *PgFTS) LoadContacts(ctx context.Context) ([]ContactRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, coalesce(workspace_id, ''), first_name, last_name,
			coalesce(primary_email, ''), coalesce(primary_phone, ''), coalesce(company, '')
		FROM contacts
	`)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]ContactRecord, 0)
	for rows.Next() {
		var c ContactRecord
		if err := rows.Scan(&c.ID, &c.UserID, &c.WorkspaceID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}
