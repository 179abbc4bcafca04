package store

import (
	"context"
	"fmt"
	"time"
)

const insightColumns = `id, user_id, type, content, confidence, created_at, dismissed_at`

func scanInsight(row rowScanner) (Insight, error) {
	var in Insight
	err := row.Scan(&in.ID, &in.UserID, &in.Type, &in.Content, &in.Confidence, &in.CreatedAt, &in.DismissedAt)
	return in, err
}

func (s *PostgresStore) InsertInsight(ctx context.Context, in Insight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_insights (id, user_id, type, content, confidence)
		VALUES ($1, $2, $3, $4, $5)
	`, in.ID, in.UserID, in.Type, in.Content, in.Confidence)
	return wrapWrite("insert insight", err)
}

func (s *PostgresStore) GetInsight(ctx context.Context, insightID string) (Insight, error) {
	return scanInsight(s.db.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM ai_insights WHERE id=$1`, insightID))
}

func (s *PostgresStore) ListInsights(ctx context.Context, userID string, filter InsightFilter) ([]Insight, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+insightColumns+`
		FROM ai_insights
		WHERE user_id=$1
			AND ((dismissed_at IS NOT NULL) = $2)
			AND ($3 = '' OR type = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, filter.Dismissed, filter.Type, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	items, err := collect(rows, scanInsight)
	if err != nil {
		return nil, fmt.Errorf("scan insights: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DismissInsight(ctx context.Context, insightID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE ai_insights SET dismissed_at=NOW() WHERE id=$1 AND dismissed_at IS NULL`, insightID); err != nil {
		return fmt.Errorf("dismiss insight: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteInsight(ctx context.Context, insightID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ai_insights WHERE id=$1`, insightID); err != nil {
		return fmt.Errorf("delete insight: %w", err)
	}
	return nil
}

// PurgeInsights deletes the user's insights created before the cutoff.
func (s *PostgresStore) PurgeInsights(ctx context.Context, userID string, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ai_insights WHERE user_id=$1 AND created_at < $2`, userID, before)
	if err != nil {
		return 0, fmt.Errorf("purge insights: %w", err)
	}
	return result.RowsAffected()
}
