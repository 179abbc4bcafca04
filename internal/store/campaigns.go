package store

import (
	"context"
	"database/sql"
	"fmt"
)

const campaignSelect = `
	SELECT c.id, c.workspace_id, c.name, c.type, c.template_id, c.segment_json, c.schedule_json, c.status,
		c.created_at, c.updated_at,
		a.id, a.status, a.reviewer_id, a.notes, a.created_at, a.reviewed_at
	FROM campaigns c
	LEFT JOIN campaign_approvals a ON a.campaign_id = c.id
`

func scanCampaign(row interface{ Scan(...any) error }) (Campaign, error) {
	var (
		c                  Campaign
		approvalID         sql.NullString
		approvalStatus     sql.NullString
		approvalCreatedAt  sql.NullTime
		approvalReviewedAt sql.NullTime
		reviewerID         sql.NullString
		notes              sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &c.Type, &c.TemplateID, &c.SegmentJSON, &c.ScheduleJSON, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
		&approvalID, &approvalStatus, &reviewerID, &notes, &approvalCreatedAt, &approvalReviewedAt,
	)
	if err != nil {
		return Campaign{}, err
	}
	if approvalID.Valid {
		approval := &CampaignApproval{
			ID:         approvalID.String,
			CampaignID: c.ID,
			Status:     approvalStatus.String,
			CreatedAt:  approvalCreatedAt.Time,
		}
		if reviewerID.Valid {
			approval.ReviewerID = &reviewerID.String
		}
		if notes.Valid {
			approval.Notes = &notes.String
		}
		if approvalReviewedAt.Valid {
			approval.ReviewedAt = &approvalReviewedAt.Time
		}
		c.Approval = approval
	}
	return c, nil
}

func getCampaign(ctx context.Context, q queryer, campaignID string, lock bool) (Campaign, error) {
	query := campaignSelect + ` WHERE c.id=$1`
	if lock {
		query += ` FOR UPDATE OF c`
	}
	return scanCampaign(q.QueryRowContext(ctx, query, campaignID))
}

func campaignNameExists(ctx context.Context, q queryer, workspaceID, name, excludeID string) (bool, error) {
	found, err := exists(ctx, q, `
		SELECT EXISTS(SELECT 1 FROM campaigns WHERE workspace_id=$1 AND name=$2 AND id<>$3)
	`, workspaceID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("check campaign name: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	return getCampaign(ctx, s.db, campaignID, false)
}

func (s *PostgresStore) CampaignNameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	return campaignNameExists(ctx, s.db, workspaceID, name, excludeID)
}

func (s *PostgresStore) ListCampaignsByWorkspace(ctx context.Context, workspaceID string) ([]Campaign, error) {
	return s.listCampaigns(ctx, campaignSelect+`
		WHERE c.workspace_id=$1
		ORDER BY c.created_at DESC
	`, workspaceID)
}

func (s *PostgresStore) ListCampaignsByStatus(ctx context.Context, workspaceID, status string) ([]Campaign, error) {
	return s.listCampaigns(ctx, campaignSelect+`
		WHERE c.workspace_id=$1 AND c.status=$2
		ORDER BY c.created_at ASC
	`, workspaceID, status)
}

func (s *PostgresStore) listCampaigns(ctx context.Context, query string, args ...any) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	items := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return items, nil
}

// UpdateCampaign rewrites the editable fields. Status moves only through the
// approval engine.
func updateCampaign(ctx context.Context, q queryer, c Campaign) error {
	_, err := q.ExecContext(ctx, `
		UPDATE campaigns
		SET name=$2, type=$3, template_id=$4, segment_json=$5, schedule_json=$6, updated_at=NOW()
		WHERE id=$1
	`, c.ID, c.Name, c.Type, c.TemplateID, c.SegmentJSON, c.ScheduleJSON)
	return wrapWrite("update campaign", err)
}

// CancelCampaign is the soft delete: the row stays, its status becomes cancelled.
func (s *PostgresStore) CancelCampaign(ctx context.Context, campaignID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE campaigns SET status=$2, updated_at=NOW() WHERE id=$1`, campaignID, CampaignCancelled); err != nil {
		return fmt.Errorf("cancel campaign: %w", err)
	}
	return nil
}
