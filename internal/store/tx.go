package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Tx is the set of statements the assignment and approval engines run
// atomically. Lock* methods take a row lock held until commit.
type Tx interface {
	GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error)
	GetList(ctx context.Context, listID string) (List, error)

	LockContact(ctx context.Context, contactID string) (Contact, error)
	SetContactWorkspace(ctx context.Context, contactID, workspaceID string) error
	ContactEmailTaken(ctx context.Context, workspaceID, email, excludeID string) (bool, error)
	ContactPhoneTaken(ctx context.Context, workspaceID, phone, excludeID string) (bool, error)

	GetAssignment(ctx context.Context, contactID, listID string) (Assignment, error)
	HasPrimaryAssignment(ctx context.Context, contactID, workspaceID string) (bool, error)
	DemotePrimaryAssignments(ctx context.Context, contactID, workspaceID string) error
	InsertAssignment(ctx context.Context, a Assignment) error
	PromoteAssignment(ctx context.Context, contactID, listID string) error

	CampaignNameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error)
	InsertCampaign(ctx context.Context, c Campaign) error
	InsertCampaignApproval(ctx context.Context, a CampaignApproval) error
	LockCampaign(ctx context.Context, campaignID string) (Campaign, error)
	UpdateCampaign(ctx context.Context, c Campaign) error
	UpdateCampaignStatus(ctx context.Context, campaignID, status string) error
	ReviewCampaignApproval(ctx context.Context, a CampaignApproval) error

	UpsertFieldValue(ctx context.Context, v CustomFieldValue) (CustomFieldValue, error)
	InsertCommunicationLog(ctx context.Context, entry CommunicationLog) error
	InsertTodo(ctx context.Context, todo Todo) error
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	return getWorkspace(ctx, t.tx, workspaceID)
}

func (t *pgTx) GetList(ctx context.Context, listID string) (List, error) {
	return getList(ctx, t.tx, listID)
}

func (t *pgTx) LockContact(ctx context.Context, contactID string) (Contact, error) {
	return scanContact(t.tx.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id=$1 FOR UPDATE`, contactID))
}

func (t *pgTx) SetContactWorkspace(ctx context.Context, contactID, workspaceID string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE contacts SET workspace_id=$2, updated_at=NOW() WHERE id=$1`, contactID, workspaceID)
	return wrapWrite("set contact workspace", err)
}

func (t *pgTx) ContactEmailTaken(ctx context.Context, workspaceID, email, excludeID string) (bool, error) {
	return contactEmailTaken(ctx, t.tx, workspaceID, email, excludeID)
}

func (t *pgTx) ContactPhoneTaken(ctx context.Context, workspaceID, phone, excludeID string) (bool, error) {
	return contactPhoneTaken(ctx, t.tx, workspaceID, phone, excludeID)
}

func (t *pgTx) GetAssignment(ctx context.Context, contactID, listID string) (Assignment, error) {
	return getAssignment(ctx, t.tx, contactID, listID)
}

func (t *pgTx) HasPrimaryAssignment(ctx context.Context, contactID, workspaceID string) (bool, error) {
	found, err := exists(ctx, t.tx, `
		SELECT EXISTS(
			SELECT 1 FROM contact_list_assignments
			WHERE contact_id=$1 AND workspace_id=$2 AND is_primary
		)
	`, contactID, workspaceID)
	if err != nil {
		return false, fmt.Errorf("check primary assignment: %w", err)
	}
	return found, nil
}

func (t *pgTx) DemotePrimaryAssignments(ctx context.Context, contactID, workspaceID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE contact_list_assignments
		SET is_primary=FALSE
		WHERE contact_id=$1 AND workspace_id=$2 AND is_primary
	`, contactID, workspaceID)
	if err != nil {
		return fmt.Errorf("demote primary assignments: %w", err)
	}
	return nil
}

func (t *pgTx) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO contact_list_assignments (contact_id, list_id, workspace_id, is_primary, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ContactID, a.ListID, a.WorkspaceID, a.IsPrimary, a.AssignedAt)
	return wrapWrite("insert assignment", err)
}

func (t *pgTx) PromoteAssignment(ctx context.Context, contactID, listID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE contact_list_assignments
		SET is_primary=TRUE
		WHERE contact_id=$1 AND list_id=$2
	`, contactID, listID)
	return wrapWrite("promote assignment", err)
}

func (t *pgTx) CampaignNameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	return campaignNameExists(ctx, t.tx, workspaceID, name, excludeID)
}

func (t *pgTx) InsertCampaign(ctx context.Context, c Campaign) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, workspace_id, name, type, template_id, segment_json, schedule_json, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.WorkspaceID, c.Name, c.Type, c.TemplateID, c.SegmentJSON, c.ScheduleJSON, c.Status)
	return wrapWrite("insert campaign", err)
}

func (t *pgTx) InsertCampaignApproval(ctx context.Context, a CampaignApproval) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaign_approvals (id, campaign_id, status, reviewer_id, notes, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.CampaignID, a.Status, a.ReviewerID, a.Notes, a.ReviewedAt)
	return wrapWrite("insert campaign approval", err)
}

func (t *pgTx) LockCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	return getCampaign(ctx, t.tx, campaignID, true)
}

func (t *pgTx) UpdateCampaign(ctx context.Context, c Campaign) error {
	return updateCampaign(ctx, t.tx, c)
}

func (t *pgTx) UpdateCampaignStatus(ctx context.Context, campaignID, status string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE campaigns SET status=$2, updated_at=NOW() WHERE id=$1`, campaignID, status)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return nil
}

func (t *pgTx) ReviewCampaignApproval(ctx context.Context, a CampaignApproval) error {
	reviewedAt := time.Now().UTC()
	if a.ReviewedAt != nil {
		reviewedAt = *a.ReviewedAt
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE campaign_approvals
		SET status=$2, reviewer_id=$3, notes=$4, reviewed_at=$5
		WHERE campaign_id=$1
	`, a.CampaignID, a.Status, a.ReviewerID, a.Notes, reviewedAt)
	if err != nil {
		return fmt.Errorf("review campaign approval: %w", err)
	}
	return nil
}

func (t *pgTx) UpsertFieldValue(ctx context.Context, v CustomFieldValue) (CustomFieldValue, error) {
	return upsertFieldValue(ctx, t.tx, v)
}

func (t *pgTx) InsertCommunicationLog(ctx context.Context, entry CommunicationLog) error {
	return insertCommunicationLog(ctx, t.tx, entry)
}

func (t *pgTx) InsertTodo(ctx context.Context, todo Todo) error {
	return insertTodo(ctx, t.tx, todo)
}
