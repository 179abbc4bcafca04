package app

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"picrm/internal/email"
	"picrm/internal/store"
)

var campaignTypes = map[string]bool{"one-off": true, "scheduled": true, "drip": true}

type CampaignInput struct {
	WorkspaceID string          `json:"workspaceId"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	TemplateID  *string         `json:"templateId"`
	Segment     json.RawMessage `json:"segment"`
	Schedule    json.RawMessage `json:"schedule"`
}

type CampaignPatch struct {
	Name       *string         `json:"name"`
	Type       *string         `json:"type"`
	TemplateID *string         `json:"templateId"`
	Segment    json.RawMessage `json:"segment"`
	Schedule   json.RawMessage `json:"schedule"`
	Status     *string         `json:"status"`
}

// PendingCampaign is a campaign awaiting review with its workspace name.
type PendingCampaign struct {
	store.Campaign
	WorkspaceName string `json:"workspaceName"`
}

func rawJSONPtr(raw json.RawMessage, field string) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, invalid(field + " must be valid JSON")
	}
	v := string(raw)
	return &v, nil
}

func (s *Service) checkTemplate(ctx context.Context, workspaceID string, templateID *string) error {
	if templateID == nil {
		return nil
	}
	t, err := s.store.GetTemplate(ctx, *templateID)
	if isNoRows(err) {
		return notFound("Template")
	}
	if err != nil {
		return err
	}
	if t.WorkspaceID != workspaceID {
		return forbidden("Template belongs to a different workspace")
	}
	return nil
}

// CreateCampaign stores the campaign and, when the workspace needs review,
// its pending approval in the same transaction.
func (s *Service) CreateCampaign(ctx context.Context, userID string, in CampaignInput) (store.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Campaign{}, invalid("name is required")
	}
	if !campaignTypes[in.Type] {
		return store.Campaign{}, invalid("type must be one of one-off, scheduled, drip")
	}
	segment, err := rawJSONPtr(in.Segment, "segment")
	if err != nil {
		return store.Campaign{}, err
	}
	schedule, err := rawJSONPtr(in.Schedule, "schedule")
	if err != nil {
		return store.Campaign{}, err
	}
	ws, err := s.ownedWorkspace(ctx, userID, in.WorkspaceID)
	if err != nil {
		return store.Campaign{}, err
	}
	templateID := trimmedPtr(in.TemplateID)
	if err := s.checkTemplate(ctx, ws.ID, templateID); err != nil {
		return store.Campaign{}, err
	}

	now := s.now().UTC()
	c := store.Campaign{
		ID:           newID(),
		WorkspaceID:  ws.ID,
		Name:         name,
		Type:         in.Type,
		TemplateID:   templateID,
		SegmentJSON:  segment,
		ScheduleJSON: schedule,
		Status:       store.CampaignDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	needsApproval := s.approval(ws)
	if needsApproval {
		c.Status = store.CampaignPending
		c.Approval = &store.CampaignApproval{
			ID:         newID(),
			CampaignID: c.ID,
			Status:     store.ApprovalPending,
			CreatedAt:  now,
		}
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		taken, err := tx.CampaignNameExists(ctx, ws.ID, name, "")
		if err != nil {
			return err
		}
		if taken {
			return duplicate("A campaign with this name already exists in this workspace")
		}
		if err := tx.InsertCampaign(ctx, c); err != nil {
			if store.IsConflict(err) {
				return duplicate("A campaign with this name already exists in this workspace")
			}
			return err
		}
		if c.Approval != nil {
			return tx.InsertCampaignApproval(ctx, *c.Approval)
		}
		return nil
	})
	if err != nil {
		return store.Campaign{}, err
	}

	s.logAction(ctx, userID, "create", "campaign", c.ID, map[string]any{"workspaceId": ws.ID, "status": c.Status})
	if needsApproval {
		s.notifyApproval(ws, c)
	}
	return c, nil
}

func (s *Service) notifyApproval(ws store.Workspace, c store.Campaign) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	s.background("approval-email", func(ctx context.Context) error {
		owner, err := s.store.GetUserByID(ctx, ws.UserID)
		if err != nil {
			return err
		}
		return s.mailer.SendApprovalRequest(email.ApprovalRequest{
			OwnerEmail:    owner.Email,
			OwnerName:     owner.DisplayName,
			WorkspaceName: ws.Name,
			CampaignID:    c.ID,
			CampaignName:  c.Name,
			CampaignType:  c.Type,
		})
	})
}

// ownedCampaign loads a campaign and checks it sits in a workspace the
// caller owns. workspaceID, when given, must match the campaign's.
func (s *Service) ownedCampaign(ctx context.Context, userID, campaignID, workspaceID string) (store.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if isNoRows(err) {
		return store.Campaign{}, notFound("Campaign")
	}
	if err != nil {
		return store.Campaign{}, err
	}
	if workspaceID != "" && c.WorkspaceID != workspaceID {
		return store.Campaign{}, forbidden("Campaign belongs to a different workspace")
	}
	if _, err := s.ownedWorkspace(ctx, userID, c.WorkspaceID); err != nil {
		return store.Campaign{}, err
	}
	return c, nil
}

func (s *Service) GetCampaign(ctx context.Context, userID, campaignID string) (store.Campaign, error) {
	return s.ownedCampaign(ctx, userID, campaignID, "")
}

func (s *Service) CampaignsByWorkspace(ctx context.Context, userID, workspaceID string) ([]store.Campaign, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListCampaignsByWorkspace(ctx, workspaceID)
}

func (s *Service) UpdateCampaign(ctx context.Context, userID, campaignID, workspaceID string, patch CampaignPatch) (store.Campaign, error) {
	if _, err := s.ownedCampaign(ctx, userID, campaignID, workspaceID); err != nil {
		return store.Campaign{}, err
	}
	if patch.Status != nil && *patch.Status != store.CampaignDraft && *patch.Status != store.CampaignActive {
		return store.Campaign{}, invalid("status can only be set to draft or active")
	}
	if patch.Type != nil && !campaignTypes[*patch.Type] {
		return store.Campaign{}, invalid("type must be one of one-off, scheduled, drip")
	}
	segment, err := rawJSONPtr(patch.Segment, "segment")
	if err != nil {
		return store.Campaign{}, err
	}
	schedule, err := rawJSONPtr(patch.Schedule, "schedule")
	if err != nil {
		return store.Campaign{}, err
	}

	var out store.Campaign
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.LockCampaign(ctx, campaignID)
		if isNoRows(err) {
			return notFound("Campaign")
		}
		if err != nil {
			return err
		}
		if patch.Status != nil && c.Status == store.CampaignCancelled {
			return invalid("Cancelled campaigns cannot change status")
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return invalid("name must not be empty")
			}
			if name != c.Name {
				taken, err := tx.CampaignNameExists(ctx, c.WorkspaceID, name, c.ID)
				if err != nil {
					return err
				}
				if taken {
					return duplicate("A campaign with this name already exists in this workspace")
				}
			}
			c.Name = name
		}
		if patch.Type != nil {
			c.Type = *patch.Type
		}
		if patch.TemplateID != nil {
			c.TemplateID = trimmedPtr(patch.TemplateID)
			if err := s.checkTemplate(ctx, c.WorkspaceID, c.TemplateID); err != nil {
				return err
			}
		}
		if segment != nil {
			c.SegmentJSON = segment
		}
		if schedule != nil {
			c.ScheduleJSON = schedule
		}
		if err := tx.UpdateCampaign(ctx, c); err != nil {
			if store.IsConflict(err) {
				return duplicate("A campaign with this name already exists in this workspace")
			}
			return err
		}
		if patch.Status != nil && *patch.Status != c.Status {
			if *patch.Status == store.CampaignActive && c.Approval != nil && c.Approval.Status != store.ApprovalApproved {
				return invalid("Campaign must be approved before it can be activated")
			}
			if err := tx.UpdateCampaignStatus(ctx, c.ID, *patch.Status); err != nil {
				return err
			}
			c.Status = *patch.Status
		}
		c.UpdatedAt = s.now().UTC()
		out = c
		return nil
	})
	if err != nil {
		return store.Campaign{}, err
	}
	s.logAction(ctx, userID, "update", "campaign", campaignID, nil)
	return out, nil
}

// DeleteCampaign cancels the campaign; the row is kept.
func (s *Service) DeleteCampaign(ctx context.Context, userID, campaignID, workspaceID string) error {
	if _, err := s.ownedCampaign(ctx, userID, campaignID, workspaceID); err != nil {
		return err
	}
	if err := s.store.CancelCampaign(ctx, campaignID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "delete", "campaign", campaignID, nil)
	return nil
}

func (s *Service) ApproveCampaign(ctx context.Context, userID, campaignID, workspaceID, notes string) (store.Campaign, error) {
	return s.reviewCampaign(ctx, userID, campaignID, workspaceID, notes, store.ApprovalApproved, store.CampaignApproved)
}

func (s *Service) RejectCampaign(ctx context.Context, userID, campaignID, workspaceID, notes string) (store.Campaign, error) {
	return s.reviewCampaign(ctx, userID, campaignID, workspaceID, notes, store.ApprovalRejected, store.CampaignCancelled)
}

// reviewCampaign stamps the approval and moves the campaign in one
// transaction. Campaigns created without review get an approval row here.
func (s *Service) reviewCampaign(ctx context.Context, userID, campaignID, workspaceID, notes, approvalStatus, campaignStatus string) (store.Campaign, error) {
	var out store.Campaign
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.LockCampaign(ctx, campaignID)
		if isNoRows(err) {
			return notFound("Campaign")
		}
		if err != nil {
			return err
		}
		if workspaceID != "" && c.WorkspaceID != workspaceID {
			return forbidden("Campaign belongs to a different workspace")
		}
		ws, err := tx.GetWorkspace(ctx, c.WorkspaceID)
		if isNoRows(err) {
			return notFound("Workspace")
		}
		if err != nil {
			return err
		}
		if ws.UserID != userID {
			return forbidden("Only the workspace owner can review campaigns")
		}

		now := s.now().UTC()
		reviewer := userID
		approval := store.CampaignApproval{
			CampaignID: c.ID,
			Status:     approvalStatus,
			ReviewerID: &reviewer,
			Notes:      optionalString(strings.TrimSpace(notes)),
			ReviewedAt: &now,
		}
		if c.Approval == nil {
			approval.ID = newID()
			approval.CreatedAt = now
			if err := tx.InsertCampaignApproval(ctx, approval); err != nil {
				return err
			}
		} else {
			approval.ID = c.Approval.ID
			approval.CreatedAt = c.Approval.CreatedAt
			if err := tx.ReviewCampaignApproval(ctx, approval); err != nil {
				return err
			}
		}
		if err := tx.UpdateCampaignStatus(ctx, c.ID, campaignStatus); err != nil {
			return err
		}
		c.Status = campaignStatus
		c.UpdatedAt = now
		c.Approval = &approval
		out = c
		return nil
	})
	if err != nil {
		return store.Campaign{}, err
	}
	action := "approve"
	if approvalStatus == store.ApprovalRejected {
		action = "reject"
	}
	s.logAction(ctx, userID, action, "campaign", campaignID, map[string]any{"notes": notes})
	return out, nil
}

// PendingApprovalsForUser collects pending campaigns across every workspace
// the user owns, newest first.
func (s *Service) PendingApprovalsForUser(ctx context.Context, userID string) ([]PendingCampaign, error) {
	workspaces, err := s.store.ListWorkspacesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	perWorkspace := make([][]store.Campaign, len(workspaces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, ws := range workspaces {
		g.Go(func() error {
			items, err := s.store.ListCampaignsByStatus(gctx, ws.ID, store.CampaignPending)
			if err != nil {
				return err
			}
			perWorkspace[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]PendingCampaign, 0)
	for i, items := range perWorkspace {
		for _, c := range items {
			out = append(out, PendingCampaign{Campaign: c, WorkspaceName: workspaces[i].Name})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
