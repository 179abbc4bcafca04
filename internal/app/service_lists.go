package app

import (
	"context"
	"strings"

	"picrm/internal/store"
)

type ListInput struct {
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	IsPrimary   bool   `json:"isPrimary"`
}

func (s *Service) CreateList(ctx context.Context, userID string, in ListInput) (store.List, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.List{}, invalid("name is required")
	}
	if _, err := s.ownedWorkspace(ctx, userID, in.WorkspaceID); err != nil {
		return store.List{}, err
	}
	taken, err := s.store.ListNameExists(ctx, in.WorkspaceID, name)
	if err != nil {
		return store.List{}, err
	}
	if taken {
		return store.List{}, duplicate("A list with this name already exists in this workspace")
	}
	l := store.List{
		ID:          newID(),
		WorkspaceID: in.WorkspaceID,
		Name:        name,
		IsPrimary:   in.IsPrimary,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertList(ctx, l); err != nil {
		if store.IsConflict(err) {
			return store.List{}, duplicate("A list with this name already exists in this workspace")
		}
		return store.List{}, err
	}
	s.logAction(ctx, userID, "create", "list", l.ID, map[string]any{"workspaceId": l.WorkspaceID, "name": l.Name})
	return l, nil
}

func (s *Service) ListsByWorkspace(ctx context.Context, userID, workspaceID string) ([]store.List, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListListsByWorkspace(ctx, workspaceID)
}

// AssignToContact links a contact to a list. The contact row stays locked for
// the whole election so concurrent assignments for one contact serialize.
// makePrimary nil means "use the list default".
func (s *Service) AssignToContact(ctx context.Context, userID, contactID, listID string, makePrimary *bool) (store.Assignment, error) {
	if contactID == "" || listID == "" {
		return store.Assignment{}, invalid("contactId and listId are required")
	}
	var (
		out     store.Assignment
		adopted *store.Contact
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		list, err := tx.GetList(ctx, listID)
		if isNoRows(err) {
			return notFound("List")
		}
		if err != nil {
			return err
		}
		contact, err := tx.LockContact(ctx, contactID)
		if isNoRows(err) {
			return notFound("Contact")
		}
		if err != nil {
			return err
		}
		if contact.UserID != userID {
			return notFound("Contact")
		}
		ws, err := tx.GetWorkspace(ctx, list.WorkspaceID)
		if isNoRows(err) {
			return notFound("Workspace")
		}
		if err != nil {
			return err
		}
		if ws.UserID != userID {
			return forbidden("Not your workspace")
		}

		switch {
		case contact.WorkspaceID == nil:
			contact.WorkspaceID = &list.WorkspaceID
			if err := checkContactDuplicates(ctx, tx, contact); err != nil {
				return err
			}
			if err := tx.SetContactWorkspace(ctx, contact.ID, list.WorkspaceID); err != nil {
				if store.IsConflict(err) {
					return duplicate("A contact with this email or phone already exists in this workspace")
				}
				return err
			}
			adopted = &contact
		case *contact.WorkspaceID != list.WorkspaceID:
			return forbidden("Contact and list belong to different workspaces")
		}

		_, err = tx.GetAssignment(ctx, contactID, listID)
		if err == nil {
			return duplicate("Contact is already assigned to this list")
		}
		if !isNoRows(err) {
			return err
		}

		wantPrimary := list.IsPrimary
		if makePrimary != nil {
			wantPrimary = *makePrimary
		}
		hasPrimary, err := tx.HasPrimaryAssignment(ctx, contactID, list.WorkspaceID)
		if err != nil {
			return err
		}
		isPrimary := wantPrimary || !hasPrimary
		if isPrimary && hasPrimary {
			if err := tx.DemotePrimaryAssignments(ctx, contactID, list.WorkspaceID); err != nil {
				return err
			}
		}

		out = store.Assignment{
			ContactID:   contactID,
			ListID:      listID,
			WorkspaceID: list.WorkspaceID,
			IsPrimary:   isPrimary,
			AssignedAt:  s.now().UTC(),
		}
		if err := tx.InsertAssignment(ctx, out); err != nil {
			if store.IsConflict(err) {
				return duplicate("Contact is already assigned to this list")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return store.Assignment{}, err
	}
	if adopted != nil {
		s.indexContact(*adopted)
	}
	s.logAction(ctx, userID, "assign", "contact", contactID, map[string]any{"listId": listID, "isPrimary": out.IsPrimary})
	return out, nil
}

func (s *Service) RemoveAssignment(ctx context.Context, userID, contactID, listID string) error {
	if _, err := s.store.GetAssignment(ctx, contactID, listID); err != nil {
		if isNoRows(err) {
			return notFound("Assignment")
		}
		return err
	}
	contact, err := s.store.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	if contact.UserID != userID {
		return forbidden("Not your contact")
	}
	if err := s.store.DeleteAssignment(ctx, contactID, listID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "unassign", "contact", contactID, map[string]any{"listId": listID})
	return nil
}

// SetAssignmentAsPrimary promotes an existing assignment. Calling it on the
// current primary is a no-op.
func (s *Service) SetAssignmentAsPrimary(ctx context.Context, userID, contactID, listID, workspaceID string) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockContact(ctx, contactID); err != nil {
			if isNoRows(err) {
				return notFound("Contact")
			}
			return err
		}
		a, err := tx.GetAssignment(ctx, contactID, listID)
		if isNoRows(err) {
			return notFound("Assignment")
		}
		if err != nil {
			return err
		}
		if a.WorkspaceID != workspaceID {
			return forbidden("List does not belong to this workspace")
		}
		ws, err := tx.GetWorkspace(ctx, workspaceID)
		if isNoRows(err) {
			return notFound("Workspace")
		}
		if err != nil {
			return err
		}
		if ws.UserID != userID {
			return forbidden("Not your workspace")
		}
		if a.IsPrimary {
			return nil
		}
		if err := tx.DemotePrimaryAssignments(ctx, contactID, workspaceID); err != nil {
			return err
		}
		return tx.PromoteAssignment(ctx, contactID, listID)
	})
	if err != nil {
		return err
	}
	s.logAction(ctx, userID, "set_primary", "contact", contactID, map[string]any{"listId": listID})
	return nil
}

func (s *Service) ListsForContact(ctx context.Context, userID, contactID string) ([]store.Membership, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	return s.store.ListMemberships(ctx, contactID)
}

func (s *Service) PrimaryListForContact(ctx context.Context, userID, contactID, workspaceID string) (*store.Membership, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.PrimaryMembership(ctx, contactID, workspaceID)
}

func (s *Service) DeleteList(ctx context.Context, userID, listID, workspaceID string) error {
	l, err := s.store.GetList(ctx, listID)
	if isNoRows(err) {
		return notFound("List")
	}
	if err != nil {
		return err
	}
	if l.WorkspaceID != workspaceID {
		return forbidden("List does not belong to this workspace")
	}
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return err
	}
	if err := s.store.DeleteList(ctx, listID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "delete", "list", listID, nil)
	return nil
}
