package app

import (
	"context"
	"strings"

	"picrm/internal/search"
	"picrm/internal/store"
)

type WorkspaceInput struct {
	Name             string `json:"name"`
	RequiresApproval bool   `json:"requiresApproval"`
}

type WorkspacePatch struct {
	Name             *string `json:"name"`
	RequiresApproval *bool   `json:"requiresApproval"`
}

func (s *Service) CreateWorkspace(ctx context.Context, userID string, in WorkspaceInput) (store.Workspace, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Workspace{}, invalid("name is required")
	}
	taken, err := s.store.WorkspaceNameExists(ctx, userID, name, "")
	if err != nil {
		return store.Workspace{}, err
	}
	if taken {
		return store.Workspace{}, duplicate("A workspace with this name already exists")
	}
	now := s.now().UTC()
	ws := store.Workspace{
		ID:               newID(),
		UserID:           userID,
		Name:             name,
		RequiresApproval: in.RequiresApproval,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertWorkspace(ctx, ws); err != nil {
		if store.IsConflict(err) {
			return store.Workspace{}, duplicate("A workspace with this name already exists")
		}
		return store.Workspace{}, err
	}
	s.logAction(ctx, userID, "create", "workspace", ws.ID, map[string]any{"name": ws.Name})
	return ws, nil
}

func (s *Service) WorkspacesByUser(ctx context.Context, userID string) ([]store.Workspace, error) {
	return s.store.ListWorkspacesByUser(ctx, userID)
}

func (s *Service) GetWorkspace(ctx context.Context, userID, workspaceID string) (store.Workspace, error) {
	return s.ownedWorkspace(ctx, userID, workspaceID)
}

func (s *Service) UpdateWorkspace(ctx context.Context, userID, workspaceID string, patch WorkspacePatch) (store.Workspace, error) {
	ws, err := s.ownedWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return store.Workspace{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return store.Workspace{}, invalid("name must not be empty")
		}
		if name != ws.Name {
			taken, err := s.store.WorkspaceNameExists(ctx, userID, name, ws.ID)
			if err != nil {
				return store.Workspace{}, err
			}
			if taken {
				return store.Workspace{}, duplicate("A workspace with this name already exists")
			}
		}
		ws.Name = name
	}
	if patch.RequiresApproval != nil {
		ws.RequiresApproval = *patch.RequiresApproval
	}
	ws.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateWorkspace(ctx, ws); err != nil {
		if store.IsConflict(err) {
			return store.Workspace{}, duplicate("A workspace with this name already exists")
		}
		return store.Workspace{}, err
	}
	s.logAction(ctx, userID, "update", "workspace", ws.ID, nil)
	return ws, nil
}

// DeleteWorkspace removes the workspace; the schema cascades to everything
// scoped to it.
func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) error {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return err
	}
	contacts, err := s.store.ListContactsByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	if s.search != nil {
		for _, c := range contacts {
			s.search.DeleteContact(c.ID)
		}
	}
	s.logAction(ctx, userID, "delete", "workspace", workspaceID, nil)
	return nil
}

type ContactInput struct {
	WorkspaceID  *string `json:"workspaceId"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	PrimaryEmail *string `json:"primaryEmail"`
	PrimaryPhone *string `json:"primaryPhone"`
	Company      *string `json:"company"`
}

type ContactPatch struct {
	WorkspaceID  *string `json:"workspaceId"`
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	PrimaryEmail *string `json:"primaryEmail"`
	PrimaryPhone *string `json:"primaryPhone"`
	Company      *string `json:"company"`
}

func normalizeEmail(value *string) *string {
	v := trimmedPtr(value)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

func (s *Service) CreateContact(ctx context.Context, userID string, in ContactInput) (store.Contact, error) {
	c := store.Contact{
		ID:           newID(),
		UserID:       userID,
		WorkspaceID:  trimmedPtr(in.WorkspaceID),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PrimaryEmail: normalizeEmail(in.PrimaryEmail),
		PrimaryPhone: trimmedPtr(in.PrimaryPhone),
		Company:      trimmedPtr(in.Company),
	}
	if c.FirstName == "" && c.LastName == "" {
		return store.Contact{}, invalid("firstName or lastName is required")
	}
	if c.WorkspaceID != nil {
		if _, err := s.ownedWorkspace(ctx, userID, *c.WorkspaceID); err != nil {
			return store.Contact{}, err
		}
		if err := checkContactDuplicates(ctx, s.store, c); err != nil {
			return store.Contact{}, err
		}
	}
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.InsertContact(ctx, c); err != nil {
		if store.IsConflict(err) {
			return store.Contact{}, duplicate("A contact with this email or phone already exists in this workspace")
		}
		return store.Contact{}, err
	}
	s.indexContact(c)
	s.logAction(ctx, userID, "create", "contact", c.ID, nil)
	return c, nil
}

// duplicateChecker is satisfied by both the store and an open transaction.
type duplicateChecker interface {
	ContactEmailTaken(ctx context.Context, workspaceID, email, excludeID string) (bool, error)
	ContactPhoneTaken(ctx context.Context, workspaceID, phone, excludeID string) (bool, error)
}

// checkContactDuplicates enforces per-workspace uniqueness of email and phone.
func checkContactDuplicates(ctx context.Context, q duplicateChecker, c store.Contact) error {
	if c.WorkspaceID == nil {
		return nil
	}
	if c.PrimaryEmail != nil {
		taken, err := q.ContactEmailTaken(ctx, *c.WorkspaceID, *c.PrimaryEmail, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("A contact with this email already exists in this workspace")
		}
	}
	if c.PrimaryPhone != nil {
		taken, err := q.ContactPhoneTaken(ctx, *c.WorkspaceID, *c.PrimaryPhone, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("A contact with this phone already exists in this workspace")
		}
	}
	return nil
}

// checkAssignmentsStayInWorkspace refuses a workspace move that would leave
// the contact on lists of the workspace it is leaving.
func (s *Service) checkAssignmentsStayInWorkspace(ctx context.Context, c store.Contact) error {
	memberships, err := s.store.ListMemberships(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if c.WorkspaceID == nil || m.List.WorkspaceID != *c.WorkspaceID {
			return forbidden("Contact has list assignments in another workspace")
		}
	}
	return nil
}

func (s *Service) GetContact(ctx context.Context, userID, contactID string) (store.Contact, error) {
	return s.ownedContact(ctx, userID, contactID)
}

func (s *Service) ContactsByWorkspace(ctx context.Context, userID, workspaceID string) ([]store.Contact, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListContactsByWorkspace(ctx, workspaceID)
}

func (s *Service) ContactsByUser(ctx context.Context, userID string) ([]store.Contact, error) {
	return s.store.ListContactsByUser(ctx, userID)
}

func (s *Service) UpdateContact(ctx context.Context, userID, contactID string, patch ContactPatch) (store.Contact, error) {
	c, err := s.ownedContact(ctx, userID, contactID)
	if err != nil {
		return store.Contact{}, err
	}
	if patch.WorkspaceID != nil {
		c.WorkspaceID = trimmedPtr(patch.WorkspaceID)
		if c.WorkspaceID != nil {
			if _, err := s.ownedWorkspace(ctx, userID, *c.WorkspaceID); err != nil {
				return store.Contact{}, err
			}
		}
		if err := s.checkAssignmentsStayInWorkspace(ctx, c); err != nil {
			return store.Contact{}, err
		}
	}
	if patch.FirstName != nil {
		c.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		c.LastName = strings.TrimSpace(*patch.LastName)
	}
	if c.FirstName == "" && c.LastName == "" {
		return store.Contact{}, invalid("firstName or lastName is required")
	}
	if patch.PrimaryEmail != nil {
		c.PrimaryEmail = normalizeEmail(patch.PrimaryEmail)
	}
	if patch.PrimaryPhone != nil {
		c.PrimaryPhone = trimmedPtr(patch.PrimaryPhone)
	}
	if patch.Company != nil {
		c.Company = trimmedPtr(patch.Company)
	}
	if err := checkContactDuplicates(ctx, s.store, c); err != nil {
		return store.Contact{}, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateContact(ctx, c); err != nil {
		if store.IsConflict(err) {
			return store.Contact{}, duplicate("A contact with this email or phone already exists in this workspace")
		}
		return store.Contact{}, err
	}
	s.indexContact(c)
	s.logAction(ctx, userID, "update", "contact", c.ID, nil)
	return c, nil
}

func (s *Service) DeleteContact(ctx context.Context, userID, contactID string) error {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return err
	}
	if err := s.store.DeleteContact(ctx, contactID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteContact(contactID)
	}
	s.logAction(ctx, userID, "delete", "contact", contactID, nil)
	return nil
}

func (s *Service) indexContact(c store.Contact) {
	if s.search == nil {
		return
	}
	s.search.IndexContact(search.ContactRecord{
		ID:          c.ID,
		UserID:      c.UserID,
		WorkspaceID: derefOr(c.WorkspaceID, ""),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       derefOr(c.PrimaryEmail, ""),
		Phone:       derefOr(c.PrimaryPhone, ""),
		Company:     derefOr(c.Company, ""),
	})
}

type SearchInput struct {
	Query       string
	WorkspaceID string
	Limit       int
	Offset      int
}

// SearchContacts always scopes hits to the caller.
func (s *Service) SearchContacts(ctx context.Context, userID string, in SearchInput) (search.Response, error) {
	q := strings.TrimSpace(in.Query)
	if q == "" {
		return search.Response{}, invalid("q is required")
	}
	if in.WorkspaceID != "" {
		if _, err := s.ownedWorkspace(ctx, userID, in.WorkspaceID); err != nil {
			return search.Response{}, err
		}
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q, Backend: "none"}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:        q,
		UserID:      userID,
		WorkspaceID: in.WorkspaceID,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}), nil
}
