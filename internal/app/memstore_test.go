package app

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"picrm/internal/store"
)

type memRefresh struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

type memAssignment struct {
	store.Assignment
	seq int
}

type memData struct {
	users       map[string]store.User
	refresh     map[string]memRefresh
	apiKeys     map[string]store.APIKey
	workspaces  map[string]store.Workspace
	contacts    map[string]store.Contact
	lists       map[string]store.List
	assignments map[[2]string]memAssignment
	campaigns   map[string]store.Campaign
	approvals   map[string]store.CampaignApproval
	templates   map[string]store.Template
	todos       map[string]store.Todo
	logs        map[string]store.CommunicationLog
	fieldDefs   map[string]store.CustomFieldDefinition
	fieldValues map[[2]string]store.CustomFieldValue
	settings    map[[3]string]store.SystemSetting
	insights    map[string]store.Insight
	audit       []store.AuditLog
	seq         int
}

func newMemData() memData {
	return memData{
		users:       map[string]store.User{},
		refresh:     map[string]memRefresh{},
		apiKeys:     map[string]store.APIKey{},
		workspaces:  map[string]store.Workspace{},
		contacts:    map[string]store.Contact{},
		lists:       map[string]store.List{},
		assignments: map[[2]string]memAssignment{},
		campaigns:   map[string]store.Campaign{},
		approvals:   map[string]store.CampaignApproval{},
		templates:   map[string]store.Template{},
		todos:       map[string]store.Todo{},
		logs:        map[string]store.CommunicationLog{},
		fieldDefs:   map[string]store.CustomFieldDefinition{},
		fieldValues: map[[2]string]store.CustomFieldValue{},
		settings:    map[[3]string]store.SystemSetting{},
		insights:    map[string]store.Insight{},
	}
}

func (d memData) clone() memData {
	return memData{
		users:       maps.Clone(d.users),
		refresh:     maps.Clone(d.refresh),
		apiKeys:     maps.Clone(d.apiKeys),
		workspaces:  maps.Clone(d.workspaces),
		contacts:    maps.Clone(d.contacts),
		lists:       maps.Clone(d.lists),
		assignments: maps.Clone(d.assignments),
		campaigns:   maps.Clone(d.campaigns),
		approvals:   maps.Clone(d.approvals),
		templates:   maps.Clone(d.templates),
		todos:       maps.Clone(d.todos),
		logs:        maps.Clone(d.logs),
		fieldDefs:   maps.Clone(d.fieldDefs),
		fieldValues: maps.Clone(d.fieldValues),
		settings:    maps.Clone(d.settings),
		insights:    maps.Clone(d.insights),
		audit:       append([]store.AuditLog(nil), d.audit...),
		seq:         d.seq,
	}
}

// memStore is an in-memory dataStore. Transactions are serialized and roll
// back to a snapshot on error, which is enough to observe the engines'
// atomicity and single-primary guarantees.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    memData
}

func newMemStore() *memStore {
	return &memStore{d: newMemData()}
}

func conflict(what string) error {
	return fmt.Errorf("insert %s: %w", what, store.ErrConflict)
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.d.clone()
	m.mu.Unlock()

	if err := fn(&memTx{m: m}); err != nil {
		m.mu.Lock()
		m.d = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.d.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.d.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memStore) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.d.users {
		if u.Email == strings.ToLower(user.Email) {
			return conflict("user")
		}
	}
	user.Email = strings.ToLower(user.Email)
	m.d.users[user.ID] = user
	return nil
}

func (m *memStore) InsertAPIKey(_ context.Context, key store.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.apiKeys[key.ID] = key
	return nil
}

func (m *memStore) GetAPIKeyByHash(_ context.Context, hash string) (store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.d.apiKeys {
		if k.KeyHash == hash {
			return k, nil
		}
	}
	return store.APIKey{}, sql.ErrNoRows
}

func (m *memStore) ListAPIKeys(_ context.Context, userID string) ([]store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.APIKey, 0)
	for _, k := range m.d.apiKeys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) RevokeAPIKey(_ context.Context, keyID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.d.apiKeys[keyID]
	if !ok || k.UserID != userID || !k.IsActive {
		return false, nil
	}
	k.IsActive = false
	m.d.apiKeys[keyID] = k
	return true, nil
}

func (m *memStore) SaveRefreshSession(_ context.Context, hash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.refresh[hash] = memRefresh{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) LookupRefreshSession(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.d.refresh[hash]
	if !ok || r.revoked || time.Now().After(r.expiresAt) {
		return "", sql.ErrNoRows
	}
	return r.userID, nil
}

func (m *memStore) RevokeRefreshSession(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.d.refresh[hash]; ok {
		r.revoked = true
		m.d.refresh[hash] = r
	}
	return nil
}

func (m *memStore) getWorkspace(id string) (store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.d.workspaces[id]
	if !ok {
		return store.Workspace{}, sql.ErrNoRows
	}
	return ws, nil
}

func (m *memStore) GetWorkspace(_ context.Context, id string) (store.Workspace, error) {
	return m.getWorkspace(id)
}

func (m *memStore) InsertWorkspace(_ context.Context, ws store.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.d.workspaces {
		if other.UserID == ws.UserID && other.Name == ws.Name {
			return conflict("workspace")
		}
	}
	m.d.workspaces[ws.ID] = ws
	return nil
}

func (m *memStore) ListWorkspacesByUser(_ context.Context, userID string) ([]store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Workspace, 0)
	for _, ws := range m.d.workspaces {
		if ws.UserID == userID {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) WorkspaceNameExists(_ context.Context, userID, name, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.d.workspaces {
		if ws.UserID == userID && ws.Name == name && ws.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdateWorkspace(_ context.Context, ws store.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.workspaces[ws.ID] = ws
	return nil
}

func (m *memStore) DeleteWorkspace(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.workspaces, id)
	for k, l := range m.d.lists {
		if l.WorkspaceID == id {
			delete(m.d.lists, k)
		}
	}
	for k, a := range m.d.assignments {
		if a.WorkspaceID == id {
			delete(m.d.assignments, k)
		}
	}
	for k, c := range m.d.contacts {
		if c.WorkspaceID != nil && *c.WorkspaceID == id {
			delete(m.d.contacts, k)
		}
	}
	return nil
}

func (m *memStore) getContact(id string) (store.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.d.contacts[id]
	if !ok {
		return store.Contact{}, sql.ErrNoRows
	}
	return c, nil
}

func (m *memStore) GetContact(_ context.Context, id string) (store.Contact, error) {
	return m.getContact(id)
}

func (m *memStore) InsertContact(_ context.Context, c store.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.contacts[c.ID] = c
	return nil
}

func (m *memStore) UpdateContact(_ context.Context, c store.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.contacts[c.ID] = c
	return nil
}

func (m *memStore) DeleteContact(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.contacts, id)
	for k := range m.d.assignments {
		if k[0] == id {
			delete(m.d.assignments, k)
		}
	}
	return nil
}

func (m *memStore) filterContacts(keep func(store.Contact) bool) []store.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Contact, 0)
	for _, c := range m.d.contacts {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListContactsByWorkspace(_ context.Context, workspaceID string) ([]store.Contact, error) {
	return m.filterContacts(func(c store.Contact) bool {
		return c.WorkspaceID != nil && *c.WorkspaceID == workspaceID
	}), nil
}

func (m *memStore) ListContactsByUser(_ context.Context, userID string) ([]store.Contact, error) {
	return m.filterContacts(func(c store.Contact) bool { return c.UserID == userID }), nil
}

func (m *memStore) ContactEmailTaken(_ context.Context, workspaceID, email, excludeID string) (bool, error) {
	found := m.filterContacts(func(c store.Contact) bool {
		return c.ID != excludeID && c.WorkspaceID != nil && *c.WorkspaceID == workspaceID &&
			c.PrimaryEmail != nil && strings.EqualFold(*c.PrimaryEmail, email)
	})
	return len(found) > 0, nil
}

func (m *memStore) ContactPhoneTaken(_ context.Context, workspaceID, phone, excludeID string) (bool, error) {
	found := m.filterContacts(func(c store.Contact) bool {
		return c.ID != excludeID && c.WorkspaceID != nil && *c.WorkspaceID == workspaceID &&
			c.PrimaryPhone != nil && *c.PrimaryPhone == phone
	})
	return len(found) > 0, nil
}

func (m *memStore) getList(id string) (store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.d.lists[id]
	if !ok {
		return store.List{}, sql.ErrNoRows
	}
	return l, nil
}

func (m *memStore) GetList(_ context.Context, id string) (store.List, error) {
	return m.getList(id)
}

func (m *memStore) InsertList(_ context.Context, l store.List) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.d.lists {
		if other.WorkspaceID == l.WorkspaceID && other.Name == l.Name {
			return conflict("list")
		}
	}
	m.d.lists[l.ID] = l
	return nil
}

func (m *memStore) ListNameExists(_ context.Context, workspaceID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.d.lists {
		if l.WorkspaceID == workspaceID && l.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListListsByWorkspace(_ context.Context, workspaceID string) ([]store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.List, 0)
	for _, l := range m.d.lists {
		if l.WorkspaceID == workspaceID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) DeleteList(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.lists, id)
	for k := range m.d.assignments {
		if k[1] == id {
			delete(m.d.assignments, k)
		}
	}
	return nil
}

func (m *memStore) getAssignment(contactID, listID string) (store.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.d.assignments[[2]string{contactID, listID}]
	if !ok {
		return store.Assignment{}, sql.ErrNoRows
	}
	return a.Assignment, nil
}

func (m *memStore) GetAssignment(_ context.Context, contactID, listID string) (store.Assignment, error) {
	return m.getAssignment(contactID, listID)
}

func (m *memStore) DeleteAssignment(_ context.Context, contactID, listID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.assignments, [2]string{contactID, listID})
	return nil
}

func (m *memStore) memberships(contactID, workspaceID string, primaryOnly bool) []store.Membership {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]memAssignment, 0)
	for _, a := range m.d.assignments {
		if a.ContactID != contactID {
			continue
		}
		if workspaceID != "" && a.WorkspaceID != workspaceID {
			continue
		}
		if primaryOnly && !a.IsPrimary {
			continue
		}
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]store.Membership, 0, len(rows))
	for _, a := range rows {
		out = append(out, store.Membership{List: m.d.lists[a.ListID], IsPrimary: a.IsPrimary, AssignedAt: a.AssignedAt})
	}
	return out
}

func (m *memStore) ListMemberships(_ context.Context, contactID string) ([]store.Membership, error) {
	return m.memberships(contactID, "", false), nil
}

func (m *memStore) PrimaryMembership(_ context.Context, contactID, workspaceID string) (*store.Membership, error) {
	items := m.memberships(contactID, workspaceID, true)
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (m *memStore) primaryCount(contactID, workspaceID string) int {
	return len(m.memberships(contactID, workspaceID, true))
}

func (m *memStore) withApproval(c store.Campaign) store.Campaign {
	if a, ok := m.d.approvals[c.ID]; ok {
		c.Approval = &a
	} else {
		c.Approval = nil
	}
	return c
}

func (m *memStore) getCampaign(id string) (store.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.d.campaigns[id]
	if !ok {
		return store.Campaign{}, sql.ErrNoRows
	}
	return m.withApproval(c), nil
}

func (m *memStore) GetCampaign(_ context.Context, id string) (store.Campaign, error) {
	return m.getCampaign(id)
}

func (m *memStore) filterCampaigns(keep func(store.Campaign) bool, newestFirst bool) []store.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Campaign, 0)
	for _, c := range m.d.campaigns {
		if keep(c) {
			out = append(out, m.withApproval(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memStore) ListCampaignsByWorkspace(_ context.Context, workspaceID string) ([]store.Campaign, error) {
	return m.filterCampaigns(func(c store.Campaign) bool { return c.WorkspaceID == workspaceID }, true), nil
}

func (m *memStore) ListCampaignsByStatus(_ context.Context, workspaceID, status string) ([]store.Campaign, error) {
	return m.filterCampaigns(func(c store.Campaign) bool {
		return c.WorkspaceID == workspaceID && c.Status == status
	}, false), nil
}

func (m *memStore) CancelCampaign(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.d.campaigns[id]; ok {
		c.Status = store.CampaignCancelled
		m.d.campaigns[id] = c
	}
	return nil
}

func (m *memStore) GetTemplate(_ context.Context, id string) (store.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.d.templates[id]
	if !ok {
		return store.Template{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *memStore) InsertTemplate(_ context.Context, t store.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.templates[t.ID] = t
	return nil
}

func (m *memStore) UpdateTemplate(_ context.Context, t store.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.templates[t.ID] = t
	return nil
}

func (m *memStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.templates, id)
	return nil
}

func (m *memStore) TemplateNameExists(_ context.Context, workspaceID, name, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.d.templates {
		if t.WorkspaceID == workspaceID && t.Name == name && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListTemplatesByWorkspace(_ context.Context, workspaceID string) ([]store.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Template, 0)
	for _, t := range m.d.templates {
		if t.WorkspaceID == workspaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) InsertTodo(_ context.Context, t store.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.todos[t.ID] = t
	return nil
}

func (m *memStore) GetTodo(_ context.Context, id string) (store.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.d.todos[id]
	if !ok {
		return store.Todo{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *memStore) UpdateTodo(_ context.Context, t store.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.todos[t.ID] = t
	return nil
}

func (m *memStore) DeleteTodo(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.todos, id)
	return nil
}

func (m *memStore) filterTodos(keep func(store.Todo) bool) []store.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Todo, 0)
	for _, t := range m.d.todos {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListTodosByContact(_ context.Context, contactID string) ([]store.Todo, error) {
	return m.filterTodos(func(t store.Todo) bool { return t.ContactID != nil && *t.ContactID == contactID }), nil
}

func (m *memStore) ListTodosByWorkspace(_ context.Context, workspaceID string, complete *bool) ([]store.Todo, error) {
	return m.filterTodos(func(t store.Todo) bool {
		return t.WorkspaceID == workspaceID && (complete == nil || t.IsComplete == *complete)
	}), nil
}

func (m *memStore) ListTodosByUser(_ context.Context, userID string) ([]store.Todo, error) {
	owned := m.ownedWorkspaceIDs(userID)
	return m.filterTodos(func(t store.Todo) bool { return owned[t.WorkspaceID] }), nil
}

func (m *memStore) ownedWorkspaceIDs(userID string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, ws := range m.d.workspaces {
		if userID == "" || ws.UserID == userID {
			out[ws.ID] = true
		}
	}
	return out
}

func (m *memStore) ListDueTodos(_ context.Context, userID string, before time.Time) ([]store.DueTodo, error) {
	owned := m.ownedWorkspaceIDs(userID)
	todos := m.filterTodos(func(t store.Todo) bool {
		return owned[t.WorkspaceID] && !t.IsComplete && t.DueDate != nil && !t.DueDate.After(before)
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.DueTodo, 0, len(todos))
	for _, t := range todos {
		owner := m.d.users[m.d.workspaces[t.WorkspaceID].UserID]
		out = append(out, store.DueTodo{Todo: t, OwnerID: owner.ID, OwnerEmail: owner.Email, OwnerName: owner.DisplayName})
	}
	return out, nil
}

func (m *memStore) ListLogsByContact(_ context.Context, contactID string) ([]store.CommunicationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CommunicationLog, 0)
	for _, l := range m.d.logs {
		if l.ContactID == contactID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ListLogsByWorkspace(_ context.Context, workspaceID, logType string, limit int) ([]store.CommunicationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CommunicationLog, 0)
	for _, l := range m.d.logs {
		if l.WorkspaceID == workspaceID && (logType == "" || l.Type == logType) {
			out = append(out, l)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) InsertFieldDefinition(_ context.Context, d store.CustomFieldDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.d.fieldDefs {
		if other.UserID == d.UserID && other.FieldName == d.FieldName &&
			derefOr(other.WorkspaceID, "") == derefOr(d.WorkspaceID, "") {
			return conflict("field definition")
		}
	}
	m.d.fieldDefs[d.ID] = d
	return nil
}

func (m *memStore) GetFieldDefinition(_ context.Context, id string) (store.CustomFieldDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.d.fieldDefs[id]
	if !ok {
		return store.CustomFieldDefinition{}, sql.ErrNoRows
	}
	return d, nil
}

func (m *memStore) ListFieldDefinitions(_ context.Context, userID, workspaceID string) ([]store.CustomFieldDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CustomFieldDefinition, 0)
	for _, d := range m.d.fieldDefs {
		if d.UserID == userID && (d.WorkspaceID == nil || *d.WorkspaceID == workspaceID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldName < out[j].FieldName })
	return out, nil
}

func (m *memStore) DeleteFieldDefinition(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.fieldDefs, id)
	return nil
}

func (m *memStore) upsertFieldValue(v store.CustomFieldValue) (store.CustomFieldValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{v.ContactID, v.FieldName}
	if existing, ok := m.d.fieldValues[key]; ok {
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
	} else if v.ID == "" {
		v.ID = newID()
	}
	if v.FieldType == "" {
		v.FieldType = "text"
	}
	m.d.fieldValues[key] = v
	return v, nil
}

func (m *memStore) UpsertFieldValue(_ context.Context, v store.CustomFieldValue) (store.CustomFieldValue, error) {
	return m.upsertFieldValue(v)
}

func (m *memStore) ListFieldValues(_ context.Context, contactID string) ([]store.CustomFieldValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CustomFieldValue, 0)
	for k, v := range m.d.fieldValues {
		if k[0] == contactID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldName < out[j].FieldName })
	return out, nil
}

func (m *memStore) DeleteFieldValue(_ context.Context, contactID, fieldName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{contactID, fieldName}
	_, ok := m.d.fieldValues[key]
	delete(m.d.fieldValues, key)
	return ok, nil
}

func (m *memStore) GetSetting(_ context.Context, scope, scopeID, key string) (store.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.d.settings[[3]string{scope, scopeID, key}]
	if !ok {
		return store.SystemSetting{}, sql.ErrNoRows
	}
	return s, nil
}

func (m *memStore) UpsertSetting(_ context.Context, setting store.SystemSetting) (store.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [3]string{setting.Scope, setting.ScopeID, setting.Key}
	if existing, ok := m.d.settings[key]; ok {
		setting.ID = existing.ID
	} else if setting.ID == "" {
		setting.ID = newID()
	}
	m.d.settings[key] = setting
	return setting, nil
}

func (m *memStore) DeleteSetting(_ context.Context, scope, scopeID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [3]string{scope, scopeID, key}
	_, ok := m.d.settings[k]
	delete(m.d.settings, k)
	return ok, nil
}

func (m *memStore) ListSettings(_ context.Context, scope, scopeID string) ([]store.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.SystemSetting, 0)
	for k, s := range m.d.settings {
		if k[0] == scope && k[1] == scopeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertAuditLog(_ context.Context, entry store.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.audit = append(m.d.audit, entry)
	return nil
}

func (m *memStore) ListAuditLogs(_ context.Context, filter store.AuditFilter) ([]store.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.AuditLog, 0)
	for _, e := range m.d.audit {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && derefOr(e.EntityType, "") != filter.EntityType {
			continue
		}
		if filter.UserID != "" && derefOr(e.UserID, "") != filter.UserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) ListAuditLogsForEntity(_ context.Context, entityType, entityID string) ([]store.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.AuditLog, 0)
	for _, e := range m.d.audit {
		if derefOr(e.EntityType, "") == entityType && derefOr(e.EntityID, "") == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) InsertInsight(_ context.Context, in store.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.insights[in.ID] = in
	return nil
}

func (m *memStore) GetInsight(_ context.Context, id string) (store.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.d.insights[id]
	if !ok {
		return store.Insight{}, sql.ErrNoRows
	}
	return in, nil
}

func (m *memStore) ListInsights(_ context.Context, userID string, filter store.InsightFilter) ([]store.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Insight, 0)
	for _, in := range m.d.insights {
		if in.UserID != userID || (in.DismissedAt != nil) != filter.Dismissed {
			continue
		}
		if filter.Type != "" && in.Type != filter.Type {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func (m *memStore) DismissInsight(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.d.insights[id]; ok && in.DismissedAt == nil {
		now := time.Now().UTC()
		in.DismissedAt = &now
		m.d.insights[id] = in
	}
	return nil
}

func (m *memStore) DeleteInsight(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d.insights, id)
	return nil
}

func (m *memStore) PurgeInsights(_ context.Context, userID string, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, in := range m.d.insights {
		if in.UserID == userID && in.CreatedAt.Before(before) {
			delete(m.d.insights, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) auditEntries() []store.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.AuditLog(nil), m.d.audit...)
}

// memTx runs against the same maps; memStore.WithTx provides isolation.
type memTx struct {
	m *memStore
}

func (t *memTx) GetWorkspace(_ context.Context, id string) (store.Workspace, error) {
	return t.m.getWorkspace(id)
}

func (t *memTx) GetList(_ context.Context, id string) (store.List, error) {
	return t.m.getList(id)
}

func (t *memTx) LockContact(_ context.Context, id string) (store.Contact, error) {
	return t.m.getContact(id)
}

// SetContactWorkspace mirrors the per-workspace unique indexes on email and
// phone.
func (t *memTx) SetContactWorkspace(_ context.Context, contactID, workspaceID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	c := t.m.d.contacts[contactID]
	for _, other := range t.m.d.contacts {
		if other.ID == contactID || other.WorkspaceID == nil || *other.WorkspaceID != workspaceID {
			continue
		}
		if c.PrimaryEmail != nil && other.PrimaryEmail != nil && strings.EqualFold(*c.PrimaryEmail, *other.PrimaryEmail) {
			return conflict("contact")
		}
		if c.PrimaryPhone != nil && other.PrimaryPhone != nil && *c.PrimaryPhone == *other.PrimaryPhone {
			return conflict("contact")
		}
	}
	c.WorkspaceID = &workspaceID
	t.m.d.contacts[contactID] = c
	return nil
}

func (t *memTx) ContactEmailTaken(ctx context.Context, workspaceID, email, excludeID string) (bool, error) {
	return t.m.ContactEmailTaken(ctx, workspaceID, email, excludeID)
}

func (t *memTx) ContactPhoneTaken(ctx context.Context, workspaceID, phone, excludeID string) (bool, error) {
	return t.m.ContactPhoneTaken(ctx, workspaceID, phone, excludeID)
}

func (t *memTx) GetAssignment(_ context.Context, contactID, listID string) (store.Assignment, error) {
	return t.m.getAssignment(contactID, listID)
}

func (t *memTx) HasPrimaryAssignment(_ context.Context, contactID, workspaceID string) (bool, error) {
	return t.m.primaryCount(contactID, workspaceID) > 0, nil
}

func (t *memTx) DemotePrimaryAssignments(_ context.Context, contactID, workspaceID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for k, a := range t.m.d.assignments {
		if a.ContactID == contactID && a.WorkspaceID == workspaceID && a.IsPrimary {
			a.IsPrimary = false
			t.m.d.assignments[k] = a
		}
	}
	return nil
}

// InsertAssignment mirrors the primary key and the partial unique index on
// (contact_id, workspace_id) WHERE is_primary.
func (t *memTx) InsertAssignment(_ context.Context, a store.Assignment) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	key := [2]string{a.ContactID, a.ListID}
	if _, ok := t.m.d.assignments[key]; ok {
		return conflict("assignment")
	}
	if a.IsPrimary {
		for _, other := range t.m.d.assignments {
			if other.ContactID == a.ContactID && other.WorkspaceID == a.WorkspaceID && other.IsPrimary {
				return conflict("assignment")
			}
		}
	}
	t.m.d.seq++
	t.m.d.assignments[key] = memAssignment{Assignment: a, seq: t.m.d.seq}
	return nil
}

func (t *memTx) PromoteAssignment(_ context.Context, contactID, listID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	key := [2]string{contactID, listID}
	a := t.m.d.assignments[key]
	for _, other := range t.m.d.assignments {
		if other.ContactID == contactID && other.WorkspaceID == a.WorkspaceID && other.IsPrimary && other.ListID != listID {
			return conflict("assignment")
		}
	}
	a.IsPrimary = true
	t.m.d.assignments[key] = a
	return nil
}

func (t *memTx) CampaignNameExists(_ context.Context, workspaceID, name, excludeID string) (bool, error) {
	found := t.m.filterCampaigns(func(c store.Campaign) bool {
		return c.WorkspaceID == workspaceID && c.Name == name && c.ID != excludeID
	}, false)
	return len(found) > 0, nil
}

func (t *memTx) InsertCampaign(_ context.Context, c store.Campaign) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	c.Approval = nil
	t.m.d.campaigns[c.ID] = c
	return nil
}

func (t *memTx) InsertCampaignApproval(_ context.Context, a store.CampaignApproval) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.d.approvals[a.CampaignID]; ok {
		return conflict("campaign approval")
	}
	t.m.d.approvals[a.CampaignID] = a
	return nil
}

func (t *memTx) LockCampaign(_ context.Context, id string) (store.Campaign, error) {
	return t.m.getCampaign(id)
}

func (t *memTx) UpdateCampaign(_ context.Context, c store.Campaign) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	existing := t.m.d.campaigns[c.ID]
	c.Status = existing.Status
	c.Approval = nil
	t.m.d.campaigns[c.ID] = c
	return nil
}

func (t *memTx) UpdateCampaignStatus(_ context.Context, id, status string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	c := t.m.d.campaigns[id]
	c.Status = status
	t.m.d.campaigns[id] = c
	return nil
}

func (t *memTx) ReviewCampaignApproval(_ context.Context, a store.CampaignApproval) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	existing := t.m.d.approvals[a.CampaignID]
	existing.Status = a.Status
	existing.ReviewerID = a.ReviewerID
	existing.Notes = a.Notes
	existing.ReviewedAt = a.ReviewedAt
	t.m.d.approvals[a.CampaignID] = existing
	return nil
}

func (t *memTx) UpsertFieldValue(_ context.Context, v store.CustomFieldValue) (store.CustomFieldValue, error) {
	return t.m.upsertFieldValue(v)
}

func (t *memTx) InsertCommunicationLog(_ context.Context, entry store.CommunicationLog) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.d.logs[entry.ID] = entry
	return nil
}

func (t *memTx) InsertTodo(_ context.Context, todo store.Todo) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.d.todos[todo.ID] = todo
	return nil
}
