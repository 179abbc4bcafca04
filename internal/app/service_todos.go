package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"picrm/internal/email"
	"picrm/internal/store"
)

type TodoInput struct {
	WorkspaceID string     `json:"workspaceId"`
	ContactID   *string    `json:"contactId"`
	Text        string     `json:"text"`
	DueDate     *time.Time `json:"dueDate"`
}

type TodoPatch struct {
	ContactID  *string    `json:"contactId"`
	Text       *string    `json:"text"`
	DueDate    *time.Time `json:"dueDate"`
	IsComplete *bool      `json:"isComplete"`
}

func contactMismatch() *DomainError {
	return domainError(http.StatusBadRequest, codeContactMismatch, "Contact does not belong to this workspace", nil)
}

// workspaceContact checks an optional contact against the workspace it is
// being attached to.
func (s *Service) workspaceContact(ctx context.Context, userID, workspaceID string, contactID *string) error {
	if contactID == nil {
		return nil
	}
	c, err := s.ownedContact(ctx, userID, *contactID)
	if err != nil {
		return err
	}
	if c.WorkspaceID == nil || *c.WorkspaceID != workspaceID {
		return contactMismatch()
	}
	return nil
}

func (s *Service) CreateTodo(ctx context.Context, userID string, in TodoInput) (store.Todo, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return store.Todo{}, invalid("text is required")
	}
	if _, err := s.ownedWorkspace(ctx, userID, in.WorkspaceID); err != nil {
		return store.Todo{}, err
	}
	contactID := trimmedPtr(in.ContactID)
	if err := s.workspaceContact(ctx, userID, in.WorkspaceID, contactID); err != nil {
		return store.Todo{}, err
	}
	t := store.Todo{
		ID:          newID(),
		WorkspaceID: in.WorkspaceID,
		ContactID:   contactID,
		Text:        text,
		DueDate:     in.DueDate,
		CreatedBy:   userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertTodo(ctx, t); err != nil {
		return store.Todo{}, err
	}
	s.logAction(ctx, userID, "create", "todo", t.ID, nil)
	return t, nil
}

func (s *Service) GetTodo(ctx context.Context, userID, todoID string) (store.Todo, error) {
	t, err := s.store.GetTodo(ctx, todoID)
	if isNoRows(err) {
		return store.Todo{}, notFound("Todo")
	}
	if err != nil {
		return store.Todo{}, err
	}
	if _, err := s.ownedWorkspace(ctx, userID, t.WorkspaceID); err != nil {
		if IsKind(err, codeNotFound) {
			return store.Todo{}, forbidden("Not your todo")
		}
		return store.Todo{}, err
	}
	return t, nil
}

func (s *Service) TodosByContact(ctx context.Context, userID, contactID string) ([]store.Todo, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	return s.store.ListTodosByContact(ctx, contactID)
}

func (s *Service) TodosByWorkspace(ctx context.Context, userID, workspaceID string, complete *bool) ([]store.Todo, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListTodosByWorkspace(ctx, workspaceID, complete)
}

func (s *Service) TodosByUser(ctx context.Context, userID string) ([]store.Todo, error) {
	return s.store.ListTodosByUser(ctx, userID)
}

func (s *Service) UpdateTodo(ctx context.Context, userID, todoID string, patch TodoPatch) (store.Todo, error) {
	t, err := s.GetTodo(ctx, userID, todoID)
	if err != nil {
		return store.Todo{}, err
	}
	if patch.Text != nil {
		text := strings.TrimSpace(*patch.Text)
		if text == "" {
			return store.Todo{}, invalid("text must not be empty")
		}
		t.Text = text
	}
	if patch.ContactID != nil {
		t.ContactID = trimmedPtr(patch.ContactID)
		if err := s.workspaceContact(ctx, userID, t.WorkspaceID, t.ContactID); err != nil {
			return store.Todo{}, err
		}
	}
	if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	if patch.IsComplete != nil {
		t.IsComplete = *patch.IsComplete
	}
	if err := s.store.UpdateTodo(ctx, t); err != nil {
		return store.Todo{}, err
	}
	s.logAction(ctx, userID, "update", "todo", t.ID, nil)
	return t, nil
}

func (s *Service) MarkTodoComplete(ctx context.Context, userID, todoID string) (store.Todo, error) {
	done := true
	return s.UpdateTodo(ctx, userID, todoID, TodoPatch{IsComplete: &done})
}

func (s *Service) DeleteTodo(ctx context.Context, userID, todoID string) error {
	if _, err := s.GetTodo(ctx, userID, todoID); err != nil {
		return err
	}
	if err := s.store.DeleteTodo(ctx, todoID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "delete", "todo", todoID, nil)
	return nil
}

// DueReminders lists the caller's open todos that are due now or overdue.
func (s *Service) DueReminders(ctx context.Context, userID string) ([]store.Todo, error) {
	due, err := s.store.ListDueTodos(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]store.Todo, 0, len(due))
	for _, d := range due {
		out = append(out, d.Todo)
	}
	return out, nil
}

// SendDueReminders emails each owner one digest of their overdue todos and
// returns how many digests went out.
func (s *Service) SendDueReminders(ctx context.Context) (int, error) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return 0, nil
	}
	due, err := s.store.ListDueTodos(ctx, "", s.now().UTC())
	if err != nil {
		return 0, err
	}
	type digest struct {
		email string
		name  string
		items []email.ReminderItem
	}
	byOwner := make(map[string]*digest)
	order := make([]string, 0)
	for _, d := range due {
		dg, ok := byOwner[d.OwnerID]
		if !ok {
			dg = &digest{email: d.OwnerEmail, name: d.OwnerName}
			byOwner[d.OwnerID] = dg
			order = append(order, d.OwnerID)
		}
		item := email.ReminderItem{Text: d.Text}
		if d.DueDate != nil {
			item.DueDate = d.DueDate.UTC().Format("2006-01-02 15:04")
		}
		dg.items = append(dg.items, item)
	}

	sent := 0
	for _, ownerID := range order {
		dg := byOwner[ownerID]
		if err := s.mailer.SendTodoReminders(dg.email, dg.name, dg.items); err != nil {
			s.logger.Warn("send todo reminders", zap.String("user_id", ownerID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

var logTypes = map[string]bool{
	"email": true, "text": true, "call": true, "ai": true,
	"stage_change": true, "note": true, "system": true,
}

type FollowUpInput struct {
	Text    string     `json:"text"`
	DueDate *time.Time `json:"dueDate"`
}

type LogInput struct {
	WorkspaceID string          `json:"workspaceId"`
	ContactID   string          `json:"contactId"`
	Type        string          `json:"type"`
	Content     json.RawMessage `json:"content"`
	Status      *string         `json:"status"`
	FollowUp    *FollowUpInput  `json:"followUp"`
}

type LogResult struct {
	Log      store.CommunicationLog `json:"log"`
	FollowUp *store.Todo            `json:"followUp,omitempty"`
}

// CreateLog records a communication and, when asked, its follow-up todo in
// the same transaction.
func (s *Service) CreateLog(ctx context.Context, userID string, in LogInput) (LogResult, error) {
	if !logTypes[in.Type] {
		return LogResult{}, invalid("type must be one of email, text, call, ai, stage_change, note, system")
	}
	if len(in.Content) == 0 || !json.Valid(in.Content) {
		return LogResult{}, invalid("content must be valid JSON")
	}
	if _, err := s.ownedWorkspace(ctx, userID, in.WorkspaceID); err != nil {
		return LogResult{}, err
	}
	if in.ContactID == "" {
		return LogResult{}, invalid("contactId is required")
	}
	if err := s.workspaceContact(ctx, userID, in.WorkspaceID, &in.ContactID); err != nil {
		return LogResult{}, err
	}

	now := s.now().UTC()
	result := LogResult{Log: store.CommunicationLog{
		ID:          newID(),
		WorkspaceID: in.WorkspaceID,
		ContactID:   in.ContactID,
		Type:        in.Type,
		Content:     in.Content,
		Status:      trimmedPtr(in.Status),
		Timestamp:   now,
	}}
	if in.FollowUp != nil {
		text := strings.TrimSpace(in.FollowUp.Text)
		if text == "" {
			return LogResult{}, invalid("followUp.text is required")
		}
		contactID := in.ContactID
		result.FollowUp = &store.Todo{
			ID:          newID(),
			WorkspaceID: in.WorkspaceID,
			ContactID:   &contactID,
			Text:        text,
			DueDate:     in.FollowUp.DueDate,
			CreatedBy:   userID,
			CreatedAt:   now,
		}
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertCommunicationLog(ctx, result.Log); err != nil {
			return err
		}
		if result.FollowUp != nil {
			return tx.InsertTodo(ctx, *result.FollowUp)
		}
		return nil
	})
	if err != nil {
		return LogResult{}, err
	}
	s.logAction(ctx, userID, "create", "communication_log", result.Log.ID, map[string]any{"type": in.Type})
	return result, nil
}

func (s *Service) LogsByContact(ctx context.Context, userID, contactID string) ([]store.CommunicationLog, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	return s.store.ListLogsByContact(ctx, contactID)
}

func (s *Service) LogsByWorkspace(ctx context.Context, userID, workspaceID, logType string, limit int) ([]store.CommunicationLog, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	if logType != "" && !logTypes[logType] {
		return nil, invalid("unknown log type")
	}
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	return s.store.ListLogsByWorkspace(ctx, workspaceID, logType, limit)
}
