package app

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"picrm/internal/store"
)

var (
	fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)
	fieldTypes       = map[string]bool{"text": true, "number": true, "date": true, "boolean": true, "select": true, "url": true, "email": true}
)

type FieldDefinitionInput struct {
	WorkspaceID  *string `json:"workspaceId"`
	FieldName    string  `json:"fieldName"`
	Label        string  `json:"label"`
	FieldType    string  `json:"fieldType"`
	IsRequired   bool    `json:"isRequired"`
	DefaultValue *string `json:"defaultValue"`
}

type FieldValueInput struct {
	FieldName  string  `json:"fieldName"`
	FieldValue *string `json:"fieldValue"`
	FieldType  string  `json:"fieldType"`
}

func (s *Service) FieldDefinitions(ctx context.Context, userID, workspaceID string) ([]store.CustomFieldDefinition, error) {
	if workspaceID != "" {
		if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
			return nil, err
		}
	}
	return s.store.ListFieldDefinitions(ctx, userID, workspaceID)
}

func (s *Service) CreateFieldDefinition(ctx context.Context, userID string, in FieldDefinitionInput) (store.CustomFieldDefinition, error) {
	name := strings.TrimSpace(in.FieldName)
	if !fieldNamePattern.MatchString(name) {
		return store.CustomFieldDefinition{}, invalid("fieldName must be lowercase letters, digits or underscores")
	}
	fieldType := in.FieldType
	if fieldType == "" {
		fieldType = "text"
	}
	if !fieldTypes[fieldType] {
		return store.CustomFieldDefinition{}, invalid("unknown fieldType")
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = name
	}
	workspaceID := trimmedPtr(in.WorkspaceID)
	if workspaceID != nil {
		if _, err := s.ownedWorkspace(ctx, userID, *workspaceID); err != nil {
			return store.CustomFieldDefinition{}, err
		}
	}
	d := store.CustomFieldDefinition{
		ID:           newID(),
		UserID:       userID,
		WorkspaceID:  workspaceID,
		FieldName:    name,
		Label:        label,
		FieldType:    fieldType,
		IsRequired:   in.IsRequired,
		DefaultValue: in.DefaultValue,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertFieldDefinition(ctx, d); err != nil {
		if store.IsConflict(err) {
			return store.CustomFieldDefinition{}, domainError(http.StatusConflict, codeDuplicateField, "A field with this name already exists", nil)
		}
		return store.CustomFieldDefinition{}, err
	}
	s.logAction(ctx, userID, "create", "custom_field", d.ID, map[string]any{"fieldName": name})
	return d, nil
}

func (s *Service) DeleteFieldDefinition(ctx context.Context, userID, definitionID string) error {
	d, err := s.store.GetFieldDefinition(ctx, definitionID)
	if isNoRows(err) {
		return notFound("Field definition")
	}
	if err != nil {
		return err
	}
	if d.UserID != userID {
		return forbidden("Not your field definition")
	}
	if err := s.store.DeleteFieldDefinition(ctx, definitionID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "delete", "custom_field", definitionID, nil)
	return nil
}

func (s *Service) FieldValues(ctx context.Context, userID, contactID string) ([]store.CustomFieldValue, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	return s.store.ListFieldValues(ctx, contactID)
}

func fieldValue(contactID string, in FieldValueInput) (store.CustomFieldValue, error) {
	name := strings.TrimSpace(in.FieldName)
	if !fieldNamePattern.MatchString(name) {
		return store.CustomFieldValue{}, invalid("fieldName must be lowercase letters, digits or underscores")
	}
	if in.FieldType != "" && !fieldTypes[in.FieldType] {
		return store.CustomFieldValue{}, invalid("unknown fieldType")
	}
	return store.CustomFieldValue{
		ContactID:  contactID,
		FieldName:  name,
		FieldValue: in.FieldValue,
		FieldType:  in.FieldType,
	}, nil
}

func (s *Service) SetFieldValue(ctx context.Context, userID, contactID string, in FieldValueInput) (store.CustomFieldValue, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return store.CustomFieldValue{}, err
	}
	v, err := fieldValue(contactID, in)
	if err != nil {
		return store.CustomFieldValue{}, err
	}
	out, err := s.store.UpsertFieldValue(ctx, v)
	if err != nil {
		return store.CustomFieldValue{}, err
	}
	s.logAction(ctx, userID, "update", "contact", contactID, map[string]any{"field": v.FieldName})
	return out, nil
}

// SetFieldValues upserts a batch atomically.
func (s *Service) SetFieldValues(ctx context.Context, userID, contactID string, in []FieldValueInput) ([]store.CustomFieldValue, error) {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	values := make([]store.CustomFieldValue, 0, len(in))
	for _, item := range in {
		v, err := fieldValue(contactID, item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	out := make([]store.CustomFieldValue, 0, len(values))
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		for _, v := range values {
			saved, err := tx.UpsertFieldValue(ctx, v)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAction(ctx, userID, "update", "contact", contactID, map[string]any{"fields": len(out)})
	return out, nil
}

func (s *Service) DeleteFieldValue(ctx context.Context, userID, contactID, fieldName string) error {
	if _, err := s.ownedContact(ctx, userID, contactID); err != nil {
		return err
	}
	ok, err := s.store.DeleteFieldValue(ctx, contactID, fieldName)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Field value")
	}
	return nil
}

const (
	ScopeGlobal    = "global"
	ScopeUser      = "user"
	ScopeWorkspace = "workspace"
)

// settingScope resolves the scope id a caller may touch. Global settings use
// an empty scope id.
func (s *Service) settingScope(ctx context.Context, sess Session, scope, workspaceID string, write bool) (string, error) {
	switch scope {
	case ScopeGlobal:
		if write && sess.APIKeyID != "" && !sess.IsAdmin() {
			return "", forbidden("Global settings require the admin scope")
		}
		return "", nil
	case ScopeUser:
		return sess.UserID, nil
	case ScopeWorkspace:
		if _, err := s.ownedWorkspace(ctx, sess.UserID, workspaceID); err != nil {
			return "", err
		}
		return workspaceID, nil
	default:
		return "", invalid("scope must be one of global, user, workspace")
	}
}

func (s *Service) GetSetting(ctx context.Context, sess Session, scope, workspaceID, key string) (store.SystemSetting, error) {
	scopeID, err := s.settingScope(ctx, sess, scope, workspaceID, false)
	if err != nil {
		return store.SystemSetting{}, err
	}
	setting, err := s.store.GetSetting(ctx, scope, scopeID, key)
	if isNoRows(err) {
		return store.SystemSetting{}, notFound("Setting")
	}
	return setting, err
}

func (s *Service) SetSetting(ctx context.Context, sess Session, scope, workspaceID, key string, value json.RawMessage) (store.SystemSetting, error) {
	if strings.TrimSpace(key) == "" {
		return store.SystemSetting{}, invalid("key is required")
	}
	if len(value) == 0 || !json.Valid(value) {
		return store.SystemSetting{}, invalid("value must be valid JSON")
	}
	scopeID, err := s.settingScope(ctx, sess, scope, workspaceID, true)
	if err != nil {
		return store.SystemSetting{}, err
	}
	out, err := s.store.UpsertSetting(ctx, store.SystemSetting{Scope: scope, ScopeID: scopeID, Key: key, Value: value})
	if err != nil {
		return store.SystemSetting{}, err
	}
	s.logAction(ctx, sess.UserID, "update", "setting", scope+":"+key, nil)
	return out, nil
}

func (s *Service) DeleteSetting(ctx context.Context, sess Session, scope, workspaceID, key string) error {
	scopeID, err := s.settingScope(ctx, sess, scope, workspaceID, true)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteSetting(ctx, scope, scopeID, key)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Setting")
	}
	s.logAction(ctx, sess.UserID, "delete", "setting", scope+":"+key, nil)
	return nil
}

func settingsMap(items []store.SystemSetting) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		out[item.Key] = item.Value
	}
	return out
}

func (s *Service) UserSettings(ctx context.Context, userID string) (map[string]json.RawMessage, error) {
	items, err := s.store.ListSettings(ctx, ScopeUser, userID)
	if err != nil {
		return nil, err
	}
	return settingsMap(items), nil
}

func (s *Service) WorkspaceSettings(ctx context.Context, userID, workspaceID string) (map[string]json.RawMessage, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	items, err := s.store.ListSettings(ctx, ScopeWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	return settingsMap(items), nil
}
