package app

import (
	"context"

	"picrm/internal/store"
)

type ctxKey int

const clientIPKey ctxKey = iota

// WithClientIP records the caller address for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIP(ctx context.Context) *string {
	ip, _ := ctx.Value(clientIPKey).(string)
	if ip == "" {
		return nil
	}
	return &ip
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// logAction writes an audit entry in the background. Failures never reach
// the caller.
func (s *Service) logAction(ctx context.Context, userID, action, entityType, entityID string, details map[string]any) {
	entry := store.AuditLog{
		ID:         newID(),
		UserID:     optionalString(userID),
		Action:     action,
		EntityType: optionalString(entityType),
		EntityID:   optionalString(entityID),
		IPAddress:  clientIP(ctx),
		Timestamp:  s.now().UTC(),
	}
	if len(details) > 0 {
		entry.Details = mustJSON(details)
	}
	s.background("audit", func(ctx context.Context) error {
		return s.store.InsertAuditLog(ctx, entry)
	})
}

type AuditQuery struct {
	Action     string
	EntityType string
	UserID     string
	Limit      int
	Offset     int
}

// AuditLogs lists audit entries. Only admin API keys may read other users'
// entries; everyone else sees their own.
func (s *Service) AuditLogs(ctx context.Context, sess Session, q AuditQuery) ([]store.AuditLog, error) {
	filter := store.AuditFilter{
		Action:     q.Action,
		EntityType: q.EntityType,
		UserID:     q.UserID,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if !sess.IsAdmin() {
		if filter.UserID != "" && filter.UserID != sess.UserID {
			return nil, forbidden("Cannot read another user's audit log")
		}
		filter.UserID = sess.UserID
	}
	return s.store.ListAuditLogs(ctx, filter)
}

func (s *Service) AuditLogsForEntity(ctx context.Context, sess Session, entityType, entityID string) ([]store.AuditLog, error) {
	if entityType == "" || entityID == "" {
		return nil, invalid("entityType and entityId are required")
	}
	entries, err := s.store.ListAuditLogsForEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if sess.IsAdmin() {
		return entries, nil
	}
	own := make([]store.AuditLog, 0, len(entries))
	for _, e := range entries {
		if e.UserID != nil && *e.UserID == sess.UserID {
			own = append(own, e)
		}
	}
	return own, nil
}
