package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Workspace struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Name             string    `json:"name"`
	RequiresApproval bool      `json:"requiresApproval"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Contact struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	WorkspaceID  *string   `json:"workspaceId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PrimaryEmail *string   `json:"primaryEmail"`
	PrimaryPhone *string   `json:"primaryPhone"`
	Company      *string   `json:"company"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// List is a named contact segment inside a workspace. IsPrimary is the
// list-level default used when an assignment does not say otherwise.
type List struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	IsPrimary   bool      `json:"isPrimary"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Assignment struct {
	ContactID   string    `json:"contactId"`
	ListID      string    `json:"listId"`
	WorkspaceID string    `json:"workspaceId"`
	IsPrimary   bool      `json:"isPrimary"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// Membership is a list as seen from one contact: IsPrimary is the
// assignment's flag, not the list default.
type Membership struct {
	List       List      `json:"list"`
	IsPrimary  bool      `json:"isPrimary"`
	AssignedAt time.Time `json:"assignedAt"`
}

const (
	CampaignDraft     = "draft"
	CampaignPending   = "pending"
	CampaignApproved  = "approved"
	CampaignActive    = "active"
	CampaignCancelled = "cancelled"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type Campaign struct {
	ID           string            `json:"id"`
	WorkspaceID  string            `json:"workspaceId"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	TemplateID   *string           `json:"templateId"`
	SegmentJSON  *string           `json:"segmentJson"`
	ScheduleJSON *string           `json:"scheduleJson"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Approval     *CampaignApproval `json:"approval,omitempty"`
}

type CampaignApproval struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaignId"`
	Status     string     `json:"status"`
	ReviewerID *string    `json:"reviewerId"`
	Notes      *string    `json:"notes"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReviewedAt *time.Time `json:"reviewedAt"`
}

type Template struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspaceId"`
	Name         string    `json:"name"`
	TemplateType string    `json:"templateType"`
	Subject      *string   `json:"subject"`
	Body         string    `json:"body"`
	Preheader    *string   `json:"preheader"`
	Signature    *string   `json:"signature"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Todo struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspaceId"`
	ContactID   *string    `json:"contactId"`
	Text        string     `json:"text"`
	DueDate     *time.Time `json:"dueDate"`
	IsComplete  bool       `json:"isComplete"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// DueTodo is an overdue todo joined with the workspace owner to notify.
type DueTodo struct {
	Todo
	OwnerID    string
	OwnerEmail string
	OwnerName  string
}

type CommunicationLog struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspaceId"`
	ContactID   string          `json:"contactId"`
	Type        string          `json:"type"`
	Content     json.RawMessage `json:"content"`
	Status      *string         `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
}

type CustomFieldDefinition struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	WorkspaceID  *string   `json:"workspaceId"`
	FieldName    string    `json:"fieldName"`
	Label        string    `json:"label"`
	FieldType    string    `json:"fieldType"`
	IsRequired   bool      `json:"isRequired"`
	DefaultValue *string   `json:"defaultValue"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CustomFieldValue struct {
	ID         string    `json:"id"`
	ContactID  string    `json:"contactId"`
	FieldName  string    `json:"fieldName"`
	FieldValue *string   `json:"fieldValue"`
	FieldType  string    `json:"fieldType"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type SystemSetting struct {
	ID        string          `json:"id"`
	Scope     string          `json:"scope"`
	ScopeID   string          `json:"scopeId"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type AuditLog struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"userId"`
	Action     string          `json:"action"`
	EntityType *string         `json:"entityType"`
	EntityID   *string         `json:"entityId"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  *string         `json:"ipAddress"`
	Timestamp  time.Time       `json:"timestamp"`
}

type AuditFilter struct {
	Action     string
	EntityType string
	UserID     string
	Limit      int
	Offset     int
}

type APIKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"keyPrefix"`
	Description *string    `json:"description"`
	Scopes      []string   `json:"scopes"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	IsActive    bool       `json:"isActive"`
}

type Insight struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Type        string     `json:"type"`
	Content     string     `json:"content"`
	Confidence  float64    `json:"confidence"`
	CreatedAt   time.Time  `json:"createdAt"`
	DismissedAt *time.Time `json:"dismissedAt"`
}

type InsightFilter struct {
	Dismissed bool
	Type      string
	Limit     int
}
