package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"picrm/internal/auth"
	"picrm/internal/authpw"
	"picrm/internal/config"
	"picrm/internal/email"
	"picrm/internal/promptrepo"
	"picrm/internal/rbac"
	"picrm/internal/render"
	"picrm/internal/search"
	"picrm/internal/session"
	"picrm/internal/store"
	"picrm/internal/textgen"
)

// Session is the authenticated caller. APIKeyID is set only for requests
// authenticated with x-api-key; those are limited to Scopes.
type Session struct {
	UserID   string
	Email    string
	Name     string
	APIKeyID string
	Scopes   []string
}

func (s Session) Can(action rbac.Action) bool {
	if s.APIKeyID == "" {
		return true
	}
	return rbac.Allowed(s.Scopes, action)
}

// IsAdmin is true only for API keys carrying the admin scope.
func (s Session) IsAdmin() bool {
	return s.APIKeyID != "" && rbac.Allowed(s.Scopes, rbac.ActionAdmin)
}

type dataStore interface {
	authpw.UserStore
	session.RefreshStore

	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(store.Tx) error) error

	GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error)
	InsertWorkspace(ctx context.Context, ws store.Workspace) error
	ListWorkspacesByUser(ctx context.Context, userID string) ([]store.Workspace, error)
	WorkspaceNameExists(ctx context.Context, userID, name, excludeID string) (bool, error)
	UpdateWorkspace(ctx context.Context, ws store.Workspace) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	GetContact(ctx context.Context, contactID string) (store.Contact, error)
	InsertContact(ctx context.Context, c store.Contact) error
	UpdateContact(ctx context.Context, c store.Contact) error
	DeleteContact(ctx context.Context, contactID string) error
	ListContactsByWorkspace(ctx context.Context, workspaceID string) ([]store.Contact, error)
	ListContactsByUser(ctx context.Context, userID string) ([]store.Contact, error)
	ContactEmailTaken(ctx context.Context, workspaceID, email, excludeID string) (bool, error)
	ContactPhoneTaken(ctx context.Context, workspaceID, phone, excludeID string) (bool, error)

	GetList(ctx context.Context, listID string) (store.List, error)
	InsertList(ctx context.Context, l store.List) error
	ListNameExists(ctx context.Context, workspaceID, name string) (bool, error)
	ListListsByWorkspace(ctx context.Context, workspaceID string) ([]store.List, error)
	DeleteList(ctx context.Context, listID string) error
	GetAssignment(ctx context.Context, contactID, listID string) (store.Assignment, error)
	DeleteAssignment(ctx context.Context, contactID, listID string) error
	ListMemberships(ctx context.Context, contactID string) ([]store.Membership, error)
	PrimaryMembership(ctx context.Context, contactID, workspaceID string) (*store.Membership, error)

	GetCampaign(ctx context.Context, campaignID string) (store.Campaign, error)
	ListCampaignsByWorkspace(ctx context.Context, workspaceID string) ([]store.Campaign, error)
	ListCampaignsByStatus(ctx context.Context, workspaceID, status string) ([]store.Campaign, error)
	CancelCampaign(ctx context.Context, campaignID string) error

	GetTemplate(ctx context.Context, templateID string) (store.Template, error)
	InsertTemplate(ctx context.Context, t store.Template) error
	UpdateTemplate(ctx context.Context, t store.Template) error
	DeleteTemplate(ctx context.Context, templateID string) error
	TemplateNameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error)
	ListTemplatesByWorkspace(ctx context.Context, workspaceID string) ([]store.Template, error)

	InsertTodo(ctx context.Context, t store.Todo) error
	GetTodo(ctx context.Context, todoID string) (store.Todo, error)
	UpdateTodo(ctx context.Context, t store.Todo) error
	DeleteTodo(ctx context.Context, todoID string) error
	ListTodosByContact(ctx context.Context, contactID string) ([]store.Todo, error)
	ListTodosByWorkspace(ctx context.Context, workspaceID string, complete *bool) ([]store.Todo, error)
	ListTodosByUser(ctx context.Context, userID string) ([]store.Todo, error)
	ListDueTodos(ctx context.Context, userID string, before time.Time) ([]store.DueTodo, error)

	ListLogsByContact(ctx context.Context, contactID string) ([]store.CommunicationLog, error)
	ListLogsByWorkspace(ctx context.Context, workspaceID, logType string, limit int) ([]store.CommunicationLog, error)

	InsertFieldDefinition(ctx context.Context, d store.CustomFieldDefinition) error
	GetFieldDefinition(ctx context.Context, definitionID string) (store.CustomFieldDefinition, error)
	ListFieldDefinitions(ctx context.Context, userID, workspaceID string) ([]store.CustomFieldDefinition, error)
	DeleteFieldDefinition(ctx context.Context, definitionID string) error
	UpsertFieldValue(ctx context.Context, v store.CustomFieldValue) (store.CustomFieldValue, error)
	ListFieldValues(ctx context.Context, contactID string) ([]store.CustomFieldValue, error)
	DeleteFieldValue(ctx context.Context, contactID, fieldName string) (bool, error)

	GetSetting(ctx context.Context, scope, scopeID, key string) (store.SystemSetting, error)
	UpsertSetting(ctx context.Context, setting store.SystemSetting) (store.SystemSetting, error)
	DeleteSetting(ctx context.Context, scope, scopeID, key string) (bool, error)
	ListSettings(ctx context.Context, scope, scopeID string) ([]store.SystemSetting, error)

	InsertAuditLog(ctx context.Context, entry store.AuditLog) error
	ListAuditLogs(ctx context.Context, filter store.AuditFilter) ([]store.AuditLog, error)
	ListAuditLogsForEntity(ctx context.Context, entityType, entityID string) ([]store.AuditLog, error)

	InsertInsight(ctx context.Context, in store.Insight) error
	GetInsight(ctx context.Context, insightID string) (store.Insight, error)
	ListInsights(ctx context.Context, userID string, filter store.InsightFilter) ([]store.Insight, error)
	DismissInsight(ctx context.Context, insightID string) error
	DeleteInsight(ctx context.Context, insightID string) error
	PurgeInsights(ctx context.Context, userID string, before time.Time) (int64, error)
}

// contactIndex is the slice of search.Service the contact flows use.
type contactIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexContact(c search.ContactRecord)
	DeleteContact(id string)
}

type notifier interface {
	IsConfigured() bool
	SendApprovalRequest(req email.ApprovalRequest) error
	SendTodoReminders(to, name string, items []email.ReminderItem) error
}

type promptStore interface {
	List(workspaceID string, listID *string) ([]promptrepo.Prompt, error)
	Get(workspaceID, filename string) (promptrepo.Prompt, error)
	Create(workspaceID string, in promptrepo.Input, author string) (promptrepo.Prompt, error)
	Update(workspaceID, filename string, patch promptrepo.Patch, author string) (promptrepo.Prompt, error)
	Delete(workspaceID, filename, author string) error
	History(workspaceID, filename string, limit int) ([]promptrepo.Commit, error)
}

// ApprovalPolicy decides whether campaigns created in a workspace start
// pending review.
type ApprovalPolicy func(store.Workspace) bool

// NamedApprovalPolicy requires approval when the workspace flag is set or the
// workspace name is one of names (case-insensitive).
func NamedApprovalPolicy(names []string) ApprovalPolicy {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return func(ws store.Workspace) bool {
		if ws.RequiresApproval {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimSpace(ws.Name))]
		return ok
	}
}

// Deps are the optional collaborators. Nil fields fall back to the
// Postgres-backed or disabled implementation.
type Deps struct {
	Sessions       session.RefreshStore
	Locker         session.Locker
	Search         *search.Service
	Mailer         *email.Service
	Renderer       *render.Engine
	Generator      textgen.Generator
	Prompts        *promptrepo.Service
	Logger         *zap.Logger
	ApprovalPolicy ApprovalPolicy
}

type Service struct {
	cfg       config.Config
	store     dataStore
	signer    *auth.Signer
	accounts  *authpw.Service
	sessions  session.RefreshStore
	locker    session.Locker
	search    contactIndex
	mailer    notifier
	render    *render.Engine
	generator textgen.Generator
	prompts   promptStore
	logger    *zap.Logger
	approval  ApprovalPolicy
	now       func() time.Time
	bg        sync.WaitGroup
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Deps) *Service {
	return newService(cfg, dataStore, deps)
}

func newService(cfg config.Config, ds dataStore, deps Deps) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	s := &Service{
		cfg:      cfg,
		store:    ds,
		signer:   auth.NewSigner(cfg.TokenSecret, cfg.AccessTTL),
		accounts: authpw.NewService(ds),
		sessions: ds,
		locker:   deps.Locker,
		render:   deps.Renderer,
		logger:   deps.Logger,
		approval: deps.ApprovalPolicy,
		now:      time.Now,
	}
	if deps.Sessions != nil {
		s.sessions = deps.Sessions
	}
	if s.locker == nil {
		s.locker = session.NewLocalLocker()
	}
	if s.render == nil {
		s.render = render.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.approval == nil {
		s.approval = NamedApprovalPolicy(cfg.ApprovalWorkspaces)
	}
	// Typed nils must not leak into the interface fields.
	if deps.Search != nil {
		s.search = deps.Search
	}
	if deps.Mailer != nil {
		s.mailer = deps.Mailer
	}
	if deps.Prompts != nil {
		s.prompts = deps.Prompts
	}
	if deps.Generator != nil {
		s.generator = deps.Generator
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until background work (audit writes, notifications) drains.
func (s *Service) Wait() {
	s.bg.Wait()
}

// background runs fn detached from the request; failures are only logged.
func (s *Service) background(name string, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

func newID() string {
	return uuid.NewString()
}

// ownedWorkspace loads a workspace and checks the caller owns it.
func (s *Service) ownedWorkspace(ctx context.Context, userID, workspaceID string) (store.Workspace, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return store.Workspace{}, invalid("workspaceId is required")
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if isNoRows(err) {
		return store.Workspace{}, notFound("Workspace")
	}
	if err != nil {
		return store.Workspace{}, err
	}
	if ws.UserID != userID {
		return store.Workspace{}, forbidden("Not your workspace")
	}
	return ws, nil
}

// ownedContact loads a contact; contacts of other users read as missing.
func (s *Service) ownedContact(ctx context.Context, userID, contactID string) (store.Contact, error) {
	c, err := s.store.GetContact(ctx, contactID)
	if isNoRows(err) {
		return store.Contact{}, notFound("Contact")
	}
	if err != nil {
		return store.Contact{}, err
	}
	if c.UserID != userID {
		return store.Contact{}, notFound("Contact")
	}
	return c, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func derefOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func mustJSON(value any) json.RawMessage {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return raw
}
