// Package email sends CRM notifications over SMTP.
package email

import (
	"bytes"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"picrm/internal/render"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppURL   string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	render *render.Engine
	send   sendFunc
}

func NewService(config Config, engine *render.Engine) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	if engine == nil {
		engine = render.New()
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		render: engine,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}
	boundary := "picrm-alt-boundary"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type ApprovalRequest struct {
	OwnerEmail    string
	OwnerName     string
	WorkspaceName string
	CampaignID    string
	CampaignName  string
	CampaignType  string
}

// SendApprovalRequest tells a workspace owner a campaign is waiting for review.
func (s *Service) SendApprovalRequest(req ApprovalRequest) error {
	data := map[string]any{
		"app_url":   strings.TrimRight(s.config.AppURL, "/"),
		"owner":     map[string]any{"name": req.OwnerName, "email": req.OwnerEmail},
		"workspace": map[string]any{"name": req.WorkspaceName},
		"campaign":  map[string]any{"id": req.CampaignID, "name": req.CampaignName, "type": req.CampaignType},
	}
	subject, err := s.render.Render(approvalSubjectTemplate, data)
	if err != nil {
		return fmt.Errorf("render approval subject: %w", err)
	}
	text, err := s.render.RenderCached("approval-text", approvalTextTemplate, data)
	if err != nil {
		return fmt.Errorf("render approval text: %w", err)
	}
	html, err := s.render.RenderCached("approval-html", approvalHTMLTemplate, data)
	if err != nil {
		return fmt.Errorf("render approval html: %w", err)
	}
	return s.SendHTMLEmail([]string{req.OwnerEmail}, subject, text, html)
}

type ReminderItem struct {
	Text    string
	DueDate string
}

// SendTodoReminders sends one digest of overdue todos.
func (s *Service) SendTodoReminders(to, name string, items []ReminderItem) error {
	if len(items) == 0 {
		return nil
	}
	todos := make([]map[string]any, 0, len(items))
	for _, item := range items {
		todos = append(todos, map[string]any{"text": item.Text, "due": item.DueDate})
	}
	data := map[string]any{
		"app_url": strings.TrimRight(s.config.AppURL, "/"),
		"name":    name,
		"todos":   todos,
		"count":   len(items),
	}
	subject, err := s.render.Render(reminderSubjectTemplate, data)
	if err != nil {
		return fmt.Errorf("render reminder subject: %w", err)
	}
	text, err := s.render.RenderCached("reminder-text", reminderTextTemplate, data)
	if err != nil {
		return fmt.Errorf("render reminder text: %w", err)
	}
	html, err := s.render.RenderCached("reminder-html", reminderHTMLTemplate, data)
	if err != nil {
		return fmt.Errorf("render reminder html: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}
