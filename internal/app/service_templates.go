package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"picrm/internal/render"
	"picrm/internal/store"
)

var templateTypes = map[string]bool{"html": true, "text": true, "mixed": true}

type TemplateInput struct {
	WorkspaceID  string  `json:"workspaceId"`
	Name         string  `json:"name"`
	TemplateType string  `json:"templateType"`
	Subject      *string `json:"subject"`
	Body         string  `json:"body"`
	Preheader    *string `json:"preheader"`
	Signature    *string `json:"signature"`
}

type TemplatePatch struct {
	Name         *string `json:"name"`
	TemplateType *string `json:"templateType"`
	Subject      *string `json:"subject"`
	Body         *string `json:"body"`
	Preheader    *string `json:"preheader"`
	Signature    *string `json:"signature"`
}

func templateError(err error) *DomainError {
	var rerr *render.Error
	details := map[string]any{}
	if errors.As(err, &rerr) && rerr.Field != "" {
		details["field"] = rerr.Field
	}
	return domainError(http.StatusUnprocessableEntity, codeTemplate, err.Error(), details)
}

// validateTemplate parses every Liquid part so broken templates are refused
// at write time.
func (s *Service) validateTemplate(t store.Template) error {
	parts := []struct {
		name string
		src  string
	}{
		{"subject", derefOr(t.Subject, "")},
		{"body", t.Body},
		{"preheader", derefOr(t.Preheader, "")},
		{"signature", derefOr(t.Signature, "")},
	}
	for _, p := range parts {
		if err := s.render.Validate(p.src); err != nil {
			var rerr *render.Error
			if errors.As(err, &rerr) {
				rerr.Field = p.name
			}
			return templateError(err)
		}
	}
	return nil
}

func (s *Service) CreateTemplate(ctx context.Context, userID string, in TemplateInput) (store.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Template{}, invalid("name is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return store.Template{}, invalid("body is required")
	}
	kind := in.TemplateType
	if kind == "" {
		kind = "html"
	}
	if !templateTypes[kind] {
		return store.Template{}, invalid("templateType must be one of html, text, mixed")
	}
	if _, err := s.ownedWorkspace(ctx, userID, in.WorkspaceID); err != nil {
		return store.Template{}, err
	}
	now := s.now().UTC()
	t := store.Template{
		ID:           newID(),
		WorkspaceID:  in.WorkspaceID,
		Name:         name,
		TemplateType: kind,
		Subject:      in.Subject,
		Body:         in.Body,
		Preheader:    in.Preheader,
		Signature:    in.Signature,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.validateTemplate(t); err != nil {
		return store.Template{}, err
	}
	taken, err := s.store.TemplateNameExists(ctx, t.WorkspaceID, name, "")
	if err != nil {
		return store.Template{}, err
	}
	if taken {
		return store.Template{}, duplicate("A template with this name already exists in this workspace")
	}
	if err := s.store.InsertTemplate(ctx, t); err != nil {
		if store.IsConflict(err) {
			return store.Template{}, duplicate("A template with this name already exists in this workspace")
		}
		return store.Template{}, err
	}
	s.logAction(ctx, userID, "create", "template", t.ID, nil)
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, userID, templateID string) (store.Template, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if isNoRows(err) {
		return store.Template{}, notFound("Template")
	}
	if err != nil {
		return store.Template{}, err
	}
	if _, err := s.ownedWorkspace(ctx, userID, t.WorkspaceID); err != nil {
		return store.Template{}, err
	}
	return t, nil
}

func (s *Service) TemplatesByWorkspace(ctx context.Context, userID, workspaceID string) ([]store.Template, error) {
	if _, err := s.ownedWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListTemplatesByWorkspace(ctx, workspaceID)
}

func (s *Service) UpdateTemplate(ctx context.Context, userID, templateID string, patch TemplatePatch) (store.Template, error) {
	t, err := s.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return store.Template{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return store.Template{}, invalid("name must not be empty")
		}
		if name != t.Name {
			taken, err := s.store.TemplateNameExists(ctx, t.WorkspaceID, name, t.ID)
			if err != nil {
				return store.Template{}, err
			}
			if taken {
				return store.Template{}, duplicate("A template with this name already exists in this workspace")
			}
		}
		t.Name = name
	}
	if patch.TemplateType != nil {
		if !templateTypes[*patch.TemplateType] {
			return store.Template{}, invalid("templateType must be one of html, text, mixed")
		}
		t.TemplateType = *patch.TemplateType
	}
	if patch.Subject != nil {
		t.Subject = patch.Subject
	}
	if patch.Body != nil {
		if strings.TrimSpace(*patch.Body) == "" {
			return store.Template{}, invalid("body must not be empty")
		}
		t.Body = *patch.Body
	}
	if patch.Preheader != nil {
		t.Preheader = patch.Preheader
	}
	if patch.Signature != nil {
		t.Signature = patch.Signature
	}
	if err := s.validateTemplate(t); err != nil {
		return store.Template{}, err
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		if store.IsConflict(err) {
			return store.Template{}, duplicate("A template with this name already exists in this workspace")
		}
		return store.Template{}, err
	}
	s.logAction(ctx, userID, "update", "template", t.ID, nil)
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	if _, err := s.GetTemplate(ctx, userID, templateID); err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, templateID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "delete", "template", templateID, nil)
	return nil
}

func sampleTemplateData() map[string]any {
	return map[string]any{
		"contact": map[string]any{
			"first_name": "Alex",
			"last_name":  "Morgan",
			"email":      "alex@example.com",
			"company":    "Example Co",
		},
		"user":      map[string]any{"name": "Your Name"},
		"workspace": map[string]any{"name": "Your Workspace"},
	}
}

// PreviewTemplate renders the stored template. data overrides the sample
// values key by key.
func (s *Service) PreviewTemplate(ctx context.Context, userID, templateID string, data map[string]any) (render.Parts, error) {
	t, err := s.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return render.Parts{}, err
	}
	vars := sampleTemplateData()
	for k, v := range data {
		vars[k] = v
	}
	out, err := s.render.RenderParts(render.Parts{
		Subject:   derefOr(t.Subject, ""),
		Body:      t.Body,
		Preheader: derefOr(t.Preheader, ""),
		Signature: derefOr(t.Signature, ""),
	}, vars)
	if err != nil {
		return render.Parts{}, templateError(err)
	}
	return out, nil
}

type GenerateTemplateInput struct {
	Prompt       string `json:"prompt"`
	TemplateType string `json:"templateType"`
}

const templatePrompt = `You write outreach templates for a small-business CRM.
Return only a JSON object with the keys "subject", "body", "preheader" and "signature".
The body must be %s. Use Liquid placeholders such as {{ contact.first_name }} and {{ user.name }} for personalisation.

Request: %s`

func (s *Service) GenerateTemplate(ctx context.Context, userID string, in GenerateTemplateInput) (render.Parts, error) {
	if s.generator == nil {
		return render.Parts{}, domainError(http.StatusInternalServerError, codeConfiguration, "AI generation is not configured", nil)
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return render.Parts{}, invalid("prompt is required")
	}
	kind := in.TemplateType
	if kind == "" {
		kind = "html"
	}
	if !templateTypes[kind] {
		return render.Parts{}, invalid("templateType must be one of html, text, mixed")
	}
	format := "simple HTML"
	switch kind {
	case "text":
		format = "plain text"
	case "mixed":
		format = "simple HTML that also reads well as plain text"
	}

	var out render.Parts
	if err := s.generator.GenerateJSON(ctx, fmt.Sprintf(templatePrompt, format, prompt), &out); err != nil {
		s.logger.Warn("generate template", zap.String("user_id", userID), zap.Error(err))
		return render.Parts{}, domainError(http.StatusBadGateway, codeAIGeneration, "Failed to generate template", nil)
	}
	if strings.TrimSpace(out.Body) == "" {
		return render.Parts{}, domainError(http.StatusBadGateway, codeAIGeneration, "Model returned an empty template", nil)
	}
	s.logAction(ctx, userID, "generate", "template", "", map[string]any{"templateType": kind})
	return out, nil
}
