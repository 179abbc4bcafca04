package app

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) registerContentRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Post("/", s.handleCreateTemplate)
		r.Post("/generate", s.handleGenerateTemplate)
		r.Get("/{id}", s.handleGetTemplate)
		r.Put("/{id}", s.handleUpdateTemplate)
		r.Delete("/{id}", s.handleDeleteTemplate)
		r.Post("/{id}/preview", s.handlePreviewTemplate)
	})

	r.Route("/custom-fields", func(r chi.Router) {
		r.Get("/definitions", s.handleListFieldDefinitions)
		r.Post("/definitions", s.handleCreateFieldDefinition)
		r.Delete("/definitions/{id}", s.handleDeleteFieldDefinition)
		r.Get("/values/{contactId}", s.handleListFieldValues)
		r.Put("/values/{contactId}", s.handleSetFieldValue)
		r.Post("/values/{contactId}/batch", s.handleSetFieldValues)
		r.Delete("/values/{contactId}/{fieldName}", s.handleDeleteFieldValue)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/{scope}", s.handleListSettings)
		r.Get("/{scope}/{key}", s.handleGetSetting)
		r.Put("/{scope}/{key}", s.handleSetSetting)
		r.Delete("/{scope}/{key}", s.handleDeleteSetting)
	})

	r.Route("/prompts", func(r chi.Router) {
		r.Get("/", s.handleListPrompts)
		r.Post("/", s.handleCreatePrompt)
		r.Get("/{filename}", s.handleGetPrompt)
		r.Put("/{filename}", s.handleUpdatePrompt)
		r.Delete("/{filename}", s.handleDeletePrompt)
		r.Get("/{filename}/history", s.handlePromptHistory)
	})
}

func (s *HTTPServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.TemplatesByWorkspace(r.Context(), sessionFrom(r).UserID, r.URL.Query().Get("workspaceId"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body TemplateInput
	if !decode(w, r, &body) {
		return
	}
	t, err := s.service.CreateTemplate(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, t, err)
}

func (s *HTTPServer) handleGenerateTemplate(w http.ResponseWriter, r *http.Request) {
	var body GenerateTemplateInput
	if !decode(w, r, &body) {
		return
	}
	parts, err := s.service.GenerateTemplate(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusOK, parts, err)
}

func (s *HTTPServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTemplate(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *HTTPServer) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var body TemplatePatch
	if !decode(w, r, &body) {
		return
	}
	t, err := s.service.UpdateTemplate(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body)
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *HTTPServer) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteTemplate(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data map[string]any `json:"data"`
	}
	if !decode(w, r, &body) {
		return
	}
	parts, err := s.service.PreviewTemplate(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body.Data)
	s.respond(w, r, http.StatusOK, parts, err)
}

func (s *HTTPServer) handleListFieldDefinitions(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.FieldDefinitions(r.Context(), sessionFrom(r).UserID, r.URL.Query().Get("workspaceId"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreateFieldDefinition(w http.ResponseWriter, r *http.Request) {
	var body FieldDefinitionInput
	if !decode(w, r, &body) {
		return
	}
	d, err := s.service.CreateFieldDefinition(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, d, err)
}

func (s *HTTPServer) handleDeleteFieldDefinition(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteFieldDefinition(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handleListFieldValues(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.FieldValues(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "contactId"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleSetFieldValue(w http.ResponseWriter, r *http.Request) {
	var body FieldValueInput
	if !decode(w, r, &body) {
		return
	}
	v, err := s.service.SetFieldValue(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "contactId"), body)
	s.respond(w, r, http.StatusOK, v, err)
}

func (s *HTTPServer) handleSetFieldValues(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Values []FieldValueInput `json:"values"`
	}
	if !decode(w, r, &body) {
		return
	}
	items, err := s.service.SetFieldValues(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "contactId"), body.Values)
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleDeleteFieldValue(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteFieldValue(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "contactId"), chi.URLParam(r, "fieldName"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

// handleListSettings returns the user or workspace settings as a key/value
// map.
func (s *HTTPServer) handleListSettings(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r).UserID
	switch chi.URLParam(r, "scope") {
	case ScopeUser:
		items, err := s.service.UserSettings(r.Context(), userID)
		s.respond(w, r, http.StatusOK, items, err)
	case ScopeWorkspace:
		items, err := s.service.WorkspaceSettings(r.Context(), userID, r.URL.Query().Get("workspaceId"))
		s.respond(w, r, http.StatusOK, items, err)
	default:
		s.fail(w, r, invalid("scope must be user or workspace"))
	}
}

func (s *HTTPServer) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := s.service.GetSetting(r.Context(), sessionFrom(r), chi.URLParam(r, "scope"), r.URL.Query().Get("workspaceId"), chi.URLParam(r, "key"))
	s.respond(w, r, http.StatusOK, setting, err)
}

func (s *HTTPServer) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value       json.RawMessage `json:"value"`
		WorkspaceID string          `json:"workspaceId"`
	}
	if !decode(w, r, &body) {
		return
	}
	workspaceID := body.WorkspaceID
	if workspaceID == "" {
		workspaceID = r.URL.Query().Get("workspaceId")
	}
	setting, err := s.service.SetSetting(r.Context(), sessionFrom(r), chi.URLParam(r, "scope"), workspaceID, chi.URLParam(r, "key"), body.Value)
	s.respond(w, r, http.StatusOK, setting, err)
}

func (s *HTTPServer) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteSetting(r.Context(), sessionFrom(r), chi.URLParam(r, "scope"), r.URL.Query().Get("workspaceId"), chi.URLParam(r, "key"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var listID *string
	if v := q.Get("listId"); v != "" {
		listID = &v
	}
	items, err := s.service.ListPrompts(r.Context(), sessionFrom(r).UserID, q.Get("workspaceId"), listID)
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var body PromptInput
	if !decode(w, r, &body) {
		return
	}
	p, err := s.service.CreatePrompt(r.Context(), sessionFrom(r), body)
	s.respond(w, r, http.StatusCreated, p, err)
}

func (s *HTTPServer) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.GetPrompt(r.Context(), sessionFrom(r).UserID, r.URL.Query().Get("workspaceId"), chi.URLParam(r, "filename"))
	s.respond(w, r, http.StatusOK, p, err)
}

func (s *HTTPServer) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PromptPatch
		WorkspaceID string `json:"workspaceId"`
	}
	if !decode(w, r, &body) {
		return
	}
	p, err := s.service.UpdatePrompt(r.Context(), sessionFrom(r), body.WorkspaceID, chi.URLParam(r, "filename"), body.PromptPatch)
	s.respond(w, r, http.StatusOK, p, err)
}

func (s *HTTPServer) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeletePrompt(r.Context(), sessionFrom(r), r.URL.Query().Get("workspaceId"), chi.URLParam(r, "filename"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handlePromptHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.PromptHistory(r.Context(), sessionFrom(r).UserID, r.URL.Query().Get("workspaceId"), chi.URLParam(r, "filename"), queryInt(r, "limit", 50))
	s.respond(w, r, http.StatusOK, items, err)
}
