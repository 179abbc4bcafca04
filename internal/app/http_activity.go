package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) registerActivityRoutes(r chi.Router) {
	r.Route("/todos", func(r chi.Router) {
		r.Get("/", s.handleListTodos)
		r.Post("/", s.handleCreateTodo)
		r.Get("/reminders", s.handleTodoReminders)
		r.Get("/{id}", s.handleGetTodo)
		r.Put("/{id}", s.handleUpdateTodo)
		r.Delete("/{id}", s.handleDeleteTodo)
		r.Post("/{id}/complete", s.handleCompleteTodo)
	})

	r.Route("/logs", func(r chi.Router) {
		r.Get("/", s.handleListLogs)
		r.Post("/", s.handleCreateLog)
	})

	r.Route("/audit-logs", func(r chi.Router) {
		r.Get("/", s.handleAuditLogs)
		r.Get("/{entityType}/{entityId}", s.handleEntityAuditLogs)
	})

	r.Route("/ai-insights", func(r chi.Router) {
		r.Get("/", s.handleListInsights)
		r.Post("/generate", s.handleGenerateInsights)
		r.Get("/cooldown", s.handleInsightCooldown)
		r.Post("/{id}/dismiss", s.handleDismissInsight)
		r.Delete("/{id}", s.handleDeleteInsight)
	})
}

// handleListTodos picks the narrowest filter given: contact, then
// workspace, then everything the caller owns.
func (s *HTTPServer) handleListTodos(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r).UserID
	q := r.URL.Query()
	switch {
	case q.Get("contactId") != "":
		items, err := s.service.TodosByContact(r.Context(), userID, q.Get("contactId"))
		s.respond(w, r, http.StatusOK, items, err)
	case q.Get("workspaceId") != "":
		items, err := s.service.TodosByWorkspace(r.Context(), userID, q.Get("workspaceId"), queryBool(r, "isComplete"))
		s.respond(w, r, http.StatusOK, items, err)
	default:
		items, err := s.service.TodosByUser(r.Context(), userID)
		s.respond(w, r, http.StatusOK, items, err)
	}
}

func (s *HTTPServer) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var body TodoInput
	if !decode(w, r, &body) {
		return
	}
	t, err := s.service.CreateTodo(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, t, err)
}

func (s *HTTPServer) handleTodoReminders(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.DueReminders(r.Context(), sessionFrom(r).UserID)
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTodo(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *HTTPServer) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var body TodoPatch
	if !decode(w, r, &body) {
		return
	}
	t, err := s.service.UpdateTodo(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body)
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *HTTPServer) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteTodo(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handleCompleteTodo(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.MarkTodoComplete(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *HTTPServer) handleListLogs(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r).UserID
	q := r.URL.Query()
	if contactID := q.Get("contactId"); contactID != "" {
		items, err := s.service.LogsByContact(r.Context(), userID, contactID)
		s.respond(w, r, http.StatusOK, items, err)
		return
	}
	items, err := s.service.LogsByWorkspace(r.Context(), userID, q.Get("workspaceId"), q.Get("type"), queryInt(r, "limit", 100))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	var body LogInput
	if !decode(w, r, &body) {
		return
	}
	result, err := s.service.CreateLog(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, result, err)
}

func (s *HTTPServer) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := s.service.AuditLogs(r.Context(), sessionFrom(r), AuditQuery{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		UserID:     q.Get("userId"),
		Limit:      queryInt(r, "limit", 20),
		Offset:     queryInt(r, "offset", 0),
	})
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleEntityAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.AuditLogsForEntity(r.Context(), sessionFrom(r), chi.URLParam(r, "entityType"), chi.URLParam(r, "entityId"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleListInsights(w http.ResponseWriter, r *http.Request) {
	dismissed := false
	if v := queryBool(r, "dismissed"); v != nil {
		dismissed = *v
	}
	items, err := s.service.Insights(r.Context(), sessionFrom(r).UserID, InsightQuery{
		Dismissed: dismissed,
		Type:      r.URL.Query().Get("type"),
		Limit:     queryInt(r, "limit", 20),
	})
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleGenerateInsights(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.GenerateInsights(r.Context(), sessionFrom(r).UserID)
	s.respond(w, r, http.StatusCreated, items, err)
}

func (s *HTTPServer) handleInsightCooldown(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.InsightCooldown(r.Context(), sessionFrom(r).UserID)
	s.respond(w, r, http.StatusOK, info, err)
}

func (s *HTTPServer) handleDismissInsight(w http.ResponseWriter, r *http.Request) {
	err := s.service.DismissInsight(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, map[string]any{"dismissed": true}, err)
}

func (s *HTTPServer) handleDeleteInsight(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteInsight(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}
