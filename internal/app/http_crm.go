package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) registerCRMRoutes(r chi.Router) {
	r.Route("/workspaces", func(r chi.Router) {
		r.Get("/", s.handleListWorkspaces)
		r.Post("/", s.handleCreateWorkspace)
		r.Get("/{id}", s.handleGetWorkspace)
		r.Put("/{id}", s.handleUpdateWorkspace)
		r.Delete("/{id}", s.handleDeleteWorkspace)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", s.handleListContacts)
		r.Post("/", s.handleCreateContact)
		r.Get("/search", s.handleSearchContacts)
		r.Get("/{id}", s.handleGetContact)
		r.Put("/{id}", s.handleUpdateContact)
		r.Delete("/{id}", s.handleDeleteContact)
		r.Get("/{id}/lists", s.handleContactLists)
		r.Get("/{id}/primary-list", s.handleContactPrimaryList)
	})

	r.Route("/lists", func(r chi.Router) {
		r.Get("/", s.handleListLists)
		r.Post("/", s.handleCreateList)
		r.Delete("/{id}", s.handleDeleteList)
		r.Post("/assign", s.handleAssign)
		r.Delete("/assign", s.handleUnassign)
		r.Post("/assign/primary", s.handleSetPrimary)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", s.handleCreateCampaign)
		r.Get("/pending-approvals", s.handlePendingApprovals)
		r.Get("/by-workspace/{workspaceId}", s.handleCampaignsByWorkspace)
		r.Get("/{id}", s.handleGetCampaign)
		r.Put("/{id}", s.handleUpdateCampaign)
		r.Delete("/{id}", s.handleDeleteCampaign)
		r.Post("/{id}/approve", s.handleApproveCampaign)
		r.Post("/{id}/reject", s.handleRejectCampaign)
	})
}

func (s *HTTPServer) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.WorkspacesByUser(r.Context(), sessionFrom(r).UserID)
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body WorkspaceInput
	if !decode(w, r, &body) {
		return
	}
	ws, err := s.service.CreateWorkspace(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, ws, err)
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.service.GetWorkspace(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, ws, err)
}

func (s *HTTPServer) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body WorkspacePatch
	if !decode(w, r, &body) {
		return
	}
	ws, err := s.service.UpdateWorkspace(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body)
	s.respond(w, r, http.StatusOK, ws, err)
}

func (s *HTTPServer) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteWorkspace(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r).UserID
	if workspaceID := r.URL.Query().Get("workspaceId"); workspaceID != "" {
		items, err := s.service.ContactsByWorkspace(r.Context(), userID, workspaceID)
		s.respond(w, r, http.StatusOK, items, err)
		return
	}
	items, err := s.service.ContactsByUser(r.Context(), userID)
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var body ContactInput
	if !decode(w, r, &body) {
		return
	}
	c, err := s.service.CreateContact(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, c, err)
}

func (s *HTTPServer) handleSearchContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.service.SearchContacts(r.Context(), sessionFrom(r).UserID, SearchInput{
		Query:       q.Get("q"),
		WorkspaceID: q.Get("workspaceId"),
		Limit:       queryInt(r, "limit", 20),
		Offset:      queryInt(r, "offset", 0),
	})
	s.respond(w, r, http.StatusOK, resp, err)
}

func (s *HTTPServer) handleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetContact(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, c, err)
}

func (s *HTTPServer) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var body ContactPatch
	if !decode(w, r, &body) {
		return
	}
	c, err := s.service.UpdateContact(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body)
	s.respond(w, r, http.StatusOK, c, err)
}

func (s *HTTPServer) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteContact(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handleContactLists(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListsForContact(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleContactPrimaryList(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.PrimaryListForContact(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), r.URL.Query().Get("workspaceId"))
	s.respond(w, r, http.StatusOK, m, err)
}

func (s *HTTPServer) handleListLists(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListsByWorkspace(r.Context(), sessionFrom(r).UserID, r.URL.Query().Get("workspaceId"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var body ListInput
	if !decode(w, r, &body) {
		return
	}
	l, err := s.service.CreateList(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, l, err)
}

func (s *HTTPServer) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteList(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), r.URL.Query().Get("workspaceId"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

type assignBody struct {
	ContactID   string `json:"contactId"`
	ListID      string `json:"listId"`
	WorkspaceID string `json:"workspaceId"`
	IsPrimary   *bool  `json:"isPrimary"`
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if !decode(w, r, &body) {
		return
	}
	a, err := s.service.AssignToContact(r.Context(), sessionFrom(r).UserID, body.ContactID, body.ListID, body.IsPrimary)
	s.respond(w, r, http.StatusCreated, a, err)
}

func (s *HTTPServer) handleUnassign(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if !decode(w, r, &body) {
		return
	}
	err := s.service.RemoveAssignment(r.Context(), sessionFrom(r).UserID, body.ContactID, body.ListID)
	s.respond(w, r, http.StatusNoContent, nil, err)
}

func (s *HTTPServer) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if !decode(w, r, &body) {
		return
	}
	err := s.service.SetAssignmentAsPrimary(r.Context(), sessionFrom(r).UserID, body.ContactID, body.ListID, body.WorkspaceID)
	s.respond(w, r, http.StatusOK, map[string]any{"contactId": body.ContactID, "listId": body.ListID, "isPrimary": true}, err)
}

func (s *HTTPServer) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body CampaignInput
	if !decode(w, r, &body) {
		return
	}
	c, err := s.service.CreateCampaign(r.Context(), sessionFrom(r).UserID, body)
	s.respond(w, r, http.StatusCreated, c, err)
}

func (s *HTTPServer) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.PendingApprovalsForUser(r.Context(), sessionFrom(r).UserID)
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleCampaignsByWorkspace(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.CampaignsByWorkspace(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "workspaceId"))
	s.respond(w, r, http.StatusOK, items, err)
}

func (s *HTTPServer) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetCampaign(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, c, err)
}

func (s *HTTPServer) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignPatch
		WorkspaceID string `json:"workspaceId"`
	}
	if !decode(w, r, &body) {
		return
	}
	c, err := s.service.UpdateCampaign(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body.WorkspaceID, body.CampaignPatch)
	s.respond(w, r, http.StatusOK, c, err)
}

func (s *HTTPServer) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteCampaign(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), r.URL.Query().Get("workspaceId"))
	s.respond(w, r, http.StatusNoContent, nil, err)
}

type reviewBody struct {
	WorkspaceID string `json:"workspaceId"`
	Notes       string `json:"notes"`
}

func (s *HTTPServer) handleApproveCampaign(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if !decode(w, r, &body) {
		return
	}
	c, err := s.service.ApproveCampaign(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body.WorkspaceID, body.Notes)
	s.respond(w, r, http.StatusOK, c, err)
}

func (s *HTTPServer) handleRejectCampaign(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if !decode(w, r, &body) {
		return
	}
	c, err := s.service.RejectCampaign(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "id"), body.WorkspaceID, body.Notes)
	s.respond(w, r, http.StatusOK, c, err)
}
