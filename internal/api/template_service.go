package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leadline/leadline/internal/template"
)

func (s *service) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.deps.CRM.ListTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

type templateRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

func (s *service) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decode(r, &req); err != nil || req.Name == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "name and body are required", Kind: "validation"})
		return
	}
	tpl, err := s.deps.CRM.CreateTemplate(r.Context(), req.Name, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *service) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decode(r, &req); err != nil || req.Name == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "name and body are required", Kind: "validation"})
		return
	}
	tpl, err := s.deps.CRM.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), req.Name, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *service) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.CRM.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *service) reorderTemplates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decode(r, &req); err != nil || len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ids are required", Kind: "validation"})
		return
	}
	if err := s.deps.CRM.ReorderTemplates(r.Context(), req.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// renderTemplate previews a template body against the current popover lead
// context. The popover's conversation phone fills {{phone}}.
func (s *service) renderTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "validation"})
		return
	}

	session := s.deps.Popover.Snapshot()
	phone := session.Target.PhoneNumber
	if phone == "" && session.Target.ConversationID != "" {
		if c, ok := s.deps.Conversations.Get(session.Target.ConversationID); ok {
			phone = c.PhoneNumber
		}
	}

	rendered := template.Render(req.Body, template.Vars{
		Name:    session.Context.Name,
		Address: session.Context.Address,
		Price:   session.Context.Price,
		Phone:   phone,
	})
	writeJSON(w, http.StatusOK, map[string]string{"body": rendered})
}
