package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *service) getDraft(w http.ResponseWriter, r *http.Request) {
	text, ok := s.deps.Drafts.Load(chi.URLParam(r, "key"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no draft", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"body": text})
}

func (s *service) putDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "validation"})
		return
	}
	s.deps.Drafts.Save(chi.URLParam(r, "key"), req.Body)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *service) deleteDraft(w http.ResponseWriter, r *http.Request) {
	s.deps.Drafts.Clear(chi.URLParam(r, "key"))
	writeJSON(w, http.StatusNoContent, nil)
}
