package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leadline/leadline/internal/conv"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/draft"
	"github.com/leadline/leadline/internal/view"
)

func (s *service) listConversations(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Conversations.Snapshot()
	highlighted := make([]string, 0)
	for _, c := range items {
		if s.deps.Conversations.Highlighted(c.ID) {
			highlighted = append(highlighted, c.ID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": items,
		"selected":      s.deps.Conversations.Selected(),
		"highlighted":   highlighted,
	})
}

// selectConversation marks the row the dashboard has focused. Selection is
// purely local state and survives list replacement by the scheduler.
func (s *service) selectConversation(w http.ResponseWriter, r *http.Request) {
	s.deps.Conversations.Select(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *service) highlightConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Highlighted bool `json:"highlighted"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "validation"})
		return
	}
	s.deps.Conversations.Highlight(chi.URLParam(r, "id"), req.Highlighted)
	writeJSON(w, http.StatusNoContent, nil)
}

// threadView is a thread rendered for the dashboard, keyed the same way the
// draft store keys it.
type threadView struct {
	Key          string           `json:"key"`
	Conversation crm.Conversation `json:"conversation"`
	Messages     []crm.Message    `json:"messages"`
	Draft        string           `json:"draft,omitempty"`
}

func (s *service) threadView(key string, t *view.Thread) threadView {
	text, _ := s.deps.Drafts.Load(key)
	return threadView{
		Key:          key,
		Conversation: t.Conversation(),
		Messages:     t.Messages(),
		Draft:        text,
	}
}

// resolveConversation opens a thread from whatever handle the dashboard has:
// a conversation id, a raw phone number, or a lead.
func (s *service) resolveConversation(w http.ResponseWriter, r *http.Request) {
	var target conv.Target
	if err := decode(r, &target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "validation"})
		return
	}

	thread, err := s.deps.Resolver.Resolve(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	c := thread.Conversation()
	key := draft.ConvKey(c.ID)
	if c.Virtual() {
		key = draft.PhoneKey(c.PhoneNumber)
	}
	writeJSON(w, http.StatusOK, s.threadView(key, thread))
}

func (s *service) getThread(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	thread := s.deps.Threads.Get(key)
	if thread == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no open thread for key", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, s.threadView(key, thread))
}

func (s *service) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.CRM.ListTags(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *service) tagLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadID string `json:"leadId"`
	}
	if err := decode(r, &req); err != nil || req.LeadID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "leadId is required", Kind: "validation"})
		return
	}
	tag, err := s.deps.CRM.TagLead(r.Context(), chi.URLParam(r, "id"), req.LeadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *service) untagLead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.CRM.UntagLead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *service) suggestedLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.deps.CRM.SuggestedLeads(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}
