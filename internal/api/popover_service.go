package api

import (
	"net/http"

	"github.com/leadline/leadline/internal/popover"
)

func (s *service) getPopover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Popover.Snapshot())
}

type openPopoverRequest struct {
	Target popover.Target `json:"target"`
	LeadID string         `json:"leadId,omitempty"`
}

// openPopover points the popover at a conversation. Lead context for template
// rendering is filled from the local lead list when a lead id accompanies the
// request. Opening a conversation with unread messages marks it read.
func (s *service) openPopover(w http.ResponseWriter, r *http.Request) {
	var req openPopoverRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "validation"})
		return
	}

	var lead popover.LeadContext
	if req.LeadID != "" {
		if l, ok := s.deps.Leads.Get(req.LeadID); ok {
			lead = popover.LeadContext{
				LeadID:  l.ID,
				Name:    l.Name,
				Address: l.Address,
				Price:   formatPrice(l.AskingPrice),
			}
		}
	}

	if err := s.deps.Popover.Open(req.Target, lead); err != nil {
		writeError(w, err)
		return
	}

	if id := req.Target.ConversationID; id != "" {
		if c, ok := s.deps.Conversations.Get(id); ok && c.UnreadCount > 0 {
			if err := s.markConversationRead(r.Context(), id); err != nil {
				// The popover is open regardless; the unread badge just stays.
				s.deps.Logger.Warn("mark read on open failed")
			}
		}
	}

	writeJSON(w, http.StatusOK, s.deps.Popover.Snapshot())
}

func (s *service) minimizePopover(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Popover.Minimize(); err != nil {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "conflict"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Popover.Snapshot())
}

func (s *service) restorePopover(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Popover.Restore(); err != nil {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "conflict"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Popover.Snapshot())
}

func (s *service) closePopover(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Popover.Close(); err != nil {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "conflict"})
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
