package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leadline/leadline/internal/optimistic"
	"github.com/leadline/leadline/internal/view"
)

func (s *service) listLeads(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Leads.Snapshot()
	expanded := make([]string, 0)
	for _, lead := range items {
		if s.deps.Leads.Expanded(lead.ID) {
			expanded = append(expanded, lead.ID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leads":    items,
		"selected": s.deps.Leads.Selected(),
		"expanded": expanded,
	})
}

func (s *service) selectLead(w http.ResponseWriter, r *http.Request) {
	s.deps.Leads.Select(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusNoContent, nil)
}

// expandLead flips the row's detail expansion and reports the new state.
func (s *service) expandLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.deps.Leads.ToggleExpanded(id)
	writeJSON(w, http.StatusOK, map[string]bool{"expanded": s.deps.Leads.Expanded(id)})
}

func (s *service) archiveLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Archived bool `json:"archived"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "validation"})
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Leads.Get(id); !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown lead", Kind: "not_found"})
		return
	}

	err := optimistic.Run(r.Context(), s.deps.Guard, optimistic.Mutation[bool]{
		Describe: "archive lead",
		Snapshot: func() bool {
			lead, _ := s.deps.Leads.Get(id)
			return lead.Archived
		},
		Apply:   func() { s.deps.Leads.SetArchived(id, req.Archived) },
		Restore: func(prior bool) { s.deps.Leads.SetArchived(id, prior) },
		Call: func(ctx context.Context) error {
			return s.deps.CRM.SetLeadArchived(ctx, id, req.Archived)
		},
		Release: s.deps.Leads.Pin(id, view.FieldArchived),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// bumpContactDate stamps the lead as contacted now. The dashboard calls this
// from the row's quick action; sends do not bump it implicitly.
func (s *service) bumpContactDate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Leads.Get(id); !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown lead", Kind: "not_found"})
		return
	}
	now := time.Now().UnixMilli()

	err := optimistic.Run(r.Context(), s.deps.Guard, optimistic.Mutation[*int64]{
		Describe: "bump last contact date",
		Snapshot: func() *int64 {
			lead, _ := s.deps.Leads.Get(id)
			return lead.LastContactDate
		},
		Apply:   func() { s.deps.Leads.SetLastContactDate(id, &now) },
		Restore: func(prior *int64) { s.deps.Leads.SetLastContactDate(id, prior) },
		Call: func(ctx context.Context) error {
			return s.deps.CRM.SetLeadContactDate(ctx, id, now)
		},
		Release: s.deps.Leads.Pin(id, view.FieldLastContactDate),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"lastContactDate": now})
}

// convertLead promotes a lead to a property. No local field changes hand;
// the next lead-list tick drops the converted row, so this is a plain
// passthrough rather than an optimistic mutation.
func (s *service) convertLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.CRM.ConvertLeadToProperty(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *service) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.markConversationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *service) markUnread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.setUnreadOptimistic(r.Context(), "mark conversation unread", id, 1, s.deps.CRM.MarkConversationUnread); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// markConversationRead zeroes the unread badge optimistically and confirms
// with the backend. Shared by the explicit endpoint and popover open.
func (s *service) markConversationRead(ctx context.Context, id string) error {
	return s.setUnreadOptimistic(ctx, "mark conversation read", id, 0, s.deps.CRM.MarkConversationRead)
}

func (s *service) setUnreadOptimistic(ctx context.Context, op, id string, unread int, call func(context.Context, string) error) error {
	// PinUnread both applies the count and shields it from ticks, so it has
	// to run inside Apply, after the snapshot is taken.
	var release func()
	return optimistic.Run(ctx, s.deps.Guard, optimistic.Mutation[int]{
		Describe: op,
		Snapshot: func() int {
			c, _ := s.deps.Conversations.Get(id)
			return c.UnreadCount
		},
		Apply: func() { release = s.deps.Conversations.PinUnread(id, unread) },
		Restore: func(prior int) {
			s.deps.Conversations.SetUnread(id, prior)
		},
		Call: func(callCtx context.Context) error {
			return call(callCtx, id)
		},
		Release: func() {
			if release != nil {
				release()
			}
		},
	})
}

func formatPrice(price int64) string {
	if price == 0 {
		return ""
	}
	return "$" + strconv.FormatInt(price, 10)
}
