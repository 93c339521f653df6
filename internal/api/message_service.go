package api

import (
	"net/http"

	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/delivery"
	"github.com/leadline/leadline/internal/draft"
)

// sendMessage submits an outbound SMS on the thread identified by key. The
// response carries the message as it stands when the backend call returns:
// confirmed on success, failed with detail on refusal.
func (s *service) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "key is required", Kind: "validation"})
		return
	}
	thread := s.deps.Threads.Get(req.Key)
	if thread == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no open thread for key", Kind: "not_found"})
		return
	}

	c := thread.Conversation()
	msg, err := s.deps.Tracker.Send(r.Context(), c, req.Body, c.LeadID, c.ContactID)
	if err != nil {
		// Validation failures never reach the placeholder stage; backend
		// failures leave a failed message in the thread for retry. The
		// stored draft is untouched either way, only a confirmed send
		// destroys it.
		if err == delivery.ErrEmptyBody || err == delivery.ErrBodyTooLong {
			writeError(w, err)
			return
		}
		writeJSON(w, statusFor(err), sendResponse{Message: msg, Error: crm.Detail(err)})
		return
	}

	// The compose box emptied when the user hit send. A first send from a
	// virtual conversation rekeys the draft mid-call, so clear the adopted
	// key too.
	s.deps.Drafts.Clear(req.Key)
	if msg.ConversationID != "" {
		s.deps.Drafts.Clear(draft.ConvKey(msg.ConversationID))
	}
	writeJSON(w, http.StatusOK, sendResponse{Message: msg})
}

func (s *service) retryMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key       string `json:"key"`
		MessageID string `json:"messageId"`
	}
	if err := decode(r, &req); err != nil || req.Key == "" || req.MessageID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "key and messageId are required", Kind: "validation"})
		return
	}

	msg, err := s.deps.Tracker.Retry(r.Context(), req.Key, req.MessageID)
	if err != nil {
		if err == delivery.ErrNotRetryable || err == delivery.ErrUnknownMessage {
			writeError(w, err)
			return
		}
		writeJSON(w, statusFor(err), sendResponse{Message: msg, Error: crm.Detail(err)})
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Message: msg})
}

// sendResponse pairs the message snapshot with the failure detail, if any.
// The dashboard renders the failed bubble from Message and the toast from
// Error.
type sendResponse struct {
	Message crm.Message `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func statusFor(err error) int {
	switch crm.KindOf(err) {
	case crm.KindRejected:
		return http.StatusUnprocessableEntity
	case crm.KindRateLimited:
		return http.StatusTooManyRequests
	case crm.KindNotFound:
		return http.StatusNotFound
	case crm.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
