// Package delivery owns the outbound message lifecycle: optimistic insert,
// the pending/sent/delivered/failed state machine, and user-triggered retry.
package delivery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/draft"
	"github.com/leadline/leadline/internal/view"
	"go.uber.org/zap"
)

// localIDPrefix marks client-generated placeholder ids. A failed message
// with a local id never reached the backend; retry re-submits it instead of
// calling the backend retry endpoint.
const localIDPrefix = "local-"

// Backend is the slice of the CRM client the tracker needs.
type Backend interface {
	SendMessage(ctx context.Context, req crm.SendMessageRequest) (*crm.SendResult, error)
	RetryMessage(ctx context.Context, messageID string) (*crm.SendResult, error)
}

// Adopter rekeys client state when a virtual conversation gains a server id.
type Adopter interface {
	AdoptServerID(phone, serverID string)
}

// Tracker drives outbound sends against the thread snapshots.
type Tracker struct {
	backend Backend
	threads *view.Threads
	adopter Adopter
	bus     *bus.Bus
	logger  *zap.Logger
	refresh func()

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	requests map[string]crm.SendMessageRequest // placeholder id -> original request
}

// NewTracker creates a delivery tracker. refresh is poked after every
// confirmed send so the conversation list picks up preview/unread changes;
// it may be nil.
func NewTracker(backend Backend, threads *view.Threads, adopter Adopter, b *bus.Bus, logger *zap.Logger, refresh func()) *Tracker {
	return &Tracker{
		backend:  backend,
		threads:  threads,
		adopter:  adopter,
		bus:      b,
		logger:   logger,
		refresh:  refresh,
		locks:    make(map[string]*sync.Mutex),
		requests: make(map[string]crm.SendMessageRequest),
	}
}

// keyLock returns the send-serialization mutex for a conversation key.
// Sends to the same conversation queue behind each other; sends to
// different conversations overlap freely.
func (t *Tracker) keyLock(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// stashRequest keeps the outgoing request under its placeholder id so a
// local-id retry re-submits identical parameters. Confirmed sends drop the
// entry.
func (t *Tracker) stashRequest(id string, req crm.SendMessageRequest) {
	t.mu.Lock()
	t.requests[id] = req
	t.mu.Unlock()
}

func (t *Tracker) stashedRequest(id string) (crm.SendMessageRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[id]
	return req, ok
}

func (t *Tracker) dropRequest(id string) {
	t.mu.Lock()
	delete(t.requests, id)
	t.mu.Unlock()
}

// Key returns the thread/draft key for a conversation.
func Key(c crm.Conversation) string {
	if c.Virtual() {
		return draft.PhoneKey(c.PhoneNumber)
	}
	return draft.ConvKey(c.ID)
}

// Send validates and submits an outbound message to the conversation.
// The message appears in the thread as pending before the network call;
// the returned message is the confirmed record on success, or the failed
// placeholder on a backend failure. Validation failures insert nothing.
func (t *Tracker) Send(ctx context.Context, conv crm.Conversation, body, leadID, contactID string) (crm.Message, error) {
	if err := ValidateBody(body); err != nil {
		return crm.Message{}, err
	}

	key := Key(conv)
	lock := t.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	thread := t.threads.Ensure(key, conv)
	placeholder := crm.Message{
		ID:             localIDPrefix + uuid.NewString(),
		ConversationID: conv.ID,
		Direction:      crm.DirectionOutbound,
		Body:           body,
		Status:         string(StatusPending),
		CreatedAt:      time.Now().UnixMilli(),
	}
	thread.AppendLocal(placeholder)
	t.bus.Emit(bus.KindMessageUpserted, map[string]string{"key": key, "message_id": placeholder.ID})

	req := crm.SendMessageRequest{
		To:        conv.PhoneNumber,
		Body:      body,
		LeadID:    leadID,
		ContactID: contactID,
	}
	t.stashRequest(placeholder.ID, req)
	return t.submit(ctx, thread, key, placeholder.ID, req, "")
}

// Retry re-submits a currently failed outbound message. On success the
// failed message is replaced in place; a duplicate is never appended.
func (t *Tracker) Retry(ctx context.Context, key, messageID string) (crm.Message, error) {
	lock := t.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	thread := t.threads.Get(key)
	if thread == nil {
		return crm.Message{}, ErrUnknownMessage
	}
	msg, ok := thread.Get(messageID)
	if !ok {
		return crm.Message{}, ErrUnknownMessage
	}
	if msg.Direction != crm.DirectionOutbound {
		return msg, ErrNotRetryable
	}
	if _, err := Transition(Status(msg.Status), StatusPending); err != nil {
		return msg, ErrNotRetryable
	}
	thread.SetStatus(messageID, string(StatusPending), "")
	t.bus.Emit(bus.KindMessageUpserted, map[string]string{"key": key, "message_id": messageID})

	if strings.HasPrefix(messageID, localIDPrefix) {
		// Never reached the backend; re-submit the original request.
		req, ok := t.stashedRequest(messageID)
		if !ok {
			conv := thread.Conversation()
			req = crm.SendMessageRequest{
				To:        conv.PhoneNumber,
				Body:      msg.Body,
				LeadID:    conv.LeadID,
				ContactID: conv.ContactID,
			}
		}
		return t.submit(ctx, thread, key, messageID, req, "")
	}
	return t.submit(ctx, thread, key, messageID, crm.SendMessageRequest{}, messageID)
}

// submit performs the network call for a pending message already in the
// thread and applies the resulting transition. retryID selects the backend
// retry endpoint instead of a fresh send.
func (t *Tracker) submit(ctx context.Context, thread *view.Thread, key, placeholderID string, req crm.SendMessageRequest, retryID string) (crm.Message, error) {
	var (
		res *crm.SendResult
		err error
	)
	if retryID != "" {
		res, err = t.backend.RetryMessage(ctx, retryID)
	} else {
		res, err = t.backend.SendMessage(ctx, req)
	}
	if err != nil {
		detail := crm.Detail(err)
		thread.SetStatus(placeholderID, string(StatusFailed), detail)
		t.logger.Error("send failed",
			zap.String("key", key),
			zap.String("message_id", placeholderID),
			zap.String("kind", string(crm.KindOf(err))),
			zap.Error(err))
		t.bus.Emit(bus.KindMessageSendFailed, map[string]string{
			"key": key, "message_id": placeholderID, "error": detail,
		})
		failed, _ := thread.Get(placeholderID)
		return failed, err
	}

	status := res.Status
	if status == "" {
		status = string(StatusSent)
	}
	old, _ := thread.Get(placeholderID)
	confirmed := crm.Message{
		ID:             res.MessageID,
		ConversationID: res.ConversationID,
		Direction:      crm.DirectionOutbound,
		Body:           old.Body,
		Status:         status,
		CreatedAt:      old.CreatedAt,
	}
	thread.ReplaceMessage(placeholderID, confirmed)
	t.dropRequest(placeholderID)

	conv := thread.Conversation()
	if conv.Virtual() && res.ConversationID != "" {
		// First confirmed send from a virtual conversation: adopt the
		// server id everywhere (thread key, draft key, popover target).
		t.adopter.AdoptServerID(conv.PhoneNumber, res.ConversationID)
	}

	t.logger.Info("message sent",
		zap.String("key", key),
		zap.String("message_id", res.MessageID),
		zap.String("status", status))
	t.bus.Emit(bus.KindMessageSendAck, map[string]string{
		"key": key, "message_id": res.MessageID, "conversation_id": res.ConversationID,
	})
	if t.refresh != nil {
		t.refresh()
	}
	return confirmed, nil
}
