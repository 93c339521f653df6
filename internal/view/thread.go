package view

import (
	"sync"

	"github.com/leadline/leadline/internal/crm"
)

// Thread is one conversation's message snapshot. Local placeholder messages
// (optimistic sends not yet confirmed by the backend) survive wholesale
// replacement until they are confirmed or explicitly replaced.
type Thread struct {
	mu    sync.RWMutex
	conv  crm.Conversation
	msgs  []crm.Message
	local map[string]struct{} // client-generated ids awaiting confirmation
}

// NewThread creates a thread for the given conversation.
func NewThread(conv crm.Conversation) *Thread {
	return &Thread{conv: conv, local: make(map[string]struct{})}
}

// Conversation returns the thread's conversation record.
func (t *Thread) Conversation() crm.Conversation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conv
}

// SetConversation replaces the thread's conversation record.
func (t *Thread) SetConversation(conv crm.Conversation) {
	t.mu.Lock()
	t.conv = conv
	t.mu.Unlock()
}

// Messages returns a copy of the message list in display order.
func (t *Thread) Messages() []crm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]crm.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Get returns a message by id.
func (t *Thread) Get(id string) (crm.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.msgs {
		if m.ID == id {
			return m, true
		}
	}
	return crm.Message{}, false
}

// AppendLocal appends an optimistic placeholder message. It stays in the
// thread across Replace calls until confirmed via ReplaceMessage.
func (t *Thread) AppendLocal(msg crm.Message) {
	t.mu.Lock()
	t.msgs = append(t.msgs, msg)
	t.local[msg.ID] = struct{}{}
	t.mu.Unlock()
}

// Replace swaps in the server's view of the thread. Unconfirmed local
// placeholders are re-appended after the server messages, preserving their
// relative order.
func (t *Thread) Replace(conv crm.Conversation, serverMsgs []crm.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keep []crm.Message
	for _, m := range t.msgs {
		if _, ok := t.local[m.ID]; ok {
			keep = append(keep, m)
		}
	}

	t.conv = conv
	t.msgs = append(append([]crm.Message(nil), serverMsgs...), keep...)
}

// ReplaceMessage swaps the message with oldID for msg at the same position.
// If oldID was a local placeholder it is now considered confirmed. Returns
// false if oldID is not present.
func (t *Thread) ReplaceMessage(oldID string, msg crm.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.msgs {
		if m.ID == oldID {
			t.msgs[i] = msg
			delete(t.local, oldID)
			return true
		}
	}
	return false
}

// SetStatus patches a message's status and error text in place. The message
// stays at its position; no reordering.
func (t *Thread) SetStatus(id, status, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.msgs {
		if m.ID == id {
			t.msgs[i].Status = status
			t.msgs[i].ErrorMessage = errMsg
			return true
		}
	}
	return false
}

// Threads is the registry of open threads, keyed by conversation key
// ("conv:<id>" or "phone:<E.164>" for virtual conversations).
type Threads struct {
	mu    sync.Mutex
	byKey map[string]*Thread
}

// NewThreads creates an empty thread registry.
func NewThreads() *Threads {
	return &Threads{byKey: make(map[string]*Thread)}
}

// Ensure returns the thread for key, creating it with conv if absent.
func (r *Threads) Ensure(key string, conv crm.Conversation) *Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byKey[key]; ok {
		return t
	}
	t := NewThread(conv)
	r.byKey[key] = t
	return t
}

// Get returns the thread for key, or nil.
func (r *Threads) Get(key string) *Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKey[key]
}

// Rekey moves a thread from oldKey to newKey, preserving its messages and
// any unconfirmed placeholders. Used when a virtual conversation adopts its
// server id. A missing oldKey is a no-op.
func (r *Threads) Rekey(oldKey, newKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byKey[oldKey]
	if !ok {
		return
	}
	delete(r.byKey, oldKey)
	r.byKey[newKey] = t
}
