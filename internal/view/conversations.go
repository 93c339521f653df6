// Package view owns the client-side snapshots the dashboard renders:
// the conversation list, the lead list, and per-conversation threads.
// Schedulers replace snapshots wholesale; the delivery tracker and the
// optimistic guard patch them incrementally. Replacement never clobbers
// purely-local UI state (selection, expansion, highlight) or fields pinned
// by an in-flight optimistic mutation.
package view

import (
	"sync"

	"github.com/leadline/leadline/internal/crm"
)

// ConversationList is the conversation-list snapshot.
type ConversationList struct {
	mu           sync.RWMutex
	order        []string
	items        map[string]crm.Conversation
	selected     string
	highlighted  map[string]struct{}
	pinnedUnread map[string]int
}

// NewConversationList creates an empty conversation list.
func NewConversationList() *ConversationList {
	return &ConversationList{
		items:        make(map[string]crm.Conversation),
		highlighted:  make(map[string]struct{}),
		pinnedUnread: make(map[string]int),
	}
}

// Replace swaps in the server's conversation list wholesale. Selection,
// highlights and pinned unread counts survive the swap.
func (l *ConversationList) Replace(items []crm.Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = l.order[:0]
	l.items = make(map[string]crm.Conversation, len(items))
	for _, c := range items {
		if v, ok := l.pinnedUnread[c.ID]; ok {
			c.UnreadCount = v
		}
		l.order = append(l.order, c.ID)
		l.items[c.ID] = c
	}
}

// Snapshot returns the conversations in server order.
func (l *ConversationList) Snapshot() []crm.Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]crm.Conversation, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.items[id])
	}
	return out
}

// Get returns a conversation by id.
func (l *ConversationList) Get(id string) (crm.Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.items[id]
	return c, ok
}

// SetUnread patches a conversation's unread count in place.
func (l *ConversationList) SetUnread(id string, unread int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.items[id]; ok {
		c.UnreadCount = unread
		l.items[id] = c
	}
}

// PinUnread overrides id's unread count until the returned release func is
// called, shielding an in-flight optimistic mutation from ticks.
func (l *ConversationList) PinUnread(id string, unread int) func() {
	l.mu.Lock()
	l.pinnedUnread[id] = unread
	if c, ok := l.items[id]; ok {
		c.UnreadCount = unread
		l.items[id] = c
	}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.pinnedUnread, id)
		l.mu.Unlock()
	}
}

// Select marks a conversation as the selected row.
func (l *ConversationList) Select(id string) {
	l.mu.Lock()
	l.selected = id
	l.mu.Unlock()
}

// Selected returns the selected conversation id.
func (l *ConversationList) Selected() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected
}

// Highlight marks a conversation row as highlighted (set=false clears).
func (l *ConversationList) Highlight(id string, set bool) {
	l.mu.Lock()
	if set {
		l.highlighted[id] = struct{}{}
	} else {
		delete(l.highlighted, id)
	}
	l.mu.Unlock()
}

// Highlighted reports whether a conversation row is highlighted.
func (l *ConversationList) Highlighted(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.highlighted[id]
	return ok
}
