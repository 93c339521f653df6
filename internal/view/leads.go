package view

import (
	"sync"

	"github.com/leadline/leadline/internal/crm"
)

// Lead fields that can be pinned by an in-flight optimistic mutation.
const (
	FieldArchived        = "archived"
	FieldLastContactDate = "lastContactDate"
)

// LeadList is the lead-list snapshot.
type LeadList struct {
	mu       sync.RWMutex
	order    []string
	items    map[string]crm.Lead
	expanded map[string]struct{}
	selected string
	pinned   map[string]map[string]struct{} // lead id -> pinned field set
}

// NewLeadList creates an empty lead list.
func NewLeadList() *LeadList {
	return &LeadList{
		items:    make(map[string]crm.Lead),
		expanded: make(map[string]struct{}),
		pinned:   make(map[string]map[string]struct{}),
	}
}

// Replace swaps in the server's lead list wholesale. Row expansion and
// selection survive; fields pinned by an unresolved optimistic mutation
// keep their local value instead of flickering back to the server's.
func (l *LeadList) Replace(items []crm.Lead) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[string]crm.Lead, len(items))
	l.order = l.order[:0]
	for _, incoming := range items {
		if fields, ok := l.pinned[incoming.ID]; ok {
			local, have := l.items[incoming.ID]
			if have {
				if _, pinned := fields[FieldArchived]; pinned {
					incoming.Archived = local.Archived
				}
				if _, pinned := fields[FieldLastContactDate]; pinned {
					incoming.LastContactDate = local.LastContactDate
				}
			}
		}
		l.order = append(l.order, incoming.ID)
		next[incoming.ID] = incoming
	}
	l.items = next
}

// Snapshot returns the leads in server order.
func (l *LeadList) Snapshot() []crm.Lead {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]crm.Lead, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.items[id])
	}
	return out
}

// Get returns a lead by id.
func (l *LeadList) Get(id string) (crm.Lead, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lead, ok := l.items[id]
	return lead, ok
}

// SetArchived patches a lead's archived flag in place.
func (l *LeadList) SetArchived(id string, archived bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lead, ok := l.items[id]; ok {
		lead.Archived = archived
		l.items[id] = lead
	}
}

// SetLastContactDate patches a lead's last-contact date in place.
func (l *LeadList) SetLastContactDate(id string, at *int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lead, ok := l.items[id]; ok {
		lead.LastContactDate = at
		l.items[id] = lead
	}
}

// Pin shields one field of one lead from snapshot replacement until the
// returned release func is called.
func (l *LeadList) Pin(id, field string) func() {
	l.mu.Lock()
	fields, ok := l.pinned[id]
	if !ok {
		fields = make(map[string]struct{})
		l.pinned[id] = fields
	}
	fields[field] = struct{}{}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		if fields, ok := l.pinned[id]; ok {
			delete(fields, field)
			if len(fields) == 0 {
				delete(l.pinned, id)
			}
		}
		l.mu.Unlock()
	}
}

// ToggleExpanded flips a row's expansion state.
func (l *LeadList) ToggleExpanded(id string) {
	l.mu.Lock()
	if _, ok := l.expanded[id]; ok {
		delete(l.expanded, id)
	} else {
		l.expanded[id] = struct{}{}
	}
	l.mu.Unlock()
}

// Expanded reports whether a row is expanded.
func (l *LeadList) Expanded(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.expanded[id]
	return ok
}

// Select marks a lead as the selected row.
func (l *LeadList) Select(id string) {
	l.mu.Lock()
	l.selected = id
	l.mu.Unlock()
}

// Selected returns the selected lead id.
func (l *LeadList) Selected() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected
}
