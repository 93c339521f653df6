// Package popover tracks the dashboard's messaging popover session. Exactly
// one popover session exists per agent; opening a new conversation replaces
// the current one rather than stacking.
package popover

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/leadline/leadline/internal/bus"
)

// Phase represents a popover session phase.
type Phase string

const (
	Closed    Phase = "CLOSED"
	Open      Phase = "OPEN"
	Minimized Phase = "MINIMIZED"
)

// validTransitions defines allowed phase transitions. Open is reachable from
// every phase because opening a conversation always succeeds by replacing
// whatever session was active.
var validTransitions = map[Phase][]Phase{
	Closed:    {Open},
	Open:      {Minimized, Closed, Open},
	Minimized: {Open, Closed},
}

// ErrInvalidTarget is returned when a target names both a conversation id and
// a phone number, or neither.
var ErrInvalidTarget = errors.New("popover target must carry exactly one of conversation id or phone number")

// Target identifies the conversation the popover is showing. Exactly one of
// ConversationID and PhoneNumber is set; a virtual conversation carries the
// phone until it adopts a server id.
type Target struct {
	ConversationID string `json:"conversationId,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
}

func (t Target) valid() bool {
	return (t.ConversationID != "") != (t.PhoneNumber != "")
}

// LeadContext carries the lead fields used for template rendering while the
// popover is open. It follows the target through minimize and restore and is
// dropped on close.
type LeadContext struct {
	LeadID  string `json:"leadId,omitempty"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Price   string `json:"price,omitempty"`
}

// Session is a point-in-time copy of the controller state for the API layer.
type Session struct {
	Phase   Phase       `json:"phase"`
	Target  Target      `json:"target"`
	Context LeadContext `json:"context"`
}

// Controller is the popover session state machine.
type Controller struct {
	mu      sync.RWMutex
	phase   Phase
	target  Target
	context LeadContext
	bus     *bus.Bus
}

// NewController creates a controller starting in the Closed phase.
func NewController(b *bus.Bus) *Controller {
	return &Controller{phase: Closed, bus: b}
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Session{Phase: c.phase, Target: c.target, Context: c.context}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Open points the popover at target and moves to Open. Valid from any phase:
// an already-open session is replaced atomically, never stacked.
func (c *Controller) Open(target Target, lead LeadContext) error {
	if !target.valid() {
		return ErrInvalidTarget
	}
	return c.transition(Open, func() {
		c.target = target
		c.context = lead
	})
}

// Minimize collapses an open popover. Valid only from Open.
func (c *Controller) Minimize() error {
	return c.transition(Minimized, nil)
}

// Restore re-opens a minimized popover on its existing target.
func (c *Controller) Restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Minimized {
		return fmt.Errorf("invalid popover transition from %s to %s", c.phase, Open)
	}
	c.phase = Open
	c.publishLocked()
	return nil
}

// Close dismisses the popover and clears the target and lead context. The
// conversation draft is persisted elsewhere and survives. Closing an already
// closed popover is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == Closed {
		return nil
	}
	c.phase = Closed
	c.target = Target{}
	c.context = LeadContext{}
	c.publishLocked()
	return nil
}

// AdoptTarget swaps a phone-keyed target for the server-issued conversation
// id. Called when a virtual conversation is adopted mid-session; a popover
// pointed elsewhere is untouched.
func (c *Controller) AdoptTarget(phone, conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == Closed || c.target.PhoneNumber != phone {
		return
	}
	c.target = Target{ConversationID: conversationID}
	c.publishLocked()
}

func (c *Controller) transition(to Phase, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	allowed := validTransitions[c.phase]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid popover transition from %s to %s", c.phase, to)
	}
	c.phase = to
	if apply != nil {
		apply()
	}
	c.publishLocked()
	return nil
}

func (c *Controller) publishLocked() {
	if c.bus != nil {
		c.bus.Emit(bus.KindPopoverChanged, Session{
			Phase: c.phase, Target: c.target, Context: c.context,
		})
	}
}
