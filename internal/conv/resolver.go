// Package conv resolves conversations across their three lookup keys
// (conversation id, phone number, lead id) and owns virtual-conversation
// identity: placeholders are interned per phone number so repeated opens
// land on the same conversation, and adoption rekeys everything when the
// backend issues a real id on first send.
package conv

import (
	"context"
	"errors"
	"sync"

	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/draft"
	"github.com/leadline/leadline/internal/view"
	"go.uber.org/zap"
)

// Resolution errors. All are validation-class: no network call was made.
var (
	ErrEmptyTarget    = errors.New("resolve target has no key set")
	ErrLeadHasNoPhone = errors.New("lead has no phone number on file")
)

// Target is a discriminated resolve input: exactly one of ConversationID,
// PhoneNumber or LeadID drives the lookup. When opening from a lead row
// both PhoneNumber and LeadID are supplied; the phone number wins and the
// lead id rides along as context for the virtual conversation.
type Target struct {
	ConversationID string `json:"conversationId,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	LeadID         string `json:"leadId,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
}

// Directory is the slice of the CRM client the resolver needs.
type Directory interface {
	GetConversation(ctx context.Context, id string) (*crm.ConversationWithMessages, error)
	GetConversationByPhone(ctx context.Context, phone string) (*crm.ConversationWithMessages, error)
	GetConversationByLead(ctx context.Context, leadID string) (*crm.ConversationWithMessages, error)
}

// Resolver maps targets to threads, creating interned virtual conversations
// when the backend has none yet.
type Resolver struct {
	backend  Directory
	threads  *view.Threads
	drafts   *draft.Store
	leads    *view.LeadList
	bus      *bus.Bus
	logger   *zap.Logger
	retarget func(phone, serverID string)

	mu      sync.Mutex
	virtual map[string]crm.Conversation // interned placeholders by E.164 phone
}

// NewResolver creates a resolver. retarget is invoked on adoption so the
// popover session can swap its phone target for the server id; it may be nil.
func NewResolver(backend Directory, threads *view.Threads, drafts *draft.Store, leads *view.LeadList, b *bus.Bus, logger *zap.Logger, retarget func(phone, serverID string)) *Resolver {
	return &Resolver{
		backend:  backend,
		threads:  threads,
		drafts:   drafts,
		leads:    leads,
		bus:      b,
		logger:   logger,
		retarget: retarget,
		virtual:  make(map[string]crm.Conversation),
	}
}

// Resolve returns the thread for a target, fetching from the backend or
// synthesizing a virtual conversation. Resolution order: id, then phone,
// then lead. An unknown phone or lead is not an error; an unknown id is.
func (r *Resolver) Resolve(ctx context.Context, target Target) (*view.Thread, error) {
	switch {
	case target.ConversationID != "":
		return r.resolveByID(ctx, target.ConversationID)
	case target.PhoneNumber != "":
		return r.resolveByPhone(ctx, target)
	case target.LeadID != "":
		return r.resolveByLead(ctx, target)
	}
	return nil, ErrEmptyTarget
}

func (r *Resolver) resolveByID(ctx context.Context, id string) (*view.Thread, error) {
	cw, err := r.backend.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	thread := r.threads.Ensure(draft.ConvKey(id), cw.Conversation)
	thread.Replace(cw.Conversation, cw.Messages)
	return thread, nil
}

func (r *Resolver) resolveByPhone(ctx context.Context, target Target) (*view.Thread, error) {
	phone, err := NormalizePhone(target.PhoneNumber)
	if err != nil {
		return nil, err
	}

	cw, err := r.backend.GetConversationByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if cw != nil {
		thread := r.threads.Ensure(draft.ConvKey(cw.Conversation.ID), cw.Conversation)
		thread.Replace(cw.Conversation, cw.Messages)
		return thread, nil
	}
	return r.virtualThread(phone, target), nil
}

func (r *Resolver) resolveByLead(ctx context.Context, target Target) (*view.Thread, error) {
	cw, err := r.backend.GetConversationByLead(ctx, target.LeadID)
	if err != nil {
		return nil, err
	}
	if cw != nil {
		thread := r.threads.Ensure(draft.ConvKey(cw.Conversation.ID), cw.Conversation)
		thread.Replace(cw.Conversation, cw.Messages)
		return thread, nil
	}

	lead, ok := r.leads.Get(target.LeadID)
	if !ok || lead.PhoneNumber == "" {
		return nil, ErrLeadHasNoPhone
	}
	phone, err := NormalizePhone(lead.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if target.DisplayName == "" {
		target.DisplayName = lead.Name
	}
	return r.virtualThread(phone, target), nil
}

// virtualThread returns the interned placeholder for phone, creating it on
// first use. A later resolve may fill in lead context the first one lacked,
// but never forks a second placeholder for the same number.
func (r *Resolver) virtualThread(phone string, target Target) *view.Thread {
	r.mu.Lock()
	vc, ok := r.virtual[phone]
	if !ok {
		vc = crm.Conversation{
			PhoneNumber: phone,
			DisplayName: target.DisplayName,
			LeadID:      target.LeadID,
		}
	} else {
		if vc.LeadID == "" {
			vc.LeadID = target.LeadID
		}
		if vc.DisplayName == "" {
			vc.DisplayName = target.DisplayName
		}
	}
	r.virtual[phone] = vc
	r.mu.Unlock()

	thread := r.threads.Ensure(draft.PhoneKey(phone), vc)
	thread.SetConversation(vc)
	return thread
}

// AdoptServerID rekeys all client state for phone's virtual conversation to
// the server-issued id: the thread registry, the stored draft, and (via
// retarget) the popover session. Draft text and in-flight placeholders are
// preserved. Safe to call once per first confirmed send.
func (r *Resolver) AdoptServerID(phone, serverID string) {
	oldKey := draft.PhoneKey(phone)
	newKey := draft.ConvKey(serverID)

	r.mu.Lock()
	vc, wasVirtual := r.virtual[phone]
	delete(r.virtual, phone)
	r.mu.Unlock()

	r.threads.Rekey(oldKey, newKey)
	if thread := r.threads.Get(newKey); thread != nil {
		adopted := thread.Conversation()
		if wasVirtual {
			adopted = vc
		}
		adopted.ID = serverID
		adopted.PhoneNumber = phone
		thread.SetConversation(adopted)
	}

	r.drafts.Rekey(oldKey, newKey)
	if r.retarget != nil {
		r.retarget(phone, serverID)
	}

	r.logger.Info("conversation adopted server id",
		zap.String("phone", phone), zap.String("conversation_id", serverID))
	r.bus.Emit(bus.KindConversationAdopted, map[string]string{
		"phone": phone, "conversation_id": serverID,
	})
}
