package crm

import (
	"context"
	"net/http"
	"net/url"
)

// ListConversations fetches the full conversation list (no delta support;
// ticks replace the snapshot wholesale).
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetConversation fetches a conversation and its messages by server id.
// A missing id is an error (KindNotFound): callers only pass known ids.
func (c *Client) GetConversation(ctx context.Context, id string) (*ConversationWithMessages, error) {
	var out ConversationWithMessages
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversationByPhone looks up a conversation by E.164 phone number.
// No match is a normal empty result: (nil, nil).
func (c *Client) GetConversationByPhone(ctx context.Context, phone string) (*ConversationWithMessages, error) {
	var out ConversationWithMessages
	err := c.do(ctx, http.MethodGet, "/conversations/by-phone/"+url.PathEscape(phone), nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Conversation.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// GetConversationByLead looks up a conversation by lead id.
// No match is a normal empty result: (nil, nil).
func (c *Client) GetConversationByLead(ctx context.Context, leadID string) (*ConversationWithMessages, error) {
	var out ConversationWithMessages
	err := c.do(ctx, http.MethodGet, "/conversations/by-lead/"+url.PathEscape(leadID), nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Conversation.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// SendMessageRequest is the POST body for an outbound send.
type SendMessageRequest struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	LeadID    string `json:"leadId,omitempty"`
	ContactID string `json:"contactId,omitempty"`
}

// SendMessage submits an outbound SMS. A backend-side refusal comes back as
// an error; a SendResult with Success=false never accompanies a nil error.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendResult, error) {
	var out SendResult
	if err := c.do(ctx, http.MethodPost, "/messages", req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Kind: KindRejected, Message: out.ErrorMessage}
	}
	return &out, nil
}

// RetryMessage re-submits a previously failed message by server id.
func (c *Client) RetryMessage(ctx context.Context, messageID string) (*SendResult, error) {
	var out SendResult
	if err := c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Kind: KindRejected, Message: out.ErrorMessage}
	}
	return &out, nil
}

// MarkConversationRead acknowledges all messages in a conversation.
func (c *Client) MarkConversationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkConversationUnread flags a conversation back to unread.
func (c *Client) MarkConversationUnread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(id)+"/unread", nil, nil)
}
