package crm

import (
	"context"
	"net/http"
	"net/url"
)

// ListLeads fetches the full lead list.
func (c *Client) ListLeads(ctx context.Context) ([]Lead, error) {
	var out struct {
		Leads []Lead `json:"leads"`
	}
	if err := c.do(ctx, http.MethodGet, "/leads", nil, &out); err != nil {
		return nil, err
	}
	return out.Leads, nil
}

// SetLeadArchived archives or unarchives a lead.
func (c *Client) SetLeadArchived(ctx context.Context, leadID string, archived bool) error {
	body := map[string]bool{"archived": archived}
	return c.do(ctx, http.MethodPost, "/leads/"+url.PathEscape(leadID)+"/archive", body, nil)
}

// SetLeadContactDate bumps a lead's last-contact date (unix millis).
func (c *Client) SetLeadContactDate(ctx context.Context, leadID string, contactedAt int64) error {
	body := map[string]int64{"lastContactDate": contactedAt}
	return c.do(ctx, http.MethodPost, "/leads/"+url.PathEscape(leadID)+"/contact-date", body, nil)
}

// ConvertLeadToProperty promotes a lead into a tracked property. A duplicate
// property comes back as KindRejected with the backend's detail text.
func (c *Client) ConvertLeadToProperty(ctx context.Context, leadID string) error {
	return c.do(ctx, http.MethodPost, "/leads/"+url.PathEscape(leadID)+"/convert", nil, nil)
}

// ListTags fetches the lead tags attached to a conversation.
func (c *Client) ListTags(ctx context.Context, conversationID string) ([]LeadTag, error) {
	var out struct {
		Tags []LeadTag `json:"tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/tags", nil, &out); err != nil {
		return nil, err
	}
	return out.Tags, nil
}

// TagLead attaches a lead to a conversation as a manual tag.
func (c *Client) TagLead(ctx context.Context, conversationID, leadID string) (*LeadTag, error) {
	body := map[string]string{"leadId": leadID}
	var out LeadTag
	if err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/tags", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UntagLead removes a tag regardless of whether it was auto or manual.
func (c *Client) UntagLead(ctx context.Context, tagID string) error {
	return c.do(ctx, http.MethodDelete, "/tags/"+url.PathEscape(tagID), nil, nil)
}

// SuggestedLeads lists phone-matched lead candidates for a conversation.
func (c *Client) SuggestedLeads(ctx context.Context, conversationID string) ([]Lead, error) {
	var out struct {
		Leads []Lead `json:"leads"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/suggested-leads", nil, &out); err != nil {
		return nil, err
	}
	return out.Leads, nil
}
