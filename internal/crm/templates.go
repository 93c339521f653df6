package crm

import (
	"context"
	"net/http"
	"net/url"
)

// ListTemplates fetches message templates in sort order.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out struct {
		Templates []Template `json:"templates"`
	}
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// CreateTemplate creates a template and returns it with its server id.
func (c *Client) CreateTemplate(ctx context.Context, name, body string) (*Template, error) {
	req := map[string]string{"name": name, "body": body}
	var out Template
	if err := c.do(ctx, http.MethodPost, "/templates", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTemplate replaces a template's name and body.
func (c *Client) UpdateTemplate(ctx context.Context, id, name, body string) (*Template, error) {
	req := map[string]string{"name": name, "body": body}
	var out Template
	if err := c.do(ctx, http.MethodPut, "/templates/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTemplate removes a template.
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/templates/"+url.PathEscape(id), nil, nil)
}

// ReorderTemplates applies a new ordering, given template ids first-to-last.
func (c *Client) ReorderTemplates(ctx context.Context, ids []string) error {
	body := map[string][]string{"ids": ids}
	return c.do(ctx, http.MethodPost, "/templates/reorder", body, nil)
}
