// Package crm is the HTTP client for the remote CRM messaging backend.
// It owns error classification: every failure surfaces as an *APIError
// with a Kind the state machines can branch on.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Client talks to the messaging backend over HTTP JSON.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a backend client. baseURL has no trailing slash; token may be
// empty for backends behind a trusted proxy.
func New(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		logger:  logger,
	}
}

// errorBody is the backend's JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do issues a request and decodes a 2xx JSON response into out (out may be
// nil). Non-2xx and transport failures are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Kind: KindTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	return c.classify(resp)
}

func (c *Client) classify(resp *http.Response) *APIError {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimited
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		apiErr.Kind = KindRejected
	default:
		// 5xx and anything unexpected: treat as an unreachable backend.
		apiErr.Kind = KindTransport
	}

	if c.logger != nil {
		c.logger.Debug("backend error",
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(apiErr.Kind)),
			zap.String("message", msg))
	}
	return apiErr
}
