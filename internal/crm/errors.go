package crm

import (
	"errors"
	"fmt"
)

// Kind classifies backend failures for callers that need to branch on them.
type Kind string

const (
	// KindTransport covers connection-refused, DNS and timeout failures.
	// Recoverable by manual retry; suspends background schedulers.
	KindTransport Kind = "transport"
	// KindRejected covers backend-validated refusals (invalid recipient,
	// duplicate property). Recoverable only via corrected input.
	KindRejected Kind = "rejected"
	// KindRateLimited covers HTTP 429. Recoverable by manual retry.
	KindRateLimited Kind = "rate_limited"
	// KindNotFound covers a lookup of a known id that no longer exists.
	KindNotFound Kind = "not_found"
)

// APIError is a classified failure from the messaging backend.
type APIError struct {
	Kind       Kind
	StatusCode int    // zero when the request never reached the backend
	Message    string // backend-provided detail when available
	Err        error  // underlying transport error, if any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("backend %s (status %d)", e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" when err is not an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsTransport reports whether err is a transport-class failure, including
// rate limiting, which the state machines treat identically.
func IsTransport(err error) bool {
	k := KindOf(err)
	return k == KindTransport || k == KindRateLimited
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// Detail returns the user-facing text for err: the backend's own message
// when present, otherwise a generic description per kind.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		switch apiErr.Kind {
		case KindTransport:
			return "could not reach the messaging service"
		case KindRateLimited:
			return "sending too fast, try again shortly"
		case KindNotFound:
			return "not found"
		}
		return "the messaging service rejected the request"
	}
	return err.Error()
}
