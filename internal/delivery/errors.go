package delivery

import "errors"

// Validation failures: local, fatal, never retryable.
var (
	ErrEmptyBody   = errors.New("message body is empty")
	ErrBodyTooLong = errors.New("message body exceeds 1600 characters")
)

// ErrNotRetryable is returned when retry targets a message that is not
// currently failed (or is inbound).
var ErrNotRetryable = errors.New("message is not in a retryable state")

// ErrUnknownMessage is returned when retry targets an id not in the thread.
var ErrUnknownMessage = errors.New("unknown message id")
