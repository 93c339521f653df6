package delivery

import (
	"fmt"
	"slices"
	"strings"
)

// Status represents an outbound message's delivery state. Inbound messages
// never enter the machine; they arrive delivered.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// validTransitions defines allowed status transitions. The only backward
// arc is failed->pending, entered by an explicit user retry.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusDelivered, StatusFailed},
	StatusSent:      {StatusDelivered},
	StatusDelivered: {},
	StatusFailed:    {StatusPending},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Transition validates from -> to, returning to on success.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return to, nil
}

// MaxBodyLen is the longest body accepted locally. The carrier protocol
// splits longer sends into segments; the dashboard caps composition here.
const MaxBodyLen = 1600

// SegmentSize is the carrier segment length used for cost display only.
const SegmentSize = 160

// Segments returns the number of carrier segments a body occupies.
func Segments(body string) int {
	n := len(body)
	if n == 0 {
		return 0
	}
	return (n + SegmentSize - 1) / SegmentSize
}

// ValidateBody applies the local pre-send checks. A failure here is fatal
// and never reaches the network.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	if len(body) > MaxBodyLen {
		return ErrBodyTooLong
	}
	return nil
}
