// Package optimistic applies local view mutations ahead of their backend
// calls and rolls them back on failure. Rollback is field-scoped: a mutation
// snapshots only the fields it touches, so concurrent mutations on the same
// entity unwind independently.
package optimistic

import (
	"context"

	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/crm"
	"go.uber.org/zap"
)

// Mutation describes one optimistic write. Snapshot captures the prior values
// of exactly the fields Apply changes; Restore puts those values back. Release
// is called once the outcome is known and typically unpins the fields so the
// next sync replace may overwrite them.
type Mutation[T any] struct {
	// Describe names the operation for logs and error notifications,
	// e.g. "archive lead".
	Describe string

	Snapshot func() T
	Apply    func()
	Restore  func(T)
	Call     func(ctx context.Context) error

	// Release is optional.
	Release func()
}

// Guard runs optimistic mutations and reports failures on the bus.
type Guard struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewGuard creates a mutation guard.
func NewGuard(b *bus.Bus, logger *zap.Logger) *Guard {
	return &Guard{bus: b, logger: logger}
}

// Run applies m locally, then issues the backend call. On failure the
// snapshot is restored and a notify.error event carries the user-facing
// detail. The view change is visible for the whole duration of the call.
func Run[T any](ctx context.Context, g *Guard, m Mutation[T]) error {
	prior := m.Snapshot()
	m.Apply()
	if m.Release != nil {
		defer m.Release()
	}

	err := m.Call(ctx)
	if err == nil {
		return nil
	}

	m.Restore(prior)
	detail := crm.Detail(err)
	g.logger.Warn("mutation rolled back",
		zap.String("op", m.Describe), zap.Error(err))
	g.bus.Emit(bus.KindNotifyError, ErrorNotice{
		Op:     m.Describe,
		Detail: detail,
	})
	return err
}

// ErrorNotice is the notify.error payload shown to the user after a rollback.
type ErrorNotice struct {
	Op     string `json:"op"`
	Detail string `json:"detail"`
}
