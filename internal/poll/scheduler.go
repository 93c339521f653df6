// Package poll runs the periodic reconciliation loops that keep the local
// view aligned with the backend. One Scheduler per resource (conversation
// list, active thread, lead list), each with its own period and suspension
// state.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/crm"
	"go.uber.org/zap"
)

// Fetch pulls one resource from the backend and replaces the corresponding
// view snapshot. It returns the backend error unwrapped so the scheduler can
// classify it.
type Fetch func(ctx context.Context) error

// Scheduler drives one Fetch on a fixed period. A tick that lands while the
// previous fetch is still running is skipped, not queued. A transport-class
// failure, or a fetch against a resource the backend no longer serves,
// suspends ticking until Poke is called.
type Scheduler struct {
	name   string
	period time.Duration
	fetch  Fetch
	bus    *bus.Bus
	logger *zap.Logger

	inFlight  atomic.Bool
	skipped   atomic.Int64
	suspended atomic.Bool
	poke      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler for the named resource. It does not tick
// until Start is called.
func NewScheduler(name string, period time.Duration, fetch Fetch, b *bus.Bus, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		name:   name,
		period: period,
		fetch:  fetch,
		bus:    b,
		logger: logger,
		poke:   make(chan struct{}, 1),
	}
}

// Name returns the resource name the scheduler polls.
func (s *Scheduler) Name() string { return s.name }

// Start begins the tick loop. The first fetch runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop cancels the loop and waits for any in-flight fetch to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Poke forces an immediate tick and clears suspension. Called on user retry
// and after a confirmed send; a poke during an in-flight fetch is still
// subject to the overlap guard.
func (s *Scheduler) Poke() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

// Suspended reports whether the scheduler is holding off after a suspending
// fetch failure.
func (s *Scheduler) Suspended() bool { return s.suspended.Load() }

// Skipped returns how many due ticks were dropped because a fetch was still
// running.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.tick(ctx, false)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx, false)
		case <-s.poke:
			s.tick(ctx, true)
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one fetch. Periodic ticks are dropped while suspended; a poked
// tick always runs and is the only way out of suspension.
func (s *Scheduler) tick(ctx context.Context, poked bool) {
	if s.suspended.Load() && !poked {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("tick skipped, fetch in flight", zap.String("resource", s.name))
		return
	}
	defer s.inFlight.Store(false)

	err := s.fetch(ctx)
	switch {
	case err == nil:
		if s.suspended.CompareAndSwap(true, false) {
			s.logger.Info("sync resumed", zap.String("resource", s.name))
			s.bus.Emit(bus.KindSyncResumed, map[string]string{"resource": s.name})
		}
	case ctx.Err() != nil:
		// Shutdown, not a backend problem.
	case crm.IsTransport(err) || crm.IsNotFound(err):
		// Not-found suspends too: a conversation the backend stopped serving
		// would otherwise fail every period until the user moves on.
		if s.suspended.CompareAndSwap(false, true) {
			s.logger.Warn("sync suspended",
				zap.String("resource", s.name), zap.Error(err))
			s.bus.Emit(bus.KindSyncSuspended, map[string]string{
				"resource": s.name, "error": err.Error(),
			})
		}
	default:
		// A rejected fetch does not suspend; the next tick retries on
		// schedule.
		s.logger.Warn("fetch failed", zap.String("resource", s.name), zap.Error(err))
	}
}
