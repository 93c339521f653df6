package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/crm"
	"go.uber.org/zap"
)

// countingFetch records each call and replies with whatever err holds at the
// time of the call.
type countingFetch struct {
	mu    sync.Mutex
	err   error
	calls atomic.Int64
	block chan struct{} // when non-nil, fetch waits here before returning
	ping  chan struct{}
}

func newCountingFetch() *countingFetch {
	return &countingFetch{ping: make(chan struct{}, 64)}
}

func (f *countingFetch) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *countingFetch) fetch(context.Context) error {
	f.calls.Add(1)
	select {
	case f.ping <- struct{}{}:
	default:
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *countingFetch) waitCall(t *testing.T) {
	t.Helper()
	select {
	case <-f.ping:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch call")
	}
}

func newTestScheduler(f *countingFetch, period time.Duration, b *bus.Bus) *Scheduler {
	if b == nil {
		b = bus.New()
	}
	return NewScheduler("conversations", period, f.fetch, b, zap.NewNop())
}

func TestTicksOnStartAndOnPeriod(t *testing.T) {
	f := newCountingFetch()
	s := newTestScheduler(f, 10*time.Millisecond, nil)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)
	f.waitCall(t)
	if got := f.calls.Load(); got < 2 {
		t.Errorf("calls = %d, want at least the immediate tick plus one period", got)
	}
}

// TestOverlappingTickSkipped pins the no-queue rule: while a fetch is still
// running, due ticks are dropped entirely rather than piling up behind it.
func TestOverlappingTickSkipped(t *testing.T) {
	f := newCountingFetch()
	f.block = make(chan struct{})
	s := newTestScheduler(f, 5*time.Millisecond, nil)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)

	// Several periods elapse with the first fetch still in flight.
	deadline := time.After(2 * time.Second)
	for s.Skipped() < 3 {
		select {
		case <-deadline:
			t.Fatalf("skipped = %d after 2s, want >= 3", s.Skipped())
		case <-time.After(time.Millisecond):
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (overlaps skipped, not queued)", got)
	}

	close(f.block)
	f.waitCall(t)
}

func TestTransportFailureSuspends(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	f := newCountingFetch()
	f.setErr(&crm.APIError{Kind: crm.KindTransport, Message: "connection refused"})
	s := newTestScheduler(f, 5*time.Millisecond, b)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)
	evt := <-ch
	if evt.Kind != bus.KindSyncSuspended {
		t.Fatalf("event kind = %q, want %q", evt.Kind, bus.KindSyncSuspended)
	}
	if !s.Suspended() {
		t.Error("Suspended() = false after a transport failure")
	}

	// Periodic ticks stop issuing fetches while suspended.
	before := f.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := f.calls.Load(); got != before {
		t.Errorf("calls went %d -> %d while suspended, want no fetches", before, got)
	}
}

// TestNotFoundFailureSuspends covers the vanished-resource case: the thread
// scheduler polling a conversation id the backend no longer serves must stop
// issuing fetches instead of failing every period.
func TestNotFoundFailureSuspends(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	f := newCountingFetch()
	f.setErr(&crm.APIError{Kind: crm.KindNotFound, StatusCode: 404, Message: "conversation not found"})
	s := newTestScheduler(f, 5*time.Millisecond, b)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)
	evt := <-ch
	if evt.Kind != bus.KindSyncSuspended {
		t.Fatalf("event kind = %q, want %q", evt.Kind, bus.KindSyncSuspended)
	}
	if !s.Suspended() {
		t.Error("Suspended() = false after a not-found failure")
	}

	before := f.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := f.calls.Load(); got != before {
		t.Errorf("calls went %d -> %d while suspended, want no fetches", before, got)
	}
}

func TestPokeResumesAfterSuccess(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	f := newCountingFetch()
	f.setErr(&crm.APIError{Kind: crm.KindTransport, Message: "connection refused"})
	s := newTestScheduler(f, 5*time.Millisecond, b)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)
	if evt := <-ch; evt.Kind != bus.KindSyncSuspended {
		t.Fatalf("event kind = %q, want %q", evt.Kind, bus.KindSyncSuspended)
	}

	// Backend comes back; only a poke may break the suspension.
	f.setErr(nil)
	s.Poke()

	f.waitCall(t)
	evt := <-ch
	if evt.Kind != bus.KindSyncResumed {
		t.Fatalf("event kind = %q, want %q", evt.Kind, bus.KindSyncResumed)
	}
	if s.Suspended() {
		t.Error("Suspended() = true after a successful poked fetch")
	}
}

func TestPokedFetchFailureStaysSuspended(t *testing.T) {
	f := newCountingFetch()
	f.setErr(&crm.APIError{Kind: crm.KindTransport, Message: "connection refused"})
	s := newTestScheduler(f, time.Hour, nil)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)
	s.Poke()
	f.waitCall(t)
	if !s.Suspended() {
		t.Error("Suspended() = false, a failed poked fetch must keep the scheduler suspended")
	}
}

func TestRejectedErrorDoesNotSuspend(t *testing.T) {
	f := newCountingFetch()
	f.setErr(&crm.APIError{Kind: crm.KindRejected, StatusCode: 422, Message: "bad cursor"})
	s := newTestScheduler(f, 5*time.Millisecond, nil)
	s.Start(context.Background())
	defer s.Stop()

	f.waitCall(t)
	f.waitCall(t)
	if s.Suspended() {
		t.Error("Suspended() = true for a non-transport error")
	}
}

func TestStopWaitsForInFlightFetch(t *testing.T) {
	f := newCountingFetch()
	f.block = make(chan struct{})
	s := newTestScheduler(f, time.Hour, nil)
	s.Start(context.Background())

	f.waitCall(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(f.block)
	}()
	s.Stop()

	// After Stop returns the loop is gone; a poke must not trigger a fetch.
	before := f.calls.Load()
	s.Poke()
	time.Sleep(20 * time.Millisecond)
	if got := f.calls.Load(); got != before {
		t.Errorf("calls went %d -> %d after Stop", before, got)
	}
}
