package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("popover.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindPopoverChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindPopoverChanged {
			t.Errorf("got kind %q, want popover.changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindPopoverChanged})
	b.Publish(Event{Kind: KindSyncResumed})

	select {
	case evt := <-ch:
		if evt.Kind != KindSyncResumed {
			t.Errorf("got kind %q, want sync.resumed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure popover event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	before := time.Now()
	b.Emit(KindMessageSendAck, map[string]string{"message_id": "m1"})

	evt := <-ch
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v predates Emit call %v", evt.Timestamp, before)
	}
	if evt.Kind != KindMessageSendAck {
		t.Errorf("got kind %q, want message.send_ack", evt.Kind)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("popover.", 10)
	unsub()

	b.Publish(Event{Kind: KindPopoverChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
