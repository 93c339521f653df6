package delivery

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/view"
	"go.uber.org/zap"
)

// mockBackend records calls and returns configurable results.
type mockBackend struct {
	mu         sync.Mutex
	sendCalls  []crm.SendMessageRequest
	retryCalls []string
	err        error
	delay      time.Duration
	result     *crm.SendResult
}

func (m *mockBackend) SendMessage(_ context.Context, req crm.SendMessageRequest) (*crm.SendResult, error) {
	m.mu.Lock()
	m.sendCalls = append(m.sendCalls, req)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &crm.SendResult{Success: true, MessageID: "srv-m1", ConversationID: "c1", Status: "sent"}, nil
}

func (m *mockBackend) RetryMessage(_ context.Context, messageID string) (*crm.SendResult, error) {
	m.mu.Lock()
	m.retryCalls = append(m.retryCalls, messageID)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &crm.SendResult{Success: true, MessageID: messageID, ConversationID: "c1", Status: "delivered"}, nil
}

type adoptCall struct{ phone, id string }

type mockAdopter struct {
	mu    sync.Mutex
	calls []adoptCall
}

func (m *mockAdopter) AdoptServerID(phone, serverID string) {
	m.mu.Lock()
	m.calls = append(m.calls, adoptCall{phone, serverID})
	m.mu.Unlock()
}

func testTracker(t *testing.T, backend Backend) (*Tracker, *view.Threads, *bus.Bus, *mockAdopter) {
	t.Helper()
	threads := view.NewThreads()
	b := bus.New()
	adopter := &mockAdopter{}
	logger, _ := zap.NewDevelopment()
	tr := NewTracker(backend, threads, adopter, b, logger, nil)
	return tr, threads, b, adopter
}

func TestSendHappyPath(t *testing.T) {
	mock := &mockBackend{}
	tr, threads, b, _ := testTracker(t, mock)

	ch, unsub := b.Subscribe("message.send_ack", 10)
	defer unsub()

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	msg, err := tr.Send(context.Background(), conv, "Hi there", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "srv-m1" || msg.Status != "sent" {
		t.Errorf("confirmed = %+v, want srv-m1/sent", msg)
	}

	thread := threads.Get("conv:c1")
	if thread == nil {
		t.Fatal("thread not created")
	}
	msgs := thread.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != "srv-m1" {
		t.Errorf("thread holds %q, want the server-confirmed record", msgs[0].ID)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send_ack event")
	}
}

func TestSendValidationNeverHitsNetwork(t *testing.T) {
	mock := &mockBackend{}
	tr, threads, _, _ := testTracker(t, mock)
	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}

	if _, err := tr.Send(context.Background(), conv, "   ", "", ""); err != ErrEmptyBody {
		t.Errorf("empty body error = %v, want ErrEmptyBody", err)
	}
	if _, err := tr.Send(context.Background(), conv, strings.Repeat("a", 1601), "", ""); err != ErrBodyTooLong {
		t.Errorf("long body error = %v, want ErrBodyTooLong", err)
	}

	if len(mock.sendCalls) != 0 {
		t.Errorf("backend called %d times for invalid bodies, want 0", len(mock.sendCalls))
	}
	if threads.Get("conv:c1") != nil {
		t.Error("thread created for a rejected send")
	}
}

func TestSendOptimisticInsertVisibleDuringCall(t *testing.T) {
	mock := &mockBackend{delay: 300 * time.Millisecond}
	tr, threads, b, _ := testTracker(t, mock)

	ch, unsub := b.Subscribe("message.upserted", 10)
	defer unsub()

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tr.Send(context.Background(), conv, "slow send", "", "")
	}()

	// Wait for the optimistic insert, then observe pending before the
	// backend's artificial delay elapses.
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for optimistic upsert event")
	}
	thread := threads.Get("conv:c1")
	if thread == nil {
		t.Fatal("thread missing during in-flight send")
	}
	msgs := thread.Messages()
	if len(msgs) != 1 || msgs[0].Status != string(StatusPending) {
		t.Fatalf("in-flight thread = %+v, want one pending message", msgs)
	}

	<-done
	msgs = thread.Messages()
	if msgs[0].Status != "sent" {
		t.Errorf("final status = %q, want sent", msgs[0].Status)
	}
}

func TestSendFailureMarksFailedWithDetail(t *testing.T) {
	mock := &mockBackend{err: &crm.APIError{Kind: crm.KindRejected, Message: "invalid recipient"}}
	tr, threads, b, _ := testTracker(t, mock)

	ch, unsub := b.Subscribe("message.send_failed", 10)
	defer unsub()

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	msg, err := tr.Send(context.Background(), conv, "will fail", "", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if msg.Status != string(StatusFailed) {
		t.Errorf("placeholder status = %q, want failed", msg.Status)
	}
	if msg.ErrorMessage != "invalid recipient" {
		t.Errorf("error text = %q, want backend detail", msg.ErrorMessage)
	}

	// The failed placeholder stays in the thread for the retry control.
	msgs := threads.Get("conv:c1").Messages()
	if len(msgs) != 1 || msgs[0].Status != string(StatusFailed) {
		t.Errorf("thread = %+v, want one failed message", msgs)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send_failed event")
	}
}

// TestRetryReplacesInPlace covers the transport-failure retry arc: the
// failed placeholder becomes pending again and, on success, is replaced by
// the confirmed record in the same slot rather than appended again.
func TestRetryReplacesInPlace(t *testing.T) {
	mock := &mockBackend{err: &crm.APIError{Kind: crm.KindTransport, Message: "no route to host"}}
	tr, threads, _, _ := testTracker(t, mock)

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	failed, err := tr.Send(context.Background(), conv, "retry me", "", "")
	if err == nil {
		t.Fatal("expected first send to fail")
	}

	// Backend recovers.
	mock.err = nil

	got, err := tr.Retry(context.Background(), "conv:c1", failed.ID)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got.Status != "sent" {
		t.Errorf("retried status = %q, want sent", got.Status)
	}
	if got.Body != "retry me" {
		t.Errorf("retried body = %q, want original body", got.Body)
	}

	msgs := threads.Get("conv:c1").Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages after retry, want 1 (no duplicate)", len(msgs))
	}

	// The placeholder never reached the backend, so retry re-submits.
	if len(mock.sendCalls) != 2 || len(mock.retryCalls) != 0 {
		t.Errorf("calls = %d sends / %d retries, want 2/0", len(mock.sendCalls), len(mock.retryCalls))
	}
}

// TestRetryResubmitsOriginalParameters pins the local-id retry request: the
// re-submit must carry the first attempt's recipient, body, lead and contact
// ids unchanged.
func TestRetryResubmitsOriginalParameters(t *testing.T) {
	mock := &mockBackend{err: &crm.APIError{Kind: crm.KindTransport, Message: "no route to host"}}
	tr, _, _, _ := testTracker(t, mock)

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	failed, err := tr.Send(context.Background(), conv, "retry me", "lead-1", "contact-7")
	if err == nil {
		t.Fatal("expected first send to fail")
	}

	mock.err = nil
	if _, err := tr.Retry(context.Background(), "conv:c1", failed.ID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	if len(mock.sendCalls) != 2 {
		t.Fatalf("got %d sends, want 2", len(mock.sendCalls))
	}
	if mock.sendCalls[1] != mock.sendCalls[0] {
		t.Errorf("retried request = %+v, want the original %+v", mock.sendCalls[1], mock.sendCalls[0])
	}
	if mock.sendCalls[1].ContactID != "contact-7" || mock.sendCalls[1].LeadID != "lead-1" {
		t.Errorf("retried request = %+v, want lead-1/contact-7 carried over", mock.sendCalls[1])
	}
}

func TestRetryServerMessageUsesRetryEndpoint(t *testing.T) {
	mock := &mockBackend{}
	tr, threads, _, _ := testTracker(t, mock)

	// Seed a thread with a server-side failed message (e.g. a delivery
	// receipt reported failure after the send was accepted).
	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	thread := threads.Ensure("conv:c1", conv)
	thread.Replace(conv, []crm.Message{
		{ID: "srv-9", ConversationID: "c1", Direction: crm.DirectionOutbound, Body: "x", Status: string(StatusFailed)},
	})

	got, err := tr.Retry(context.Background(), "conv:c1", "srv-9")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "delivered" {
		t.Errorf("status = %q, want delivered", got.Status)
	}
	if len(mock.retryCalls) != 1 || mock.retryCalls[0] != "srv-9" {
		t.Errorf("retry calls = %v, want [srv-9]", mock.retryCalls)
	}
}

func TestRetryRejectsNonFailed(t *testing.T) {
	mock := &mockBackend{}
	tr, threads, _, _ := testTracker(t, mock)

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	thread := threads.Ensure("conv:c1", conv)
	thread.Replace(conv, []crm.Message{
		{ID: "m1", Direction: crm.DirectionOutbound, Status: string(StatusDelivered)},
		{ID: "m2", Direction: crm.DirectionInbound, Status: string(StatusDelivered)},
	})

	if _, err := tr.Retry(context.Background(), "conv:c1", "m1"); err != ErrNotRetryable {
		t.Errorf("retry delivered = %v, want ErrNotRetryable", err)
	}
	if _, err := tr.Retry(context.Background(), "conv:c1", "m2"); err != ErrNotRetryable {
		t.Errorf("retry inbound = %v, want ErrNotRetryable", err)
	}
	if _, err := tr.Retry(context.Background(), "conv:c1", "nope"); err != ErrUnknownMessage {
		t.Errorf("retry unknown = %v, want ErrUnknownMessage", err)
	}
}

// TestSendAdoptsServerID covers the virtual-conversation first send: the
// tracker must hand the server-issued conversation id to the adopter.
func TestSendAdoptsServerID(t *testing.T) {
	mock := &mockBackend{result: &crm.SendResult{Success: true, MessageID: "srv-m1", ConversationID: "c42", Status: "sent"}}
	tr, _, _, adopter := testTracker(t, mock)

	virtual := crm.Conversation{PhoneNumber: "+15551234567"}
	if _, err := tr.Send(context.Background(), virtual, "first contact", "lead-1", ""); err != nil {
		t.Fatal(err)
	}

	if len(adopter.calls) != 1 {
		t.Fatalf("adopter called %d times, want 1", len(adopter.calls))
	}
	if adopter.calls[0].phone != "+15551234567" || adopter.calls[0].id != "c42" {
		t.Errorf("adoption = %+v, want phone/c42", adopter.calls[0])
	}
}

func TestSendRealConversationDoesNotAdopt(t *testing.T) {
	mock := &mockBackend{}
	tr, _, _, adopter := testTracker(t, mock)

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	if _, err := tr.Send(context.Background(), conv, "hello", "", ""); err != nil {
		t.Fatal(err)
	}
	if len(adopter.calls) != 0 {
		t.Errorf("adopter called for a non-virtual conversation")
	}
}

func TestSendsToSameConversationSerialize(t *testing.T) {
	mock := &mockBackend{delay: 150 * time.Millisecond}
	tr, _, _, _ := testTracker(t, mock)

	conv := crm.Conversation{ID: "c1", PhoneNumber: "+15551234567"}
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.Send(context.Background(), conv, "queued", "", "")
		}()
	}
	wg.Wait()

	// Two serialized 150ms calls cannot finish in under 300ms.
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("two sends to one conversation overlapped (took %v)", elapsed)
	}
}
