package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishAndConsumeError(t *testing.T) {
	b := NewEventBus(4)
	b.PublishError(&ErrorEvent{Fingerprint: "fp-1", Category: "test_failure"})

	ev, err := b.ConsumeError(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev.Fingerprint != "fp-1" {
		t.Fatalf("got fingerprint %s", ev.Fingerprint)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("publish did not stamp the event")
	}
}

func TestConsumeErrorHonorsContext(t *testing.T) {
	b := NewEventBus(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.ConsumeError(ctx); err == nil {
		t.Fatal("expected context error on empty bus")
	}
}

func TestPublishDecisionNeverBlocks(t *testing.T) {
	b := NewEventBus(1)

	// Fill the buffer, then publish more; the gate must not stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.PublishDecision(&CommandDecision{RawCommand: "x", Allow: false})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishDecision blocked on a full buffer")
	}
}

func TestNoticeFanOut(t *testing.T) {
	b := NewEventBus(4)
	got := make([]string, 0, 2)
	b.SubscribeNotices(func(n *EscalationNotice) { got = append(got, "a:"+n.NoticeID) })
	b.SubscribeNotices(func(n *EscalationNotice) { got = append(got, "b:"+n.NoticeID) })

	b.PublishNotice(&EscalationNotice{NoticeID: "n-1"})

	if len(got) != 2 || got[0] != "a:n-1" || got[1] != "b:n-1" {
		t.Fatalf("fan-out incomplete: %v", got)
	}
}

func TestPendingErrors(t *testing.T) {
	b := NewEventBus(4)
	if b.PendingErrors() != 0 {
		t.Fatal("fresh bus not empty")
	}
	b.PublishError(&ErrorEvent{Fingerprint: "fp"})
	if b.PendingErrors() != 1 {
		t.Fatalf("expected 1 pending, got %d", b.PendingErrors())
	}
}
