package events

import (
	"testing"
	"time"

	"github.com/scanin/scanin/internal/database"
)

func testEvent(name string) Event {
	return Event{
		Type:        TypeCheckin,
		TraineeName: name,
		Time:        time.Now(),
		Status:      database.StatusPresent,
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(testEvent("alice"))

	select {
	case ev := <-sub.C:
		if ev.TraineeName != "alice" {
			t.Errorf("got trainee %q, want alice", ev.TraineeName)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after Unsubscribe")
	}
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}

	// Double unsubscribe is a no-op.
	b.Unsubscribe(sub)
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	done := make(chan struct{})
	go func() {
		b.Publish(testEvent("bob"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)
	fast := b.Subscribe()
	defer b.Unsubscribe(fast)

	// Overflow the slow subscriber's buffer without draining it.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(testEvent("carol"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The fast subscriber still has a full buffer of events to read.
	received := 0
	for {
		select {
		case <-fast.C:
			received++
		default:
			if received != subscriberBuffer {
				t.Errorf("fast subscriber received %d events, want %d", received, subscriberBuffer)
			}
			return
		}
	}
}

func TestPerSubscriberOrdering(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	first := testEvent("dan")
	first.Type = TypeCheckin
	second := testEvent("dan")
	second.Type = TypeCheckout

	b.Publish(first)
	b.Publish(second)

	if ev := <-sub.C; ev.Type != TypeCheckin {
		t.Errorf("first event type = %q, want checkin", ev.Type)
	}
	if ev := <-sub.C; ev.Type != TypeCheckout {
		t.Errorf("second event type = %q, want checkout", ev.Type)
	}
}
