// Package events fans recorded attendance events out to live subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanin/scanin/internal/database"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing events instead of back-pressuring the
// scan path.
const subscriberBuffer = 64

// Type tags an attendance event.
type Type string

const (
	TypeCheckin  Type = "checkin"
	TypeCheckout Type = "checkout"
)

// Event is one recorded attendance transition.
type Event struct {
	Type        Type                      `json:"type"`
	TraineeName string                    `json:"trainee_name"`
	Time        time.Time                 `json:"time"`
	Status      database.AttendanceStatus `json:"status"`
}

// Subscription is one live listener's handle.
type Subscription struct {
	ID string
	C  <-chan Event

	ch chan Event
}

// Broadcaster is an explicit subscriber registry. Publish never blocks and
// never fails: delivery is best-effort, slow subscribers lose events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a listener. The caller must Unsubscribe when done,
// typically tied to its connection lifetime.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = ch
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[sub.ID]; ok {
		delete(b.subscribers, sub.ID)
		close(ch)
	}
}

// Publish delivers the event to every current subscriber without blocking.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, skip.
		}
	}
}

// Count returns the number of live subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
