package events

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds each subscriber channel. A slow consumer drops
// events rather than stalling engine workers.
const subscriberBuffer = 256

// Bus is a fan-out event sink. Engines Emit; consumers Subscribe.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event

	// OnPublish, when set, observes every emitted event (metrics hook).
	OnPublish func(Event)
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
	}
}

// Emit delivers the event to all subscribers without blocking. Subscribers
// whose buffers are full miss the event.
func (b *Bus) Emit(e Event) {
	if b.OnPublish != nil {
		b.OnPublish(e)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new consumer. The returned cancel func must be called
// to release the subscription; the channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	key := uuid.NewString()

	b.mu.Lock()
	b.subscribers[key] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[key]; ok {
			delete(b.subscribers, key)
			close(existing)
		}
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
