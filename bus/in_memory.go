// Package bus provides the built-in in-memory implementation of the
// core.EventBus contract used to notify external rendering and transport
// layers. Delivery to subscribers is fan-out over buffered channels and
// deliberately best effort: a slow subscriber loses events rather than
// stalling assignment progress.
package bus

import (
	"sync"

	"github.com/hupe1980/groupmesh/core"
)

// InMemoryBus fans published events out to all current subscribers. It is
// safe for concurrent use.
type InMemoryBus struct {
	mu      sync.RWMutex
	subs    map[int]chan core.Event
	nextSub int
	buffer  int
	dropped uint64
}

// NewInMemoryBus constructs a bus whose subscriber channels hold up to
// buffer undelivered events. Values below 1 fall back to 64.
func NewInMemoryBus(buffer int) *InMemoryBus {
	if buffer < 1 {
		buffer = 64
	}
	return &InMemoryBus{subs: make(map[int]chan core.Event), buffer: buffer}
}

// Publish delivers the event to every subscriber without blocking. Events
// for saturated subscribers are dropped and counted.
func (b *InMemoryBus) Publish(event core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped++
		}
	}
}

// Subscribe returns a stream of future events plus a cancel function that
// releases the subscription and closes the stream.
func (b *InMemoryBus) Subscribe() (<-chan core.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan core.Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if live, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(live)
		}
	}
	return ch, cancel
}

// Dropped reports how many events were discarded due to saturated
// subscriber buffers.
func (b *InMemoryBus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
