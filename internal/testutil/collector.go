package testutil

import (
	"sync"

	"github.com/hupe1980/groupmesh/core"
)

// EventCollector buffers events from a bus subscription so asynchronous
// tests can assert on what was published. Close releases the subscription.
type EventCollector struct {
	mu     sync.Mutex
	events []core.Event
	cancel func()
	done   chan struct{}
}

// NewEventCollector subscribes to the bus and starts collecting.
func NewEventCollector(b core.EventBus) *EventCollector {
	events, cancel := b.Subscribe()
	c := &EventCollector{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		for e := range events {
			c.mu.Lock()
			c.events = append(c.events, e)
			c.mu.Unlock()
		}
	}()
	return c
}

// Events returns a copy of everything collected so far.
func (c *EventCollector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Count returns how many events of the given kind were collected.
func (c *EventCollector) Count(kind core.EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Close releases the subscription and waits for the collect goroutine.
func (c *EventCollector) Close() {
	c.cancel()
	<-c.done
}
