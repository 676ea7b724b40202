package store

import (
	"context"
	"sync"

	"github.com/hupe1980/groupmesh/core"
)

// InMemoryStore is a volatile AttributeStore implementation keeping entity
// attribute maps in process local storage. It is safe for concurrent access
// and best suited for tests or single-process deployments.
//
// Consistency: Set updates the map before returning, so the writing caller
// always reads its own writes. Change delivery is at-least-once and ordered
// per subscriber: each subscription owns a pending queue drained by a pump
// goroutine, so a slow subscriber never blocks writers and never reorders
// the changes it observes.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[core.EntityKind]map[string]map[string]any
	subs     map[int]*subscription
	nextSub  int
}

type subscription struct {
	kind core.EntityKind
	key  string
	ch   chan core.Change
	done chan struct{}

	mu      sync.Mutex
	pending []core.Change
	wake    chan struct{}
}

// NewInMemoryStore constructs an empty in-memory attribute store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entities: make(map[core.EntityKind]map[string]map[string]any),
		subs:     make(map[int]*subscription),
	}
}

// Get returns the attribute value and an existence flag.
func (s *InMemoryStore) Get(_ context.Context, kind core.EntityKind, entityID, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs, ok := s.entities[kind][entityID]
	if !ok {
		return nil, false, nil
	}
	v, ok := attrs[key]
	return v, ok, nil
}

// Set writes an attribute value and queues a change event for every
// subscription matching the entity kind and key.
func (s *InMemoryStore) Set(_ context.Context, kind core.EntityKind, entityID, key string, value any) error {
	s.mu.Lock()
	byID, ok := s.entities[kind]
	if !ok {
		byID = make(map[string]map[string]any)
		s.entities[kind] = byID
	}
	attrs, ok := byID[entityID]
	if !ok {
		attrs = make(map[string]any)
		byID[entityID] = attrs
	}
	old := attrs[key]
	attrs[key] = value

	change := core.Change{Kind: kind, EntityID: entityID, Key: key, Old: old, New: value}
	matched := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.kind == kind && (sub.key == "" || sub.key == key) {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range matched {
		sub.enqueue(change)
	}
	return nil
}

// Snapshot returns a copy of the full attribute map for one entity. Unknown
// entities yield an empty map, mirroring Get's null semantics.
func (s *InMemoryStore) Snapshot(_ context.Context, kind core.EntityKind, entityID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs := s.entities[kind][entityID]
	result := make(map[string]any, len(attrs))
	for k, v := range attrs {
		result[k] = v
	}
	return result, nil
}

// Subscribe registers a change stream for the given kind, optionally
// filtered to one attribute key. The cancel function releases the
// subscription and closes the stream.
func (s *InMemoryStore) Subscribe(kind core.EntityKind, key string) (<-chan core.Change, func()) {
	sub := &subscription{
		kind: kind,
		key:  key,
		ch:   make(chan core.Change, 16),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.pump()

	cancel := func() {
		s.mu.Lock()
		_, live := s.subs[id]
		delete(s.subs, id)
		s.mu.Unlock()
		if live {
			close(sub.done)
		}
	}
	return sub.ch, cancel
}

// enqueue appends a change to the pending queue and wakes the pump.
func (sub *subscription) enqueue(change core.Change) {
	sub.mu.Lock()
	sub.pending = append(sub.pending, change)
	sub.mu.Unlock()
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// pump drains the pending queue into the subscriber channel preserving
// order. It exits, closing the channel, once the subscription is cancelled
// and the queue send would block.
func (sub *subscription) pump() {
	defer close(sub.ch)
	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
		}
		for {
			sub.mu.Lock()
			if len(sub.pending) == 0 {
				sub.mu.Unlock()
				break
			}
			batch := sub.pending
			sub.pending = nil
			sub.mu.Unlock()

			for _, change := range batch {
				select {
				case sub.ch <- change:
				case <-sub.done:
					return
				}
			}
		}
	}
}
