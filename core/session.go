package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// SessionState models the lifecycle of a session.
type SessionState int

const (
	// SessionForming accepts members until the minimum viable size is reached.
	SessionForming SessionState = iota
	// SessionReady has reached its target size and awaits member readiness
	// or an explicit start signal.
	SessionReady
	// SessionRunning is in progress; it may still accept members while
	// capacity remains.
	SessionRunning
	// SessionEnded is terminal; membership is frozen.
	SessionEnded
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionForming:
		return "forming"
	case SessionReady:
		return "ready"
	case SessionRunning:
		return "running"
	case SessionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SessionConfig is the immutable configuration snapshot captured at session
// creation. It is safe to read without synchronization.
type SessionConfig struct {
	// Capacity is the maximum member count. Values below 1 are normalized
	// to 1 by the capacity policy.
	Capacity int
	// MinSize is the minimum viable group size required before the session
	// becomes ready. Zero means the session is ready only at full capacity.
	MinSize int
	// MatchKey names the participant attribute that must equal MatchValue
	// for attribute-matched placement. Empty disables attribute gating.
	MatchKey string
	// MatchValue is the required value for MatchKey.
	MatchValue string
	// ReadyKey names the per-member attribute acting as the readiness gate
	// for the ready -> running transition. Empty defaults to "ready".
	ReadyKey string
	// Factors carries opaque custom factors supplied by the batch
	// configuration source. The engine never interprets them.
	Factors map[string]any
}

// Session is a capacity-bounded grouping of participants. The member set and
// lifecycle state are the only mutable shared state; the configuration is an
// immutable snapshot. Mutations require holding the session's exclusive
// section (Acquire/Release) so concurrent assignment decisions against the
// same session are serialized while unrelated sessions proceed in parallel.
//
// Contract:
//   - |members| never exceeds the capacity passed to AddMember
//   - No transition leaves SessionEnded
//   - Members returns a defensive copy
type Session struct {
	ID      string
	BatchID string

	cfg     SessionConfig
	created time.Time
	seq     uint64

	sem *semaphore.Weighted

	mu      sync.RWMutex
	state   SessionState
	members map[string]struct{}
}

// NewSession creates a forming session bound to a batch. The seq argument is
// a monotonic creation counter used for deterministic ordering by strategies.
func NewSession(id, batchID string, seq uint64, cfg SessionConfig) *Session {
	return &Session{
		ID:      id,
		BatchID: batchID,
		cfg:     cfg,
		created: time.Now(),
		seq:     seq,
		sem:     semaphore.NewWeighted(1),
		members: make(map[string]struct{}),
	}
}

// Config returns the immutable configuration snapshot.
func (s *Session) Config() SessionConfig { return s.cfg }

// Created returns the creation timestamp.
func (s *Session) Created() time.Time { return s.created }

// Seq returns the monotonic creation counter.
func (s *Session) Seq() uint64 { return s.seq }

// Acquire enters the session's exclusive section, blocking until it is
// granted or ctx is done. Callers must pair a successful Acquire with
// Release. A deadline on ctx bounds the wait, surfacing lock starvation as a
// timeout instead of an unbounded stall.
func (s *Session) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}

// Release leaves the exclusive section.
func (s *Session) Release() { s.sem.Release(1) }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Occupancy returns the current member count.
func (s *Session) Occupancy() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// HasMember reports whether the participant ID is in the member set.
func (s *Session) HasMember(participantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[participantID]
	return ok
}

// Members returns a sorted defensive copy of the member ID set.
func (s *Session) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Open reports whether the session can be offered to strategies as a
// placement candidate given the declared capacity. Ready sessions remain
// open while spare capacity exists so late arrivals can still join before
// the start gate fires.
func (s *Session) Open(capacity int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == SessionEnded {
		return false
	}
	return len(s.members) < capacity
}

// AddMember inserts a participant ID after re-validating state and capacity.
// Callers must hold the exclusive section: the re-validation is what resolves
// races between assignment attempts that selected the same target.
func (s *Session) AddMember(participantID string, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionEnded {
		return ErrSessionEnded
	}
	if _, ok := s.members[participantID]; ok {
		return ErrParticipantAlreadyAssigned
	}
	if len(s.members) >= capacity {
		return ErrCapacityExceeded
	}
	s.members[participantID] = struct{}{}
	return nil
}

// RemoveMember deletes a participant ID from the member set. Ended sessions
// have frozen membership.
func (s *Session) RemoveMember(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionEnded {
		return ErrSessionEnded
	}
	if _, ok := s.members[participantID]; !ok {
		return ErrParticipantNotAssigned
	}
	delete(s.members, participantID)
	return nil
}

// AdvanceState applies a forward lifecycle transition. Ordering follows the
// state ordinals forming -> ready -> running -> ended, and forward jumps that
// skip intermediate states are allowed: an explicit start moves a forming
// session straight to running, and an end signal moves any live state to
// ended. Moving backward or leaving ended is rejected.
func (s *Session) AdvanceState(next SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionEnded {
		return ErrSessionEnded
	}
	if next <= s.state {
		return ErrInvalidTransition
	}
	s.state = next
	return nil
}
