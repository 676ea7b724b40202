package core

import (
	"sync"
	"time"
)

// ParticipantState models the placement lifecycle of a participant.
type ParticipantState int

const (
	// ParticipantUnassigned means the participant is not bound to any
	// active session and is therefore part of the derived waiting pool.
	ParticipantUnassigned ParticipantState = iota
	// ParticipantAssigned means the participant is a member of exactly one
	// non-ended session.
	ParticipantAssigned
	// ParticipantEnded is terminal; the participant no longer takes part in
	// matching and is excluded from the waiting pool.
	ParticipantEnded
)

// String returns the string representation of the participant state.
func (s ParticipantState) String() string {
	switch s {
	case ParticipantUnassigned:
		return "unassigned"
	case ParticipantAssigned:
		return "assigned"
	case ParticipantEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Participant is the coordinator-owned structural view of an individual
// seeking assignment. Matching attributes are owned by the AttributeStore;
// Attrs holds a point-in-time snapshot taken before a matching decision so
// strategies operate on explicit inputs rather than ambient state.
//
// Contract:
//   - A participant in state assigned references exactly one non-ended session
//   - Bind/Unbind/End are the only state transitions and are goroutine-safe
//   - WaitingReason is informational only and never drives matching
type Participant struct {
	ID string

	mu        sync.RWMutex
	attrs     map[string]any
	state     ParticipantState
	sessionID string
	batchID   string
	reason    string
	arrived   time.Time
}

// NewParticipant creates an unassigned participant with the given ID.
func NewParticipant(id string) *Participant {
	return &Participant{ID: id, attrs: map[string]any{}, arrived: time.Now()}
}

// State returns the current placement lifecycle state.
func (p *Participant) State() ParticipantState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Session returns the bound session ID, or false when unbound.
func (p *Participant) Session() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID, p.sessionID != ""
}

// Arrived returns the arrival timestamp used for deterministic ordering of
// waiting participants.
func (p *Participant) Arrived() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.arrived
}

// Attr returns the snapshotted attribute value and an existence flag.
func (p *Participant) Attr(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.attrs[key]
	return v, ok
}

// Attrs returns a defensive copy of the attribute snapshot.
func (p *Participant) Attrs() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := make(map[string]any, len(p.attrs))
	for k, v := range p.attrs {
		m[k] = v
	}
	return m
}

// SetAttrs replaces the attribute snapshot. Called by the coordinator after
// reading the participant's attributes through the AttributeStore.
func (p *Participant) SetAttrs(attrs map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attrs = make(map[string]any, len(attrs))
	for k, v := range attrs {
		p.attrs[k] = v
	}
}

// WaitingReason returns the human-readable reason recorded on deferral.
func (p *Participant) WaitingReason() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reason
}

// SetWaitingReason records why the participant could not be placed.
func (p *Participant) SetWaitingReason(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reason = reason
}

// Bind transitions the participant to assigned, referencing the target
// session and batch. It fails if the participant is already assigned or ended
// so callers never silently double-book.
func (p *Participant) Bind(sessionID, batchID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case ParticipantAssigned:
		return ErrParticipantAlreadyAssigned
	case ParticipantEnded:
		return ErrParticipantEnded
	}
	p.state = ParticipantAssigned
	p.sessionID = sessionID
	p.batchID = batchID
	p.reason = ""
	return nil
}

// Unbind clears the session reference returning the participant to the
// unassigned state. It returns the vacated session ID.
func (p *Participant) Unbind() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != ParticipantAssigned {
		return "", ErrParticipantNotAssigned
	}
	sessionID := p.sessionID
	p.state = ParticipantUnassigned
	p.sessionID = ""
	p.batchID = ""
	return sessionID, nil
}

// End transitions the participant to the terminal ended state. The session
// reference is retained for record keeping.
func (p *Participant) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = ParticipantEnded
}
