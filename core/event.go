package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind categorizes lifecycle events published on the outbound bus.
type EventKind string

const (
	// EventParticipantAssigned is emitted after a participant is bound to a
	// session with all invariants holding.
	EventParticipantAssigned EventKind = "participant.assigned"
	// EventParticipantDeferred is emitted when no eligible session exists
	// and the participant remains in the waiting pool.
	EventParticipantDeferred EventKind = "participant.deferred"
	// EventParticipantDetached is emitted after a participant vacates its
	// session slot.
	EventParticipantDetached EventKind = "participant.detached"
	// EventSessionCreated is emitted when on-demand creation adds a session.
	EventSessionCreated EventKind = "session.created"
	// EventSessionReady is emitted when occupancy reaches the minimum
	// viable size.
	EventSessionReady EventKind = "session.ready"
	// EventSessionStarted is emitted when the readiness gate is satisfied
	// or an explicit start signal is received.
	EventSessionStarted EventKind = "session.started"
	// EventSessionEnded is emitted when a session reaches its terminal state.
	EventSessionEnded EventKind = "session.ended"
	// EventBatchEnded is emitted when every session of a batch has ended.
	EventBatchEnded EventKind = "batch.ended"
)

// Event is the primary unit of communication to downstream consumers
// (rendering and transport layers outside this module). After emission it
// should be treated as immutable. Identifier fields not applicable to the
// kind are left empty.
type Event struct {
	ID            string            `json:"id"`
	Kind          EventKind         `json:"kind"`
	ParticipantID string            `json:"participant_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	BatchID       string            `json:"batch_id,omitempty"`
	Occupancy     int               `json:"occupancy,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event of the given kind with a fresh ID and UTC
// timestamp. Prefer the helper constructors for common kinds.
func NewEvent(kind EventKind) Event {
	return Event{ID: NewID(), Kind: kind, Timestamp: time.Now().UTC()}
}

// NewAssignedEvent records a successful binding including the occupancy
// observed immediately after the mutation.
func NewAssignedEvent(participantID, sessionID, batchID string, occupancy int) Event {
	e := NewEvent(EventParticipantAssigned)
	e.ParticipantID = participantID
	e.SessionID = sessionID
	e.BatchID = batchID
	e.Occupancy = occupancy
	return e
}

// NewDeferredEvent records a deferral with its human-readable waiting reason.
func NewDeferredEvent(participantID, batchID, reason string) Event {
	e := NewEvent(EventParticipantDeferred)
	e.ParticipantID = participantID
	e.BatchID = batchID
	e.Reason = reason
	return e
}

// NewDetachedEvent records a participant vacating a session slot.
func NewDetachedEvent(participantID, sessionID, batchID string, occupancy int) Event {
	e := NewEvent(EventParticipantDetached)
	e.ParticipantID = participantID
	e.SessionID = sessionID
	e.BatchID = batchID
	e.Occupancy = occupancy
	return e
}

// NewSessionEvent records a session lifecycle change.
func NewSessionEvent(kind EventKind, sessionID, batchID string, occupancy int) Event {
	e := NewEvent(kind)
	e.SessionID = sessionID
	e.BatchID = batchID
	e.Occupancy = occupancy
	return e
}

// NewBatchEndedEvent records batch completion.
func NewBatchEndedEvent(batchID string) Event {
	e := NewEvent(EventBatchEnded)
	e.BatchID = batchID
	return e
}

// NewID generates a new unique identifier for events, sessions and batches.
func NewID() string { return uuid.NewString() }
