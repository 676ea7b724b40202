package core

import "time"

// AssignmentAction distinguishes record directions in the assignment log.
type AssignmentAction string

const (
	// ActionAttach records a participant joining a session.
	ActionAttach AssignmentAction = "attach"
	// ActionDetach records a participant vacating a session.
	ActionDetach AssignmentAction = "detach"
)

// AssignmentRecord is the materialized binding of participant -> session ->
// batch at a point in time. A reassignment appears as a detach record
// followed by an attach record with no interleaved records for the same
// participant.
type AssignmentRecord struct {
	ID            string
	ParticipantID string
	SessionID     string
	BatchID       string
	Action        AssignmentAction
	Timestamp     time.Time
}

// AssignmentLog persists assignment records for audit and queries. Append
// order per participant reflects the linearized order of assignment
// operations on that participant.
type AssignmentLog interface {
	Append(record AssignmentRecord) error
	ByParticipant(participantID string) []AssignmentRecord
	BySession(sessionID string) []AssignmentRecord
}
