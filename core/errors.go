package core

import "errors"

// Error taxonomy for assignment operations. Races that threaten invariants
// (capacity, double assignment) are resolved by local retry inside the
// coordinator and never surface as fatal; policy-level non-matches are
// normal deferred outcomes, not errors; store and timeout failures propagate
// unmodified so callers can apply their own retry policy.
var (
	// ErrCapacityExceeded signals a lost occupancy race. Retried internally.
	ErrCapacityExceeded = errors.New("session capacity exceeded")

	// ErrSessionEnded signals the target session is terminal and its
	// membership frozen. The caller must re-request matching.
	ErrSessionEnded = errors.New("session has ended")

	// ErrParticipantAlreadyAssigned signals a participant already bound to
	// an active session. Treated as a logged no-op by the coordinator.
	ErrParticipantAlreadyAssigned = errors.New("participant already assigned")

	// ErrParticipantNotAssigned signals a detach on an unbound participant.
	ErrParticipantNotAssigned = errors.New("participant not assigned")

	// ErrParticipantEnded signals the participant lifecycle is terminal.
	ErrParticipantEnded = errors.New("participant has ended")

	// ErrUnknownParticipant signals an ID absent from the registry.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrUnknownSession signals an ID absent from the registry.
	ErrUnknownSession = errors.New("unknown session")

	// ErrUnknownBatch signals an ID absent from the registry.
	ErrUnknownBatch = errors.New("unknown batch")

	// ErrBatchEnded signals the batch lifecycle is terminal.
	ErrBatchEnded = errors.New("batch has ended")

	// ErrBatchNotRunning signals an arrival against a batch that is not
	// accepting participants.
	ErrBatchNotRunning = errors.New("batch not running")

	// ErrBatchSessionLimit signals the batch's session count bound blocks
	// further on-demand creation.
	ErrBatchSessionLimit = errors.New("batch session limit reached")

	// ErrLockTimeout signals the per-session exclusive section could not be
	// acquired within the configured bound.
	ErrLockTimeout = errors.New("timed out acquiring session lock")

	// ErrStoreUnavailable wraps attribute store failures surfaced to the
	// caller for boundary-level retry with backoff.
	ErrStoreUnavailable = errors.New("attribute store unavailable")

	// ErrInvalidTransition signals a lifecycle transition that does not
	// move strictly forward.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)
