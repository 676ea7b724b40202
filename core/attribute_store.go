package core

import "context"

// EntityKind namespaces attribute state by entity category.
type EntityKind string

const (
	// KindParticipant scopes participant attribute state.
	KindParticipant EntityKind = "participant"
	// KindSession scopes session attribute state.
	KindSession EntityKind = "session"
	// KindBatch scopes batch attribute state.
	KindBatch EntityKind = "batch"
)

// Well-known participant attribute keys written by the engine. External
// consumers read these through the AttributeStore like any other attribute.
const (
	// AttrSessionID mirrors the participant's bound session ID into the
	// attribute store ("" when unbound).
	AttrSessionID = "session_id"
	// AttrWaitingReason records the human-readable reason a participant
	// could not be placed.
	AttrWaitingReason = "waiting_reason"
	// DefaultReadyKey is the member readiness gate attribute used when a
	// session configuration does not name one.
	DefaultReadyKey = "ready"
)

// Change describes a single attribute mutation delivered to subscribers.
type Change struct {
	Kind     EntityKind
	EntityID string
	Key      string
	Old      any
	New      any
}

// AttributeStore is the external collaborator owning per-entity key/value
// attribute state with change notification. The engine consumes this
// contract; it never reimplements attribute storage internally.
//
// Contract:
//   - Set provides read-your-writes consistency for the writing caller
//   - Subscribe delivers change events at least once, in per-subscriber order
//   - Failures are reported wrapped in ErrStoreUnavailable
type AttributeStore interface {
	// Get returns the attribute value and an existence flag.
	Get(ctx context.Context, kind EntityKind, entityID, key string) (any, bool, error)

	// Set writes an attribute value, acknowledged only after the write is
	// visible to subsequent reads by the same caller.
	Set(ctx context.Context, kind EntityKind, entityID, key string, value any) error

	// Snapshot returns a copy of the full attribute map for one entity.
	Snapshot(ctx context.Context, kind EntityKind, entityID string) (map[string]any, error)

	// Subscribe streams change events for the given kind, optionally
	// filtered to a single attribute key (empty key matches all). The
	// returned cancel function releases the subscription.
	Subscribe(kind EntityKind, key string) (<-chan Change, func())
}

// EventBus is the outbound channel to the external rendering/transport
// layer. Publish must never block assignment progress; slow consumers are a
// downstream concern.
type EventBus interface {
	// Publish emits one lifecycle event.
	Publish(event Event)

	// Subscribe returns a stream of published events plus a cancel function.
	Subscribe() (<-chan Event, func())
}

// ConfigSource supplies immutable batch configuration payloads from an
// external admin-facing surface. The engine consumes payloads as opaque
// records at batch creation time.
type ConfigSource interface {
	// Put registers or replaces a named configuration payload.
	Put(name string, cfg BatchConfig) error

	// Resolve returns the payload registered under name.
	Resolve(name string) (BatchConfig, bool)
}
