// Package coordinator implements the concurrency-safe assignment core: the
// single component allowed to mutate participant-session bindings.
//
// Every binding mutation flows through one of three linearized operations:
//   - TryAssign: place an arriving or waiting participant
//   - Detach: vacate a participant's slot
//   - Reassign: detach then attach as one operation on the participant
//
// Operations on the same participant are serialized through a per-participant
// mutex; operations on different participants proceed in parallel and only
// contend on a session's exclusive section when they target the same session.
// Assignment is optimistic: a strategy picks a candidate without global
// locking, the attach re-validates capacity and state inside the session's
// exclusive section, and a lost race removes the candidate and consults the
// strategy again up to a bounded number of attempts.
//
// The coordinator owns structural state (membership, occupancy, lifecycle
// references). Matching attributes live in the external AttributeStore and
// are loaded as an explicit snapshot before each matching decision.
package coordinator
