// Package lifecycle drives sessions through their state machine:
// forming -> ready -> running -> ended, with ended terminal.
//
// The Manager owns the transition rules but no registry of its own; it
// operates on the sessions and batches handed to it by the caller and
// reads member readiness through the attribute store. Transitions are
// checked reactively: the coordinator reports occupancy changes after
// each attach, and the dispatch layer reports readiness-gate attribute
// changes as they stream in from the store.
//
// Transitions are strictly forward. A session that reached ready never
// demotes back to forming, even if members later detach below the
// minimum viable size.
package lifecycle
