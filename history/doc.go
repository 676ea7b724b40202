// Package history contains concrete implementations of core.AssignmentLog.
//
// The canonical AssignmentLog interface lives in the core package to avoid
// dependency cycles and keep domain contracts central. The coordinator
// appends an attach or detach record for every membership mutation, giving
// external auditors an observable, linearized trace of participant ->
// session bindings over time.
package history
