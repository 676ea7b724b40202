// Package strategy contains the built-in matching policies deciding which
// session an arriving participant joins. The package focuses on three
// concerns:
//
//  1. Ordering helpers shared across policies (creation-order sorting)
//  2. Per-participant policies (SequentialFill, LoadBalancedRandom, AttributeMatch)
//  3. Pool-wide group formation (BracketedGroup)
//
// Design principles:
//   - Purity - every policy is a pure function of the participant snapshot
//     and the open-session snapshot it receives, so the coordinator can
//     retry a decision safely after a lost occupancy race
//   - Closed set - policies are selected by batch configuration at creation
//     time (core.StrategyKind), not registered dynamically at runtime
//   - Determinism - randomness is injected so tests can pin outcomes
//
// The package intentionally keeps locking, retries and event emission in the
// coordinator package; a policy only ever renders a verdict.
package strategy
