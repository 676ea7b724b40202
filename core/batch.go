package core

import (
	"sync"
	"time"
)

// BatchState models the lifecycle of a batch.
type BatchState int

const (
	// BatchPending is configured but not yet accepting arrivals.
	BatchPending BatchState = iota
	// BatchRunning accepts arrivals and hosts active sessions.
	BatchRunning
	// BatchEnded is terminal; all sessions under the batch have ended.
	BatchEnded
)

// String returns the string representation of the batch state.
func (s BatchState) String() string {
	switch s {
	case BatchPending:
		return "pending"
	case BatchRunning:
		return "running"
	case BatchEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// StrategyKind identifies one of the closed set of built-in matching
// strategies. Strategies are selected by configuration at batch creation
// rather than registered at runtime.
type StrategyKind string

const (
	// StrategySequentialFill fills open sessions in creation order.
	StrategySequentialFill StrategyKind = "sequential"
	// StrategyLoadBalanced picks uniformly among least-occupied sessions.
	StrategyLoadBalanced StrategyKind = "balanced"
	// StrategyAttributeMatch gates placement on an attribute equality check.
	StrategyAttributeMatch StrategyKind = "attribute"
	// StrategyBracketedGroup forms fixed-size groups from the waiting pool.
	StrategyBracketedGroup StrategyKind = "bracketed"
)

// BatchConfig is the opaque immutable configuration payload supplied by an
// external admin surface at batch creation time.
type BatchConfig struct {
	// SessionCount bounds how many sessions the batch may host; zero means
	// unbounded on-demand creation.
	SessionCount int
	// OnDemand lets the matching strategy request session creation when no
	// open session can take an arrival, instead of deferring.
	OnDemand bool
	// Capacity is the per-session maximum member count.
	Capacity int
	// MinSize is the per-session minimum viable group size.
	MinSize int
	// Strategy selects the matching policy for arrivals into this batch.
	Strategy StrategyKind
	// MatchKey / MatchValue configure attribute-gated strategies. For
	// bracketed matching MatchKey is the sort attribute.
	MatchKey   string
	MatchValue string
	// GroupSize is the required bracket size for bracketed matching.
	GroupSize int
	// ReadyKey names the member readiness gate attribute.
	ReadyKey string
	// KeepOpen prevents automatic batch end when all sessions have ended,
	// leaving the batch available for dynamic session creation.
	KeepOpen bool
	// Factors carries opaque custom factors passed through to sessions.
	Factors map[string]any
}

// SessionConfig derives the immutable per-session configuration snapshot for
// sessions created under this batch.
func (c BatchConfig) SessionConfig() SessionConfig {
	return SessionConfig{
		Capacity:   c.Capacity,
		MinSize:    c.MinSize,
		MatchKey:   c.MatchKey,
		MatchValue: c.MatchValue,
		ReadyKey:   c.ReadyKey,
		Factors:    c.Factors,
	}
}

// Batch is a bounded-lifetime container grouping sessions under a shared
// configuration. The batch reference of a session never changes after
// creation.
type Batch struct {
	ID string

	cfg     BatchConfig
	created time.Time

	mu    sync.RWMutex
	state BatchState
}

// NewBatch creates a pending batch with the given immutable configuration.
func NewBatch(id string, cfg BatchConfig) *Batch {
	return &Batch{ID: id, cfg: cfg, created: time.Now()}
}

// Config returns the immutable configuration payload.
func (b *Batch) Config() BatchConfig { return b.cfg }

// Created returns the creation timestamp.
func (b *Batch) Created() time.Time { return b.created }

// State returns the current lifecycle state.
func (b *Batch) State() BatchState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// AdvanceState applies a forward lifecycle transition, mirroring the session
// state machine: pending -> running -> ended, ended terminal.
func (b *Batch) AdvanceState(next BatchState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BatchEnded {
		return ErrBatchEnded
	}
	if next <= b.state {
		return ErrInvalidTransition
	}
	b.state = next
	return nil
}
