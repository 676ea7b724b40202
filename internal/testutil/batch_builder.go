package testutil

import (
	"github.com/hupe1980/groupmesh/core"
)

// BatchBuilder provides a fluent helper for constructing batch
// configurations in tests. Example:
//
//	cfg := NewBatchBuilder().Sessions(2).Capacity(4).MinSize(2).Build()
//
// Chain only the parts you need; the zero configuration is a single-strategy
// sequential batch.
type BatchBuilder struct {
	cfg core.BatchConfig
}

// NewBatchBuilder creates a builder over a zero batch configuration.
func NewBatchBuilder() *BatchBuilder { return &BatchBuilder{} }

// Sessions sets the session count bound (chainable).
func (b *BatchBuilder) Sessions(n int) *BatchBuilder { b.cfg.SessionCount = n; return b }

// OnDemand enables on-demand session creation (chainable).
func (b *BatchBuilder) OnDemand() *BatchBuilder { b.cfg.OnDemand = true; return b }

// Capacity sets the per-session capacity (chainable).
func (b *BatchBuilder) Capacity(n int) *BatchBuilder { b.cfg.Capacity = n; return b }

// MinSize sets the minimum viable group size (chainable).
func (b *BatchBuilder) MinSize(n int) *BatchBuilder { b.cfg.MinSize = n; return b }

// Strategy selects the matching strategy (chainable).
func (b *BatchBuilder) Strategy(kind core.StrategyKind) *BatchBuilder { b.cfg.Strategy = kind; return b }

// Match sets the attribute gate (chainable).
func (b *BatchBuilder) Match(key, value string) *BatchBuilder {
	b.cfg.MatchKey = key
	b.cfg.MatchValue = value
	return b
}

// Brackets configures bracketed matching over the given sort attribute with
// the given group size (chainable).
func (b *BatchBuilder) Brackets(key string, size int) *BatchBuilder {
	b.cfg.Strategy = core.StrategyBracketedGroup
	b.cfg.MatchKey = key
	b.cfg.GroupSize = size
	return b
}

// ReadyKey names the member readiness gate attribute (chainable).
func (b *BatchBuilder) ReadyKey(key string) *BatchBuilder { b.cfg.ReadyKey = key; return b }

// KeepOpen keeps the batch alive after its last session ends (chainable).
func (b *BatchBuilder) KeepOpen() *BatchBuilder { b.cfg.KeepOpen = true; return b }

// Build returns the accumulated configuration.
func (b *BatchBuilder) Build() core.BatchConfig { return b.cfg }
