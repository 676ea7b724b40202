package strategy

import (
	"fmt"

	"github.com/hupe1980/groupmesh/core"
)

// Compile-time interface assertions for the closed policy set.
var (
	_ core.Strategy      = (*SequentialFill)(nil)
	_ core.Strategy      = (*LoadBalancedRandom)(nil)
	_ core.Strategy      = (*AttributeMatch)(nil)
	_ core.GroupStrategy = (*BracketedGroup)(nil)
)

// ForBatch builds the matching policy selected by a batch configuration.
// The strategy set is closed: unknown kinds are rejected at batch creation
// rather than surfacing later during assignment.
func ForBatch(cfg core.BatchConfig) (core.Strategy, error) {
	switch cfg.Strategy {
	case core.StrategySequentialFill, "":
		if cfg.OnDemand {
			return NewOnDemandSequentialFill(cfg.SessionConfig()), nil
		}
		return NewSequentialFill(), nil
	case core.StrategyLoadBalanced:
		return NewLoadBalancedRandom(), nil
	case core.StrategyAttributeMatch:
		return NewAttributeMatch(), nil
	case core.StrategyBracketedGroup:
		if cfg.MatchKey == "" {
			return nil, fmt.Errorf("bracketed matching requires a match key")
		}
		size := cfg.GroupSize
		if size < 1 {
			size = cfg.Capacity
		}
		capacity := cfg.Capacity
		if capacity < 1 {
			capacity = 1
		}
		if size > capacity {
			return nil, fmt.Errorf("group size %d exceeds session capacity %d", size, capacity)
		}
		return NewBracketedGroup(cfg.MatchKey, size, cfg.SessionConfig()), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", cfg.Strategy)
	}
}
