package strategy

import (
	"math/rand/v2"

	"github.com/hupe1980/groupmesh/core"
)

// LoadBalancedRandom spreads arrivals evenly: it restricts candidates to the
// open sessions at minimum current occupancy and picks one of them uniformly
// at random. Over many arrivals the occupancy across sessions of equal
// capacity stays within one of each other.
//
// Ties are broken by randomness, never by ordering, so no session is
// systematically favored.
type LoadBalancedRandom struct {
	intn func(n int) int
}

// LoadBalancedOption customizes a LoadBalancedRandom policy.
type LoadBalancedOption func(*LoadBalancedRandom)

// WithIntN overrides the random index source. Used by tests to pin outcomes;
// the function must return a value in [0, n).
func WithIntN(intn func(n int) int) LoadBalancedOption {
	return func(l *LoadBalancedRandom) { l.intn = intn }
}

// NewLoadBalancedRandom creates a load-balanced random policy backed by the
// shared math/rand/v2 source.
func NewLoadBalancedRandom(optFns ...LoadBalancedOption) *LoadBalancedRandom {
	l := &LoadBalancedRandom{intn: rand.IntN}
	for _, fn := range optFns {
		fn(l)
	}
	return l
}

// Name implements core.Strategy.
func (l *LoadBalancedRandom) Name() string { return string(core.StrategyLoadBalanced) }

// Select implements core.Strategy. It computes the minimum occupancy across
// the open snapshot, restricts candidates to that minimum set and returns
// one chosen uniformly at random.
func (l *LoadBalancedRandom) Select(_ *core.Participant, open []*core.Session) core.Decision {
	if len(open) == 0 {
		return core.Defer(ReasonNoOpenSession)
	}

	minOccupancy := -1
	var candidates []*core.Session
	for _, s := range open {
		occ := s.Occupancy()
		switch {
		case minOccupancy < 0 || occ < minOccupancy:
			minOccupancy = occ
			candidates = candidates[:0]
			candidates = append(candidates, s)
		case occ == minOccupancy:
			candidates = append(candidates, s)
		}
	}

	return core.UseSession(candidates[l.intn(len(candidates))].ID)
}
