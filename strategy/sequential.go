package strategy

import (
	"sort"

	"github.com/hupe1980/groupmesh/core"
)

// ReasonNoOpenSession is the waiting reason recorded when the open-session
// snapshot is empty and on-demand creation is unavailable or exhausted.
const ReasonNoOpenSession = "no open session with spare capacity"

// byCreation returns the open snapshot sorted by monotonic creation order.
// The input slice is never mutated.
func byCreation(open []*core.Session) []*core.Session {
	sorted := make([]*core.Session, len(open))
	copy(sorted, open)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq() < sorted[j].Seq() })
	return sorted
}

// SequentialFill places every arrival into the oldest open session, filling
// sessions completely in creation order before moving to the next. With
// on-demand creation enabled it requests a new session instead of deferring
// when no open session remains.
//
// SequentialFill is ideal for:
//   - Filling sessions to capacity as fast as possible
//   - Deterministic assignment ordering in replayable runs
type SequentialFill struct {
	template core.SessionConfig
	onDemand bool
}

// NewSequentialFill creates a sequential fill policy that defers when no
// open session remains.
func NewSequentialFill() *SequentialFill {
	return &SequentialFill{}
}

// NewOnDemandSequentialFill creates a sequential fill policy that requests
// creation of a session from the given configuration snapshot when no open
// session remains.
func NewOnDemandSequentialFill(template core.SessionConfig) *SequentialFill {
	return &SequentialFill{template: template, onDemand: true}
}

// Name implements core.Strategy.
func (s *SequentialFill) Name() string { return string(core.StrategySequentialFill) }

// Select implements core.Strategy. It returns the first open session in
// creation order, a creation request when on demand and none remain, or a
// deferral.
func (s *SequentialFill) Select(_ *core.Participant, open []*core.Session) core.Decision {
	if len(open) == 0 {
		if s.onDemand {
			return core.CreateSession(s.template)
		}
		return core.Defer(ReasonNoOpenSession)
	}
	return core.UseSession(byCreation(open)[0].ID)
}
