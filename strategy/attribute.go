package strategy

import (
	"fmt"

	"github.com/hupe1980/groupmesh/core"
)

// AttributeMatch gates placement on an attribute equality check: a session
// is eligible only when the participant's value for the session's MatchKey
// equals the session's MatchValue. Sessions declaring no MatchKey accept any
// participant. Among eligible sessions the oldest wins (sequential fill
// order); with no eligible session the participant is deferred.
type AttributeMatch struct{}

// NewAttributeMatch creates an attribute match policy.
func NewAttributeMatch() *AttributeMatch {
	return &AttributeMatch{}
}

// Name implements core.Strategy.
func (a *AttributeMatch) Name() string { return string(core.StrategyAttributeMatch) }

// Select implements core.Strategy.
func (a *AttributeMatch) Select(participant *core.Participant, open []*core.Session) core.Decision {
	var matches []*core.Session
	for _, s := range open {
		if Eligible(participant, s) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		if len(open) == 0 {
			return core.Defer(ReasonNoOpenSession)
		}
		return core.Defer(fmt.Sprintf("no open session matches participant attributes (%d considered)", len(open)))
	}
	return core.UseSession(byCreation(matches)[0].ID)
}

// Eligible reports whether the participant satisfies the session's declared
// attribute requirement. It is exported so the coordinator and waiting pool
// can reuse the same predicate during re-scans; it must stay side-effect
// free for repeated evaluation to be safe.
func Eligible(participant *core.Participant, s *core.Session) bool {
	cfg := s.Config()
	if cfg.MatchKey == "" {
		return true
	}
	v, ok := participant.Attr(cfg.MatchKey)
	if !ok {
		return false
	}
	sv, ok := core.StringAttr(v)
	return ok && sv == cfg.MatchValue
}
