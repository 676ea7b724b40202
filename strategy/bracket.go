package strategy

import (
	"fmt"
	"sort"

	"github.com/hupe1980/groupmesh/core"
)

// BracketedGroup does not place arrivals individually. Every arrival is
// deferred; whenever the bracket attribute changes on any waiting
// participant the coordinator re-scans the waiting pool, and FormGroups
// partitions the eligible participants into fixed-size brackets. Complete
// brackets are committed atomically into one newly created session each;
// partial brackets remain deferred until enough compatible participants
// arrive.
//
// Eligibility requires the bracket attribute to be present on the
// participant snapshot. Ordering is by attribute value (numeric when
// coercible, else lexical), with arrival time then ID as deterministic
// tie-breaks so repeated re-scans over an unchanged pool form identical
// brackets.
type BracketedGroup struct {
	attrKey  string
	size     int
	template core.SessionConfig
}

// NewBracketedGroup creates a bracketed group policy partitioning by the
// given attribute into brackets of the given size. Sessions for committed
// brackets are created from the template configuration snapshot.
func NewBracketedGroup(attrKey string, size int, template core.SessionConfig) *BracketedGroup {
	if size < 1 {
		size = 1
	}
	return &BracketedGroup{attrKey: attrKey, size: size, template: template}
}

// Name implements core.Strategy.
func (b *BracketedGroup) Name() string { return string(core.StrategyBracketedGroup) }

// GroupSize implements core.GroupStrategy.
func (b *BracketedGroup) GroupSize() int { return b.size }

// Select implements core.Strategy. Individual arrivals always defer;
// placement happens exclusively through FormGroups.
func (b *BracketedGroup) Select(participant *core.Participant, _ []*core.Session) core.Decision {
	if _, ok := participant.Attr(b.attrKey); !ok {
		return core.Defer(fmt.Sprintf("awaiting %q attribute for bracket formation", b.attrKey))
	}
	return core.Defer("awaiting bracket formation")
}

// FormGroups implements core.GroupStrategy. It sorts the eligible waiting
// participants by the bracket attribute and cuts consecutive complete
// brackets; the remainder is dropped, leaving those participants deferred.
func (b *BracketedGroup) FormGroups(waiting []*core.Participant) []core.Bracket {
	type ranked struct {
		p       *core.Participant
		num     float64
		numOK   bool
		literal string
	}

	eligible := make([]ranked, 0, len(waiting))
	for _, p := range waiting {
		v, ok := p.Attr(b.attrKey)
		if !ok {
			continue
		}
		r := ranked{p: p}
		if n, ok := core.NumericAttr(v); ok {
			r.num = n
			r.numOK = true
		} else if s, ok := core.StringAttr(v); ok {
			r.literal = s
		} else {
			continue
		}
		eligible = append(eligible, r)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, c := eligible[i], eligible[j]
		if a.numOK != c.numOK {
			return a.numOK // numeric values sort before literals
		}
		if a.numOK && a.num != c.num {
			return a.num < c.num
		}
		if !a.numOK && a.literal != c.literal {
			return a.literal < c.literal
		}
		if !a.p.Arrived().Equal(c.p.Arrived()) {
			return a.p.Arrived().Before(c.p.Arrived())
		}
		return a.p.ID < c.p.ID
	})

	var brackets []core.Bracket
	for i := 0; i+b.size <= len(eligible); i += b.size {
		members := make([]string, b.size)
		for j := 0; j < b.size; j++ {
			members[j] = eligible[i+j].p.ID
		}
		brackets = append(brackets, core.Bracket{Members: members, Config: b.template})
	}
	return brackets
}
