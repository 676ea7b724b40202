package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/groupmesh/core"
)

func openSession(t *testing.T, id string, seq uint64, cfg core.SessionConfig, members ...string) *core.Session {
	t.Helper()
	s := core.NewSession(id, "batch-1", seq, cfg)
	capacity, _ := core.DefaultCapacityPolicy(cfg)
	for _, m := range members {
		require.NoError(t, s.AddMember(m, capacity))
	}
	return s
}

func TestSequentialFillPicksOldest(t *testing.T) {
	cfg := core.SessionConfig{Capacity: 3}
	older := openSession(t, "sess-old", 1, cfg, "p1", "p2")
	newer := openSession(t, "sess-new", 2, cfg)

	s := NewSequentialFill()
	p := core.NewParticipant("arriving")

	// Oldest wins regardless of slice order or occupancy.
	d := s.Select(p, []*core.Session{newer, older})
	assert.Equal(t, core.DecisionUseSession, d.Kind)
	assert.Equal(t, "sess-old", d.SessionID)
}

func TestSequentialFillDefersOnEmpty(t *testing.T) {
	s := NewSequentialFill()
	d := s.Select(core.NewParticipant("p1"), nil)
	assert.Equal(t, core.DecisionDefer, d.Kind)
	assert.Equal(t, ReasonNoOpenSession, d.Reason)
}

func TestOnDemandSequentialFillCreates(t *testing.T) {
	template := core.SessionConfig{Capacity: 4, MinSize: 2}
	s := NewOnDemandSequentialFill(template)

	d := s.Select(core.NewParticipant("p1"), nil)
	require.Equal(t, core.DecisionCreateSession, d.Kind)
	assert.Equal(t, template, d.Config)

	// With an open session available, creation is not requested.
	open := openSession(t, "sess-1", 1, template)
	d = s.Select(core.NewParticipant("p1"), []*core.Session{open})
	assert.Equal(t, core.DecisionUseSession, d.Kind)
}
