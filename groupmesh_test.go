package groupmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/groupmesh/coordinator"
	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newMesh(t *testing.T, optFns ...func(o *Options)) (*GroupMesh, *testutil.EventCollector) {
	t.Helper()
	m := New(optFns...)
	t.Cleanup(m.Close)
	collector := testutil.NewEventCollector(m.Coordinator().Bus())
	t.Cleanup(collector.Close)
	return m, collector
}

func TestSequentialFillLifecycle(t *testing.T) {
	ctx := context.Background()
	m, events := newMesh(t)

	cfg := testutil.NewBatchBuilder().Sessions(1).Capacity(3).MinSize(2).Build()
	b, err := m.CreateBatch(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartBatch(b.ID))

	for _, id := range []string{"p1", "p2", "p3"} {
		res, err := m.Arrive(ctx, id, b.ID)
		require.NoError(t, err)
		require.Equal(t, coordinator.OutcomeAssigned, res.Outcome)
	}

	res, err := m.Arrive(ctx, "p4", b.ID)
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeDeferred, res.Outcome)

	sessions, err := m.SessionsOf(b.ID)
	require.NoError(t, err)
	s := sessions[0]
	assert.Equal(t, core.SessionReady, s.State())

	// Readiness gates open one by one; the session starts only after the
	// last member is ready.
	require.NoError(t, m.Ready(ctx, "p1"))
	require.NoError(t, m.Ready(ctx, "p2"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, core.SessionReady, s.State())

	require.NoError(t, m.Ready(ctx, "p3"))
	require.Eventually(t, func() bool {
		return s.State() == core.SessionRunning
	}, waitFor, tick)

	require.NoError(t, m.EndSession(ctx, s.ID))
	require.Eventually(t, func() bool {
		return events.Count(core.EventBatchEnded) == 1
	}, waitFor, tick)

	assert.Equal(t, 3, events.Count(core.EventParticipantAssigned))
	assert.Equal(t, 1, events.Count(core.EventSessionStarted))
	assert.Equal(t, 1, events.Count(core.EventSessionEnded))
}

func TestAttributeMatchScenario(t *testing.T) {
	ctx := context.Background()
	m, _ := newMesh(t)

	cfg := testutil.NewBatchBuilder().
		Capacity(4).
		MinSize(1).
		Strategy(core.StrategyAttributeMatch).
		Match("tier", "").
		Build()
	b, err := m.CreateBatch(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartBatch(b.ID))

	expert, err := m.OpenSession(b.ID, func(cfg *core.SessionConfig) { cfg.MatchValue = "expert" })
	require.NoError(t, err)
	novice, err := m.OpenSession(b.ID, func(cfg *core.SessionConfig) { cfg.MatchValue = "novice" })
	require.NoError(t, err)

	require.NoError(t, m.SetAttribute(ctx, "p1", "tier", "expert"))
	require.NoError(t, m.SetAttribute(ctx, "p2", "tier", "novice"))

	res, err := m.Arrive(ctx, "p1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, expert.ID, res.SessionID)

	res, err = m.Arrive(ctx, "p2", b.ID)
	require.NoError(t, err)
	assert.Equal(t, novice.ID, res.SessionID)

	// No tier attribute: deferred until the attribute appears, at which
	// point the change triggers a rescan without any explicit retry.
	res, err = m.Arrive(ctx, "p3", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)

	require.NoError(t, m.SetAttribute(ctx, "p3", "tier", "expert"))
	require.Eventually(t, func() bool {
		p, err := m.Participant("p3")
		return err == nil && p.State() == core.ParticipantAssigned
	}, waitFor, tick)
	assert.True(t, expert.HasMember("p3"))
}

func TestDetachTriggersRescan(t *testing.T) {
	ctx := context.Background()
	m, _ := newMesh(t)

	cfg := testutil.NewBatchBuilder().Sessions(1).Capacity(1).Build()
	b, err := m.CreateBatch(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartBatch(b.ID))

	_, err = m.Arrive(ctx, "p1", b.ID)
	require.NoError(t, err)
	res, err := m.Arrive(ctx, "p2", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)

	require.NoError(t, m.Detach(ctx, "p1"))

	// The freed slot goes to the waiting p2; the vacating p1 must not win
	// it back in the triggered rescan.
	require.Eventually(t, func() bool {
		p, err := m.Participant("p2")
		return err == nil && p.State() == core.ParticipantAssigned
	}, waitFor, tick)
	p1, err := m.Participant("p1")
	require.NoError(t, err)
	assert.Equal(t, core.ParticipantUnassigned, p1.State())
}

func TestBracketedFormation(t *testing.T) {
	ctx := context.Background()
	m, _ := newMesh(t)

	cfg := testutil.NewBatchBuilder().Capacity(2).MinSize(2).Brackets("skill", 2).Build()
	b, err := m.CreateBatch(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartBatch(b.ID))

	// Matching attributes are written well before arrival, so the only
	// formation trigger is the arrival deferral itself.
	require.NoError(t, m.SetAttribute(ctx, "p1", "skill", 30))
	require.NoError(t, m.SetAttribute(ctx, "p2", "skill", 10))
	time.Sleep(50 * time.Millisecond)

	res, err := m.Arrive(ctx, "p1", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)
	res, err = m.Arrive(ctx, "p2", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)

	require.Eventually(t, func() bool {
		sessions, err := m.SessionsOf(b.ID)
		return err == nil && len(sessions) == 1
	}, waitFor, tick, "completing arrival must form the bracket without an explicit rescan")

	sessions, err := m.SessionsOf(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, sessions[0].Members())
	assert.LessOrEqual(t, sessions[0].Occupancy(), sessions[0].Config().Capacity)

	// An odd participant stays waiting until a fourth completes the next
	// bracket, again through the reactive path alone.
	require.NoError(t, m.SetAttribute(ctx, "p3", "skill", 40))
	res, err = m.Arrive(ctx, "p3", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, m.Waiting(b.ID), 1)

	require.NoError(t, m.SetAttribute(ctx, "p4", "skill", 45))
	res, err = m.Arrive(ctx, "p4", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)

	require.Eventually(t, func() bool {
		sessions, err := m.SessionsOf(b.ID)
		return err == nil && len(sessions) == 2
	}, waitFor, tick)
	assert.Empty(t, m.Waiting(b.ID))
}

func TestCreateBatchFromSource(t *testing.T) {
	m, _ := newMesh(t)

	cfg := testutil.NewBatchBuilder().Sessions(2).Capacity(4).Build()
	require.NoError(t, m.RegisterConfig("weekly-roundtable", cfg))

	b, err := m.CreateBatchFromSource("weekly-roundtable")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Config().SessionCount)

	_, err = m.CreateBatchFromSource("missing")
	assert.Error(t, err)
}

func TestHistoryAcrossReassignment(t *testing.T) {
	ctx := context.Background()
	m, _ := newMesh(t)

	cfg := testutil.NewBatchBuilder().Sessions(2).Capacity(2).Build()
	b, err := m.CreateBatch(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartBatch(b.ID))

	_, err = m.Arrive(ctx, "p1", b.ID)
	require.NoError(t, err)
	_, err = m.Reassign(ctx, "p1")
	require.NoError(t, err)

	records := m.History().ByParticipant("p1")
	require.Len(t, records, 3)
	assert.Equal(t, core.ActionAttach, records[0].Action)
	assert.Equal(t, core.ActionDetach, records[1].Action)
	assert.Equal(t, core.ActionAttach, records[2].Action)
}

func TestCloseStopsReactivity(t *testing.T) {
	ctx := context.Background()
	m := New()

	cfg := testutil.NewBatchBuilder().Sessions(1).Capacity(1).Build()
	b, err := m.CreateBatch(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartBatch(b.ID))

	_, err = m.Arrive(ctx, "p1", b.ID)
	require.NoError(t, err)
	res, err := m.Arrive(ctx, "p2", b.ID)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeDeferred, res.Outcome)

	m.Close()
	m.Close()

	// A slot freed after close is no longer rescanned automatically.
	require.NoError(t, m.Detach(ctx, "p1"))
	time.Sleep(50 * time.Millisecond)
	p, err := m.Participant("p2")
	require.NoError(t, err)
	assert.Equal(t, core.ParticipantUnassigned, p.State())
}
