package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/groupmesh/bus"
	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/store"
)

func newTestManager(t *testing.T) (*Manager, *store.InMemoryStore, <-chan core.Event) {
	t.Helper()
	st := store.NewInMemoryStore()
	b := bus.NewInMemoryBus(64)
	events, cancel := b.Subscribe()
	t.Cleanup(cancel)
	return New(st, b), st, events
}

func fillSession(t *testing.T, s *core.Session, capacity int, ids ...string) {
	t.Helper()
	require.NoError(t, s.Acquire(context.Background()))
	defer s.Release()
	for _, id := range ids {
		require.NoError(t, s.AddMember(id, capacity))
	}
}

func drainKinds(events <-chan core.Event) []core.EventKind {
	kinds := []core.EventKind{}
	for {
		select {
		case e := <-events:
			kinds = append(kinds, e.Kind)
		default:
			return kinds
		}
	}
}

func TestCheckFormed(t *testing.T) {
	t.Run("below minimum stays forming", func(t *testing.T) {
		m, _, events := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 4, MinSize: 2})
		fillSession(t, s, 4, "p1")

		assert.False(t, m.CheckFormed(s))
		assert.Equal(t, core.SessionForming, s.State())
		assert.Empty(t, drainKinds(events))
	})

	t.Run("minimum reached promotes to ready", func(t *testing.T) {
		m, _, events := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 4, MinSize: 2})
		fillSession(t, s, 4, "p1", "p2")

		assert.True(t, m.CheckFormed(s))
		assert.Equal(t, core.SessionReady, s.State())
		assert.Equal(t, []core.EventKind{core.EventSessionReady}, drainKinds(events))
	})

	t.Run("repeated check emits once", func(t *testing.T) {
		m, _, events := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 4, MinSize: 2})
		fillSession(t, s, 4, "p1", "p2")

		assert.True(t, m.CheckFormed(s))
		assert.False(t, m.CheckFormed(s))
		assert.Len(t, drainKinds(events), 1)
	})

	t.Run("zero min size means full capacity", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 3})
		fillSession(t, s, 3, "p1", "p2")

		assert.False(t, m.CheckFormed(s))

		fillSession(t, s, 3, "p3")
		assert.True(t, m.CheckFormed(s))
	})
}

func TestCheckReadiness(t *testing.T) {
	ctx := context.Background()

	t.Run("all members ready promotes to running", func(t *testing.T) {
		m, st, events := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 2, MinSize: 2})
		fillSession(t, s, 2, "p1", "p2")
		require.True(t, m.CheckFormed(s))

		require.NoError(t, st.Set(ctx, core.KindParticipant, "p1", "ready", true))
		started, err := m.CheckReadiness(ctx, s)
		require.NoError(t, err)
		assert.False(t, started, "gate must hold while any member is not ready")

		require.NoError(t, st.Set(ctx, core.KindParticipant, "p2", "ready", true))
		started, err = m.CheckReadiness(ctx, s)
		require.NoError(t, err)
		assert.True(t, started)
		assert.Equal(t, core.SessionRunning, s.State())
		assert.Equal(t, []core.EventKind{core.EventSessionReady, core.EventSessionStarted}, drainKinds(events))
	})

	t.Run("custom ready key", func(t *testing.T) {
		m, st, _ := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 1, MinSize: 1, ReadyKey: "checked_in"})
		fillSession(t, s, 1, "p1")
		require.True(t, m.CheckFormed(s))

		require.NoError(t, st.Set(ctx, core.KindParticipant, "p1", "ready", true))
		started, err := m.CheckReadiness(ctx, s)
		require.NoError(t, err)
		assert.False(t, started)

		require.NoError(t, st.Set(ctx, core.KindParticipant, "p1", "checked_in", "true"))
		started, err = m.CheckReadiness(ctx, s)
		require.NoError(t, err)
		assert.True(t, started)
	})

	t.Run("forming session is not started by the gate", func(t *testing.T) {
		m, st, _ := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 4, MinSize: 3})
		fillSession(t, s, 4, "p1")
		require.NoError(t, st.Set(ctx, core.KindParticipant, "p1", "ready", true))

		started, err := m.CheckReadiness(ctx, s)
		require.NoError(t, err)
		assert.False(t, started)
		assert.Equal(t, core.SessionForming, s.State())
	})

	t.Run("non boolean gate value stays closed", func(t *testing.T) {
		m, st, _ := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 1, MinSize: 1})
		fillSession(t, s, 1, "p1")
		require.True(t, m.CheckFormed(s))
		require.NoError(t, st.Set(ctx, core.KindParticipant, "p1", "ready", "soon"))

		started, err := m.CheckReadiness(ctx, s)
		require.NoError(t, err)
		assert.False(t, started)
	})
}

func TestStartAndEnd(t *testing.T) {
	t.Run("explicit start bypasses the gate", func(t *testing.T) {
		m, _, events := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 4, MinSize: 2})
		fillSession(t, s, 4, "p1", "p2")
		require.True(t, m.CheckFormed(s))

		require.NoError(t, m.Start(s))
		assert.Equal(t, core.SessionRunning, s.State())
		assert.Equal(t, []core.EventKind{core.EventSessionReady, core.EventSessionStarted}, drainKinds(events))
	})

	t.Run("end freezes membership", func(t *testing.T) {
		m, _, events := newTestManager(t)
		s := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 4, MinSize: 1})
		fillSession(t, s, 4, "p1")

		require.NoError(t, m.End(s))
		assert.Equal(t, core.SessionEnded, s.State())
		assert.ErrorIs(t, m.End(s), core.ErrSessionEnded)
		assert.Equal(t, []core.EventKind{core.EventSessionEnded}, drainKinds(events))
	})
}

func TestCheckBatchDone(t *testing.T) {
	newRunningBatch := func(t *testing.T, cfg core.BatchConfig) *core.Batch {
		t.Helper()
		b := core.NewBatch("b1", cfg)
		require.NoError(t, b.AdvanceState(core.BatchRunning))
		return b
	}

	t.Run("all sessions ended ends the batch", func(t *testing.T) {
		m, _, events := newTestManager(t)
		b := newRunningBatch(t, core.BatchConfig{Capacity: 2})
		s1 := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 2})
		s2 := core.NewSession("s2", "b1", 1, core.SessionConfig{Capacity: 2})
		require.NoError(t, m.End(s1))

		assert.False(t, m.CheckBatchDone(b, []*core.Session{s1, s2}))

		require.NoError(t, m.End(s2))
		assert.True(t, m.CheckBatchDone(b, []*core.Session{s1, s2}))
		assert.Equal(t, core.BatchEnded, b.State())
		kinds := drainKinds(events)
		assert.Equal(t, core.EventBatchEnded, kinds[len(kinds)-1])
	})

	t.Run("keep open batch stays running", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		b := newRunningBatch(t, core.BatchConfig{Capacity: 2, KeepOpen: true})
		s1 := core.NewSession("s1", "b1", 0, core.SessionConfig{Capacity: 2})
		require.NoError(t, m.End(s1))

		assert.False(t, m.CheckBatchDone(b, []*core.Session{s1}))
		assert.Equal(t, core.BatchRunning, b.State())
	})

	t.Run("batch without sessions is not ended", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		b := newRunningBatch(t, core.BatchConfig{Capacity: 2})
		assert.False(t, m.CheckBatchDone(b, nil))
	})

	t.Run("explicit end ignores keep open", func(t *testing.T) {
		m, _, events := newTestManager(t)
		b := newRunningBatch(t, core.BatchConfig{Capacity: 2, KeepOpen: true})
		require.NoError(t, m.EndBatch(b))
		assert.Equal(t, core.BatchEnded, b.State())
		assert.Equal(t, []core.EventKind{core.EventBatchEnded}, drainKinds(events))
	})
}
