package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/groupmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.AttributeStore = (*InMemoryStore)(nil)

func TestInMemoryStoreReadYourWrites(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, core.KindParticipant, "p1", "skill", 42))

	v, ok, err := s.Get(ctx, core.KindParticipant, "p1", "skill")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok, err = s.Get(ctx, core.KindParticipant, "p1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryStoreSnapshot(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, core.KindSession, "sess-1", "topic", "go"))
	require.NoError(t, s.Set(ctx, core.KindSession, "sess-1", "level", "novice"))

	snap, err := s.Snapshot(ctx, core.KindSession, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "go", "level": "novice"}, snap)

	// Snapshot is a copy, not a live view.
	snap["topic"] = "mutated"
	v, _, err := s.Get(ctx, core.KindSession, "sess-1", "topic")
	require.NoError(t, err)
	assert.Equal(t, "go", v)
}

func TestInMemoryStoreSubscribeKeyFilter(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	ch, cancel := s.Subscribe(core.KindParticipant, "ready")
	defer cancel()

	require.NoError(t, s.Set(ctx, core.KindParticipant, "p1", "skill", 10))
	require.NoError(t, s.Set(ctx, core.KindParticipant, "p1", "ready", true))

	select {
	case change := <-ch:
		assert.Equal(t, "ready", change.Key)
		assert.Equal(t, "p1", change.EntityID)
		assert.Nil(t, change.Old)
		assert.Equal(t, true, change.New)
	case <-time.After(time.Second):
		t.Fatal("expected a change event for the subscribed key")
	}

	select {
	case change := <-ch:
		t.Fatalf("unexpected extra change: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryStoreSubscribeOrdering(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	ch, cancel := s.Subscribe(core.KindParticipant, "")
	defer cancel()

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, s.Set(ctx, core.KindParticipant, "p1", "counter", i))
	}

	for i := 0; i < n; i++ {
		select {
		case change := <-ch:
			assert.Equal(t, i, change.New)
		case <-time.After(time.Second):
			t.Fatalf("missing change %d", i)
		}
	}
}

func TestInMemoryStoreCancelClosesStream(t *testing.T) {
	s := NewInMemoryStore()
	ch, cancel := s.Subscribe(core.KindBatch, "")
	cancel()
	// Cancel twice is safe.
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}

	// Writes after cancel do not panic or block.
	require.NoError(t, s.Set(context.Background(), core.KindBatch, "b1", "k", "v"))
}
