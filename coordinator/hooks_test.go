package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/groupmesh/core"
)

func TestHookManager(t *testing.T) {
	ctx := context.Background()

	t.Run("runs hooks in registration order", func(t *testing.T) {
		m := NewHookManager()
		var order []string
		m.Register(NewFunctionHook(HookAfterAssign, func(context.Context, *HookContext) error {
			order = append(order, "first")
			return nil
		}))
		m.Register(NewFunctionHook(HookAfterAssign, func(context.Context, *HookContext) error {
			order = append(order, "second")
			return nil
		}))

		require.NoError(t, m.Run(ctx, HookAfterAssign, &HookContext{}))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("first error stops the chain", func(t *testing.T) {
		m := NewHookManager()
		ran := false
		m.Register(NewFunctionHook(HookBeforeAssign, func(context.Context, *HookContext) error {
			return fmt.Errorf("denied")
		}))
		m.Register(NewFunctionHook(HookBeforeAssign, func(context.Context, *HookContext) error {
			ran = true
			return nil
		}))

		err := m.Run(ctx, HookBeforeAssign, &HookContext{})
		assert.ErrorContains(t, err, "denied")
		assert.False(t, ran)
	})

	t.Run("types are routed independently", func(t *testing.T) {
		m := NewHookManager()
		m.Register(NewFunctionHook(HookOnDetach, func(context.Context, *HookContext) error {
			return fmt.Errorf("should not run")
		}))
		assert.NoError(t, m.Run(ctx, HookOnDeferred, &HookContext{}))
	})
}

func TestHooksOnAssignmentPath(t *testing.T) {
	ctx := context.Background()

	hooks := NewHookManager()
	var assigned, deferred, detached []string
	hooks.Register(NewFunctionHook(HookAfterAssign, func(_ context.Context, hc *HookContext) error {
		assigned = append(assigned, hc.Participant.ID)
		return nil
	}))
	hooks.Register(NewFunctionHook(HookOnDeferred, func(_ context.Context, hc *HookContext) error {
		deferred = append(deferred, hc.Participant.ID)
		return nil
	}))
	hooks.Register(NewFunctionHook(HookOnDetach, func(_ context.Context, hc *HookContext) error {
		detached = append(detached, hc.Participant.ID)
		return nil
	}))

	c, _ := newTestCoordinator(t, WithHooks(hooks))
	b := startBatch(t, c, core.BatchConfig{SessionCount: 1, Capacity: 1})

	_, err := c.Arrive(ctx, "p1", b.ID)
	require.NoError(t, err)
	_, err = c.Arrive(ctx, "p2", b.ID)
	require.NoError(t, err)
	require.NoError(t, c.Detach(ctx, "p1"))

	assert.Equal(t, []string{"p1"}, assigned)
	assert.Equal(t, []string{"p2"}, deferred)
	assert.Equal(t, []string{"p1"}, detached)
}
