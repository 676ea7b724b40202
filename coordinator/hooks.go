package coordinator

import (
	"context"
	"fmt"

	"github.com/hupe1980/groupmesh/core"
)

// HookType defines the lifecycle points where hooks can be executed.
//
// Hooks provide a mechanism for extending assignment behavior without
// modifying the coordinator itself: admission control, audit trails, metrics
// collection or custom bookkeeping. Hooks run synchronously on the assignment
// path, so implementations must be fast.
type HookType string

const (
	// HookBeforeAssign is triggered before a matching strategy is consulted
	// for a participant. Returning an error vetoes the assignment attempt.
	HookBeforeAssign HookType = "before_assign"

	// HookAfterAssign is triggered after a participant was bound to a
	// session. Errors are logged but do not undo the binding.
	HookAfterAssign HookType = "after_assign"

	// HookOnDeferred is triggered when a participant enters or re-enters
	// the waiting pool with a new reason. Errors are logged.
	HookOnDeferred HookType = "on_deferred"

	// HookOnDetach is triggered after a participant vacated its slot.
	// Errors are logged.
	HookOnDetach HookType = "on_detach"
)

// HookContext carries the state relevant to one hook execution. Fields not
// applicable to the hook type are zero.
type HookContext struct {
	// Participant is the subject of the operation. Attribute snapshots have
	// been refreshed before HookBeforeAssign runs.
	Participant *core.Participant

	// Session is the target or vacated session, nil for deferrals.
	Session *core.Session

	// BatchID identifies the batch hosting the operation.
	BatchID string

	// Reason is populated for deferrals.
	Reason string
}

// Hook is an assignment lifecycle extension point.
//
// Implementations should be fast, stateless and safe for concurrent use.
// A HookBeforeAssign implementation returning an error terminates the
// assignment attempt; for all other types errors are logged and ignored.
type Hook interface {
	// Type returns the hook type this implementation handles.
	Type() HookType

	// Execute performs the hook logic.
	Execute(ctx context.Context, hookCtx *HookContext) error
}

// FunctionHook wraps a plain function as a Hook, for simple stateless logic.
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hookCtx *HookContext) error
}

// NewFunctionHook creates a function-based hook for the given type.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hookCtx *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type returns the hook type this function handles.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hookCtx *HookContext) error {
	return h.fn(ctx, hookCtx)
}

// HookManager routes hook executions to registered implementations.
//
// Hooks execute in registration order; the first error stops the chain and
// is returned to the caller. Registration is not goroutine-safe and should
// complete before the coordinator starts serving operations; execution is
// safe for concurrent use afterwards.
type HookManager struct {
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookType][]Hook)}
}

// Register adds a hook for its declared type.
func (m *HookManager) Register(hook Hook) {
	m.hooks[hook.Type()] = append(m.hooks[hook.Type()], hook)
}

// Run executes all hooks of the given type in registration order, stopping
// at the first error.
func (m *HookManager) Run(ctx context.Context, hookType HookType, hookCtx *HookContext) error {
	for _, hook := range m.hooks[hookType] {
		if err := hook.Execute(ctx, hookCtx); err != nil {
			return fmt.Errorf("hook %s: %w", hookType, err)
		}
	}
	return nil
}
