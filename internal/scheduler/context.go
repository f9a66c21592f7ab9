package scheduler

import (
	"slices"

	"github.com/roach88/phasedefer/internal/ir"
)

// ExecutionContext is the scheduling state of one compilation run.
//
// INVARIANTS:
//   - hookedPhases only grows; a phase is added once, before its hook is
//     registered with the pipeline
//   - finalizeInstalled flips to true at most once
//
// An ExecutionContext is owned by the compilation it belongs to and is not
// locked: the pipeline drives one compilation's phases sequentially.
type ExecutionContext struct {
	id                ir.ContextID
	pending           pendingQueue
	hookedPhases      map[ir.Phase]struct{}
	finalizeInstalled bool
}

func newExecutionContext(id ir.ContextID) *ExecutionContext {
	return &ExecutionContext{
		id:           id,
		hookedPhases: make(map[ir.Phase]struct{}),
	}
}

// ID returns the context identity.
func (c *ExecutionContext) ID() ir.ContextID {
	return c.id
}

// Pending returns the pending invocations in execution order.
func (c *ExecutionContext) Pending() []Invocation {
	return c.pending.snapshot()
}

// PendingLen returns the number of pending invocations.
func (c *ExecutionContext) PendingLen() int {
	return c.pending.len()
}

// Hooked reports whether the execute hook for phase has been installed.
func (c *ExecutionContext) Hooked(phase ir.Phase) bool {
	_, ok := c.hookedPhases[phase]
	return ok
}

// HookedPhases returns the hooked phases in pipeline order.
func (c *ExecutionContext) HookedPhases() []ir.Phase {
	phases := make([]ir.Phase, 0, len(c.hookedPhases))
	for p := range c.hookedPhases {
		phases = append(phases, p)
	}
	slices.Sort(phases)
	return phases
}

// FinalizeInstalled reports whether the finalize hook has been installed.
func (c *ExecutionContext) FinalizeInstalled() bool {
	return c.finalizeInstalled
}

// markHooked adds phase to the hooked set and reports whether it was new.
func (c *ExecutionContext) markHooked(phase ir.Phase) bool {
	if _, ok := c.hookedPhases[phase]; ok {
		return false
	}
	c.hookedPhases[phase] = struct{}{}
	return true
}
