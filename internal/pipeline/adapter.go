package pipeline

import "github.com/roach88/phasedefer/internal/ir"

// Hook is a callback the pipeline invokes when it reaches the phase the hook
// was registered for. It is called once per source unit.
type Hook func(src ir.SourceRef) error

// ClassOperation is applied to one class-like unit of a source.
type ClassOperation func(src ir.SourceRef, class *ir.ClassNode) error

// AuxiliaryPass is a host-supplied completion step for a phase. The
// scheduler registers it after its own batch and never looks inside.
type AuxiliaryPass struct {
	Name string
	Run  ClassOperation
}

// Transform is a transformation unit as the pipeline sees it: something to
// visit with the triggering nodes when its phase is reached.
type Transform interface {
	Visit(nodes ir.NodeSet, src ir.SourceRef) error
}

// Adapter is the registration surface a compilation exposes to the
// scheduler.
//
// Hooks registered for the same phase run in registration order. Hooks
// registered at the current phase run after the phase's regular operations,
// including hooks added while the phase is already running.
type Adapter interface {
	// ContextID identifies the compilation run.
	ContextID() ir.ContextID

	// CurrentPhase returns the phase the pipeline is executing.
	CurrentPhase() ir.Phase

	// RegisterHookAtCurrentPhase appends a hook to the phase's "new
	// operations". Returns ErrPhasePassed if phase already ran.
	RegisterHookAtCurrentPhase(phase ir.Phase, name string, hook Hook) error

	// RegisterHookAtFuturePhase appends a hook to the phase's regular
	// operations. Returns ErrPhasePassed if phase already ran.
	RegisterHookAtFuturePhase(phase ir.Phase, name string, hook Hook) error

	// ApplyToClasses runs op over each class-like unit of src in
	// declaration order, stopping at the first error.
	ApplyToClasses(src ir.SourceRef, op ClassOperation) error

	// AuxiliaryPasses returns the passes that must follow deferred work in
	// phase. Empty for phases without mandatory follow-up passes.
	AuxiliaryPasses(phase ir.Phase) []AuxiliaryPass
}

// Observer receives notifications while a compilation runs.
// Used for tracing; observers must not register hooks.
type Observer interface {
	HookInvoked(phase ir.Phase, name string, src ir.SourceRef)
	HookReturned(phase ir.Phase, name string, src ir.SourceRef, err error)
	ClassApplied(phase ir.Phase, pass string, src ir.SourceRef, class *ir.ClassNode)
}
