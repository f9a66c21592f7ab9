package engine

import (
	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/pipeline"
	"github.com/roach88/phasedefer/internal/scheduler"
)

// planUnit is a transformation unit declared by a plan. Visiting it defers
// its work through the scheduler unless the unit is immediate.
type planUnit struct {
	spec        ir.UnitSpec
	compilation *pipeline.Compilation
	scheduler   *scheduler.Scheduler
	rec         *recorder
}

var (
	_ scheduler.Schedulable = (*planUnit)(nil)
	_ pipeline.Transform    = (*planUnit)(nil)
)

// Priority implements scheduler.Transformation.
func (u *planUnit) Priority() int {
	return u.spec.Priority
}

// Compilation implements scheduler.Schedulable.
func (u *planUnit) Compilation() pipeline.Adapter {
	return u.compilation
}

// Visit implements pipeline.Transform.
func (u *planUnit) Visit(nodes ir.NodeSet, src ir.SourceRef) error {
	ev := u.event(ir.TraceVisit, src)
	if u.spec.Immediate {
		ev.Detail = "immediate"
		u.rec.record(ev)
		return u.work(src)
	}
	u.rec.record(ev)
	u.rec.record(u.event(ir.TraceDefer, src))
	return u.scheduler.Defer(u, nodes, src)
}

// DeferredVisit implements scheduler.Transformation.
func (u *planUnit) DeferredVisit(_ ir.NodeSet, src ir.SourceRef) error {
	u.rec.record(u.event(ir.TraceDeferredVisit, src))
	return u.work(src)
}

// work adds the unit's member to its target class, or fails as declared.
func (u *planUnit) work(src ir.SourceRef) error {
	if u.spec.Fail != "" {
		return u.failure(src, u.spec.Fail)
	}
	if u.spec.Target == "" {
		return nil
	}
	class, ok := u.compilation.Class(u.spec.Target)
	if !ok {
		return u.failure(src, "unknown target class "+u.spec.Target)
	}
	if u.spec.Member != "" {
		class.AddMember(u.spec.Member)
	}
	return nil
}

func (u *planUnit) failure(src ir.SourceRef, msg string) *pipeline.CompilationFailure {
	return &pipeline.CompilationFailure{
		Phase:   u.compilation.CurrentPhase(),
		Source:  src.Name,
		Unit:    u.spec.Name,
		Class:   u.spec.Target,
		Message: msg,
	}
}

func (u *planUnit) event(kind ir.TraceKind, src ir.SourceRef) ir.TraceEvent {
	return ir.TraceEvent{
		Kind:     kind,
		Phase:    u.compilation.CurrentPhase(),
		Unit:     u.spec.Name,
		Priority: u.spec.Priority,
		Source:   src.Name,
		Class:    u.spec.Target,
	}
}
