package scheduler

import (
	"slices"

	"github.com/roach88/phasedefer/internal/ir"
)

// Invocation is one deferred request: which unit to run, with what payload,
// for which source. Immutable once created.
type Invocation struct {
	unit     Transformation
	payload  ir.NodeSet
	source   ir.SourceRef
	priority int
	seq      uint64 // arrival order within the owning context
}

func newInvocation(unit Transformation, payload ir.NodeSet, source ir.SourceRef) Invocation {
	return Invocation{
		unit:     unit,
		payload:  slices.Clone(payload),
		source:   source,
		priority: unit.Priority(),
	}
}

// Unit returns the transformation to run.
func (i Invocation) Unit() Transformation { return i.unit }

// Payload returns the nodes the unit was triggered with. Callers must not
// modify the returned slice.
func (i Invocation) Payload() ir.NodeSet { return i.payload }

// Source returns the source unit the invocation was deferred for.
func (i Invocation) Source() ir.SourceRef { return i.source }

// Priority returns the unit's priority captured when it deferred.
func (i Invocation) Priority() int { return i.priority }

// Seq returns the arrival sequence number within the owning context.
func (i Invocation) Seq() uint64 { return i.seq }

func (i Invocation) run() error {
	return i.unit.DeferredVisit(i.payload, i.source)
}
