package scheduler

import (
	"log/slog"
	"sync"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/pipeline"
)

// Hook names the scheduler registers with the pipeline.
const (
	HookExecute         = "phasedefer:execute"
	HookFinalize        = "phasedefer:finalize"
	HookAuxiliaryPrefix = "phasedefer:auxiliary:"
)

// Transformation is the contract a unit implements to have its work
// deferred: a priority (lower runs first) and the deferred entry point.
type Transformation interface {
	Priority() int
	DeferredVisit(payload ir.NodeSet, source ir.SourceRef) error
}

// Schedulable is a Transformation bound to the compilation visiting it. The
// adapter supplies the context identity and the current phase.
type Schedulable interface {
	Transformation
	Compilation() pipeline.Adapter
}

// Scheduler defers transformation work to a single priority-ordered batch
// per phase.
//
// Thread-safety: a Scheduler may be shared by concurrent compilations as
// long as each uses its own ContextID. Calls for one ContextID must come
// from the goroutine driving that compilation.
type Scheduler struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithRegistry makes the scheduler use an existing registry.
func WithRegistry(r *Registry) Option {
	return func(s *Scheduler) {
		s.registry = r
	}
}

// New creates a Scheduler with an empty registry.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the scheduler's context registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Defer records an invocation of unit for the compilation's current phase
// instead of running it now.
//
// The first deferral into a phase installs the phase's execute hook (and,
// for phases with mandatory follow-up passes, the host's auxiliary passes
// right after it). The first deferral of a context installs the finalize
// hook at the terminal phase. An error is returned only when the pipeline
// refuses a registration.
func (s *Scheduler) Defer(unit Schedulable, payload ir.NodeSet, source ir.SourceRef) error {
	adapter := unit.Compilation()
	id := adapter.ContextID()
	ctx := s.registry.Get(id)

	inv := newInvocation(unit, payload, source)
	ctx.pending.push(inv)

	phase := adapter.CurrentPhase()
	s.logger.Debug("invocation deferred",
		"context", id,
		"phase", phase,
		"source", source.Name,
		"priority", inv.priority,
		"pending", ctx.pending.len(),
	)

	if err := s.installPhaseHook(ctx, adapter, phase); err != nil {
		return err
	}
	return s.installFinalizeHook(ctx, adapter)
}

// installPhaseHook registers the execute hook for phase once per context.
func (s *Scheduler) installPhaseHook(ctx *ExecutionContext, adapter pipeline.Adapter, phase ir.Phase) error {
	if !ctx.markHooked(phase) {
		return nil
	}

	id := ctx.id
	if err := adapter.RegisterHookAtCurrentPhase(phase, HookExecute, func(ir.SourceRef) error {
		return s.Execute(id, phase)
	}); err != nil {
		return err
	}
	s.logger.Debug("execute hook installed", "context", id, "phase", phase)

	if phase.Terminal() {
		// Finalize queued behind this batch. An earlier finalize hook still
		// runs first in the phase and leaves the context to this one.
		if err := adapter.RegisterHookAtCurrentPhase(phase, HookFinalize, s.finalizeHook(id, true)); err != nil {
			return err
		}
		ctx.finalizeInstalled = true
		return nil
	}

	if !phase.RequiresAuxiliaryPasses() {
		return nil
	}

	// Registered after the execute hook in the same phase so they see the
	// classes after every deferred invocation has run.
	for _, pass := range adapter.AuxiliaryPasses(phase) {
		run := pass.Run
		if err := adapter.RegisterHookAtCurrentPhase(phase, HookAuxiliaryPrefix+pass.Name, func(src ir.SourceRef) error {
			return adapter.ApplyToClasses(src, run)
		}); err != nil {
			return err
		}
		s.logger.Debug("auxiliary pass installed", "context", id, "phase", phase, "pass", pass.Name)
	}
	return nil
}

// installFinalizeHook registers the context cleanup at the terminal phase
// once per context.
func (s *Scheduler) installFinalizeHook(ctx *ExecutionContext, adapter pipeline.Adapter) error {
	if ctx.finalizeInstalled {
		return nil
	}
	if err := adapter.RegisterHookAtFuturePhase(ir.TerminalPhase, HookFinalize, s.finalizeHook(ctx.id, false)); err != nil {
		return err
	}
	ctx.finalizeInstalled = true
	return nil
}

// finalizeHook removes the context. The hook installed ahead of the
// terminal phase skips removal when the terminal phase has its own batch
// queued, since that batch's trailing finalize removes the context.
func (s *Scheduler) finalizeHook(id ir.ContextID, trailing bool) pipeline.Hook {
	return func(ir.SourceRef) error {
		if !trailing {
			if ctx, ok := s.registry.Lookup(id); ok && ctx.Hooked(ir.TerminalPhase) {
				return nil
			}
		}
		s.finalize(id)
		return nil
	}
}

// Execute runs every pending invocation of the context in ascending
// priority, ties in arrival order. It is called by the hook installed for
// phase, never by transformation units.
//
// On success exactly the invocations that were pending when Execute started
// are removed. The first failure is returned unchanged; invocations after it
// do not run and the pending set is left as it was.
func (s *Scheduler) Execute(id ir.ContextID, phase ir.Phase) error {
	ctx, ok := s.registry.Lookup(id)
	if !ok {
		return nil
	}

	batch := ctx.pending.snapshot()
	if len(batch) == 0 {
		return nil
	}

	s.logger.Debug("executing deferred invocations", "context", id, "phase", phase, "count", len(batch))
	for _, inv := range batch {
		if err := inv.run(); err != nil {
			s.logger.Error("deferred invocation failed",
				"context", id,
				"phase", phase,
				"source", inv.source.Name,
				"priority", inv.priority,
				"error", err,
			)
			return err
		}
	}

	ctx.pending.remove(batch)
	return nil
}

// finalize releases the context at the end of the pipeline.
func (s *Scheduler) finalize(id ir.ContextID) {
	s.registry.Remove(id)
	s.logger.Debug("context finalized", "context", id)
}

// Acquire opens a scope for a compilation. The returned release removes the
// context from the registry and is safe to call more than once; callers
// defer it so aborted compilations do not leak their context.
func (s *Scheduler) Acquire(id ir.ContextID) (release func()) {
	s.registry.Get(id)
	var once sync.Once
	return func() {
		once.Do(func() {
			if s.registry.Has(id) {
				s.logger.Debug("context released", "context", id)
			}
			s.registry.Remove(id)
		})
	}
}

// Visitor returns the pipeline transform for unit: visiting it defers.
func (s *Scheduler) Visitor(unit Schedulable) pipeline.Transform {
	return deferringVisitor{scheduler: s, unit: unit}
}

type deferringVisitor struct {
	scheduler *Scheduler
	unit      Schedulable
}

func (v deferringVisitor) Visit(nodes ir.NodeSet, src ir.SourceRef) error {
	return v.scheduler.Defer(v.unit, nodes, src)
}
