package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/phasedefer/internal/ir"
)

// Source is one source unit of a compilation and the classes it declares.
type Source struct {
	Ref     ir.SourceRef
	Classes []*ir.ClassNode
}

type operation struct {
	name string
	hook Hook
}

// phaseOperations holds the two operation lists of a phase. Both are
// iterated by index so operations appended while the phase runs are picked
// up in the same phase.
type phaseOperations struct {
	regular []operation
	fresh   []operation
}

// Compilation is the reference pipeline host. It runs the phases from
// Initialization to Finalization; in each phase every regular operation and
// then every "new" operation is applied to each source in order.
//
// A Compilation is driven by exactly one goroutine. It is not safe for
// concurrent use; independent compilations may run concurrently.
//
// INVARIANTS:
//   - phases run strictly in order, each at most once
//   - operations of a phase run in registration order
//   - the first hook error aborts the run and is returned unchanged
type Compilation struct {
	id        ir.ContextID
	sources   []*Source
	ops       map[ir.Phase]*phaseOperations
	phase     ir.Phase // 0 until Run starts
	finished  bool
	auxiliary map[ir.Phase][]AuxiliaryPass
	observers []Observer
	logger    *slog.Logger
}

// Option configures a Compilation.
type Option func(*Compilation)

// WithObserver adds an observer notified of hook invocations and class
// applications.
func WithObserver(o Observer) Option {
	return func(c *Compilation) {
		c.observers = append(c.observers, o)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compilation) {
		c.logger = l
	}
}

// WithAuxiliaryPasses replaces the auxiliary passes. By default a
// compilation carries DefaultAuxiliaryPasses bound to itself.
func WithAuxiliaryPasses(passes map[ir.Phase][]AuxiliaryPass) Option {
	return func(c *Compilation) {
		c.auxiliary = passes
	}
}

// NewCompilation creates an empty compilation identified by id.
func NewCompilation(id ir.ContextID, opts ...Option) *Compilation {
	c := &Compilation{
		id:     id,
		ops:    make(map[ir.Phase]*phaseOperations),
		logger: slog.Default(),
	}
	c.auxiliary = DefaultAuxiliaryPasses(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddSource adds a source unit with its classes. Sources are visited in the
// order they were added.
func (c *Compilation) AddSource(name string, classes ...*ir.ClassNode) *Source {
	s := &Source{Ref: ir.SourceRef{Name: name}, Classes: classes}
	c.sources = append(c.sources, s)
	return s
}

// Sources returns the compilation's sources.
func (c *Compilation) Sources() []*Source {
	return c.sources
}

// Class returns the class with the given name from any source.
func (c *Compilation) Class(name string) (*ir.ClassNode, bool) {
	for _, s := range c.sources {
		for _, cls := range s.Classes {
			if cls.Name == name {
				return cls, true
			}
		}
	}
	return nil, false
}

// AddTransform registers t to be visited with nodes in phase, for the source
// named src only.
func (c *Compilation) AddTransform(phase ir.Phase, name string, src string, t Transform, nodes ir.NodeSet) error {
	return c.RegisterHookAtFuturePhase(phase, name, func(ref ir.SourceRef) error {
		if ref.Name != src {
			return nil
		}
		return t.Visit(nodes, ref)
	})
}

// ContextID implements Adapter.
func (c *Compilation) ContextID() ir.ContextID {
	return c.id
}

// CurrentPhase implements Adapter.
func (c *Compilation) CurrentPhase() ir.Phase {
	return c.phase
}

// RegisterHookAtCurrentPhase implements Adapter.
func (c *Compilation) RegisterHookAtCurrentPhase(phase ir.Phase, name string, hook Hook) error {
	ops, err := c.phaseOps(phase)
	if err != nil {
		return err
	}
	ops.fresh = append(ops.fresh, operation{name: name, hook: hook})
	return nil
}

// RegisterHookAtFuturePhase implements Adapter.
func (c *Compilation) RegisterHookAtFuturePhase(phase ir.Phase, name string, hook Hook) error {
	ops, err := c.phaseOps(phase)
	if err != nil {
		return err
	}
	ops.regular = append(ops.regular, operation{name: name, hook: hook})
	return nil
}

func (c *Compilation) phaseOps(phase ir.Phase) (*phaseOperations, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("register hook for %s: %w", phase, ErrInvalidPhase)
	}
	if c.finished {
		return nil, fmt.Errorf("register hook for %s: %w", phase, ErrFinished)
	}
	if c.phase != 0 && phase < c.phase {
		return nil, fmt.Errorf("register hook for %s during %s: %w", phase, c.phase, ErrPhasePassed)
	}
	ops, ok := c.ops[phase]
	if !ok {
		ops = &phaseOperations{}
		c.ops[phase] = ops
	}
	return ops, nil
}

// ApplyToClasses implements Adapter.
func (c *Compilation) ApplyToClasses(src ir.SourceRef, op ClassOperation) error {
	for _, s := range c.sources {
		if s.Ref.Name != src.Name {
			continue
		}
		for _, cls := range s.Classes {
			if err := op(src, cls); err != nil {
				return err
			}
		}
	}
	return nil
}

// AuxiliaryPasses implements Adapter. The returned passes notify observers
// for every class they are applied to.
func (c *Compilation) AuxiliaryPasses(phase ir.Phase) []AuxiliaryPass {
	passes := c.auxiliary[phase]
	wrapped := make([]AuxiliaryPass, len(passes))
	for i, p := range passes {
		wrapped[i] = AuxiliaryPass{
			Name: p.Name,
			Run: func(src ir.SourceRef, class *ir.ClassNode) error {
				for _, o := range c.observers {
					o.ClassApplied(c.phase, p.Name, src, class)
				}
				return p.Run(src, class)
			},
		}
	}
	return wrapped
}

// Run executes every phase in order. It returns the first hook error
// unchanged, or ctx.Err() if the context is cancelled between operations.
// A compilation can run only once.
func (c *Compilation) Run(ctx context.Context) error {
	if c.finished || c.phase != 0 {
		return fmt.Errorf("compilation %s: %w", c.id, ErrFinished)
	}
	defer func() { c.finished = true }()

	for _, phase := range ir.AllPhases() {
		c.phase = phase
		c.logger.Debug("phase starting", "context", c.id, "phase", phase)
		if err := c.runPhase(ctx, phase); err != nil {
			c.logger.Debug("phase aborted", "context", c.id, "phase", phase, "error", err)
			return err
		}
	}
	c.logger.Debug("compilation finished", "context", c.id)
	return nil
}

func (c *Compilation) runPhase(ctx context.Context, phase ir.Phase) error {
	ops, ok := c.ops[phase]
	if !ok {
		return nil
	}

	// A regular operation registered while the "new" operations run is
	// still picked up, so loop until both lists are exhausted.
	ri, fi := 0, 0
	for ri < len(ops.regular) || fi < len(ops.fresh) {
		for ; ri < len(ops.regular); ri++ {
			if err := c.apply(ctx, phase, ops.regular[ri]); err != nil {
				return err
			}
		}
		for ; fi < len(ops.fresh); fi++ {
			if err := c.apply(ctx, phase, ops.fresh[fi]); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply runs one operation over every source.
func (c *Compilation) apply(ctx context.Context, phase ir.Phase, op operation) error {
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, o := range c.observers {
			o.HookInvoked(phase, op.name, s.Ref)
		}
		err := op.hook(s.Ref)
		for _, o := range c.observers {
			o.HookReturned(phase, op.name, s.Ref, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
