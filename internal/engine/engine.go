package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/pipeline"
	"github.com/roach88/phasedefer/internal/scheduler"
	"github.com/roach88/phasedefer/internal/store"
)

// TracerName is the instrumentation name of the engine's spans.
const TracerName = "github.com/roach88/phasedefer/internal/engine"

// Engine compiles plans on the reference pipeline, deferring unit work
// through a shared Scheduler.
//
// Each Compile allocates a fresh ContextID, so compilations never observe
// each other's scheduling state even though they share the scheduler.
//
// Thread-safety model:
//   - Compile, CompileAll: safe from any goroutine
//   - one compilation is driven by exactly one goroutine
type Engine struct {
	scheduler *scheduler.Scheduler
	store     *store.Store
	idGen     ContextIDGenerator
	newClock  func() Sequencer
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithStore journals every run to s. Default: no journal.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithScheduler sets the scheduler. Default: a new scheduler sharing the
// engine's logger.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithIDGenerator sets the context identity generator. Default: UUIDv7.
func WithIDGenerator(g ContextIDGenerator) Option {
	return func(e *Engine) {
		e.idGen = g
	}
}

// WithClock sets the factory for the per-run trace clock. Default: NewClock.
func WithClock(newClock func() Sequencer) Option {
	return func(e *Engine) {
		e.newClock = newClock
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTracer sets the OpenTelemetry tracer. Default: the global provider's
// tracer named TracerName.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		idGen:    UUIDv7Generator{},
		newClock: func() Sequencer { return NewClock() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scheduler == nil {
		e.scheduler = scheduler.New(scheduler.WithLogger(e.logger))
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(TracerName)
	}
	return e
}

// Scheduler returns the engine's scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Result is the outcome of one compilation.
type Result struct {
	ContextID ir.ContextID
	Plan      string
	Trace     []ir.TraceEvent
	Digest    string        // ir.TraceDigest of Trace
	Classes   []ir.ClassNode // final class state, in source order
	Err       error          // compilation failure, nil on success
}

// Succeeded reports whether the compilation ran to completion.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Compile runs plan through every pipeline phase.
//
// A compilation failure does not make Compile fail: it is returned in
// Result.Err, unchanged, with the trace up to and including the failure.
// The returned error is a *RuntimeError when the plan cannot be built or
// the run cannot be journaled, or ctx.Err() when ctx is cancelled.
func (e *Engine) Compile(ctx context.Context, plan *ir.Plan) (*Result, error) {
	if plan == nil {
		return nil, NewInvalidPlanError("", "nil plan", nil)
	}

	id := e.idGen.Generate()
	ctx, span := e.tracer.Start(ctx, "phasedefer.compile", trace.WithAttributes(
		attribute.String("phasedefer.plan", plan.Name),
		attribute.String("phasedefer.context", string(id)),
	))
	defer span.End()

	rec := newRecorder(ctx, id, e.tracer, e.newClock())
	c, err := e.build(id, plan, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	runErr := e.run(ctx, c)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return nil, runErr
	}
	if runErr != nil {
		rec.failure(c.CurrentPhase(), runErr)
	}

	events := rec.trace()
	digest, err := ir.TraceDigest(events)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", plan.Name, err)
	}

	res := &Result{
		ContextID: id,
		Plan:      plan.Name,
		Trace:     events,
		Digest:    digest,
		Classes:   snapshotClasses(c),
		Err:       runErr,
	}

	span.SetAttributes(
		attribute.Int("phasedefer.trace.events", len(events)),
		attribute.String("phasedefer.trace.digest", digest),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		e.logger.Warn("compilation failed", "context", id, "plan", plan.Name, "error", runErr)
	} else {
		span.SetStatus(codes.Ok, "")
		e.logger.Info("compilation finished", "context", id, "plan", plan.Name, "events", len(events))
	}

	if e.store != nil {
		if err := e.journal(ctx, plan, res); err != nil {
			span.RecordError(err)
			return res, err
		}
	}
	return res, nil
}

// build turns a plan into a compilation with one transform per unit.
func (e *Engine) build(id ir.ContextID, plan *ir.Plan, rec *recorder) (*pipeline.Compilation, error) {
	c := pipeline.NewCompilation(id,
		pipeline.WithLogger(e.logger),
		pipeline.WithObserver(rec),
	)

	for _, src := range plan.Sources {
		classes := make([]*ir.ClassNode, len(src.Classes))
		for i, cls := range src.Classes {
			classes[i] = &ir.ClassNode{
				Name:    cls.Name,
				Kind:    cls.Kind,
				Outer:   cls.Outer,
				Members: slices.Clone(cls.Members),
			}
		}
		c.AddSource(src.Name, classes...)
	}

	for _, spec := range plan.Units {
		u := &planUnit{spec: spec, compilation: c, scheduler: e.scheduler, rec: rec}
		nodes := ir.NodeSet{{Kind: "class", Name: spec.Target}}
		if err := c.AddTransform(spec.Phase, spec.Name, spec.Source, u, nodes); err != nil {
			return nil, NewInvalidPlanError(plan.Name, fmt.Sprintf("unit %q", spec.Name), err)
		}
	}
	return c, nil
}

// run drives the pipeline inside a scheduler scope, so the context is
// released even when the compilation aborts before the terminal phase.
func (e *Engine) run(ctx context.Context, c *pipeline.Compilation) error {
	release := e.scheduler.Acquire(c.ContextID())
	defer release()
	return c.Run(ctx)
}

func (e *Engine) journal(ctx context.Context, plan *ir.Plan, res *Result) error {
	planDigest, err := ir.PlanDigest(plan)
	if err != nil {
		return NewJournalError(plan.Name, err)
	}
	run := store.Run{
		ContextID:     res.ContextID,
		Plan:          *plan,
		PlanDigest:    planDigest,
		Status:        store.RunSucceeded,
		TraceDigest:   res.Digest,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if res.Err != nil {
		run.Status = store.RunFailed
		run.Error = res.Err.Error()
	}
	if err := e.store.WriteRun(ctx, run, res.Trace); err != nil {
		return NewJournalError(plan.Name, err)
	}
	return nil
}

// CompileAll compiles plans concurrently, at most limit at a time (no limit
// when limit <= 0). Results are returned in plan order. The first runtime
// error cancels the remaining compilations and is returned.
func (e *Engine) CompileAll(ctx context.Context, plans []*ir.Plan, limit int) ([]*Result, error) {
	results := make([]*Result, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, plan := range plans {
		g.Go(func() error {
			res, err := e.Compile(gctx, plan)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func snapshotClasses(c *pipeline.Compilation) []ir.ClassNode {
	var out []ir.ClassNode
	for _, s := range c.Sources() {
		for _, cls := range s.Classes {
			cp := *cls
			cp.Members = slices.Clone(cls.Members)
			out = append(out, cp)
		}
	}
	return out
}
