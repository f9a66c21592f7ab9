package engine

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/pipeline"
	"github.com/roach88/phasedefer/internal/scheduler"
)

// recorder builds the trace of one compilation. It observes the pipeline
// for scheduler hooks and auxiliary passes; units record their own visits.
// Every execute hook becomes a batch span under the compilation span.
//
// A recorder belongs to a single compilation and is not locked.
type recorder struct {
	ctx    context.Context // carries the compilation span
	id     ir.ContextID
	tracer trace.Tracer
	clock  Sequencer
	span   trace.Span
	events []ir.TraceEvent

	batch     trace.Span // open while an execute hook runs
	batchSize int
}

var _ pipeline.Observer = (*recorder)(nil)

func newRecorder(ctx context.Context, id ir.ContextID, tracer trace.Tracer, clock Sequencer) *recorder {
	return &recorder{
		ctx:    ctx,
		id:     id,
		tracer: tracer,
		clock:  clock,
		span:   trace.SpanFromContext(ctx),
	}
}

func (r *recorder) record(ev ir.TraceEvent) {
	ev.Seq = r.clock.Next()
	r.events = append(r.events, ev)
	if r.batch != nil && ev.Kind == ir.TraceDeferredVisit {
		r.batchSize++
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("phasedefer.seq", ev.Seq),
		attribute.String("phasedefer.phase", ev.Phase.String()),
	}
	if ev.Unit != "" {
		attrs = append(attrs, attribute.String("phasedefer.unit", ev.Unit))
	}
	if ev.Class != "" {
		attrs = append(attrs, attribute.String("phasedefer.class", ev.Class))
	}
	r.span.AddEvent(string(ev.Kind), trace.WithAttributes(attrs...))
}

// HookInvoked implements pipeline.Observer.
func (r *recorder) HookInvoked(phase ir.Phase, name string, src ir.SourceRef) {
	switch {
	case name == scheduler.HookExecute:
		r.record(ir.TraceEvent{Kind: ir.TraceHook, Phase: phase, Source: src.Name, Detail: "execute"})
		_, r.batch = r.tracer.Start(r.ctx, "phasedefer.batch", trace.WithAttributes(
			attribute.String("phasedefer.context", string(r.id)),
			attribute.String("phasedefer.phase", phase.String()),
			attribute.String("phasedefer.source", src.Name),
		))
		r.batchSize = 0
	case name == scheduler.HookFinalize:
		r.record(ir.TraceEvent{Kind: ir.TraceFinalize, Phase: phase, Source: src.Name})
	case strings.HasPrefix(name, scheduler.HookAuxiliaryPrefix):
		// Recorded per class by ClassApplied.
	}
}

// HookReturned implements pipeline.Observer. It closes the batch span of an
// execute hook.
func (r *recorder) HookReturned(_ ir.Phase, name string, _ ir.SourceRef, err error) {
	if name != scheduler.HookExecute || r.batch == nil {
		return
	}
	r.batch.SetAttributes(attribute.Int("phasedefer.batch.size", r.batchSize))
	if err != nil {
		r.batch.RecordError(err)
		r.batch.SetStatus(codes.Error, err.Error())
	}
	r.batch.End()
	r.batch = nil
}

// ClassApplied implements pipeline.Observer.
func (r *recorder) ClassApplied(phase ir.Phase, pass string, src ir.SourceRef, class *ir.ClassNode) {
	r.record(ir.TraceEvent{
		Kind:   ir.TraceAuxiliary,
		Phase:  phase,
		Source: src.Name,
		Class:  class.Name,
		Detail: pass,
	})
}

// failure records the error that aborted the compilation.
func (r *recorder) failure(current ir.Phase, err error) {
	ev := ir.TraceEvent{Kind: ir.TraceFailure, Phase: current, Detail: err.Error()}
	var f *pipeline.CompilationFailure
	if errors.As(err, &f) {
		if f.Phase.Valid() {
			ev.Phase = f.Phase
		}
		ev.Unit = f.Unit
		ev.Source = f.Source
		ev.Class = f.Class
		ev.Detail = f.Message
	}
	r.record(ev)
}

func (r *recorder) trace() []ir.TraceEvent {
	out := make([]ir.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
