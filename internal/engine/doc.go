// Package engine compiles plans on the reference pipeline with deferred
// transformation units.
//
// A plan declares sources, their class-like units and transformation units
// triggered in a given phase. Compile builds a pipeline.Compilation from the
// plan, registers one transform per unit and runs every phase. Units defer
// their work through the shared scheduler.Scheduler, so within a phase all
// deferred work runs as one batch in priority order, followed by the host's
// auxiliary passes.
//
// TRACE:
//
// Every compilation produces a trace stamped by a logical clock (never
// wall-clock time): unit visits and deferrals, scheduler hooks, deferred
// visits, auxiliary passes per class, finalization and the failure that
// aborted the run, if any. Two runs of the same plan produce the same trace
// and the same digest; replay relies on this.
//
// Each compilation is also an OpenTelemetry span; trace events are added to
// it as span events.
//
// FAILURES:
//
// A pipeline.CompilationFailure raised by a unit or an auxiliary pass ends
// the compilation. It is reported unchanged in Result.Err and journaled as a
// failed run. Compile itself only fails for plans that cannot be built,
// journal errors and cancellation.
package engine
