// Package scheduler defers transformation work from the phase a unit is
// triggered in to a single, priority-ordered batch that runs later in that
// phase.
//
// Guarantees, per compilation context:
//   - each deferred invocation runs at most once
//   - all invocations pending when a phase's hook fires run in one batch,
//     ascending priority, ties in arrival order
//   - the execute hook is registered at most once per phase, however many
//     units defer into it
//   - auxiliary passes of SemanticAnalysis and Canonicalization are
//     registered right after the execute hook, so they run after the batch
//   - a finalize hook at the terminal phase removes the context, so a later
//     compilation with the same identity starts clean
//
// Failure policy is fail-fast: the first failing invocation's error is
// returned unchanged, the rest of the batch does not run and the pending
// set is not cleared. There is no retry.
//
// Usage:
//
//	s := scheduler.New()
//	release := s.Acquire(compilation.ContextID())
//	defer release()
//	compilation.AddTransform(phase, "unit", src, s.Visitor(unit), nodes)
//	err := compilation.Run(ctx)
package scheduler
