package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/scheduler"
	"github.com/roach88/phasedefer/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []ir.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, Label(event))
		}
	}

	return buf.String()
}

// Label renders a trace event the way scenarios refer to it:
//
//	visit:A  defer:A  deferred_visit:A  failure:A
//	hook@canonicalization  finalize@finalization
//	auxiliary:enum_completion/Color
func Label(ev ir.TraceEvent) string {
	switch ev.Kind {
	case ir.TraceHook, ir.TraceFinalize:
		return fmt.Sprintf("%s@%s", ev.Kind, ev.Phase)
	case ir.TraceAuxiliary:
		return fmt.Sprintf("%s:%s/%s", ev.Kind, ev.Detail, ev.Class)
	default:
		return fmt.Sprintf("%s:%s", ev.Kind, ev.Unit)
	}
}

// Labels renders every event of a trace with Label.
func Labels(trace []ir.TraceEvent) []string {
	out := make([]string, len(trace))
	for i, ev := range trace {
		out[i] = Label(ev)
	}
	return out
}

// assertTraceOrder checks that the events appear in the given order.
// Events don't need to be consecutive (intervening events are allowed),
// and a repeated label must appear as many times as it is listed.
func assertTraceOrder(trace []ir.TraceEvent, assertion Assertion) error {
	next := 0
	lastPos := 0
	for i, ev := range trace {
		if next == len(assertion.Events) {
			break
		}
		if Label(ev) == assertion.Events[next] {
			next++
			lastPos = i + 1
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	missing := assertion.Events[next]
	actual := fmt.Sprintf("missing event: %s", missing)
	if next > 0 {
		actual = fmt.Sprintf("%s not found after %s (pos %d)", missing, assertion.Events[next-1], lastPos)
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertTraceCount checks that an event label, or a kind when no label is
// given, appears exactly the specified number of times.
func assertTraceCount(trace []ir.TraceEvent, assertion Assertion) error {
	count := 0
	what := assertion.Event
	for _, ev := range trace {
		if assertion.Event != "" {
			if Label(ev) == assertion.Event {
				count++
			}
			continue
		}
		what = "kind " + assertion.Kind
		if string(ev.Kind) == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertHookCount checks how often the execute hook ran in a phase. The
// pipeline invokes a hook once per source, so a phase with deferred work
// counts one hook event per source.
func assertHookCount(trace []ir.TraceEvent, assertion Assertion) error {
	phase, err := ir.ParsePhase(assertion.Phase)
	if err != nil {
		return err
	}
	count := 0
	for _, ev := range trace {
		if ev.Kind == ir.TraceHook && ev.Phase == phase {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertHookCount,
			Expected: fmt.Sprintf("%d execute hooks in %s", assertion.Count, phase),
			Actual:   fmt.Sprintf("%d execute hooks", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFailure checks that the compilation failed, and that the recorded
// failure matches every field the assertion sets.
func assertFailure(result *Result, assertion Assertion) error {
	var failure *ir.TraceEvent
	for i := range result.Trace {
		if result.Trace[i].Kind == ir.TraceFailure {
			failure = &result.Trace[i]
		}
	}
	if failure == nil || result.Failure == "" {
		return &AssertionError{
			Type:     AssertFailure,
			Expected: "compilation failure",
			Actual:   "compilation succeeded",
			Trace:    result.Trace,
		}
	}

	var mismatches []string
	if assertion.Unit != "" && failure.Unit != assertion.Unit {
		mismatches = append(mismatches, fmt.Sprintf("unit %q != %q", failure.Unit, assertion.Unit))
	}
	if assertion.Class != "" && failure.Class != assertion.Class {
		mismatches = append(mismatches, fmt.Sprintf("class %q != %q", failure.Class, assertion.Class))
	}
	if assertion.Phase != "" {
		phase, err := ir.ParsePhase(assertion.Phase)
		if err != nil {
			return err
		}
		if failure.Phase != phase {
			mismatches = append(mismatches, fmt.Sprintf("phase %s != %s", failure.Phase, phase))
		}
	}
	if assertion.Message != "" && !strings.Contains(failure.Detail, assertion.Message) {
		mismatches = append(mismatches, fmt.Sprintf("message %q does not contain %q", failure.Detail, assertion.Message))
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFailure,
			Expected: fmt.Sprintf("failure unit=%q class=%q phase=%q message~%q", assertion.Unit, assertion.Class, assertion.Phase, assertion.Message),
			Actual:   strings.Join(mismatches, "; "),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertAuxAfter checks that every run of an auxiliary pass comes after the
// last deferred visit of its phase, or of Unit when one is named.
func assertAuxAfter(trace []ir.TraceEvent, assertion Assertion) error {
	firstAux := -1
	var phase ir.Phase
	for i, ev := range trace {
		if ev.Kind == ir.TraceAuxiliary && ev.Detail == assertion.Pass {
			firstAux = i
			phase = ev.Phase
			break
		}
	}
	if firstAux < 0 {
		return &AssertionError{
			Type:     AssertAuxAfter,
			Expected: fmt.Sprintf("auxiliary pass %s in trace", assertion.Pass),
			Actual:   "pass never ran",
			Trace:    trace,
		}
	}

	lastVisit := -1
	for i, ev := range trace {
		if ev.Kind != ir.TraceDeferredVisit || ev.Phase != phase {
			continue
		}
		if assertion.Unit != "" && ev.Unit != assertion.Unit {
			continue
		}
		lastVisit = i
	}
	if lastVisit < 0 {
		return &AssertionError{
			Type:     AssertAuxAfter,
			Expected: fmt.Sprintf("deferred work in %s before %s", phase, assertion.Pass),
			Actual:   "no deferred visit in phase",
			Trace:    trace,
		}
	}
	if firstAux < lastVisit {
		return &AssertionError{
			Type:     AssertAuxAfter,
			Expected: fmt.Sprintf("%s after deferred visit (pos %d)", assertion.Pass, lastVisit+1),
			Actual:   fmt.Sprintf("%s ran at pos %d", assertion.Pass, firstAux+1),
			Trace:    trace,
		}
	}
	return nil
}

// assertRegistryEmpty checks that the scheduler released the context.
func assertRegistryEmpty(sched *scheduler.Scheduler, id ir.ContextID) error {
	if sched.Registry().Has(id) {
		ctx, _ := sched.Registry().Lookup(id)
		return &AssertionError{
			Type:     AssertRegistryEmpty,
			Expected: fmt.Sprintf("no scheduler state for %s", id),
			Actual:   fmt.Sprintf("context still registered with %d pending", ctx.PendingLen()),
		}
	}
	return nil
}

// assertClassMembers checks a class's final member list, in order.
func assertClassMembers(result *Result, assertion Assertion) error {
	class, ok := result.Class(assertion.Class)
	if !ok {
		return &AssertionError{
			Type:     AssertClassMembers,
			Expected: fmt.Sprintf("class %s", assertion.Class),
			Actual:   "class not found",
		}
	}
	if !slices.Equal(class.Members, assertion.Members) {
		return &AssertionError{
			Type:     AssertClassMembers,
			Expected: fmt.Sprintf("%s members %v", assertion.Class, assertion.Members),
			Actual:   fmt.Sprintf("members %v", class.Members),
		}
	}
	return nil
}

// assertJournal checks the journaled run against the result: its status,
// and a stored trace with the same digest.
func assertJournal(ctx context.Context, st *store.Store, result *Result, assertion Assertion) error {
	run, err := st.ReadRun(ctx, result.ContextID)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("journaled run %s", result.ContextID),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	if string(run.Status) != assertion.Status {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("status %s", assertion.Status),
			Actual:   fmt.Sprintf("status %s", run.Status),
		}
	}

	stored, err := st.ReadTrace(ctx, result.ContextID)
	if err != nil {
		return fmt.Errorf("read journaled trace: %w", err)
	}
	digest, err := ir.TraceDigest(stored)
	if err != nil {
		return fmt.Errorf("digest journaled trace: %w", err)
	}
	if digest != result.Digest || run.TraceDigest != result.Digest {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("journaled trace digest %s", result.Digest),
			Actual:   fmt.Sprintf("stored %s, recomputed %s", run.TraceDigest, digest),
		}
	}
	return nil
}

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Ctx       context.Context
	Store     *store.Store
	Scheduler *scheduler.Scheduler
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertHookCount:
			err = assertHookCount(result.Trace, assertion)
		case AssertFailure:
			err = assertFailure(result, assertion)
		case AssertAuxAfter:
			err = assertAuxAfter(result.Trace, assertion)
		case AssertClassMembers:
			err = assertClassMembers(result, assertion)
		case AssertRegistryEmpty:
			if actx == nil || actx.Scheduler == nil {
				err = fmt.Errorf("assertion[%d]: registry_empty requires a scheduler", i)
			} else {
				err = assertRegistryEmpty(actx.Scheduler, result.ContextID)
			}
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires database context", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
