package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/scheduler"
)

// sampleTrace is a canonicalization run of units A(10) and B(5).
func sampleTrace() []ir.TraceEvent {
	c := ir.PhaseCanonicalization
	return []ir.TraceEvent{
		{Seq: 1, Kind: ir.TraceVisit, Phase: c, Unit: "A", Priority: 10},
		{Seq: 2, Kind: ir.TraceDefer, Phase: c, Unit: "A", Priority: 10},
		{Seq: 3, Kind: ir.TraceVisit, Phase: c, Unit: "B", Priority: 5},
		{Seq: 4, Kind: ir.TraceDefer, Phase: c, Unit: "B", Priority: 5},
		{Seq: 5, Kind: ir.TraceHook, Phase: c, Detail: "execute"},
		{Seq: 6, Kind: ir.TraceDeferredVisit, Phase: c, Unit: "B", Priority: 5},
		{Seq: 7, Kind: ir.TraceDeferredVisit, Phase: c, Unit: "A", Priority: 10},
		{Seq: 8, Kind: ir.TraceAuxiliary, Phase: c, Class: "Shape", Detail: "enum_completion"},
		{Seq: 9, Kind: ir.TraceFinalize, Phase: ir.PhaseFinalization},
	}
}

func TestLabel(t *testing.T) {
	tr := sampleTrace()
	assert.Equal(t, []string{
		"visit:A", "defer:A", "visit:B", "defer:B",
		"hook@canonicalization",
		"deferred_visit:B", "deferred_visit:A",
		"auxiliary:enum_completion/Shape",
		"finalize@finalization",
	}, Labels(tr))
	assert.Equal(t, "failure:", Label(ir.TraceEvent{Kind: ir.TraceFailure}))
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		events  []string
		wantErr string
	}{
		{"in order with gaps", []string{"defer:A", "hook@canonicalization", "deferred_visit:A"}, ""},
		{"single", []string{"finalize@finalization"}, ""},
		{"wrong order", []string{"deferred_visit:A", "deferred_visit:B"}, "deferred_visit:B not found after deferred_visit:A (pos 7)"},
		{"missing", []string{"hook@output"}, "missing event: hook@output"},
		{"repeated label needs repeats", []string{"visit:A", "visit:A"}, "not found after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	tr := sampleTrace()
	assert.NoError(t, assertTraceCount(tr, Assertion{Event: "deferred_visit:A", Count: 1}))
	assert.NoError(t, assertTraceCount(tr, Assertion{Kind: "defer", Count: 2}))
	assert.NoError(t, assertTraceCount(tr, Assertion{Kind: "failure", Count: 0}))

	err := assertTraceCount(tr, Assertion{Kind: "visit", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of kind visit")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
}

func TestAssertHookCount(t *testing.T) {
	tr := sampleTrace()
	assert.NoError(t, assertHookCount(tr, Assertion{Phase: "canonicalization", Count: 1}))
	assert.NoError(t, assertHookCount(tr, Assertion{Phase: "output", Count: 0}))

	err := assertHookCount(tr, Assertion{Phase: "canonicalization", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 execute hooks")
}

func TestAssertFailure(t *testing.T) {
	failed := &Result{
		Failure: "compilation failed in canonicalization at A.src (Shape): B: cannot rename",
		Trace: append(sampleTrace()[:6], ir.TraceEvent{
			Seq: 7, Kind: ir.TraceFailure, Phase: ir.PhaseCanonicalization,
			Unit: "B", Class: "Shape", Detail: "cannot rename",
		}),
	}

	assert.NoError(t, assertFailure(failed, Assertion{}))
	assert.NoError(t, assertFailure(failed, Assertion{Unit: "B", Class: "Shape", Phase: "Canonicalization", Message: "rename"}))

	err := assertFailure(failed, Assertion{Unit: "A", Message: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unit "B" != "A"`)
	assert.Contains(t, err.Error(), `does not contain "missing"`)

	err = assertFailure(failed, Assertion{Phase: "output"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phase canonicalization != output")

	err = assertFailure(&Result{Trace: sampleTrace()}, Assertion{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation succeeded")
}

func TestAssertAuxAfter(t *testing.T) {
	assert.NoError(t, assertAuxAfter(sampleTrace(), Assertion{Pass: "enum_completion"}))
	assert.NoError(t, assertAuxAfter(sampleTrace(), Assertion{Pass: "enum_completion", Unit: "B"}))

	err := assertAuxAfter(sampleTrace(), Assertion{Pass: "static_verifier"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass never ran")

	err = assertAuxAfter(sampleTrace(), Assertion{Pass: "enum_completion", Unit: "Z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deferred visit in phase")

	// A pass that ran before the batch finished.
	early := sampleTrace()
	early[6], early[7] = early[7], early[6]
	err = assertAuxAfter(early, Assertion{Pass: "enum_completion"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enum_completion ran at pos 7")
}

func TestAssertClassMembers(t *testing.T) {
	result := &Result{Classes: []ir.ClassNode{{Name: "Shape", Members: []string{"name", "area"}}}}

	assert.NoError(t, assertClassMembers(result, Assertion{Class: "Shape", Members: []string{"name", "area"}}))

	err := assertClassMembers(result, Assertion{Class: "Shape", Members: []string{"area", "name"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "members [name area]")

	err = assertClassMembers(result, Assertion{Class: "Color"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class not found")
}

func TestAssertRegistryEmpty(t *testing.T) {
	sched := scheduler.New()
	assert.NoError(t, assertRegistryEmpty(sched, "ctx-1"))

	release := sched.Acquire("ctx-1")
	err := assertRegistryEmpty(sched, "ctx-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still registered with 0 pending")

	release()
	assert.NoError(t, assertRegistryEmpty(sched, "ctx-1"))
}

func TestEvaluateAssertions_RequiresContext(t *testing.T) {
	result := NewResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertRegistryEmpty},
		{Type: AssertJournal, Status: "succeeded"},
		{Type: "final_state"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "requires a scheduler")
	assert.Contains(t, errs[1], "requires database context")
	assert.Contains(t, errs[2], "unknown assertion type")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of visit:A",
		Actual:   "1 occurrences",
		Trace:    sampleTrace()[:2],
	}
	assert.Equal(t, "Assertion failed: trace_count\n"+
		"  Expected: 2 occurrences of visit:A\n"+
		"  Actual: 1 occurrences\n"+
		"\nFull trace:\n"+
		"  [1] visit:A\n"+
		"  [2] defer:A\n", err.Error())
}
