// Package harness provides conformance testing for deferred scheduling.
//
// A scenario compiles one plan through the engine under a fixed context
// identity and a deterministic clock, then asserts on the resulting trace,
// the final class state, the scheduler registry and the run journal.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: canonicalization_order
//	description: "Deferred units run in priority order after canonicalization"
//	plan: ../plans/shapes        # CUE plan directory, or:
//	plan_inline:
//	  name: shapes
//	  sources:
//	    - name: Shapes.src
//	      classes:
//	        - {name: Shape, kind: class}
//	  units:
//	    - {name: A, priority: 10, phase: canonicalization, source: Shapes.src, target: Shape, member: area}
//	context_id: ctx-canonicalization
//	assertions:
//	  - type: trace_order
//	    events: [hook@canonicalization, deferred_visit:A, auxiliary:enum_completion/Shape]
//	  - type: registry_empty
//
// # Assertion Types
//
//   - trace_order: events (see Label) appear in the given order
//   - trace_count: an event label or kind appears exactly N times
//   - hook_count: the execute hook ran N times in a phase
//   - failure: the compilation failed with the given unit, class, phase or message
//   - aux_after: an auxiliary pass ran after the phase's deferred work
//   - registry_empty: the scheduler holds no state for the context
//   - class_members: a class ends with exactly the given members
//   - journal: the run was journaled with a status and the same trace digest
//
// # Deterministic Testing
//
// The harness uses:
//   - Fixed context identities (testutil.FixedContextID)
//   - A deterministic logical clock (testutil.DeterministicClock)
//   - An in-memory SQLite journal (isolated per scenario)
//
// This ensures identical traces across runs for golden file comparison.
package harness
