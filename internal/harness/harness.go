package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/phasedefer/internal/compiler"
	"github.com/roach88/phasedefer/internal/engine"
	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/store"
	"github.com/roach88/phasedefer/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database and a fresh scheduler
// for isolation. A fixed context identity and a deterministic clock make
// the trace reproducible for golden comparison.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and validate the plan
// 3. Compile it through the engine, journaling the run
// 4. Evaluate assertions against trace, classes, scheduler and journal
//
// An error is returned only when the scenario cannot run; failed
// assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	plan, err := scenario.LoadPlan()
	if err != nil {
		return nil, err
	}
	if verrs := compiler.ValidatePlan(plan); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, verr := range verrs {
			errs[i] = verr
		}
		return nil, fmt.Errorf("plan %s is invalid: %w", plan.Name, errors.Join(errs...))
	}

	eng := engine.New(
		engine.WithStore(st),
		engine.WithIDGenerator(testutil.NewFixedContextID(ir.ContextID(scenario.ContextID))),
		engine.WithClock(func() engine.Sequencer { return testutil.NewDeterministicClock() }),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)

	ctx := context.Background()
	res, err := eng.Compile(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", plan.Name, err)
	}

	result := NewResult()
	result.ContextID = res.ContextID
	result.Plan = res.Plan
	result.Trace = res.Trace
	result.Digest = res.Digest
	result.Classes = res.Classes
	if res.Err != nil {
		result.Failure = res.Err.Error()
		if !expectsFailure(scenario.Assertions) {
			result.AddError(fmt.Sprintf("unexpected compilation failure: %v", res.Err))
		}
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Store:     st,
		Scheduler: eng.Scheduler(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func expectsFailure(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertFailure {
			return true
		}
	}
	return false
}
