package harness

import "github.com/roach88/phasedefer/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// ContextID is the identity the compilation ran under.
	ContextID ir.ContextID `json:"context_id"`

	// Plan is the name of the compiled plan.
	Plan string `json:"plan"`

	// Trace contains every trace event of the compilation in seq order.
	// Used for trace assertions and golden comparison.
	Trace []ir.TraceEvent `json:"trace"`

	// Digest is ir.TraceDigest of Trace.
	Digest string `json:"digest"`

	// Failure is the compilation failure message, empty on success.
	Failure string `json:"failure,omitempty"`

	// Classes is the final class state, in source order.
	Classes []ir.ClassNode `json:"classes"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []ir.TraceEvent{},
		Classes: []ir.ClassNode{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Class returns the final state of the named class.
func (r *Result) Class(name string) (ir.ClassNode, bool) {
	for _, c := range r.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return ir.ClassNode{}, false
}
