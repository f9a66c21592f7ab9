package testutil

import "github.com/roach88/phasedefer/internal/ir"

// DefaultContextID is used by FixedContextID when no id is given.
const DefaultContextID ir.ContextID = "test-context-default"

// FixedContextID hands out the same context identity on every call.
//
// Scenario runs compile one plan at a time, so a single fixed identity keeps
// journaled runs and golden traces byte-identical across runs. Do not share
// it between concurrent compilations: the scheduler keys state by identity.
//
// Thread-safety: FixedContextID is immutable and safe for concurrent use.
type FixedContextID struct {
	id ir.ContextID
}

// NewFixedContextID creates a generator for id, or DefaultContextID if id
// is empty. Scenario YAML usually sets it:
//
//	context_id: "ctx-canonicalization-order"
func NewFixedContextID(id ir.ContextID) *FixedContextID {
	if id == "" {
		id = DefaultContextID
	}
	return &FixedContextID{id: id}
}

// Generate returns the fixed identity. Implements engine.ContextIDGenerator.
func (g *FixedContextID) Generate() ir.ContextID {
	return g.id
}
