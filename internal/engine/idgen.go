package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/phasedefer/internal/ir"
)

// ContextIDGenerator allocates the identity of each compilation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type ContextIDGenerator interface {
	Generate() ir.ContextID
}

// UUIDv7Generator generates time-sortable UUIDv7 context identities.
//
// UUIDv7 embeds a timestamp in the most significant bits, so journaled runs
// sort by creation time when listed by id.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 in hyphenated form.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() ir.ContextID {
	return ir.ContextID(uuid.Must(uuid.NewV7()).String())
}

// FixedGenerator returns predetermined context identities for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []ir.ContextID
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("ctx-1", "ctx-2")
//	gen.Generate() // "ctx-1"
//	gen.Generate() // "ctx-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...ir.ContextID) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed: the test compiled more plans than
// it configured.
func (g *FixedGenerator) Generate() ir.ContextID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("FixedGenerator: all %d ids exhausted", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
