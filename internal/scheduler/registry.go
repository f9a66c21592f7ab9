package scheduler

import (
	"sync"

	"github.com/roach88/phasedefer/internal/ir"
)

// Registry maps compilation identities to their ExecutionContext.
//
// Entries are created on demand and removed explicitly; nothing is
// collected implicitly, so an entry that is never removed leaks.
//
// Thread-safety: Get, Lookup, Remove, Has and Len are safe for concurrent
// use from different compilations. The contexts they return are not.
type Registry struct {
	mu       sync.Mutex
	contexts map[ir.ContextID]*ExecutionContext
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[ir.ContextID]*ExecutionContext)}
}

// Get returns the context for id, creating an empty one if absent.
func (r *Registry) Get(id ir.ContextID) *ExecutionContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, ok := r.contexts[id]
	if !ok {
		ctx = newExecutionContext(id)
		r.contexts[id] = ctx
	}
	return ctx
}

// Lookup returns the context for id without creating one.
func (r *Registry) Lookup(id ir.ContextID) (*ExecutionContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, ok := r.contexts[id]
	return ctx, ok
}

// Remove drops the context for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id ir.ContextID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.contexts, id)
}

// Has reports whether a context exists for id.
func (r *Registry) Has(id ir.ContextID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.contexts)
}
