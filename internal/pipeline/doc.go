// Package pipeline is the host side of phased compilation: the phase and
// hook registration surface (Adapter) the scheduler consumes, and a
// reference host (Compilation) that runs sources through the phases.
//
// Phase execution:
//  1. Regular operations of the phase, in registration order. These are
//     registered before the phase starts (transforms, future hooks).
//  2. "New" operations of the phase, in registration order. These are
//     registered at the current phase, usually by work running in it.
//
// Each operation is applied to every source before the next operation
// runs. The first error aborts the compilation.
//
// The auxiliary passes (static verifier, inner-class and enum completion)
// are supplied by the host; callers only decide when they are registered.
package pipeline
