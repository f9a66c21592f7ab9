package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/phasedefer/internal/ir"
)

var (
	// ErrPhasePassed is returned when a hook is registered for a phase the
	// compilation has already completed.
	ErrPhasePassed = errors.New("phase already passed")

	// ErrFinished is returned when a hook is registered after the
	// compilation finished running.
	ErrFinished = errors.New("compilation finished")

	// ErrInvalidPhase is returned for registrations outside the phase range.
	ErrInvalidPhase = errors.New("invalid phase")
)

// CompilationFailure is the single failure kind of a compilation. It is
// raised by a transformation unit's work or by an auxiliary pass and is
// fatal for the compilation that raised it.
type CompilationFailure struct {
	Phase   ir.Phase
	Source  string
	Unit    string // transformation unit, empty for auxiliary passes
	Class   string
	Message string
}

// Error implements the error interface.
func (f *CompilationFailure) Error() string {
	loc := f.Source
	if f.Class != "" {
		loc = fmt.Sprintf("%s (%s)", f.Source, f.Class)
	}
	if f.Unit != "" {
		return fmt.Sprintf("compilation failed in %s at %s: %s: %s", f.Phase, loc, f.Unit, f.Message)
	}
	return fmt.Sprintf("compilation failed in %s at %s: %s", f.Phase, loc, f.Message)
}

// IsCompilationFailure reports whether err is or wraps a CompilationFailure.
func IsCompilationFailure(err error) bool {
	var f *CompilationFailure
	return errors.As(err, &f)
}
