package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/phasedefer/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrPlanNameEmpty     = "E101" // plan name is required
	ErrPlanNoSources     = "E102" // at least one source required
	ErrDuplicateName     = "E103" // duplicate source/class/unit name
	ErrInvalidClassKind  = "E104" // unknown class kind
	ErrInvalidPhase      = "E105" // unit phase outside the pipeline
	ErrUnknownSource     = "E106" // unit refers to an undeclared source
	ErrUnknownTarget     = "E107" // unit target class not declared
	ErrInvalidOuter      = "E108" // inner class without a declared outer class
	ErrOuterCycle        = "E109" // outer-class chain loops back on itself
	ErrTerminalDeferral  = "E110" // deferring unit triggered in the terminal phase
	ErrMemberWithFailure = "E111" // unit declares both member and fail
)

// ValidationError represents a plan validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidatePlan validates a compiled plan.
// Returns all errors found (does not fail-fast).
func ValidatePlan(p *ir.Plan) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "plan name is required and must be non-empty",
			Code:    ErrPlanNameEmpty,
		})
	}

	if len(p.Sources) == 0 {
		errs = append(errs, ValidationError{
			Field:   "sources",
			Message: "at least one source is required",
			Code:    ErrPlanNoSources,
		})
	}

	errs = append(errs, validateSources(p)...)
	errs = append(errs, validateUnits(p)...)

	for _, cycle := range outerCycles(p) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("classes.%s.outer", cycle[0]),
			Message: fmt.Sprintf("outer class cycle: %s", strings.Join(cycle, " -> ")),
			Code:    ErrOuterCycle,
		})
	}

	return errs
}

func validateSources(p *ir.Plan) []ValidationError {
	var errs []ValidationError
	sourceNames := make(map[string]bool)
	classNames := make(map[string]bool)

	for i, src := range p.Sources {
		if sourceNames[src.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sources[%d].name", i),
				Message: fmt.Sprintf("duplicate source name: %q", src.Name),
				Code:    ErrDuplicateName,
			})
		}
		sourceNames[src.Name] = true

		for j, cls := range src.Classes {
			field := fmt.Sprintf("sources[%d].classes[%d]", i, j)

			// Class names are global: units and outer references resolve
			// them across sources.
			if classNames[cls.Name] {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("duplicate class name: %q", cls.Name),
					Code:    ErrDuplicateName,
				})
			}
			classNames[cls.Name] = true

			if !ir.ValidClassKinds[cls.Kind] {
				errs = append(errs, ValidationError{
					Field:   field + ".kind",
					Message: fmt.Sprintf("invalid class kind %q, must be class, interface, enum or inner", cls.Kind),
					Code:    ErrInvalidClassKind,
				})
			}

			if cls.Kind == ir.ClassKindInner {
				if _, ok := p.Class(cls.Outer); !ok || cls.Outer == "" {
					errs = append(errs, ValidationError{
						Field:   field + ".outer",
						Message: fmt.Sprintf("inner class %q needs a declared outer class, got %q", cls.Name, cls.Outer),
						Code:    ErrInvalidOuter,
					})
				}
			}
		}
	}
	return errs
}

func validateUnits(p *ir.Plan) []ValidationError {
	var errs []ValidationError
	unitNames := make(map[string]bool)

	for i, u := range p.Units {
		field := fmt.Sprintf("units[%d]", i)

		if unitNames[u.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate unit name: %q", u.Name),
				Code:    ErrDuplicateName,
			})
		}
		unitNames[u.Name] = true

		if !u.Phase.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".phase",
				Message: fmt.Sprintf("unit %q: invalid phase %s", u.Name, u.Phase),
				Code:    ErrInvalidPhase,
			})
		} else if u.Phase.Terminal() && !u.Immediate {
			// The finalize hook runs before any execute hook registered
			// during the terminal phase, so the deferred work would be lost.
			errs = append(errs, ValidationError{
				Field:   field + ".phase",
				Message: fmt.Sprintf("unit %q defers in the terminal phase %s; mark it immediate", u.Name, u.Phase),
				Code:    ErrTerminalDeferral,
			})
		}

		if _, ok := p.Source(u.Source); !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("unit %q: unknown source %q", u.Name, u.Source),
				Code:    ErrUnknownSource,
			})
		}

		if u.Target != "" {
			if _, ok := p.Class(u.Target); !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".target",
					Message: fmt.Sprintf("unit %q: unknown target class %q", u.Name, u.Target),
					Code:    ErrUnknownTarget,
				})
			}
		}

		if u.Member != "" && u.Fail != "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unit %q declares both member and fail", u.Name),
				Code:    ErrMemberWithFailure,
			})
		}
	}
	return errs
}
