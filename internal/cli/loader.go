package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/phasedefer/internal/compiler"
	"github.com/roach88/phasedefer/internal/ir"
)

// LoadMode controls how errors are handled during plan loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the plans loaded from a directory.
type LoadResult struct {
	Plans     []ir.Plan
	CUEValue  cue.Value // the raw CUE value for additional processing
	FileCount int       // number of CUE files found
}

// Plan returns the plan called name.
func (r *LoadResult) Plan(name string) (*ir.Plan, bool) {
	for i := range r.Plans {
		if r.Plans[i].Name == name {
			return &r.Plans[i], true
		}
	}
	return nil, false
}

// LoadError represents an error that occurred during plan loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPlans loads and compiles the CUE plans in dir.
// A nil result means the directory itself could not be loaded; otherwise
// the result holds every plan that compiled and errs the ones that did not.
func LoadPlans(dir string, mode LoadMode) (*LoadResult, []error) {
	pkg, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, []error{convertLoadError(err)}
	}

	result := &LoadResult{
		CUEValue:  pkg.Value,
		FileCount: len(pkg.Files),
	}

	var errs []error
	plansVal := pkg.Value.LookupPath(cue.ParsePath("plan"))
	if plansVal.Exists() {
		iter, iterErr := plansVal.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating plans: %v", iterErr)}}
		}
		for iter.Next() {
			p, compileErr := compiler.CompilePlan(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "plan."+iter.Selector().Unquoted()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Plans = append(result.Plans, *p)
		}
	}

	if len(result.Plans) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoPlans, Message: fmt.Sprintf("no plans found in %s", dir)})
	}
	return result, errs
}

// convertLoadError maps a compiler load failure to its CLI error code.
func convertLoadError(err error) *LoadError {
	code := ErrCodeGeneric
	switch {
	case errors.Is(err, compiler.ErrDirNotFound):
		code = ErrCodeNotFound
	case errors.Is(err, compiler.ErrNoCUEFiles):
		code = ErrCodeNoFiles
	case errors.Is(err, compiler.ErrLoadFailed):
		code = ErrCodeLoadFailed
	case errors.Is(err, compiler.ErrBuildFailed):
		code = ErrCodeBuildFailed
	}

	le := &LoadError{Code: code, Message: err.Error()}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		le.Pos = compileErr.Pos
	}
	return le
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants shared by every command. Plan validation codes
// (E101-E111) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // file write error
	ErrCodeNoPlans     = "E008" // CUE package declares no plans

	ErrCodeCompileSources  = "E201" // plan without a sources struct
	ErrCodeCompilePhase    = "E202" // missing or unknown unit phase
	ErrCodeCompilePriority = "E203" // non-integer unit priority
	ErrCodeCompileCUE      = "E204" // CUE value error inside a plan

	ErrCodeDatabase  = "E301" // journal could not be opened or read
	ErrCodeRunFailed = "E302" // engine runtime error

	ErrCodeCompilationFailed = "E401" // a compilation ended in a failure
	ErrCodeNonDeterministic  = "E402" // replay produced a different trace
	ErrCodeTestFailed        = "E403" // a scenario failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "sources":
		return ErrCodeCompileSources
	case "phase":
		return ErrCodeCompilePhase
	case "priority":
		return ErrCodeCompilePriority
	case "cue":
		return ErrCodeCompileCUE
	default:
		return ErrCodeGeneric
	}
}
