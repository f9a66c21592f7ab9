package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/phasedefer/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Plans  []string                   `json:"plans,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-dir>",
		Short: "Validate plans without running them",
		Long: `Validate the CUE build plans in a directory.

Checks that every plan compiles and that its sources, classes and units
are consistent: names are unique, units refer to declared sources and
classes, inner classes have an outer class without cycles, and no unit
defers in the terminal phase.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, planDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadPlans(planDir, LoadModeCollectAll)
	if loadResult == nil {
		code, message := parseCompileError(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, planDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, loadErrorToValidation(err))
	}

	result := ValidationResult{}
	for i := range loadResult.Plans {
		p := &loadResult.Plans[i]
		formatter.VerboseLog("Validating plan: %s", p.Name)
		result.Plans = append(result.Plans, p.Name)
		for _, ve := range compiler.ValidatePlan(p) {
			ve.Field = fmt.Sprintf("plan.%s.%s", p.Name, ve.Field)
			validationErrors = append(validationErrors, ve)
		}
	}

	if len(validationErrors) > 0 {
		result.Errors = validationErrors
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// loadErrorToValidation reports a plan that failed to compile as a
// validation error.
func loadErrorToValidation(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		ve := compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
		}
		if loadErr.Pos.IsValid() {
			ve.Line = loadErr.Pos.Line()
		}
		return ve
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All plans valid (%d)\n", len(result.Plans))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidatePlanDir validates all plans in a directory.
// This is a helper function for external callers.
func ValidatePlanDir(planDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadPlans(planDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, loadErrors[0]
	}

	var errs []compiler.ValidationError
	for _, err := range loadErrors {
		errs = append(errs, loadErrorToValidation(err))
	}
	for i := range loadResult.Plans {
		errs = append(errs, compiler.ValidatePlan(&loadResult.Plans[i])...)
	}
	return errs, nil
}
