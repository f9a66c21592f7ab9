package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/compiler"
)

func TestValidateValidPlans(t *testing.T) {
	dir := writePlanDir(t, map[string]string{"plans.cue": plansCUE})

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All plans valid (2)")
}

func TestValidateInvalidPlans(t *testing.T) {
	tests := []struct {
		name  string
		plan  string
		code  string
		field string
	}{
		{
			name:  "unknown target",
			plan:  `plan: bad: {sources: "a.src": classes: A: {}, units: u: {phase: "parsing", source: "a.src", target: "Nope"}}`,
			code:  compiler.ErrUnknownTarget,
			field: "plan.bad.units[0].target",
		},
		{
			name:  "terminal deferral",
			plan:  `plan: bad: {sources: "a.src": {}, units: u: {phase: "finalization", source: "a.src"}}`,
			code:  compiler.ErrTerminalDeferral,
			field: "plan.bad.units[0].phase",
		},
		{
			name:  "inner without outer",
			plan:  `plan: bad: sources: "a.src": classes: I: {kind: "inner"}`,
			code:  compiler.ErrInvalidOuter,
			field: "plan.bad.sources[0].classes[0].outer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePlanDir(t, map[string]string{"plans.cue": "package plans\n" + tt.plan + "\n"})

			out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
			requireExitCode(t, err, ExitFailure)

			var result ValidationResult
			resp := decodeResponse(t, out, &result)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.field, result.Errors[0].Field)
		})
	}
}

func TestValidateTextReportsEveryError(t *testing.T) {
	dir := writePlanDir(t, map[string]string{"plans.cue": `package plans
plan: bad: {
	sources: "a.src": classes: A: {}
	units: {
		u: {phase: "parsing", source: "nowhere", target: "A"}
		v: {phase: "parsing", source: "a.src", target: "A", member: "m", fail: "boom"}
	}
}
`})

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownSource)
	assert.Contains(t, out, compiler.ErrMemberWithFailure)
}

func TestValidateCompileErrorIsValidationError(t *testing.T) {
	dir := writePlanDir(t, map[string]string{"plans.cue": `package plans
plan: good: sources: "a.src": {}
plan: bad: {sources: "a.src": {}, units: u: {phase: "linking", source: "a.src"}}
`})

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	requireExitCode(t, err, ExitFailure)

	var result ValidationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "load", result.Errors[0].Field)
	assert.Equal(t, ErrCodeCompilePhase, result.Errors[0].Code)
	assert.Positive(t, result.Errors[0].Line)
	assert.Equal(t, []string{"good"}, result.Plans)
}

func TestValidateNonExistentDir(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	requireExitCode(t, err, ExitCommandError)
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidatePlanDir(t *testing.T) {
	dir := writePlanDir(t, map[string]string{"plans.cue": plansCUE})
	errs, err := ValidatePlanDir(dir)
	require.NoError(t, err)
	assert.Empty(t, errs)

	bad := writePlanDir(t, map[string]string{"plans.cue": `package plans
plan: dup: sources: {
	"a.src": classes: A: {}
	"b.src": classes: A: {}
}
`})
	errs, err = ValidatePlanDir(bad)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, compiler.ErrDuplicateName, errs[0].Code)

	_, err = ValidatePlanDir(filepath.Join(t.TempDir(), "nope"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}
