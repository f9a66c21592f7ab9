package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/harness"
)

// copyHarnessScenario copies an inline-plan scenario from the harness
// testdata into dir.
func copyHarnessScenario(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "scenarios", name))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

const failingScenario = `name: wrong_count
context_id: ctx-wrong
plan_inline:
  sources:
    - name: A.src
      classes:
        - {name: A}
  units:
    - {name: u, phase: parsing, source: A.src, target: A, member: m}
assertions:
  - type: trace_count
    kind: deferred_visit
    count: 3
`

func TestTestCommandPasses(t *testing.T) {
	dir := t.TempDir()
	copyHarnessScenario(t, dir, "two_sources.yaml")
	copyHarnessScenario(t, dir, "verifier_failure.yaml")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ two_sources")
	assert.Contains(t, out, "✓ verifier_failure")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_count.yaml"), []byte(failingScenario), 0o644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	requireExitCode(t, err, ExitFailure)

	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "trace_count")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	copyHarnessScenario(t, dir, "two_sources.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_count.yaml"), []byte(failingScenario), 0o644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir)
	requireExitCode(t, err, ExitFailure)

	var result harness.SuiteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	path := copyHarnessScenario(t, dir, "two_sources.yaml")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ two_sources (golden updated)")

	golden := harness.GoldenPath(path)
	assert.FileExists(t, golden)

	// A second run compares against the golden file it just wrote.
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), path)
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	copyHarnessScenario(t, dir, "two_sources.yaml")
	copyHarnessScenario(t, dir, "verifier_failure.yaml")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "verifier*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ verifier_failure")
	assert.NotContains(t, out, "two_sources")
	assert.Contains(t, out, "1 total")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingPath(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	requireExitCode(t, err, ExitCommandError)
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestTestCommandRequiresPath(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
}
