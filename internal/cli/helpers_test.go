package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/config"
	"github.com/roach88/phasedefer/internal/engine"
	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/store"
)

// plansCUE declares one plan that compiles cleanly and one whose unit fails.
const plansCUE = `package plans

plan: shapes: {
	sources: "Shapes.src": classes: {
		Shape: {}
		Color: {kind: "enum", members: ["RED"]}
	}
	units: {
		A: {priority: 10, phase: "canonicalization", source: "Shapes.src", target: "Shape", member: "area"}
		B: {priority: 5, phase: "canonicalization", source: "Shapes.src", target: "Shape", member: "name"}
	}
}

plan: broken: {
	sources: "Broken.src": classes: Thing: {}
	units: bad: {phase: "semantic_analysis", source: "Broken.src", target: "Thing", fail: "boom"}
}
`

// writePlanDir writes files into a fresh directory and returns its path.
func writePlanDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// execute runs cmd with args and returns everything written to stdout.
// Diagnostics written to stderr are discarded.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return buf.String(), err
}

// isolatedRoot builds a root command that ignores config files outside t's
// temporary directories.
func isolatedRoot(t *testing.T) *cobra.Command {
	t.Helper()
	return newRootCommand(&RootOptions{
		ConfigLoad: config.LoadOptions{
			WorkDir:       t.TempDir(),
			ConfigDirPath: t.TempDir(),
		},
	})
}

// decodeResponse parses a JSON CLIResponse whose data is decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}

// requireExitCode asserts err is an ExitError with the given code.
func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, GetExitCode(err), "error: %v", err)
}

func shapesPlan() ir.Plan {
	return ir.Plan{
		Name: "shapes",
		Sources: []ir.SourceSpec{{
			Name: "Shapes.src",
			Classes: []ir.ClassSpec{
				{Name: "Shape", Kind: ir.ClassKindClass},
				{Name: "Color", Kind: ir.ClassKindEnum, Members: []string{"RED"}},
			},
		}},
		Units: []ir.UnitSpec{
			{Name: "A", Priority: 10, Phase: ir.PhaseCanonicalization, Source: "Shapes.src", Target: "Shape", Member: "area"},
			{Name: "B", Priority: 5, Phase: ir.PhaseCanonicalization, Source: "Shapes.src", Target: "Shape", Member: "name"},
		},
	}
}

func brokenPlan() ir.Plan {
	return ir.Plan{
		Name: "broken",
		Sources: []ir.SourceSpec{{
			Name:    "Broken.src",
			Classes: []ir.ClassSpec{{Name: "Thing", Kind: ir.ClassKindClass}},
		}},
		Units: []ir.UnitSpec{
			{Name: "bad", Phase: ir.PhaseSemanticAnalysis, Source: "Broken.src", Target: "Thing", Fail: "boom"},
		},
	}
}

// seedJournal journals a successful run (ctx-shapes) and a failed run
// (ctx-broken) and returns the journal path.
func seedJournal(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	eng := engine.New(
		engine.WithStore(st),
		engine.WithIDGenerator(engine.NewFixedGenerator("ctx-shapes", "ctx-broken")),
	)
	for _, p := range []ir.Plan{shapesPlan(), brokenPlan()} {
		_, err := eng.Compile(context.Background(), &p)
		require.NoError(t, err)
	}
	return dbPath
}
