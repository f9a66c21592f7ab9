package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/phasedefer/internal/ir"
)

// TraceSnapshot captures what a golden file pins down for a scenario run.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	ContextID    ir.ContextID
	Plan         string
	Digest       string
	Failure      string
	Trace        []ir.TraceEvent
	Classes      []ir.ClassNode
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(scenarioName string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenarioName,
		ContextID:    result.ContextID,
		Plan:         result.Plan,
		Digest:       result.Digest,
		Failure:      result.Failure,
		Trace:        result.Trace,
		Classes:      result.Classes,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		traceList[i] = event.CanonicalMap()
	}

	classList := make([]any, len(s.Classes))
	for i, c := range s.Classes {
		members := make([]any, len(c.Members))
		for j, m := range c.Members {
			members[j] = m
		}
		cm := map[string]any{
			"name":      c.Name,
			"kind":      string(c.Kind),
			"members":   members,
			"verified":  c.Verified,
			"completed": c.Completed,
		}
		if c.Outer != "" {
			cm["outer"] = c.Outer
		}
		classList[i] = cm
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"context_id":    string(s.ContextID),
		"plan":          s.Plan,
		"digest":        s.Digest,
		"trace":         traceList,
		"classes":       classList,
	}
	if s.Failure != "" {
		result["failure"] = s.Failure
	}
	return result
}

// Marshal renders the snapshot as canonical JSON followed by a newline.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	data, err := ir.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot %s: %w", s.ScenarioName, err)
	}
	return append(data, '\n'), nil
}

// GoldenPath returns the golden file for a scenario file: a golden/
// directory next to it, named after the scenario file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// WriteGolden writes the snapshot of result to path, creating its directory.
func WriteGolden(path, scenarioName string, result *Result) error {
	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the snapshot of result matches the golden
// file at path byte for byte.
func CompareGolden(path, scenarioName string, result *Result) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	snapshot := NewSnapshot(scenarioName, result)
	current, err := snapshot.Marshal()
	if err != nil {
		return false, err
	}
	return bytes.Equal(golden, current), nil
}

// scenarioDir holds the package's scenario files. Their golden files live
// where GoldenPath puts them, so goldie and RunSuite share one copy.
const scenarioDir = "testdata/scenarios"

// goldenFixtureDir is the goldie fixture directory for scenarioDir.
func goldenFixtureDir() string {
	return filepath.Dir(GoldenPath(filepath.Join(scenarioDir, "scenario.yaml")))
}

// RunWithGolden executes a scenario and compares the snapshot against the
// golden file GoldenPath gives for testdata/scenarios/{scenario.Name}.yaml.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(goldenFixtureDir()),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
