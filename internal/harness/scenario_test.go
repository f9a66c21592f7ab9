package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/ir"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ResolvesPlanRelativeToFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/canonicalization_order.yaml")
	require.NoError(t, err)

	assert.Equal(t, "canonicalization_order", s.Name)
	assert.Equal(t, filepath.Join("testdata", "plans", "shapes"), s.Plan)
	assert.Equal(t, "ctx-canonicalization", s.ContextID)
	assert.Nil(t, s.PlanInline)
	require.NotEmpty(t, s.Assertions)
	assert.Equal(t, AssertTraceOrder, s.Assertions[0].Type)

	plan, err := s.LoadPlan()
	require.NoError(t, err)
	assert.Equal(t, "shapes", plan.Name)
	require.Len(t, plan.Units, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{plan.Units[0].Name, plan.Units[1].Name, plan.Units[2].Name})
}

func TestLoadScenario_InlinePlan(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/verifier_failure.yaml")
	require.NoError(t, err)
	require.NotNil(t, s.PlanInline)

	plan, err := s.LoadPlan()
	require.NoError(t, err)
	assert.Equal(t, "duplicate", plan.Name)
	assert.Equal(t, ir.ClassKindClass, plan.Sources[0].Classes[0].Kind, "missing kind defaults to class")
	assert.Equal(t, ir.ClassKind(""), s.PlanInline.Sources[0].Classes[0].Kind, "scenario plan is not mutated")
	assert.Equal(t, ir.PhaseSemanticAnalysis, plan.Units[0].Phase)
}

func TestLoadScenario_InlinePlanDefaultsName(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: unnamed
description: d
plan_inline:
  sources: [{name: A.src, classes: [{name: A}]}]
assertions: [{type: registry_empty}]
`))
	require.NoError(t, err)
	plan, err := s.LoadPlan()
	require.NoError(t, err)
	assert.Equal(t, "unnamed", plan.Name)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: d\nplan: .\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: d\nplan: .\nassertions: [{type: registry_empty}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nplan: .\nassertions: [{type: registry_empty}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no plan",
			content: "name: x\ndescription: d\nassertions: [{type: registry_empty}]\n",
			wantErr: "one of plan or plan_inline is required",
		},
		{
			name:    "both plans",
			content: "name: x\ndescription: d\nplan: .\nplan_inline: {name: p}\nassertions: [{type: registry_empty}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "plan directory missing",
			content: "name: x\ndescription: d\nplan: nowhere\nassertions: [{type: registry_empty}]\n",
			wantErr: "plan directory not found",
		},
		{
			name:    "no assertions",
			content: "name: x\ndescription: d\nplan: .\nassertions: []\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "bad inline phase",
			content: "name: x\ndescription: d\nplan_inline: {units: [{name: u, phase: compile}]}\nassertions: [{type: registry_empty}]\n",
			wantErr: "unknown phase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"missing type", Assertion{}, "type is required"},
		{"unknown type", Assertion{Type: "final_state"}, "unknown assertion type"},
		{"trace_order without events", Assertion{Type: AssertTraceOrder}, "events list is required"},
		{"trace_count without event", Assertion{Type: AssertTraceCount, Count: 1}, "event or kind is required"},
		{"trace_count negative", Assertion{Type: AssertTraceCount, Kind: "visit", Count: -1}, "non-negative"},
		{"hook_count bad phase", Assertion{Type: AssertHookCount, Phase: "linking"}, "unknown phase"},
		{"hook_count negative", Assertion{Type: AssertHookCount, Phase: "output", Count: -1}, "non-negative"},
		{"failure bad phase", Assertion{Type: AssertFailure, Phase: "x"}, "unknown phase"},
		{"aux_after without pass", Assertion{Type: AssertAuxAfter}, "pass is required"},
		{"class_members without class", Assertion{Type: AssertClassMembers}, "class is required"},
		{"journal without status", Assertion{Type: AssertJournal}, "status is required"},
		{"valid trace_count", Assertion{Type: AssertTraceCount, Event: "visit:A"}, ""},
		{"valid hook_count zero", Assertion{Type: AssertHookCount, Phase: "Output"}, ""},
		{"valid registry_empty", Assertion{Type: AssertRegistryEmpty}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenario_LoadPlanSelection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plans.cue"), []byte(`package plans

plan: first: sources: "A.src": classes: A: {}
plan: second: sources: "B.src": classes: B: {}
`), 0644))

	t.Run("ambiguous without plan_name", func(t *testing.T) {
		_, err := (&Scenario{Plan: dir}).LoadPlan()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plan_name is required")
	})

	t.Run("selects by name", func(t *testing.T) {
		p, err := (&Scenario{Plan: dir, PlanName: "second"}).LoadPlan()
		require.NoError(t, err)
		assert.Equal(t, "second", p.Name)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := (&Scenario{Plan: dir, PlanName: "third"}).LoadPlan()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `plan "third" not found`)
	})
}
