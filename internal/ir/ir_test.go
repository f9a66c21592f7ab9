package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPhaseOrdering(t *testing.T) {
	phases := AllPhases()
	require.Len(t, phases, 9)
	assert.Equal(t, PhaseInitialization, phases[0])
	assert.Equal(t, PhaseFinalization, phases[len(phases)-1])
	for i := 1; i < len(phases); i++ {
		assert.Less(t, phases[i-1], phases[i])
	}
	assert.True(t, TerminalPhase.Terminal())
	assert.False(t, PhaseOutput.Terminal())
}

func TestPhaseRequiresAuxiliaryPasses(t *testing.T) {
	for _, p := range AllPhases() {
		want := p == PhaseSemanticAnalysis || p == PhaseCanonicalization
		assert.Equal(t, want, p.RequiresAuxiliaryPasses(), p.String())
	}
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		input string
		want  Phase
	}{
		{"canonicalization", PhaseCanonicalization},
		{"CANONICALIZATION", PhaseCanonicalization},
		{"semantic-analysis", PhaseSemanticAnalysis},
		{"Semantic Analysis", PhaseSemanticAnalysis},
		{" finalization ", PhaseFinalization},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePhase(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePhase("linking")
	assert.Error(t, err)
}

func TestPhaseTextEncoding(t *testing.T) {
	b, err := json.Marshal(struct {
		P Phase `json:"p"`
	}{PhaseClassGeneration})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"class_generation"}`, string(b))

	var unit UnitSpec
	require.NoError(t, yaml.Unmarshal([]byte("name: x\nphase: semantic_analysis\n"), &unit))
	assert.Equal(t, PhaseSemanticAnalysis, unit.Phase)

	_, err = Phase(0).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "phase(42)", Phase(42).String())
}

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"sorted keys", map[string]any{"zebra": 1, "alpha": 2}, `{"alpha":2,"zebra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)
	_, err = MarshalCanonical(map[string]any{"x": struct{}{}})
	assert.Error(t, err)
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	got, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestTraceDigestDeterministic(t *testing.T) {
	events := []TraceEvent{
		{Seq: 1, Kind: TraceDefer, Phase: PhaseCanonicalization, Unit: "A", Priority: 10},
		{Seq: 2, Kind: TraceHook, Phase: PhaseCanonicalization, Detail: "execute"},
	}
	d1, err := TraceDigest(events)
	require.NoError(t, err)
	d2, err := TraceDigest(events)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	events[1].Detail = "finalize"
	d3, err := TraceDigest(events)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestPlanDigestAndLookup(t *testing.T) {
	plan := &Plan{
		Name: "demo",
		Sources: []SourceSpec{
			{Name: "Shapes.src", Classes: []ClassSpec{{Name: "Shape", Kind: ClassKindClass}}},
		},
		Units: []UnitSpec{{Name: "A", Priority: 10, Phase: PhaseCanonicalization, Source: "Shapes.src", Target: "Shape", Member: "toString"}},
	}

	d1, err := PlanDigest(plan)
	require.NoError(t, err)
	plan.Units[0].Priority = 11
	d2, err := PlanDigest(plan)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	src, ok := plan.Source("Shapes.src")
	require.True(t, ok)
	assert.Equal(t, "Shapes.src", src.Name)
	cls, ok := plan.Class("Shape")
	require.True(t, ok)
	assert.Equal(t, ClassKindClass, cls.Kind)
	_, ok = plan.Class("Missing")
	assert.False(t, ok)
}

func TestClassNodeMembers(t *testing.T) {
	c := &ClassNode{Name: "Shape"}
	assert.False(t, c.HasMember("area"))
	c.AddMember("area")
	assert.True(t, c.HasMember("area"))
}
