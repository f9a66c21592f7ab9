package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/ir"
)

const shapesCUE = `
plan: shapes: {
	sources: "Shapes.src": classes: {
		Shape: {}
		Edge: {kind: "inner", outer: "Shape"}
		Color: {kind: "enum", members: ["RED", "GREEN"]}
	}
	units: {
		A: {priority: 10, phase: "canonicalization", source: "Shapes.src", target: "Shape", member: "area"}
		B: {priority: 5, phase: "Canonicalization", source: "Shapes.src", target: "Shape", member: "name"}
		C: {priority: 5, phase: "canonicalization", source: "Shapes.src", target: "Shape", fail: "boom"}
		now: {phase: "semantic-analysis", source: "Shapes.src", immediate: true}
	}
}
`

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

func TestCompilePlan_Basic(t *testing.T) {
	v := compileString(t, shapesCUE)

	p, err := CompilePlan(v.LookupPath(cue.ParsePath("plan.shapes")))
	require.NoError(t, err)

	assert.Equal(t, "shapes", p.Name)
	require.Len(t, p.Sources, 1)
	assert.Equal(t, "Shapes.src", p.Sources[0].Name)
	assert.Equal(t, []ir.ClassSpec{
		{Name: "Shape", Kind: ir.ClassKindClass},
		{Name: "Edge", Kind: ir.ClassKindInner, Outer: "Shape"},
		{Name: "Color", Kind: ir.ClassKindEnum, Members: []string{"RED", "GREEN"}},
	}, p.Sources[0].Classes)

	require.Len(t, p.Units, 4)
	assert.Equal(t, ir.UnitSpec{
		Name: "A", Priority: 10, Phase: ir.PhaseCanonicalization,
		Source: "Shapes.src", Target: "Shape", Member: "area",
	}, p.Units[0])
	assert.Equal(t, ir.PhaseCanonicalization, p.Units[1].Phase, "phase names are case-insensitive")
	assert.Equal(t, "boom", p.Units[2].Fail)
	assert.Equal(t, ir.PhaseSemanticAnalysis, p.Units[3].Phase)
	assert.True(t, p.Units[3].Immediate)
	assert.Zero(t, p.Units[3].Priority)

	assert.Empty(t, ValidatePlan(p))
}

func TestCompilePlans_DeclarationOrder(t *testing.T) {
	v := compileString(t, `
		plan: zeta: sources: "z.src": {}
		plan: alpha: sources: "a.src": {}
	`)

	plans, err := CompilePlans(v)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "zeta", plans[0].Name)
	assert.Equal(t, "alpha", plans[1].Name)
	assert.Empty(t, plans[0].Units)
}

func TestCompilePlans_NoPlanField(t *testing.T) {
	plans, err := CompilePlans(compileString(t, `other: 1`))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestCompilePlan_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing sources",
			src:   `plan: p: units: {}`,
			field: "sources",
		},
		{
			name:  "missing phase",
			src:   `plan: p: {sources: "a": {}, units: u: {source: "a"}}`,
			field: "phase",
		},
		{
			name:  "unknown phase",
			src:   `plan: p: {sources: "a": {}, units: u: {phase: "linking", source: "a"}}`,
			field: "phase",
		},
		{
			name:  "non-integer priority",
			src:   `plan: p: {sources: "a": {}, units: u: {phase: "output", priority: "high"}}`,
			field: "priority",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileString(t, tt.src)
			_, err := CompilePlan(v.LookupPath(cue.ParsePath("plan.p")))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompilePlan_CUEErrorHasPosition(t *testing.T) {
	v := cuecontext.New().CompileString(`plan: p: sources: "a": classes: X: kind: 1 & 2`, cue.Filename("bad.cue"))

	_, err := CompilePlan(v.LookupPath(cue.ParsePath("plan.p")))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "bad.cue:1:")
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "phase", Message: "phase is required"}
	assert.Equal(t, "phase: phase is required", err.Error())
}
