package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/phasedefer/internal/ir"
)

func validPlan() *ir.Plan {
	return &ir.Plan{
		Name: "shapes",
		Sources: []ir.SourceSpec{
			{Name: "Shapes.src", Classes: []ir.ClassSpec{
				{Name: "Shape", Kind: ir.ClassKindClass},
				{Name: "Edge", Kind: ir.ClassKindInner, Outer: "Shape"},
			}},
			{Name: "Colors.src", Classes: []ir.ClassSpec{
				{Name: "Color", Kind: ir.ClassKindEnum},
			}},
		},
		Units: []ir.UnitSpec{
			{Name: "A", Priority: 10, Phase: ir.PhaseCanonicalization, Source: "Shapes.src", Target: "Shape", Member: "area"},
			{Name: "B", Priority: 5, Phase: ir.PhaseConversion, Source: "Colors.src", Target: "Color", Member: "BLUE"},
			{Name: "last", Phase: ir.PhaseFinalization, Source: "Shapes.src", Immediate: true},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidatePlan_Valid(t *testing.T) {
	assert.Empty(t, ValidatePlan(validPlan()))
}

func TestValidatePlan_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ir.Plan)
		want   []string
	}{
		{"empty name", func(p *ir.Plan) { p.Name = "  " }, []string{ErrPlanNameEmpty}},
		{"no sources", func(p *ir.Plan) { p.Sources = nil; p.Units = nil }, []string{ErrPlanNoSources}},
		{"duplicate source", func(p *ir.Plan) { p.Sources[1].Name = "Shapes.src" }, []string{ErrDuplicateName}},
		{"duplicate class across sources", func(p *ir.Plan) { p.Sources[1].Classes[0].Name = "Shape" }, []string{ErrDuplicateName, ErrUnknownTarget}},
		{"duplicate unit", func(p *ir.Plan) { p.Units[1].Name = "A" }, []string{ErrDuplicateName}},
		{"bad kind", func(p *ir.Plan) { p.Sources[0].Classes[0].Kind = "struct" }, []string{ErrInvalidClassKind}},
		{"inner without outer", func(p *ir.Plan) { p.Sources[0].Classes[1].Outer = "" }, []string{ErrInvalidOuter}},
		{"inner with unknown outer", func(p *ir.Plan) { p.Sources[0].Classes[1].Outer = "Nope" }, []string{ErrInvalidOuter}},
		{"invalid phase", func(p *ir.Plan) { p.Units[0].Phase = ir.Phase(42) }, []string{ErrInvalidPhase}},
		{"terminal deferral", func(p *ir.Plan) { p.Units[2].Immediate = false }, []string{ErrTerminalDeferral}},
		{"unknown source", func(p *ir.Plan) { p.Units[0].Source = "Other.src" }, []string{ErrUnknownSource}},
		{"unknown target", func(p *ir.Plan) { p.Units[0].Target = "Circle" }, []string{ErrUnknownTarget}},
		{"member and fail", func(p *ir.Plan) { p.Units[0].Fail = "boom" }, []string{ErrMemberWithFailure}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			assert.Equal(t, tt.want, codes(ValidatePlan(p)))
		})
	}
}

func TestValidatePlan_CollectsAll(t *testing.T) {
	p := validPlan()
	p.Name = ""
	p.Units[0].Source = "x"
	p.Units[1].Target = "y"

	assert.Equal(t, []string{ErrPlanNameEmpty, ErrUnknownSource, ErrUnknownTarget}, codes(ValidatePlan(p)))
}

func TestValidatePlan_OuterCycle(t *testing.T) {
	p := &ir.Plan{
		Name: "loops",
		Sources: []ir.SourceSpec{{Name: "a.src", Classes: []ir.ClassSpec{
			{Name: "Top", Kind: ir.ClassKindClass},
			{Name: "A", Kind: ir.ClassKindInner, Outer: "B"},
			{Name: "B", Kind: ir.ClassKindInner, Outer: "C"},
			{Name: "C", Kind: ir.ClassKindInner, Outer: "A"},
			{Name: "Self", Kind: ir.ClassKindInner, Outer: "Self"},
			{Name: "Leaf", Kind: ir.ClassKindInner, Outer: "A"},
		}}},
	}

	errs := ValidatePlan(p)
	assert.Equal(t, []string{ErrOuterCycle, ErrOuterCycle}, codes(errs))
	assert.Contains(t, errs[0].Message, "A -> B -> C -> A")
	assert.Contains(t, errs[1].Message, "Self -> Self")
}

func TestOuterCycles_None(t *testing.T) {
	assert.Empty(t, outerCycles(validPlan()))
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "units[0].phase", Message: "bad", Code: ErrInvalidPhase}
	assert.Equal(t, "[E105] units[0].phase: bad", e.Error())

	e.Line = 7
	assert.Equal(t, "[E105] line 7: units[0].phase: bad", e.Error())
}
