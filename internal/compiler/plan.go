package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/phasedefer/internal/ir"
)

// CompilePlan parses a CUE value into a Plan.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the plan struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plan: shapes: { sources: ..., units: ... }`)
//	p, err := CompilePlan(v.LookupPath(cue.ParsePath("plan.shapes")))
//
// Sources, classes and units are structs keyed by name; declaration order is
// kept, and unit order is the order the pipeline registers them in.
func CompilePlan(v cue.Value) (*ir.Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Plan{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = labels[len(labels)-1].Unquoted()
	}

	sourcesVal := v.LookupPath(cue.ParsePath("sources"))
	if !sourcesVal.Exists() {
		return nil, &CompileError{
			Field:   "sources",
			Message: "at least one source is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := sourcesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		src, err := parseSource(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		p.Sources = append(p.Sources, src)
	}

	// Units are optional: a plan without units just runs the phases.
	unitsVal := v.LookupPath(cue.ParsePath("units"))
	if unitsVal.Exists() {
		iter, err := unitsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			unit, err := parseUnit(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			p.Units = append(p.Units, unit)
		}
	}

	return p, nil
}

// CompilePlans compiles every plan under a `plan` struct, in declaration
// order. A missing `plan` field yields no plans.
func CompilePlans(root cue.Value) ([]ir.Plan, error) {
	plansVal := root.LookupPath(cue.ParsePath("plan"))
	if !plansVal.Exists() {
		return nil, nil
	}
	iter, err := plansVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var plans []ir.Plan
	for iter.Next() {
		p, err := CompilePlan(iter.Value())
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, nil
}

// parseSource extracts a source and its classes.
func parseSource(name string, v cue.Value) (ir.SourceSpec, error) {
	src := ir.SourceSpec{Name: name}

	classesVal := v.LookupPath(cue.ParsePath("classes"))
	if !classesVal.Exists() {
		return src, nil
	}
	iter, err := classesVal.Fields()
	if err != nil {
		return src, formatCUEError(err)
	}
	for iter.Next() {
		cls, err := parseClass(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return src, err
		}
		src.Classes = append(src.Classes, cls)
	}
	return src, nil
}

// parseClass extracts a class-like unit. Kind defaults to "class".
func parseClass(name string, v cue.Value) (ir.ClassSpec, error) {
	cls := ir.ClassSpec{Name: name, Kind: ir.ClassKindClass}

	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return cls, formatCUEError(err)
		}
		cls.Kind = ir.ClassKind(kind)
	}

	outer, err := optionalString(v, "outer")
	if err != nil {
		return cls, err
	}
	cls.Outer = outer

	if membersVal := v.LookupPath(cue.ParsePath("members")); membersVal.Exists() {
		list, err := membersVal.List()
		if err != nil {
			return cls, formatCUEError(err)
		}
		for list.Next() {
			m, err := list.Value().String()
			if err != nil {
				return cls, formatCUEError(err)
			}
			cls.Members = append(cls.Members, m)
		}
	}
	return cls, nil
}

// parseUnit extracts a transformation unit. Phase is required; the phase
// name is matched case-insensitively.
func parseUnit(name string, v cue.Value) (ir.UnitSpec, error) {
	unit := ir.UnitSpec{Name: name}

	phaseVal := v.LookupPath(cue.ParsePath("phase"))
	if !phaseVal.Exists() {
		return unit, &CompileError{
			Field:   "phase",
			Message: fmt.Sprintf("unit %q: phase is required", name),
			Pos:     v.Pos(),
		}
	}
	phaseStr, err := phaseVal.String()
	if err != nil {
		return unit, formatCUEError(err)
	}
	phase, err := ir.ParsePhase(phaseStr)
	if err != nil {
		return unit, &CompileError{
			Field:   "phase",
			Message: fmt.Sprintf("unit %q: %v", name, err),
			Pos:     phaseVal.Pos(),
		}
	}
	unit.Phase = phase

	if prioVal := v.LookupPath(cue.ParsePath("priority")); prioVal.Exists() {
		prio, err := prioVal.Int64()
		if err != nil {
			return unit, &CompileError{
				Field:   "priority",
				Message: fmt.Sprintf("unit %q: priority must be an integer", name),
				Pos:     prioVal.Pos(),
			}
		}
		unit.Priority = int(prio)
	}

	for field, dst := range map[string]*string{
		"source": &unit.Source,
		"target": &unit.Target,
		"member": &unit.Member,
		"fail":   &unit.Fail,
	} {
		s, err := optionalString(v, field)
		if err != nil {
			return unit, err
		}
		*dst = s
	}

	if immVal := v.LookupPath(cue.ParsePath("immediate")); immVal.Exists() {
		imm, err := immVal.Bool()
		if err != nil {
			return unit, formatCUEError(err)
		}
		unit.Immediate = imm
	}
	return unit, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
