package queryir

import (
	"fmt"
	"slices"
)

// Table describes the columns a query may reference.
type Table struct {
	Name    string
	Columns []string
}

// Schema is the set of tables queries are validated against.
type Schema []Table

// Journal is the run journal schema.
var Journal = Schema{
	{
		Name: "runs",
		Columns: []string{
			"context_id", "plan_name", "plan_json", "plan_digest", "status",
			"error", "trace_digest", "engine_version", "ir_version", "rowid",
		},
	},
	{
		Name: "trace_events",
		Columns: []string{
			"context_id", "seq", "kind", "phase", "unit",
			"priority", "source", "class", "detail",
		},
	},
}

func (s Schema) table(name string) (Table, bool) {
	for _, t := range s {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Validate checks a query against the schema.
// Returns every problem found, or nil if the query is well formed.
//
// Validate is a pure function with no side effects.
func Validate(q Query, schema Schema) []error {
	v := &validator{schema: schema}
	v.validateQuery(q)
	return v.errs
}

type validator struct {
	schema Schema
	table  Table
	errs   []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unsupported query type %T", q)
	}
}

func (v *validator) validateSelect(s Select) {
	t, ok := v.schema.table(s.From)
	if !ok {
		v.addError("unknown table %q", s.From)
		return
	}
	v.table = t

	if len(s.Columns) == 0 {
		v.addError("select from %s: explicit columns required", s.From)
	}
	for _, c := range s.Columns {
		v.checkColumn(c)
	}
	if len(s.OrderBy) == 0 {
		v.addError("select from %s: ORDER BY required", s.From)
	}
	for _, c := range s.OrderBy {
		v.checkColumn(c)
	}
	if s.Filter != nil {
		v.validatePredicate(s.Filter)
	}
}

func (v *validator) checkColumn(name string) {
	if !slices.Contains(v.table.Columns, name) {
		v.addError("table %s has no column %q", v.table.Name, name)
	}
}

func (v *validator) checkValue(field string, value any) {
	switch value.(type) {
	case string, int64:
	default:
		v.addError("field %s: unsupported value type %T", field, value)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.checkColumn(pred.Field)
		v.checkValue(pred.Field, pred.Value)
	case In:
		v.checkColumn(pred.Field)
		for _, val := range pred.Values {
			v.checkValue(pred.Field, val)
		}
	case And:
		for _, inner := range pred.Predicates {
			v.validatePredicate(inner)
		}
	default:
		v.addError("unsupported predicate type %T", p)
	}
}
