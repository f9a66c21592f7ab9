package queryir

// Query is a read against one journal table.
//
// Sealed: only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a row filter.
//
// Sealed: only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads columns from a table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order>
//
// Example:
//
//	Select{
//	  From:    "trace_events",
//	  Columns: []string{"seq", "kind"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "context_id", Value: "ctx-1"},
//	    In{Field: "kind", Values: []any{"defer", "deferred_visit"}},
//	  }},
//	  OrderBy: []string{"seq"},
//	}
//
// Rules:
//   - Columns must be explicit (no SELECT *)
//   - OrderBy must be non-empty; the compiler appends no implicit order
//   - Filter may be nil, meaning every row
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []string
}

func (Select) queryNode() {}

// Equals matches rows whose field equals a literal.
//
//	<field> = ?
type Equals struct {
	Field string
	Value any // string or int64
}

func (Equals) predicateNode() {}

// In matches rows whose field equals any of the literals.
//
//	<field> IN (?, ?, ...)
//
// An empty Values list matches no rows.
type In struct {
	Field  string
	Values []any // strings or int64s
}

func (In) predicateNode() {}

// And is a conjunction. An empty And matches every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
