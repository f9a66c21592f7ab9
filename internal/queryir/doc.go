// Package queryir provides the query representation used to read the run
// journal.
//
// Journal reads are expressed as small relational queries and compiled to
// SQL by package querysql:
//
//	[trace filter] → [Query IR] → [SQL]
//
// The fragment is intentionally narrow:
//   - Select(from, columns, filter, order) over one journal table
//   - Predicates: Equals, In, And
//   - Values are strings or int64 only
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	}
//
// # Determinism
//
// Every Select names an explicit column list and an ordering. The compiler
// refuses to emit a query without ORDER BY, so two reads of the same
// journal always return rows in the same order.
package queryir
