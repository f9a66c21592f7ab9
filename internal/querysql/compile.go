// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/phasedefer/internal/queryir"
)

// SQLCompiler compiles queries against a schema.
//
// Every compiled query carries ORDER BY with a binary collation, and every
// literal is bound as a parameter, never interpolated.
type SQLCompiler struct {
	Schema queryir.Schema
}

// NewSQLCompiler returns a compiler for the run journal schema.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Schema: queryir.Journal}
}

// Compile converts a query to SQL.
// Returns (sql, params, error). The query is validated first.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if errs := queryir.Validate(q, c.Schema); len(errs) > 0 {
		return "", nil, fmt.Errorf("invalid query: %w", errors.Join(errs...))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	order := make([]string, len(q.OrderBy))
	for i, col := range q.OrderBy {
		order[i] = col + " COLLATE BINARY ASC"
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(q.Columns, ", "),
		q.From,
		whereClause,
		strings.Join(order, ", "))

	return sql, params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return pred.Field + " = ?", []any{pred.Value}, nil
	case queryir.In:
		return compileIn(pred)
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(in.Values)), ", ")
	params := make([]any, len(in.Values))
	copy(params, in.Values)
	return fmt.Sprintf("%s IN (%s)", in.Field, marks), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var all []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		all = append(all, params...)
	}
	return strings.Join(parts, " AND "), all, nil
}
