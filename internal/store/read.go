package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/queryir"
)

// ErrRunNotFound is returned when no run is journaled for a context.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the journaled run for a context.
// Returns an error wrapping ErrRunNotFound if there is none.
func (s *Store) ReadRun(ctx context.Context, id ir.ContextID) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT context_id, plan_json, plan_digest, status, error, trace_digest, engine_version, ir_version
		FROM runs
		WHERE context_id = ?
	`, string(id))

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the journaled runs in the order they were written.
// A non-empty planName restricts the result to runs of that plan.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, planName string) ([]Run, error) {
	q := queryir.Select{
		From:    "runs",
		Columns: runColumns,
		OrderBy: []string{"rowid"},
	}
	if planName != "" {
		q.Filter = queryir.Equals{Field: "plan_name", Value: planName}
	}
	query, args, err := s.queries.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// TraceFilter narrows a trace read. Zero fields match everything.
type TraceFilter struct {
	Kinds []ir.TraceKind
	Phase ir.Phase
	Unit  string
}

// ReadTrace returns the trace of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadTrace(ctx context.Context, id ir.ContextID) ([]ir.TraceEvent, error) {
	return s.QueryTrace(ctx, id, TraceFilter{})
}

// QueryTrace returns the events of a run matching filter, ordered by seq.
func (s *Store) QueryTrace(ctx context.Context, id ir.ContextID, filter TraceFilter) ([]ir.TraceEvent, error) {
	query, params, err := s.queries.Compile(traceQuery(id, filter))
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	events := []ir.TraceEvent{}
	for rows.Next() {
		var ev ir.TraceEvent
		var kind, phase string
		if err := rows.Scan(&ev.Seq, &kind, &phase, &ev.Unit, &ev.Priority, &ev.Source, &ev.Class, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		ev.Kind = ir.TraceKind(kind)
		if ev.Phase, err = ir.ParsePhase(phase); err != nil {
			return nil, fmt.Errorf("scan trace event seq=%d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return events, nil
}

func traceQuery(id ir.ContextID, filter TraceFilter) queryir.Select {
	where := queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "context_id", Value: string(id)},
	}}
	if len(filter.Kinds) > 0 {
		kinds := make([]any, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		where.Predicates = append(where.Predicates, queryir.In{Field: "kind", Values: kinds})
	}
	if filter.Phase.Valid() {
		where.Predicates = append(where.Predicates, queryir.Equals{Field: "phase", Value: filter.Phase.String()})
	}
	if filter.Unit != "" {
		where.Predicates = append(where.Predicates, queryir.Equals{Field: "unit", Value: filter.Unit})
	}
	return queryir.Select{
		From:    "trace_events",
		Columns: []string{"seq", "kind", "phase", "unit", "priority", "source", "class", "detail"},
		Filter:  where,
		OrderBy: []string{"seq"},
	}
}

var runColumns = []string{
	"context_id", "plan_json", "plan_digest", "status", "error",
	"trace_digest", "engine_version", "ir_version",
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var id, planJSON, status string
	if err := row.Scan(&id, &planJSON, &run.PlanDigest, &status, &run.Error, &run.TraceDigest, &run.EngineVersion, &run.IRVersion); err != nil {
		return Run{}, err
	}
	plan, err := unmarshalPlan(planJSON)
	if err != nil {
		return Run{}, err
	}
	run.ContextID = ir.ContextID(id)
	run.Plan = plan
	run.Status = RunStatus(status)
	return run, nil
}
