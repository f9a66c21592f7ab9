package store

import (
	"context"
	"fmt"

	"github.com/roach88/phasedefer/internal/ir"
)

// RunStatus is the outcome of a journaled compilation.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the journal record of one compilation.
type Run struct {
	ContextID     ir.ContextID
	Plan          ir.Plan
	PlanDigest    string
	Status        RunStatus
	Error         string // failure message, empty on success
	TraceDigest   string
	EngineVersion string
	IRVersion     string
}

// WriteRun journals a run and its trace in a single transaction.
// Uses ON CONFLICT(context_id) DO NOTHING for idempotency: when the run is
// already journaled nothing is written, including its events.
func (s *Store) WriteRun(ctx context.Context, run Run, events []ir.TraceEvent) error {
	planJSON, err := marshalPlan(run.Plan)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(context_id, plan_name, plan_json, plan_digest, status, error, trace_digest, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(context_id) DO NOTHING
	`,
		string(run.ContextID),
		run.Plan.Name,
		planJSON,
		run.PlanDigest,
		string(run.Status),
		run.Error,
		run.TraceDigest,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if inserted == 0 {
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_events
		(context_id, seq, kind, phase, unit, priority, source, class, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			string(run.ContextID),
			ev.Seq,
			string(ev.Kind),
			ev.Phase.String(),
			ev.Unit,
			ev.Priority,
			ev.Source,
			ev.Class,
			ev.Detail,
		); err != nil {
			return fmt.Errorf("write run: event seq=%d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}
