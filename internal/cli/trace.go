package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/phasedefer/internal/harness"
	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	ContextID string
	Plan      string // run listing filter
	Kind      string // event filter
	Phase     string // event filter
	Unit      string // event filter
}

// TraceResult holds the trace of one journaled run.
type TraceResult struct {
	ContextID   ir.ContextID    `json:"context_id"`
	Plan        string          `json:"plan"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	TraceDigest string          `json:"trace_digest"`
	Events      []ir.TraceEvent `json:"events"`
	Stats       TraceStats      `json:"stats"`
}

// TraceStats counts the events of a trace by kind.
type TraceStats struct {
	TotalEvents    int `json:"total_events"`
	Visits         int `json:"visits"`
	Defers         int `json:"defers"`
	Hooks          int `json:"hooks"`
	DeferredVisits int `json:"deferred_visits"`
	Auxiliary      int `json:"auxiliary"`
	Failures       int `json:"failures"`
}

// RunListing is one line of the run listing.
type RunListing struct {
	ContextID   ir.ContextID `json:"context_id"`
	Plan        string       `json:"plan"`
	Status      string       `json:"status"`
	TraceDigest string       `json:"trace_digest"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled runs and their traces",
		Long: `Show the trace of a journaled compilation.

Without --context the journaled runs are listed. With --context the
run's events are printed in sequence order: unit visits, deferrals,
execute hooks, deferred visits, auxiliary passes, finalize and failure.

Examples:
  phasedefer trace --db ./runs.db
  phasedefer trace --db ./runs.db --context 0190f5c2-...
  phasedefer trace --db ./runs.db --context 0190f5c2-... --kind deferred_visit
  phasedefer trace --db ./runs.db --context 0190f5c2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal (default from config)")
	cmd.Flags().StringVar(&opts.ContextID, "context", "", "compilation context to show")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "list only runs of this plan")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "show only events of this kind")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "show only events of this phase")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "show only events of this unit")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openJournal(formatter, opts.RootOptions, opts.Database, cmd.Flags().Changed("db"))
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.ContextID == "" {
		runs, err := st.ListRuns(ctx, opts.Plan)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		return outputRunListing(formatter, runs)
	}

	id := ir.ContextID(opts.ContextID)
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no run journaled for context %s", id))
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}
	events, err := st.ReadTrace(ctx, id)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}

	filter, err := traceFilter(opts.Kind, opts.Phase, opts.Unit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	filtered, err := st.QueryTrace(ctx, id, filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}

	result := TraceResult{
		ContextID:   run.ContextID,
		Plan:        run.Plan.Name,
		Status:      string(run.Status),
		Error:       run.Error,
		TraceDigest: run.TraceDigest,
		Events:      filtered,
		Stats:       traceStats(events),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

// openJournal opens the journal named by the --db flag or the config.
// A journal that does not exist is an error: reading must not create one.
func openJournal(formatter *OutputFormatter, opts *RootOptions, path string, fromFlag bool) (*store.Store, error) {
	if !fromFlag {
		path = opts.settings().DB
	}
	if path == "" {
		return nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, "no journal given: pass --db or set db in the config")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open journal: %v", err))
	}
	return st, nil
}

// traceFilter turns the --kind, --phase and --unit flags into a journal
// filter; empty flags match everything.
func traceFilter(kind, phase, unit string) (store.TraceFilter, error) {
	filter := store.TraceFilter{Unit: unit}
	if kind != "" {
		if !validKind(kind) {
			return filter, fmt.Errorf("unknown event kind %q", kind)
		}
		filter.Kinds = []ir.TraceKind{ir.TraceKind(kind)}
	}
	if phase != "" {
		p, err := ir.ParsePhase(phase)
		if err != nil {
			return filter, err
		}
		filter.Phase = p
	}
	return filter, nil
}

func traceStats(events []ir.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case ir.TraceVisit:
			stats.Visits++
		case ir.TraceDefer:
			stats.Defers++
		case ir.TraceHook:
			stats.Hooks++
		case ir.TraceDeferredVisit:
			stats.DeferredVisits++
		case ir.TraceAuxiliary:
			stats.Auxiliary++
		case ir.TraceFailure:
			stats.Failures++
		}
	}
	return stats
}

func outputRunListing(formatter *OutputFormatter, runs []store.Run) error {
	listing := make([]RunListing, len(runs))
	for i, r := range runs {
		listing[i] = RunListing{
			ContextID:   r.ContextID,
			Plan:        r.Plan.Name,
			Status:      string(r.Status),
			TraceDigest: r.TraceDigest,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}

	w := formatter.Writer
	if len(listing) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}
	for _, r := range listing {
		fmt.Fprintf(w, "%s  %-9s  %s  %s\n", r.ContextID, r.Status, shortDigest(r.TraceDigest), r.Plan)
	}
	return nil
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "Run: %s\n", result.ContextID)
	fmt.Fprintf(w, "Plan: %s\n", result.Plan)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
	}
	fmt.Fprintf(w, "Digest: %s\n\n", result.TraceDigest)

	var phase ir.Phase
	for i, ev := range result.Events {
		if i == 0 || ev.Phase != phase {
			phase = ev.Phase
			fmt.Fprintf(w, "%s:\n", phase)
		}
		line := fmt.Sprintf("  [%d] %s", ev.Seq, harness.Label(ev))
		if ev.Source != "" {
			line += " @ " + ev.Source
		}
		if ev.Kind == ir.TraceFailure && ev.Detail != "" {
			line += ": " + ev.Detail
		}
		fmt.Fprintln(w, line)
	}

	s := result.Stats
	fmt.Fprintf(w, "\n%d event(s): %d visit(s), %d defer(s), %d hook(s), %d deferred visit(s), %d auxiliary",
		s.TotalEvents, s.Visits, s.Defers, s.Hooks, s.DeferredVisits, s.Auxiliary)
	if s.Failures > 0 {
		fmt.Fprintf(w, ", %d failure(s)", s.Failures)
	}
	fmt.Fprintln(w)
	return nil
}

// kinds lists the trace kinds accepted by --kind.
var kinds = []ir.TraceKind{
	ir.TraceVisit, ir.TraceDefer, ir.TraceHook, ir.TraceDeferredVisit,
	ir.TraceAuxiliary, ir.TraceFinalize, ir.TraceFailure,
}

func validKind(k string) bool {
	return k == "" || slices.Contains(kinds, ir.TraceKind(k))
}
