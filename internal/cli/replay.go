package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/phasedefer/internal/engine"
	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	ContextID string // optional - specific run only
	Plan      string // optional - runs of this plan only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	ContextID      ir.ContextID `json:"context_id"`
	Plan           string       `json:"plan"`
	Status         string       `json:"status"`
	Events         int          `json:"events"`
	RecordedDigest string       `json:"recorded_digest"`
	ReplayedDigest string       `json:"replayed_digest"`
	JournalIntact  bool         `json:"journal_intact"`
	Deterministic  bool         `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompile journaled runs and verify determinism",
		Long: `Recompile journaled runs and verify that they are deterministic.

Every run's stored plan is compiled again under the same context identity.
The replayed trace digest must equal the recorded one, the journaled
events must still hash to the recorded digest, and the replay must end
with the same status.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (journal not found, etc.)

Examples:
  phasedefer replay --db ./runs.db
  phasedefer replay --db ./runs.db --context 0190f5c2-...
  phasedefer replay --db ./runs.db --plan shapes --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal (default from config)")
	cmd.Flags().StringVar(&opts.ContextID, "context", "", "replay this run only")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "replay runs of this plan only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openJournal(formatter, opts.RootOptions, opts.Database, cmd.Flags().Changed("db"))
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.Run
	if opts.ContextID != "" {
		run, err := st.ReadRun(ctx, ir.ContextID(opts.ContextID))
		if errors.Is(err, store.ErrRunNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no run journaled for context %s", opts.ContextID))
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx, opts.Plan)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)
	for _, run := range runs {
		rr, err := replayRun(ctx, st, run, logger)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRunFailed, fmt.Sprintf("failed to replay run %s: %v", run.ContextID, err))
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Deterministic || !rr.JournalIntact {
			result.AllDeterministic = false
		}
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replayRun recompiles a journaled plan under the run's context identity.
// The replay is not journaled.
func replayRun(ctx context.Context, st *store.Store, run store.Run, logger *slog.Logger) (ReplayRunResult, error) {
	events, err := st.ReadTrace(ctx, run.ContextID)
	if err != nil {
		return ReplayRunResult{}, err
	}
	storedDigest, err := ir.TraceDigest(events)
	if err != nil {
		return ReplayRunResult{}, err
	}

	eng := engine.New(
		engine.WithIDGenerator(engine.NewFixedGenerator(run.ContextID)),
		engine.WithLogger(logger),
	)
	plan := run.Plan
	res, err := eng.Compile(ctx, &plan)
	if err != nil {
		return ReplayRunResult{}, err
	}

	status := store.RunSucceeded
	if !res.Succeeded() {
		status = store.RunFailed
	}

	return ReplayRunResult{
		ContextID:      run.ContextID,
		Plan:           run.Plan.Name,
		Status:         string(run.Status),
		Events:         len(events),
		RecordedDigest: run.TraceDigest,
		ReplayedDigest: res.Digest,
		JournalIntact:  storedDigest == run.TraceDigest,
		Deterministic:  res.Digest == run.TraceDigest && status == run.Status,
	}, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeNonDeterministic,
			Message: "determinism verification failed",
		}
	}
	if err := formatter.encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n\n", result.TotalRuns)
	for _, run := range result.Runs {
		printReplayRun(w, run, formatter.Verbose)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}

func printReplayRun(w io.Writer, run ReplayRunResult, verbose bool) {
	mark := "✓"
	if !run.Deterministic || !run.JournalIntact {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Run: %s (%s, %s)\n", mark, run.ContextID, run.Plan, run.Status)
	if verbose {
		fmt.Fprintf(w, "  Events: %d\n", run.Events)
		fmt.Fprintf(w, "  Recorded: %s\n", run.RecordedDigest)
		fmt.Fprintf(w, "  Replayed: %s\n", run.ReplayedDigest)
	}
	if !run.JournalIntact {
		fmt.Fprintln(w, "  Warning: journaled events do not match the recorded digest!")
	}
	if !run.Deterministic {
		fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
	}
	fmt.Fprintln(w)
}
