package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/phasedefer/internal/compiler"
	"github.com/roach88/phasedefer/internal/config"
	"github.com/roach88/phasedefer/internal/engine"
	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/store"
	"github.com/roach88/phasedefer/internal/tracing"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Plans       []string // plan names to run; empty runs every plan
	OTelOutput  string
	Concurrency int

	// IDGenerator overrides the context identity generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.ContextIDGenerator
}

// RunSummary is the run command's result for one plan.
type RunSummary struct {
	Plan      string       `json:"plan"`
	ContextID ir.ContextID `json:"context_id"`
	Status    string       `json:"status"`
	Events    int          `json:"events"`
	Digest    string       `json:"digest"`
	Error     string       `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan-dir>",
		Short: "Compile plans through the pipeline",
		Long: `Run the CUE build plans in a directory through every pipeline phase.

Each plan gets its own compilation context. Plans run concurrently, at most
--concurrency at a time. With --db every run and its trace are journaled
so they can be inspected with trace and checked with replay.

Example:
  phasedefer run ./plans
  phasedefer run --db ./runs.db --plan shapes ./plans
  phasedefer run --otel-out stderr ./plans --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlans(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal (default from config)")
	cmd.Flags().StringSliceVar(&opts.Plans, "plan", nil, "run only the named plan (repeatable)")
	cmd.Flags().StringVar(&opts.OTelOutput, "otel-out", "", "write OpenTelemetry spans to stdout, stderr or a file")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "maximum plans compiled at once (0 = no limit)")

	return cmd
}

func runPlans(opts *RunOptions, planDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.settings()
	flags := cmd.Flags()
	if !flags.Changed("db") {
		opts.Database = cfg.DB
	}
	if !flags.Changed("otel-out") {
		opts.OTelOutput = cfg.OTelOutput
	}
	if !flags.Changed("concurrency") {
		opts.Concurrency = cfg.Concurrency
	}
	if opts.Concurrency < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("concurrency must be >= 0, got %d", opts.Concurrency))
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	shutdown, err := tracing.Init(config.AppName, ir.EngineVersion, opts.OTelOutput)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize tracing", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("error shutting down tracing", "error", err)
		}
	}()

	logger.Info("loading plans", "dir", planDir)
	plans, err := selectPlans(planDir, opts.Plans)
	if err != nil {
		code, message := parseCompileError(err)
		return formatter.Fail(ExitCommandError, code, message)
	}
	logger.Info("plans loaded", "count", len(plans))

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Database != "" {
		logger.Info("opening journal", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open journal: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithStore(st))
	}
	eng := engine.New(engineOpts...)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling compilations", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	results, err := eng.CompileAll(ctx, plans, opts.Concurrency)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "run cancelled", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeRunFailed, err.Error())
	}

	return outputRunResults(formatter, results)
}

// newLogger builds the text logger used for diagnostics on w.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// selectPlans loads and validates the plans in dir, keeping only the named
// ones when names is non-empty.
func selectPlans(dir string, names []string) ([]*ir.Plan, error) {
	loadResult, loadErrors := LoadPlans(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	var plans []*ir.Plan
	if len(names) == 0 {
		for i := range loadResult.Plans {
			plans = append(plans, &loadResult.Plans[i])
		}
	} else {
		for _, name := range names {
			p, ok := loadResult.Plan(name)
			if !ok {
				return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plan %q not found in %s", name, dir)}
			}
			plans = append(plans, p)
		}
	}

	for _, p := range plans {
		if errs := compiler.ValidatePlan(p); len(errs) > 0 {
			return nil, &LoadError{Code: errs[0].Code, Message: fmt.Sprintf("plan %s: %s: %s", p.Name, errs[0].Field, errs[0].Message)}
		}
	}
	return plans, nil
}

// outputRunResults prints one line per compilation. Any failed compilation
// makes the command exit with ExitFailure.
func outputRunResults(formatter *OutputFormatter, results []*engine.Result) error {
	summaries := make([]RunSummary, len(results))
	failed := 0
	for i, res := range results {
		s := RunSummary{
			Plan:      res.Plan,
			ContextID: res.ContextID,
			Status:    string(store.RunSucceeded),
			Events:    len(res.Trace),
			Digest:    res.Digest,
		}
		if !res.Succeeded() {
			s.Status = string(store.RunFailed)
			s.Error = res.Err.Error()
			failed++
		}
		summaries[i] = s
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summaries}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeCompilationFailed, Message: fmt.Sprintf("%d compilation(s) failed", failed)}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, s := range summaries {
			mark := "✓"
			if s.Status == string(store.RunFailed) {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s [%s] %d event(s) %s\n", mark, s.Plan, s.ContextID, s.Events, shortDigest(s.Digest))
			if s.Error != "" {
				fmt.Fprintf(w, "    %s\n", s.Error)
			}
		}
		fmt.Fprintf(w, "\n%d plan(s): %d succeeded, %d failed\n", len(summaries), len(summaries)-failed, failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d compilation(s) failed", failed))
	}
	return nil
}
