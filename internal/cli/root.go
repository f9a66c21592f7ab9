package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/phasedefer/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is the loaded configuration. Commands built without the root
	// command see nil and fall back to config.DefaultConfig.
	Config *config.Config

	// ConfigLoad is the base for locating the config file; ConfigFile
	// overrides its ConfigFilePath.
	ConfigLoad config.LoadOptions
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{config.FormatText, config.FormatJSON}

// NewRootCommand creates the root command for the phasedefer CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "phasedefer - deferred work for phased compilations",
		Long: `Run build plans through a multi-phase compilation pipeline whose
transformation units defer their work to a per-compilation scheduler.

Plans are written in CUE. Runs are journaled to SQLite so their traces can
be inspected and replayed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfig(opts, cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", config.FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./phasedefer.yaml or $XDG_CONFIG_HOME/phasedefer/phasedefer.yaml)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// applyConfig loads the config file and fills in every global flag the
// user did not set explicitly.
func applyConfig(opts *RootOptions, cmd *cobra.Command) error {
	load := opts.ConfigLoad
	if opts.ConfigFile != "" {
		load.ConfigFilePath = opts.ConfigFile
	}
	cfg, path, err := config.Load(cmd.Context(), load)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	opts.Config = cfg

	flags := cmd.Flags()
	if !flags.Changed("format") {
		opts.Format = cfg.Format
	}
	if !flags.Changed("verbose") {
		opts.Verbose = cfg.Verbose
	}

	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if path != "" && opts.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "using config %s\n", path)
	}
	return nil
}

// settings returns the loaded configuration or the defaults.
func (o *RootOptions) settings() *config.Config {
	if o.Config != nil {
		return o.Config
	}
	return config.DefaultConfig()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
