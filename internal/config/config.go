package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "phasedefer"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "phasedefer"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "PHASEDEFER"
)

// Output formats accepted by Config.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the CLI defaults.
type Config struct {
	// Format is the output format: "text" or "json".
	Format string `mapstructure:"format"`
	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
	// DB is the run journal path. Empty disables journaling for run.
	DB string `mapstructure:"db"`
	// OTelOutput is where spans are written: "", "stdout", "stderr" or a
	// file path. Empty disables tracing.
	OTelOutput string `mapstructure:"otel_output"`
	// Concurrency bounds how many plans run compiles at once; 0 means
	// no limit.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Format:      FormatText,
		Concurrency: 0,
	}
}

// LoadOptions controls where Load looks for the config file.
type LoadOptions struct {
	// ConfigFilePath is used exclusively when set; it must exist.
	ConfigFilePath string
	// ConfigDirPath overrides the user config directory.
	ConfigDirPath string
	// WorkDir overrides the working directory lookup. Default: ".".
	WorkDir string
}

// ConfigDir returns the user configuration directory, honouring
// $XDG_CONFIG_HOME and falling back to ~/.config.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName), nil
}

// Load reads the configuration. It returns the config and the path of the
// file it was read from, or "" when only defaults and environment applied.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("format", defaults.Format)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("db", defaults.DB)
	v.SetDefault("otel_output", defaults.OTelOutput)
	v.SetDefault("concurrency", defaults.Concurrency)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", displayPath(path), err)
	}
	return &cfg, path, nil
}

// Validate checks value constraints the file format cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != FormatText && c.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("format: must be %q or %q, got %q", FormatText, FormatJSON, c.Format))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency: must be >= 0, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

// resolvePath picks the config file to read, or "" if there is none.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	name := ConfigFileName + "." + ConfigFileExt
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	if local := filepath.Join(workDir, name); fileExists(local) {
		return local, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if user := filepath.Join(dir, name); fileExists(user) {
		return user, nil
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
