// Package config loads CLI defaults using Viper.
//
// Configuration is read from phasedefer.yaml, looked up in this order:
//   - the file given with --config
//   - phasedefer.yaml in the working directory
//   - $XDG_CONFIG_HOME/phasedefer/phasedefer.yaml (~/.config/phasedefer on
//     most systems)
//
// Every key can be overridden by a PHASEDEFER_-prefixed environment
// variable (PHASEDEFER_DB, PHASEDEFER_OTEL_OUTPUT, ...). Command-line flags
// that were set explicitly take precedence over both.
package config
