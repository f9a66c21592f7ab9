// Package tracing installs the OpenTelemetry tracer provider used by the
// phasedefer CLI.
//
// The engine always starts spans through the global provider. Without Init
// those spans are no-ops; after Init every compilation becomes a span whose
// events mirror the run's trace, written as JSON by the stdout exporter.
package tracing
