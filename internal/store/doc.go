// Package store provides the SQLite-backed run journal.
//
// Every compilation the engine runs can be journaled as:
//   - Runs: the plan that was compiled, its outcome and trace digest
//   - Trace events: the ordered events of the run, keyed by (context, seq)
//
// # Critical Patterns
//
// Logical time: trace events are ordered by their seq (from the engine's
// logical clock), never by timestamps. ReadTrace always orders by seq.
//
// Idempotency: writing the same run twice is a no-op; the first write wins.
//
// Deterministic payloads: plans are stored as JSON with HTML escaping
// disabled so the stored text round-trips byte for byte.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
