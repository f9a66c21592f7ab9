// Package ir provides the shared data types for phasedefer.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Phases are totally ordered; Finalization is always the terminal phase
//   - Trace ordering uses logical seq numbers only, never wall-clock time
//   - All JSON tags use snake_case
package ir
