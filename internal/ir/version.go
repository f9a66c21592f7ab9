package ir

// Version constants for the plan/trace schema and the engine.
const (
	// IRVersion is the plan and trace schema version.
	IRVersion = "1"

	// EngineVersion is the phasedefer engine version.
	EngineVersion = "0.1.0"
)
