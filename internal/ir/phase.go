package ir

import (
	"fmt"
	"strings"
)

// Phase is a named, totally ordered stage of the compilation pipeline.
// The zero value is not a valid phase.
type Phase int

const (
	PhaseInitialization Phase = iota + 1
	PhaseParsing
	PhaseConversion
	PhaseSemanticAnalysis
	PhaseCanonicalization
	PhaseInstructionSelection
	PhaseClassGeneration
	PhaseOutput
	PhaseFinalization
)

// FirstPhase and TerminalPhase bound the pipeline.
const (
	FirstPhase    = PhaseInitialization
	TerminalPhase = PhaseFinalization
)

var phaseNames = map[Phase]string{
	PhaseInitialization:       "initialization",
	PhaseParsing:              "parsing",
	PhaseConversion:           "conversion",
	PhaseSemanticAnalysis:     "semantic_analysis",
	PhaseCanonicalization:     "canonicalization",
	PhaseInstructionSelection: "instruction_selection",
	PhaseClassGeneration:      "class_generation",
	PhaseOutput:               "output",
	PhaseFinalization:         "finalization",
}

// AllPhases returns every phase in pipeline order.
func AllPhases() []Phase {
	phases := make([]Phase, 0, int(TerminalPhase))
	for p := FirstPhase; p <= TerminalPhase; p++ {
		phases = append(phases, p)
	}
	return phases
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= FirstPhase && p <= TerminalPhase
}

// String returns the snake_case phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether p is the last phase the pipeline runs.
func (p Phase) Terminal() bool {
	return p == TerminalPhase
}

// RequiresAuxiliaryPasses reports whether the host has completion passes
// that must run after deferred work in this phase.
func (p Phase) RequiresAuxiliaryPasses() bool {
	return p == PhaseSemanticAnalysis || p == PhaseCanonicalization
}

// ParsePhase resolves a phase from its name. Matching ignores case and
// accepts '-' or ' ' in place of '_', so "SEMANTIC_ANALYSIS" and
// "semantic-analysis" both resolve.
func ParsePhase(s string) (Phase, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for p, name := range phaseNames {
		if name == key {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
