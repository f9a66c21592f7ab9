package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/phasedefer/internal/ir"
)

// marshalPlan converts a plan to JSON TEXT for storage.
// HTML escaping is disabled so names containing <, > or & are stored as-is.
func marshalPlan(p ir.Plan) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalPlan parses JSON TEXT to a plan.
func unmarshalPlan(data string) (ir.Plan, error) {
	var p ir.Plan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return ir.Plan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	return p, nil
}
