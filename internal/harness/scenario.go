package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phasedefer/internal/compiler"
	"github.com/roach88/phasedefer/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario compiles one plan under a fixed context identity and asserts
// on the resulting trace, class state and journal.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is a directory of CUE plan files.
	// Relative paths are resolved against the scenario's base path.
	Plan string `yaml:"plan,omitempty"`

	// PlanName selects one plan from Plan when the directory declares
	// several. May be empty when it declares exactly one.
	PlanName string `yaml:"plan_name,omitempty"`

	// PlanInline declares the plan directly in the scenario.
	// Exactly one of Plan and PlanInline must be set.
	PlanInline *ir.Plan `yaml:"plan_inline,omitempty"`

	// ContextID is an optional fixed context identity for deterministic tests.
	// If empty, defaults to testutil.DefaultContextID.
	ContextID string `yaml:"context_id,omitempty"`

	// Assertions validate the trace, class state and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_order": events appear in order (gaps allowed)
	// - "trace_count": an event label or kind appears exactly Count times
	// - "hook_count": the execute hook ran Count times in Phase
	// - "failure": the compilation failed as described
	// - "aux_after": an auxiliary pass ran after the deferred work of its phase
	// - "registry_empty": no scheduler state is left for the context
	// - "class_members": a class ends with exactly Members
	// - "journal": the run was journaled with Status
	Type string `yaml:"type"`

	// Events are event labels in expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Event is an event label (trace_count).
	Event string `yaml:"event,omitempty"`

	// Kind is a trace kind (trace_count), used when Event is empty.
	Kind string `yaml:"kind,omitempty"`

	// Phase names a pipeline phase (hook_count, failure).
	Phase string `yaml:"phase,omitempty"`

	// Count is the expected number of occurrences (trace_count, hook_count).
	Count int `yaml:"count,omitempty"`

	// Unit names a transformation unit (failure, aux_after).
	Unit string `yaml:"unit,omitempty"`

	// Class names a class (failure, class_members).
	Class string `yaml:"class,omitempty"`

	// Message is a substring of the failure message (failure).
	Message string `yaml:"message,omitempty"`

	// Pass names an auxiliary pass (aux_after).
	Pass string `yaml:"pass,omitempty"`

	// Members is the expected member list (class_members).
	Members []string `yaml:"members,omitempty"`

	// Status is the expected journal status (journal).
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertHookCount     = "hook_count"
	AssertFailure       = "failure"
	AssertAuxAfter      = "aux_after"
	AssertRegistryEmpty = "registry_empty"
	AssertClassMembers  = "class_members"
	AssertJournal       = "journal"
)

// LoadScenario reads and parses a scenario YAML file.
// Relative plan paths are resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the plan path relative to the provided base path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve plan path relative to base path BEFORE validation
	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) && basePath != "" {
		scenario.Plan = filepath.Join(basePath, scenario.Plan)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// LoadPlan returns the plan the scenario compiles. Inline plans get the
// default class kind where none is given, matching the CUE compiler.
func (s *Scenario) LoadPlan() (*ir.Plan, error) {
	if s.PlanInline != nil {
		p := *s.PlanInline
		p.Sources = make([]ir.SourceSpec, len(s.PlanInline.Sources))
		for i, src := range s.PlanInline.Sources {
			src.Classes = append([]ir.ClassSpec(nil), src.Classes...)
			for j := range src.Classes {
				if src.Classes[j].Kind == "" {
					src.Classes[j].Kind = ir.ClassKindClass
				}
			}
			p.Sources[i] = src
		}
		if p.Name == "" {
			p.Name = s.Name
		}
		return &p, nil
	}

	plans, err := compiler.LoadPlans(s.Plan)
	if err != nil {
		return nil, fmt.Errorf("load plans from %s: %w", s.Plan, err)
	}
	if s.PlanName == "" {
		if len(plans) != 1 {
			return nil, fmt.Errorf("%s declares %d plans, plan_name is required", s.Plan, len(plans))
		}
		return &plans[0], nil
	}
	for i := range plans {
		if plans[i].Name == s.PlanName {
			return &plans[i], nil
		}
	}
	return nil, fmt.Errorf("plan %q not found in %s", s.PlanName, s.Plan)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Plan == "" && s.PlanInline == nil:
		return fmt.Errorf("one of plan or plan_inline is required")
	case s.Plan != "" && s.PlanInline != nil:
		return fmt.Errorf("plan and plan_inline are mutually exclusive")
	}

	if s.Plan != "" {
		if _, err := os.Stat(s.Plan); os.IsNotExist(err) {
			return fmt.Errorf("plan directory not found: %s", s.Plan)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" && a.Kind == "" {
			return fmt.Errorf("assertions[%d]: event or kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertHookCount:
		if _, err := ir.ParsePhase(a.Phase); err != nil {
			return fmt.Errorf("assertions[%d]: hook_count: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for hook_count", index)
		}
	case AssertFailure:
		if a.Phase != "" {
			if _, err := ir.ParsePhase(a.Phase); err != nil {
				return fmt.Errorf("assertions[%d]: failure: %w", index, err)
			}
		}
	case AssertAuxAfter:
		if a.Pass == "" {
			return fmt.Errorf("assertions[%d]: pass is required for aux_after", index)
		}
	case AssertRegistryEmpty:
	case AssertClassMembers:
		if a.Class == "" {
			return fmt.Errorf("assertions[%d]: class is required for class_members", index)
		}
	case AssertJournal:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
