package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// Update rewrites golden files instead of comparing against them.
	Update bool

	// Filter is a glob matched against scenario file names without extension.
	Filter string
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// RunSuite runs every scenario found under paths. A path is either a
// scenario file or a directory searched recursively for .yaml/.yml files.
//
// For each scenario:
// 1. Load it, resolving its plan relative to the scenario file
// 2. Run it via harness.Run
// 3. Compare against (or with Update, rewrite) its golden file if present
func RunSuite(paths []string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := ResolveScenarios(paths, opts.Filter)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioOutcome, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		outcome := RunScenarioFile(file, opts.Update)
		result.Scenarios = append(result.Scenarios, outcome)
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// RunScenarioFile loads and runs one scenario file.
func RunScenarioFile(path string, update bool) ScenarioOutcome {
	outcome := ScenarioOutcome{Path: path, Name: filepath.Base(path)}

	scenario, err := LoadScenario(path)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return outcome
	}
	outcome.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return outcome
	}
	outcome.Errors = append(outcome.Errors, result.Errors...)

	goldenPath := GoldenPath(path)
	switch {
	case update:
		if err := WriteGolden(goldenPath, scenario.Name, result); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		} else {
			outcome.GoldenUpdated = true
		}
	case fileExists(goldenPath):
		match, err := CompareGolden(goldenPath, scenario.Name, result)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		} else if !match {
			outcome.Errors = append(outcome.Errors, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	outcome.Pass = len(outcome.Errors) == 0
	return outcome
}

// ResolveScenarios expands paths into scenario files, in walk order.
func ResolveScenarios(paths []string, filter string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := FindScenarioFiles(p, filter)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// FindScenarioFiles finds all YAML scenario files in a directory.
func FindScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
