package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/report"
)

// Scenario defines a conformance test scenario: a log, the profile it is
// read under, and what the run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Profile is the variant the log is analysed under.
	Profile string `yaml:"profile"`

	// Overrides are applied to the variant's default profile, using the
	// same keys as a config file.
	Overrides yaml.Node `yaml:"overrides,omitempty"`

	// Dialect is an optional CUE dialect file replacing the built-in
	// markers. DialectName selects one dialect when the file has several.
	Dialect     string `yaml:"dialect,omitempty"`
	DialectName string `yaml:"dialect_name,omitempty"`

	// Log is a log file path. Exactly one of Log and Lines is set.
	Log string `yaml:"log,omitempty"`

	// Lines are inline log lines.
	Lines []string `yaml:"lines,omitempty"`

	// RunID is a fixed run id. Defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the summary, notes and transcript.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultRunID is used when a scenario does not set run_id.
const DefaultRunID = "scenario-run-default"

// Assertion validates one aspect of a finished run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Outcome is the expected outcome column (used by outcome).
	Outcome string `yaml:"outcome,omitempty"`

	// Column and Value name a CSV column or metric and its expected
	// rendering (used by metric).
	Column string `yaml:"column,omitempty"`
	Value  string `yaml:"value,omitempty"`

	// Count is the expected number of closed cycles (used by cycle_count).
	Count int `yaml:"count,omitempty"`

	// Contains is the expected substring (used by note_contains and
	// transcript_contains).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome            = "outcome"
	AssertMetric             = "metric"
	AssertCycleCount         = "cycle_count"
	AssertNoteContains       = "note_contains"
	AssertTranscriptContains = "transcript_contains"
)

// LoadScenario reads and parses a scenario YAML file. Log and dialect
// paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving log and dialect paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve paths BEFORE validation
	if basePath != "" {
		if scenario.Log != "" && !filepath.IsAbs(scenario.Log) {
			scenario.Log = filepath.Join(basePath, scenario.Log)
		}
		if scenario.Dialect != "" && !filepath.IsAbs(scenario.Dialect) {
			scenario.Dialect = filepath.Join(basePath, scenario.Dialect)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly inside dir,
// in lexical order.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := ir.ParseVariant(s.Profile); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	if s.Log == "" && len(s.Lines) == 0 {
		return fmt.Errorf("log or lines is required")
	}
	if s.Log != "" && len(s.Lines) > 0 {
		return fmt.Errorf("log and lines are mutually exclusive")
	}

	if s.Log != "" {
		if _, err := os.Stat(s.Log); os.IsNotExist(err) {
			return fmt.Errorf("log file not found: %s", s.Log)
		}
	}
	if s.Dialect != "" {
		if _, err := os.Stat(s.Dialect); os.IsNotExist(err) {
			return fmt.Errorf("dialect file not found: %s", s.Dialect)
		}
	}
	if s.DialectName != "" && s.Dialect == "" {
		return fmt.Errorf("dialect_name requires dialect")
	}

	if s.Overrides.Kind != 0 && s.Overrides.Kind != yaml.MappingNode {
		return fmt.Errorf("overrides must be a mapping")
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
	case AssertOutcome:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome", index)
		}
	case AssertMetric:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for metric", index)
		}
		if !knownColumn(a.Column) {
			return fmt.Errorf("assertions[%d]: unknown column %q", index, a.Column)
		}
	case AssertCycleCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for cycle_count", index)
		}
	case AssertNoteContains, AssertTranscriptContains:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownColumn(name string) bool {
	for _, h := range report.CSVHeader {
		if h == name {
			return true
		}
	}
	for _, row := range report.MetricRows(report.Summary{}) {
		if row[0] == name {
			return true
		}
	}
	return false
}
