package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sprig/internal/queryir"
)

// Scenario defines a conformance test scenario.
// A scenario builds one script and asserts on the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the run id and
	// the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Script is the inline script source. Exactly one of Script and File
	// must be set.
	Script string `yaml:"script,omitempty"`

	// File is a path to the script, relative to the scenario file.
	File string `yaml:"file,omitempty"`

	// Seed fixes the build seed. When nil the script's own seed setting
	// is used, then testutil.DefaultSeed.
	Seed *uint32 `yaml:"seed,omitempty"`

	// Set overrides criteria after the script's own settings.
	Set map[string]string `yaml:"set,omitempty"`

	// Variables overrides script variables.
	Variables map[string]float64 `yaml:"variables,omitempty"`

	// Limit stops the build from the callback after this many objects.
	Limit int `yaml:"limit,omitempty"`

	// Assertions validate the recorded trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden compares the trace against testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`

	// ExpectError makes the scenario pass only if compiling or building
	// fails with an error containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the recorded trace or the build statistics.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_count": exactly Count objects
	// - "label_count": exactly Count objects labelled Label
	// - "label_order": Labels first appear in this order
	// - "event": the object at Seq matches Label, Param, Position, Color
	// - "stat": statistic Stat equals Count
	// - "trace_hash": the trace hash equals Hash
	// - "match_count": exactly Count objects satisfy every Where filter
	Type string `yaml:"type"`

	Count int `yaml:"count,omitempty"`

	Label  string   `yaml:"label,omitempty"`
	Labels []string `yaml:"labels,omitempty"`

	Seq      int64     `yaml:"seq,omitempty"`
	Param    *string   `yaml:"param,omitempty"`
	Position []float64 `yaml:"position,omitempty"`
	Color    string    `yaml:"color,omitempty"`

	// Tolerance bounds position comparisons. Defaults to 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	Stat string `yaml:"stat,omitempty"`
	Hash string `yaml:"hash,omitempty"`

	// Where holds trace filter expressions such as "label = box" or
	// "x >= 2", as accepted by sprig trace --where.
	Where []string `yaml:"where,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount = "event_count"
	AssertLabelCount = "label_count"
	AssertLabelOrder = "label_order"
	AssertEvent      = "event"
	AssertStat       = "stat"
	AssertTraceHash  = "trace_hash"
	AssertMatchCount = "match_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A script file is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields ("assertion:" vs "assertions:").
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.File != "" && !filepath.IsAbs(scenario.File) {
		scenario.File = filepath.Join(filepath.Dir(path), scenario.File)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. Scenario names must be unique.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario name %q used by both %s and %s", s.Name, prev, path)
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Source returns the script the scenario builds.
func (s *Scenario) Source() (string, error) {
	if s.File == "" {
		return s.Script, nil
	}
	data, err := os.ReadFile(s.File)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
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
	case s.Script == "" && s.File == "":
		return fmt.Errorf("one of script or file is required")
	case s.Script != "" && s.File != "":
		return fmt.Errorf("script and file are mutually exclusive")
	}

	if s.File != "" {
		if _, err := os.Stat(s.File); os.IsNotExist(err) {
			return fmt.Errorf("script file not found: %s", s.File)
		}
	}

	if s.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}

	if len(s.Assertions) == 0 && !s.Golden && s.ExpectError == "" {
		return fmt.Errorf("assertions, golden or expect_error is required")
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
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertLabelCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for label_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for label_count", index)
		}
	case AssertLabelOrder:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for label_order", index)
		}
	case AssertEvent:
		if a.Seq < 1 {
			return fmt.Errorf("assertions[%d]: seq must be positive for event", index)
		}
		if a.Position != nil && len(a.Position) != 3 {
			return fmt.Errorf("assertions[%d]: position needs 3 coordinates, got %d", index, len(a.Position))
		}
	case AssertStat:
		if _, ok := statValue(a.Stat, nil); !ok {
			return fmt.Errorf("assertions[%d]: unknown stat %q", index, a.Stat)
		}
	case AssertTraceHash:
		if a.Hash == "" {
			return fmt.Errorf("assertions[%d]: hash is required for trace_hash", index)
		}
	case AssertMatchCount:
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for match_count", index)
		}
		if _, err := queryir.ParseFilter(a.Where); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for match_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
