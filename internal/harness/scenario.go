package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance scenario: an optional bootstrap
// template, a sequence of operations, and assertions over the final
// state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Template is an optional CUE bootstrap template applied before
	// the steps, resolved relative to the scenario file.
	Template string `yaml:"template,omitempty"`

	// Steps are executed in order against a fresh project.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Op selects the operation; the remaining
// fields are read per op. Unit-producing ops bind their id to As so
// later steps and assertions can reference it by label.
type Step struct {
	// Op is one of: create_type, create_feature, create_unit,
	// set_features, suggest, set_parent, add_parent, remove_parent.
	Op string `yaml:"op"`

	Type    string `yaml:"type,omitempty"`
	Tier    string `yaml:"tier,omitempty"`
	Feature string `yaml:"feature,omitempty"`
	Kind    string `yaml:"kind,omitempty"`

	// As binds the created unit id to a label (create_unit).
	As string `yaml:"as,omitempty"`

	// Unit/Parent/Child reference labels bound by earlier steps.
	Unit   string `yaml:"unit,omitempty"`
	Parent string `yaml:"parent,omitempty"`
	Child  string `yaml:"child,omitempty"`

	User       string  `yaml:"user,omitempty"`
	Confidence int64   `yaml:"confidence,omitempty"`
	Features   []Field `yaml:"features,omitempty"`

	// Value/Probability feed the suggest op.
	Value       any      `yaml:"value,omitempty"`
	Probability *float64 `yaml:"probability,omitempty"`

	// ExpectError names the error code a step must fail with. A step
	// without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Field is one feature assignment inside a set_features step.
type Field struct {
	Tier    string `yaml:"tier"`
	Feature string `yaml:"feature"`
	Value   any    `yaml:"value"`
}

// Assertion validates one aspect of the final state.
type Assertion struct {
	// Type is one of: confirmed_value, no_entry, suggestion_values,
	// children, materialize_error, history_rows.
	Type string `yaml:"type"`

	Unit    string `yaml:"unit,omitempty"`
	Tier    string `yaml:"tier,omitempty"`
	Feature string `yaml:"feature,omitempty"`

	// Value is the expected confirmed value (confirmed_value).
	Value any `yaml:"value,omitempty"`
	// User is the expected attributing user (confirmed_value).
	User string `yaml:"user,omitempty"`

	// Values are the expected suggestion values in order
	// (suggestion_values).
	Values []any `yaml:"values,omitempty"`

	// Nested/Referred are expected child counts per form (children).
	Nested   int `yaml:"nested,omitempty"`
	Referred int `yaml:"referred,omitempty"`

	// Code is the expected error code (materialize_error).
	Code string `yaml:"code,omitempty"`

	// Total/Inactive are expected ledger row counts for the key
	// (history_rows); Kind selects the ledger.
	Kind     string `yaml:"kind,omitempty"`
	Total    int    `yaml:"total,omitempty"`
	Inactive int    `yaml:"inactive,omitempty"`
}

// Assertion type constants.
const (
	AssertConfirmedValue   = "confirmed_value"
	AssertNoEntry          = "no_entry"
	AssertSuggestionValues = "suggestion_values"
	AssertChildren         = "children"
	AssertMaterializeError = "materialize_error"
	AssertHistoryRows      = "history_rows"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly. A relative template path is
// resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if scenario.Template != "" && !filepath.IsAbs(scenario.Template) {
		scenario.Template = filepath.Join(filepath.Dir(path), scenario.Template)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	return nil
}

// FindScenarios lists the scenario files in a directory.
func FindScenarios(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
