package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario file under testdata.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Passed(), "failures: %v", result.Failures)
		})
	}
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	src := `name: typo
description: misspelled section
steps:
  - op: create_type
    type: word
assertion:
  - type: confirmed_value
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err, "unknown top-level fields must be rejected")
}

func TestLoadScenario_MissingRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ndescription: y\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}

func TestRun_FailedAssertionIsNotAnError(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "a wrong expectation fails the result, not the run",
		Steps: []Step{
			{Op: "create_type", Type: "word"},
			{Op: "create_feature", Type: "word", Tier: "gloss", Feature: "primary", Kind: "str"},
			{Op: "create_unit", Type: "word", User: "alice", As: "w1"},
			{Op: "set_features", Unit: "w1", User: "alice", Confidence: 5,
				Features: []Field{{Tier: "gloss", Feature: "primary", Value: "run"}}},
		},
		Assertions: []Assertion{
			{Type: AssertConfirmedValue, Unit: "w1", Tier: "gloss", Feature: "primary", Value: "walk"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "want walk")
}

func TestRun_UnexpectedStepFailureIsAnError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad-step",
		Description: "an unexpected operation failure aborts the run",
		Steps: []Step{
			{Op: "create_unit", Type: "word", User: "alice"},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestRun_ExpectedErrorMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong-code",
		Description: "a step expecting the wrong error code fails the run",
		Steps: []Step{
			{Op: "create_type", Type: "word"},
			{Op: "create_type", Type: "word", ExpectError: "UNKNOWN_TYPE"},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALREADY_EXISTS")
}
