package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_ScenarioFiles(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(s.Batches))
		})
	}
}

func TestRunWithGolden_SnapshotThenPatch(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "snapshot_then_patch"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "failure_isolation")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, first.Digest, second.Digest)
	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_StepErrorsAreNamed(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "lifecycle_errors"))
	require.NoError(t, err)

	var errs []string
	for _, s := range result.Steps {
		errs = append(errs, s.Error)
	}
	assert.Equal(t, []string{StepErrorSequence, StepErrorSnapshot, "", StepErrorProtocol, ""}, errs)
	assert.True(t, result.Steps[4].Shutdown)
}

func TestRun_FailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
description: every expectation here is wrong
batches:
  - id: early
    updated:
      taskProxies: [{id: x, state: running}]
  - id: snap
    added:
      workflow: {id: "~u/w", cyclePoints: [{id: cp, cyclePoint: "1"}]}
    expect:
      error: protocol
      applied: 9
assertions:
  - {type: node_state, id: cp, state: running}
  - {type: node_count, count: 7}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "unexpected sequence error")
	assert.Contains(t, result.Errors[1], `error "", expected "protocol"`)
	assert.Contains(t, result.Errors[2], "applied 2, expected 9")
	assert.Contains(t, result.Errors[3], "node_state")
	assert.Contains(t, result.Errors[4], "node_count 7")
}

func TestRun_DefaultWorkflow(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: defaults
description: no workflow given
batches:
  - {id: b, shutdown: true}
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkflow, s.WorkflowID())

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "sub-1", result.Steps[0].SubscriptionID)
}
