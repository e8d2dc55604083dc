package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cylcview/internal/deltas"
)

// DefaultWorkflow is the workflow id used when a scenario names none.
const DefaultWorkflow = "~test/workflow"

// Scenario is one delta scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Workflow is the subscription parameter. Defaults to DefaultWorkflow.
	Workflow string `yaml:"workflow,omitempty"`

	// Batches are delivered in order.
	Batches []Step `yaml:"batches"`

	// Assertions are checked against the final table.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one batch in wire shape plus an optional expectation about the
// outcome of applying it.
type Step struct {
	Expect *StepExpect `yaml:"expect,omitempty"`

	// Batch holds every other key of the step, decoded as a deltas.Batch.
	Batch map[string]any `yaml:",inline"`
}

// StepExpect checks the reconciler outcome for one batch.
type StepExpect struct {
	// Error is "", "sequence", "snapshot" or "protocol".
	Error   string `yaml:"error,omitempty"`
	Applied *int   `yaml:"applied,omitempty"`
	Failed  *int   `yaml:"failed,omitempty"`
}

// Assertion checks the final table or the diagnostics.
type Assertion struct {
	// Type selects the check, see the Assert* constants.
	Type string `yaml:"type"`

	// ID is the node the assertion is about. For children an empty id
	// means the top-level cycle points.
	ID string `yaml:"id,omitempty"`

	// State is the expected node state (node_state). Ghosts are "".
	State *string `yaml:"state,omitempty"`

	// Children is the expected child id order (children).
	Children []string `yaml:"children,omitempty"`

	// Summary and States describe a cycle point tally (tally). States is a
	// subset match.
	Summary *string        `yaml:"summary,omitempty"`
	States  map[string]int `yaml:"states,omitempty"`

	// Code filters reports (report_count). Empty counts every report.
	Code string `yaml:"code,omitempty"`

	// Count is the expected number (node_count, report_count,
	// dropped_updates).
	Count *int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertNodeState      = "node_state"
	AssertNodePresent    = "node_present"
	AssertNodeAbsent     = "node_absent"
	AssertChildren       = "children"
	AssertTally          = "tally"
	AssertNodeCount      = "node_count"
	AssertReportCount    = "report_count"
	AssertDroppedUpdates = "dropped_updates"
)

// Step error names.
const (
	StepErrorSequence = "sequence"
	StepErrorSnapshot = "snapshot"
	StepErrorProtocol = "protocol"
)

// LoadScenario reads and validates a scenario file. Unknown keys outside
// batch payloads are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// WorkflowID returns the subscription workflow id.
func (s *Scenario) WorkflowID() string {
	if s.Workflow == "" {
		return DefaultWorkflow
	}
	return s.Workflow
}

// DecodeBatches converts every step to a deltas.Batch.
func (s *Scenario) DecodeBatches() ([]*deltas.Batch, error) {
	batches := make([]*deltas.Batch, len(s.Batches))
	for i, step := range s.Batches {
		b, err := step.Decode()
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		batches[i] = b
	}
	return batches, nil
}

// Decode converts the step payload to a deltas.Batch through its JSON wire
// form. Unknown payload keys are rejected.
func (st Step) Decode() (*deltas.Batch, error) {
	raw, err := json.Marshal(st.Batch)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var b deltas.Batch
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &b, nil
}

var validAssertions = map[string]bool{
	AssertNodeState:      true,
	AssertNodePresent:    true,
	AssertNodeAbsent:     true,
	AssertChildren:       true,
	AssertTally:          true,
	AssertNodeCount:      true,
	AssertReportCount:    true,
	AssertDroppedUpdates: true,
}

var validStepErrors = map[string]bool{
	"":                true,
	StepErrorSequence: true,
	StepErrorSnapshot: true,
	StepErrorProtocol: true,
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain slashes or spaces", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	for i, step := range s.Batches {
		if _, err := step.Decode(); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		if step.Expect != nil && !validStepErrors[step.Expect.Error] {
			return fmt.Errorf("batch %d: unknown expected error %q", i, step.Expect.Error)
		}
	}

	for i, a := range s.Assertions {
		if !validAssertions[a.Type] {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertNodeState:
		if a.ID == "" || a.State == nil {
			return fmt.Errorf("id and state are required")
		}
	case AssertNodePresent, AssertNodeAbsent:
		if a.ID == "" {
			return fmt.Errorf("id is required")
		}
	case AssertTally:
		if a.ID == "" {
			return fmt.Errorf("id is required")
		}
		if a.Summary == nil && a.States == nil {
			return fmt.Errorf("summary or states is required")
		}
	case AssertNodeCount, AssertReportCount, AssertDroppedUpdates:
		if a.Count == nil {
			return fmt.Errorf("count is required")
		}
	}
	return nil
}
