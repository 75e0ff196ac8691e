package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Graph is the directory of CUE files defining the graph. Relative
	// paths are resolved against the scenario file's directory.
	Graph string `yaml:"graph"`

	// Root names the root atom. Empty means a combine of every atom.
	Root string `yaml:"root,omitempty"`

	// Session is the journal session token. Empty means
	// testutil.DefaultSession.
	Session string `yaml:"session,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario step. Exactly one of Dispatch, Subscribe or
// Unsubscribe is set.
type Step struct {
	// Dispatch names the action to dispatch.
	Dispatch string `yaml:"dispatch,omitempty"`
	Payload  any    `yaml:"payload,omitempty"`
	Key      any    `yaml:"key,omitempty"`

	// Subscribe attaches an atom through a subscription; Unsubscribe
	// drops the oldest subscription to it.
	Subscribe   string `yaml:"subscribe,omitempty"`
	Unsubscribe string `yaml:"unsubscribe,omitempty"`

	// Expect validates the dispatch. If nil, the dispatch must succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect specifies the expected outcome of a dispatch step.
type StepExpect struct {
	// Changed is the exact list of changed ids, in order.
	Changed []string `yaml:"changed,omitempty"`

	// State holds expected atom values after the step (subset match).
	State map[string]any `yaml:"state,omitempty"`

	// Error, when set, requires the dispatch to fail with an error whose
	// message contains it.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final trace or state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Atom and Expect are used by final_state.
	Atom   string `yaml:"atom,omitempty"`
	Expect any    `yaml:"expect,omitempty"`

	// IDs are used by changed_contains and changed_excludes.
	IDs []string `yaml:"ids,omitempty"`

	// Count is used by changed_count.
	Count *int `yaml:"count,omitempty"`

	// Step is the 1-based step the changed_* assertions inspect. Zero
	// means the last dispatch step.
	Step int `yaml:"step,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState      = "final_state"
	AssertChangedContains = "changed_contains"
	AssertChangedExcludes = "changed_excludes"
	AssertChangedCount    = "changed_count"
	AssertDeterministic   = "deterministic"
)

// LoadScenario reads and parses a scenario YAML file. The graph path is
// resolved relative to the file. Unknown fields (typos) are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without resolving the graph path.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that all required fields are present.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}

	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, index int) error {
	set := 0
	for _, v := range []string{step.Dispatch, step.Subscribe, step.Unsubscribe} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: set exactly one of dispatch, subscribe or unsubscribe", index)
	}
	if step.Dispatch == "" && (step.Expect != nil || step.Payload != nil || step.Key != nil) {
		return fmt.Errorf("steps[%d]: payload, key and expect apply to dispatch steps only", index)
	}
	return nil
}

func validateAssertion(a Assertion, index, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step < 0 || a.Step > steps {
		return fmt.Errorf("assertions[%d]: step %d out of range 1..%d", index, a.Step, steps)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Atom == "" {
			return fmt.Errorf("assertions[%d]: atom is required for final_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertChangedContains, AssertChangedExcludes:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids are required for %s", index, a.Type)
		}
	case AssertChangedCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for changed_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for changed_count", index)
		}
	case AssertDeterministic:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
