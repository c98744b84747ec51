package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/engine"
)

// Scenario is a reasoning test scenario.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Program is the path of a program document (.yaml or .cue) loaded
	// before setup. Relative paths resolve against the scenario file.
	Program string `yaml:"program,omitempty"`

	// Engine overrides engine limits and policies.
	Engine engine.Config `yaml:"engine,omitempty"`

	// Setup steps change the database before the flow. Their outcomes
	// are traced but carry no expectations.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps run in order; each may carry an expectation.
	Flow []Step `yaml:"flow"`

	// Assertions check the trace and the final database.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action. Exactly one of Assert, Retract, Query and Derive is
// set.
type Step struct {
	Assert  any         `yaml:"assert,omitempty"`
	Retract any         `yaml:"retract,omitempty"`
	Query   any         `yaml:"query,omitempty"`
	Derive  *DeriveStep `yaml:"derive,omitempty"`

	// Limit caps the answers a query collects (0 = all).
	Limit int `yaml:"limit,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// DeriveStep runs forward chaining.
type DeriveStep struct {
	MaxIterations int `yaml:"max_iterations,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Answers are the rendered answers, in order ("X = a, Y = b" or
	// "true"). An empty list expects no solution.
	Answers []string `yaml:"answers,omitempty"`

	// None expects the query to have no solution.
	None bool `yaml:"none,omitempty"`

	// Count is the expected number of answers or derived facts.
	Count *int `yaml:"count,omitempty"`

	// Error is the expected error code, e.g. RESOURCE_EXHAUSTED.
	Error string `yaml:"error,omitempty"`

	// Fixpoint is the expected derive outcome.
	Fixpoint *bool `yaml:"fixpoint,omitempty"`

	// Retracted is the expected retract outcome.
	Retracted *bool `yaml:"retracted,omitempty"`
}

// Assertion checks the trace or the final database.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Text is the event text (trace_contains).
	Text string `yaml:"text,omitempty"`

	// Texts are event texts in expected order (trace_order).
	Texts []string `yaml:"texts,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Goal is the query term (holds, fails).
	Goal any `yaml:"goal,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertHolds         = "holds"
	AssertFails         = "fails"
)

// LoadScenario reads and validates a scenario YAML file. Unknown fields
// are rejected. The program path is resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	var out []*Scenario
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Program != "" {
		if _, err := os.Stat(s.Program); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", s.Program)
		}
	}
	if _, err := s.Engine.Options(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps take no expect", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	n := 0
	for _, set := range []bool{step.Assert != nil, step.Retract != nil, step.Query != nil, step.Derive != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of assert, retract, query or derive is required")
	}
	if step.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if step.Expect != nil && step.Expect.None && len(step.Expect.Answers) > 0 {
		return fmt.Errorf("expect: none and answers are exclusive")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Event == "" || a.Text == "" {
			return fmt.Errorf("event and text are required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Texts) == 0 {
			return fmt.Errorf("texts list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("event is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertHolds, AssertFails:
		if a.Goal == nil {
			return fmt.Errorf("goal is required for %s", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
