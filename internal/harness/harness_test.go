package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/engine"
)

const scenarioDir = "testdata/scenarios"

func loadScenario(t *testing.T, file string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, file))
	require.NoError(t, err)
	return s
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(scenarioDir)
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"family_ancestry", "graph_reachability", "resource_limits", "control_flow"}, names)
}

func TestLoadScenario_ResolvesProgramPath(t *testing.T) {
	s := loadScenario(t, "01_family_ancestry.yaml")
	assert.Equal(t, filepath.Join(scenarioDir, "..", "programs", "family.yaml"), s.Program)
	assert.Len(t, s.Setup, 1)
	assert.Len(t, s.Flow, 4)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_EngineConfig(t *testing.T) {
	s := loadScenario(t, "03_resource_limits.yaml")
	assert.Equal(t, 50, s.Engine.MaxDepth)
	assert.Equal(t, 5, s.Engine.Iterations())
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nflow:\n  - query: {p: [a]}\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: n\nflow:\n  - query: {p: [a]}\n",
			want: "description is required",
		},
		{
			name: "empty flow",
			body: "name: n\ndescription: d\n",
			want: "flow list is required",
		},
		{
			name: "two actions",
			body: "name: n\ndescription: d\nflow:\n  - query: {p: [a]}\n    assert: {p: [a]}\n",
			want: "exactly one of",
		},
		{
			name: "setup with expect",
			body: "name: n\ndescription: d\nsetup:\n  - assert: {p: [a]}\n    expect: {error: X}\nflow:\n  - query: {p: [a]}\n",
			want: "setup steps take no expect",
		},
		{
			name: "none and answers",
			body: "name: n\ndescription: d\nflow:\n  - query: {p: [\"?X\"]}\n    expect: {none: true, answers: [X = a]}\n",
			want: "exclusive",
		},
		{
			name: "unknown field",
			body: "name: n\ndescription: d\nflow:\n  - query: {p: [a]}\nbogus: 1\n",
			want: "field bogus not found",
		},
		{
			name: "missing program",
			body: "name: n\ndescription: d\nprogram: nowhere.yaml\nflow:\n  - query: {p: [a]}\n",
			want: "program file not found",
		},
		{
			name: "bad engine policy",
			body: "name: n\ndescription: d\nengine: {unknown: explode}\nflow:\n  - query: {p: [a]}\n",
			want: "engine:",
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\nflow:\n  - query: {p: [a]}\nassertions:\n  - type: maybe\n",
			want: "unknown assertion type",
		},
		{
			name: "trace_order without texts",
			body: "name: n\ndescription: d\nflow:\n  - query: {p: [a]}\nassertions:\n  - type: trace_order\n",
			want: "texts list is required",
		},
		{
			name: "holds without goal",
			body: "name: n\ndescription: d\nflow:\n  - query: {p: [a]}\nassertions:\n  - type: holds\n",
			want: "goal is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_AllScenariosPass(t *testing.T) {
	scenarios, err := LoadScenarios(scenarioDir)
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Golden(t *testing.T) {
	for _, file := range []string{"01_family_ancestry.yaml", "02_graph_reachability.yaml"} {
		s := loadScenario(t, file)
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass)
		})
	}
}

func TestRun_ResourceLimitsTraceErrors(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "03_resource_limits.yaml"))
	require.NoError(t, err)

	var codes []string
	for _, ev := range result.Trace {
		if ev.Type == EventError {
			codes = append(codes, ev.Text)
		}
	}
	assert.Equal(t, []string{"RESOURCE_EXHAUSTED", "RESOURCE_EXHAUSTED"}, codes)

	var derive *TraceEvent
	for i := range result.Trace {
		if result.Trace[i].Type == EventDerive {
			derive = &result.Trace[i]
		}
	}
	require.NotNil(t, derive)
	assert.Equal(t, "derive-1", derive.Text)
	assert.Equal(t, "iterations=5 new_facts=5 fixpoint=false", derive.Detail)
}

func TestRun_FailedExpectationsAreReported(t *testing.T) {
	s := &Scenario{
		Name:        "wrong",
		Description: "expectations that do not hold",
		Setup: []Step{
			{Assert: map[string]any{"color": []any{"red"}}},
			{Assert: map[string]any{"color": []any{"blue"}}},
		},
		Flow: []Step{
			{Query: map[string]any{"color": []any{"?C"}}, Expect: &Expect{Answers: []string{"C = blue", "C = red"}}},
			{Query: map[string]any{"color": []any{"?C"}}, Expect: &Expect{None: true}},
			{Retract: map[string]any{"color": []any{"green"}}, Expect: &Expect{Retracted: ptr(true)}},
			{Query: map[string]any{"color": []any{"?C"}}, Expect: &Expect{Error: "TYPE_MISMATCH"}},
		},
		Assertions: []Assertion{
			{Type: AssertHolds, Goal: map[string]any{"color": []any{"green"}}},
			{Type: AssertFails, Goal: map[string]any{"color": []any{"red"}}},
			{Type: AssertTraceCount, Event: EventAnswer, Count: 1},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "flow[0]: answers = [C = red; C = blue]")
	assert.Contains(t, result.Errors[1], "flow[1]: expected no solution, got 2")
	assert.Contains(t, result.Errors[2], "flow[2]: retracted = false, want true")
	assert.Contains(t, result.Errors[3], `flow[3]: error = "", want "TYPE_MISMATCH"`)
	assert.Contains(t, result.Errors[4], "assertions[0]")
	assert.Contains(t, result.Errors[5], "assertions[1]")
	assert.Contains(t, result.Errors[6], "6 answer events")
}

func TestRun_DeriveExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "derive",
		Description: "derive outcome checks",
		Setup: []Step{
			{Assert: map[string]any{"edge": []any{"a", "b"}}},
			{Assert: map[string]any{
				"head": map[string]any{"link": []any{"?X", "?Y"}},
				"body": []any{map[string]any{"edge": []any{"?X", "?Y"}}},
			}},
		},
		Flow: []Step{
			{Derive: &DeriveStep{}, Expect: &Expect{Fixpoint: ptr(false), Count: ptr(2)}},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"flow[0]: fixpoint = true, want false",
		"flow[0]: 1 new facts, want 2",
	}, result.Errors)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, "link(_G0,_G1) :- edge(_G0,_G1)", result.Trace[1].Text)
	assert.Equal(t, TraceEvent{Seq: 4, Type: EventFact, Text: "link(a,b)"}, result.Trace[3])
}

func TestRun_MaxIterationsOverride(t *testing.T) {
	s := &Scenario{
		Name:        "capped",
		Description: "per-step iteration cap",
		Engine:      engine.Config{MaxIterations: 100},
		Setup: []Step{
			{Assert: map[string]any{"n": []any{0}}},
			{Assert: map[string]any{
				"head": map[string]any{"n": []any{map[string]any{"s": []any{"?N"}}}},
				"body": []any{map[string]any{"n": []any{"?N"}}},
			}},
		},
		Flow: []Step{
			{Derive: &DeriveStep{MaxIterations: 2}, Expect: &Expect{Error: "RESOURCE_EXHAUSTED", Count: ptr(2)}},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MalformedStepIsAnError(t *testing.T) {
	s := &Scenario{
		Name:        "malformed",
		Description: "a query that is not a term",
		Flow:        []Step{{Query: map[string]any{"a": 1, "b": 2}}},
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow[0]")
}

func TestRun_MissingProgram(t *testing.T) {
	s := &Scenario{
		Name:        "missing",
		Description: "program path does not exist",
		Program:     filepath.Join(t.TempDir(), "gone.yaml"),
		Flow:        []Step{{Query: map[string]any{"p": []any{"a"}}}},
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load program")
}

func TestMarshalSnapshot_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalSnapshot(TraceSnapshot{
		ScenarioName: "ops",
		Pass:         true,
		Trace:        []TraceEvent{{Seq: 1, Type: EventQuery, Text: "X > 1, Y < 2 & z"}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text": "X > 1, Y < 2 & z"`)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func ptr[T any](v T) *T { return &v }
