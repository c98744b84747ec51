package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/engine"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// executeJSON runs the CLI with --format json and decodes the response
// data into data.
func executeJSON(t *testing.T, data any, args ...string) (string, error) {
	t.Helper()
	out, err := execute(t, append(args, "--format", "json")...)
	resp := struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && resp.Data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Status, err
}

// writeFile writes content under a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "koloss", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"query", "derive", "edges", "sat", "csp", "search", "validate", "test"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		name     string
		defValue string
	}{
		{"verbose", "false"},
		{"format", "text"},
		{"config", ""},
		{"no-color", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestRootCommand_UsageErrors(t *testing.T) {
	prog := writeFile(t, "p.yaml", "clauses: [{p: [a]}]\nqueries: [{goal: {p: [\"?X\"]}}]\n")

	tests := []struct {
		name string
		args []string
	}{
		{"invalid format", []string{"query", prog, "--format", "xml"}},
		{"unknown flag", []string{"query", prog, "--bogus"}},
		{"missing argument", []string{"query"}},
		{"extra argument", []string{"sat", "a.cnf", "b.cnf"}},
		{"missing config", []string{"query", prog, "--config", "/nonexistent/koloss.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestLoadSettings(t *testing.T) {
	path := writeFile(t, "koloss.yaml", `
engine:
  max_depth: 64
  max_iterations: 7
  unknown: error
database: facts.db
`)
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 64, s.Engine.MaxDepth)
	assert.Equal(t, 7, s.Engine.MaxIterations)
	assert.Equal(t, "error", s.Engine.Unknown)
	assert.Equal(t, "facts.db", s.Database)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "engine:\n  max_dpeth: 3\n", "failed to parse config"},
		{"bad policy", "engine:\n  arithmetic: warn\n", "arithmetic"},
		{"negative limit", "engine:\n  max_steps: -1\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeFile(t, "koloss.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRootCommand_ConfigAppliesEngineSettings(t *testing.T) {
	prog := writeFile(t, "p.yaml", `
clauses:
  - head: {p: ["?X"]}
    body: [{missing: ["?X"]}]
queries:
  - goal: {p: ["?X"]}
`)

	// Unknown predicates fail quietly by default.
	var res QueryResult
	status, err := executeJSON(t, &res, "query", prog)
	require.Error(t, err)
	assert.Equal(t, StatusNo, status)
	require.Len(t, res.Queries, 1)
	assert.Empty(t, res.Queries[0].Error)
	assert.Empty(t, res.Queries[0].Answers)

	cfg := writeFile(t, "koloss.yaml", "engine:\n  unknown: error\n")
	var strict QueryResult
	status, err = executeJSON(t, &strict, "query", prog, "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, StatusNo, status)
	require.Len(t, strict.Queries, 1)
	assert.Contains(t, strict.Queries[0].Error, "UNKNOWN_PREDICATE")
}

func TestEngineConfig_FlagsOverrideSettings(t *testing.T) {
	opts := &RootOptions{}
	opts.Settings.Engine.MaxDepth = 10
	opts.Settings.Engine.MaxSteps = 500

	cfg := opts.engineConfig(engine.Config{MaxDepth: 20})
	assert.Equal(t, 20, cfg.MaxDepth)
	assert.Equal(t, int64(500), cfg.MaxSteps)
}
