package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dangling = `
name: dangling
dynamic: [seen/1]
clauses:
  - head: {p: ["?X"]}
    body:
      - q: ["?X"]
      - seen: ["?X"]
`

func TestValidate_ValidPrograms(t *testing.T) {
	var res ValidationResult
	status, err := executeJSON(t, &res, "validate", familyProgram, graphProgram)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.True(t, res.Valid)
	require.Len(t, res.Programs, 2)

	family := res.Programs[0]
	assert.True(t, family.Valid)
	assert.Equal(t, "family", family.Name)
	assert.Equal(t, 5, family.Clauses)
	assert.Equal(t, 2, family.Predicates)
	assert.Equal(t, []string{"ancestor/2"}, family.Tabled)
	assert.Empty(t, family.Undefined)

	graph := res.Programs[1]
	assert.Equal(t, "graph", graph.Name)
	assert.Equal(t, []string{"reach/2"}, graph.Tabled)
}

func TestValidate_Undefined(t *testing.T) {
	prog := writeFile(t, "dangling.yaml", dangling)

	out, err := execute(t, "validate", prog)
	require.NoError(t, err, "undefined predicates only fail under --strict")
	assert.Contains(t, out, "✓ "+prog+" (dangling): 1 clause(s)")
	assert.Contains(t, out, "   undefined: q/1\n")
	assert.NotContains(t, out, "seen/1", "dynamic predicates are defined")

	var res ValidationResult
	status, err := executeJSON(t, &res, "validate", prog, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, StatusError, status)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"q/1"}, res.Programs[0].Undefined)
}

func TestValidate_Malformed(t *testing.T) {
	bad := writeFile(t, "bad.yaml", "clauses: [{a: 1, b: 2}]\n")
	prog := writeFile(t, "dangling.yaml", dangling)

	var res ValidationResult
	_, err := executeJSON(t, &res, "validate", prog, bad, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "load errors outrank undefined predicates")
	require.Len(t, res.Programs, 2)
	assert.False(t, res.Programs[1].Valid)
	assert.Equal(t, "PARSE_ERROR", res.Programs[1].Code)
	assert.NotEmpty(t, res.Programs[1].Error)

	out, err := execute(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "✗ "+bad+": ")
}
