package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/engine"
)

var (
	familyProgram = filepath.Join("..", "harness", "testdata", "programs", "family.yaml")
	graphProgram  = filepath.Join("..", "harness", "testdata", "programs", "graph.cue")
)

const numbersProgram = `
name: numbers
clauses:
  - num: [1]
  - num: [2]
  - num: [3]
  - head: {big: ["?N"]}
    body:
      - num: ["?N"]
      - ">": ["?N", 1]
queries:
  - name: big numbers
    goal: {big: ["?N"]}
    expect: [N = 2, N = 3]
  - name: first number
    goal: {num: ["?N"]}
    limit: 1
`

func TestQuery_EmbeddedQueries(t *testing.T) {
	prog := writeFile(t, "numbers.yaml", numbersProgram)

	out, err := execute(t, "query", prog)
	require.NoError(t, err)
	assert.Contains(t, out, "big numbers: ?- big(N)")
	assert.Contains(t, out, "   N = 2\n   N = 3\n")
	assert.Contains(t, out, "✓ 2 answer(s) as expected")
	assert.Contains(t, out, "first number: ?- num(N)\n   N = 1\n")
}

func TestQuery_JSON(t *testing.T) {
	prog := writeFile(t, "numbers.yaml", numbersProgram)

	var res QueryResult
	status, err := executeJSON(t, &res, "query", prog)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, prog, res.Program)
	require.Len(t, res.Queries, 2)

	q := res.Queries[0]
	assert.Equal(t, "big numbers", q.Name)
	assert.Equal(t, "big(N)", q.Goal)
	require.NotNil(t, q.Match)
	assert.True(t, *q.Match)
	require.Len(t, q.Answers, 2)
	assert.Equal(t, map[string]string{"N": "2"}, q.Answers[0].Bindings)

	assert.Nil(t, res.Queries[1].Match)
	assert.Len(t, res.Queries[1].Answers, 1)
}

func TestQuery_Goal(t *testing.T) {
	out, err := execute(t, "query", familyProgram, "--goal", `{ancestor: [tom, "?Who"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, "?- ancestor(tom,Who)")
	assert.Contains(t, out, "   Who = bob\n   Who = ann\n   Who = joe\n")

	out, err = execute(t, "query", familyProgram, "-g", `{ancestor: [tom, "?Who"]}`, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Who = bob")
	assert.NotContains(t, out, "Who = ann")
}

func TestQuery_Conjunction(t *testing.T) {
	var res QueryResult
	_, err := executeJSON(t, &res, "query", familyProgram,
		"--goal", `[{parent: ["?X", "?Y"]}, {parent: ["?Y", joe]}]`)
	require.NoError(t, err)
	require.Len(t, res.Queries, 1)
	assert.Equal(t, "parent(X,Y), parent(Y,joe)", res.Queries[0].Goal)
	require.Len(t, res.Queries[0].Answers, 1)
	assert.Equal(t, "X = bob, Y = ann", res.Queries[0].Answers[0].Text)
}

func TestQuery_NoAnswer(t *testing.T) {
	out, err := execute(t, "query", familyProgram, "--goal", `{parent: [joe, "?X"]}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "   no\n")
}

func TestQuery_ExpectationMismatch(t *testing.T) {
	prog := writeFile(t, "p.yaml", `
clauses: [{p: [a]}, {p: [b]}]
queries:
  - goal: {p: ["?X"]}
    expect: [X = b, X = a]
`)
	out, err := execute(t, "query", prog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ expected [X = b; X = a]")
}

func TestQuery_ResourceLimit(t *testing.T) {
	prog := writeFile(t, "loop.yaml", `
clauses:
  - head: {loop: ["?X"]}
    body: [{loop: ["?X"]}]
`)
	var res QueryResult
	status, err := executeJSON(t, &res, "query", prog, "--goal", "{loop: [a]}", "--max-depth", "20")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, StatusNo, status)
	require.Len(t, res.Queries, 1)
	assert.Contains(t, res.Queries[0].Error, "RESOURCE_EXHAUSTED")
}

func TestQuery_CommandErrors(t *testing.T) {
	noQueries := writeFile(t, "facts.yaml", "clauses: [{p: [a]}]\n")
	malformed := writeFile(t, "bad.yaml", "clauses: [{a: 1, b: 2}]\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing program", []string{"query", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"malformed program", []string{"query", malformed}},
		{"no queries", []string{"query", noQueries}},
		{"invalid goal", []string{"query", noQueries, "--goal", "{a: 1, b: 2}"}},
		{"missing database", []string{"query", noQueries, "--goal", "{p: [a]}", "--db", filepath.Join(t.TempDir(), "none.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestParseGoal(t *testing.T) {
	prog := writeFile(t, "p.yaml", "clauses: [{p: [a]}]\n")
	s, err := openSession(&RootOptions{}, prog, engine.Config{})
	require.NoError(t, err)

	q, err := parseGoal(`[{p: ["?X"]}, {q: ["?X", "?_"]}]`, s.syms)
	require.NoError(t, err)
	require.Len(t, q.Goals, 2)
	assert.Equal(t, "p(X), q(X,_G1)", formatGoals(q.Goals, s.syms, q.Vars.NameMap()))

	_, err = parseGoal(`[]`, s.syms)
	assert.ErrorContains(t, err, "empty conjunction")

	_, err = parseGoal(`{p: [`, s.syms)
	assert.ErrorContains(t, err, "PARSE_ERROR")
}
