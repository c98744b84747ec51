package solver

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
)

// bruteForceSAT enumerates all 2^n assignments.
func bruteForceSAT(f Formula) bool {
	for mask := 0; mask < 1<<f.NumVars; mask++ {
		a := make(map[int]bool, f.NumVars)
		for v := 1; v <= f.NumVars; v++ {
			a[v] = mask&(1<<(v-1)) != 0
		}
		if f.Satisfied(a) {
			return true
		}
	}
	return false
}

func randomFormula(r *rand.Rand, maxVars int) Formula {
	n := 1 + r.IntN(maxVars)
	f := Formula{NumVars: n}
	nc := r.IntN(4 * n)
	for i := 0; i < nc; i++ {
		width := 1 + r.IntN(3)
		c := make(Clause, width)
		for k := range c {
			lit := 1 + r.IntN(n)
			if r.IntN(2) == 0 {
				lit = -lit
			}
			c[k] = lit
		}
		f.Clauses = append(f.Clauses, c)
	}
	return f
}

func TestSolveSATAgreesWithBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	ctx := context.Background()

	for i := 0; i < 400; i++ {
		f := randomFormula(r, 6)
		want := bruteForceSAT(f)

		got, err := SolveSAT(ctx, f)
		require.NoError(t, err)
		require.Equal(t, want, got.Satisfiable, "formula %d: %v", i, f.Clauses)

		if got.Satisfiable {
			require.Len(t, got.Assignment, f.NumVars, "assignment must be total")
			require.True(t, f.Satisfied(got.Assignment), "formula %d: model does not satisfy %v", i, f.Clauses)
		}

		cdcl, err := SolveSAT(ctx, f, WithBackend(BackendCDCL))
		require.NoError(t, err)
		require.Equal(t, want, cdcl.Satisfiable, "gini disagrees on formula %d", i)
		if cdcl.Satisfiable {
			require.True(t, f.Satisfied(cdcl.Assignment))
		}
	}
}

func TestSolveSATEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("empty formula is satisfiable", func(t *testing.T) {
		res, err := SolveSAT(ctx, Formula{NumVars: 2})
		require.NoError(t, err)
		assert.True(t, res.Satisfiable)
		assert.Equal(t, map[int]bool{1: false, 2: false}, res.Assignment)
	})

	t.Run("empty clause is unsatisfiable", func(t *testing.T) {
		res, err := SolveSAT(ctx, Formula{NumVars: 1, Clauses: []Clause{{1}, {}}})
		require.NoError(t, err)
		assert.False(t, res.Satisfiable)
		assert.Nil(t, res.Assignment)

		res, err = SolveSAT(ctx, Formula{NumVars: 1, Clauses: []Clause{{}}}, WithBackend(BackendCDCL))
		require.NoError(t, err)
		assert.False(t, res.Satisfiable)
	})

	t.Run("contradictory units", func(t *testing.T) {
		res, err := SolveSAT(ctx, Formula{NumVars: 1, Clauses: []Clause{{1}, {-1}}})
		require.NoError(t, err)
		assert.False(t, res.Satisfiable)
	})

	t.Run("invalid literal", func(t *testing.T) {
		_, err := SolveSAT(ctx, Formula{NumVars: 2, Clauses: []Clause{{1, 3}}})
		require.Error(t, err)
		assert.True(t, term.IsCode(err, term.CodeTypeMismatch))

		_, err = SolveSAT(ctx, Formula{NumVars: 2, Clauses: []Clause{{0}}})
		assert.True(t, term.IsCode(err, term.CodeTypeMismatch))
	})
}

func TestSolveSATBranchesTrueFirst(t *testing.T) {
	// (x1 or x2) and (not x1 or not x2): no units, no pure literals.
	f := Formula{NumVars: 2, Clauses: []Clause{{1, 2}, {-1, -2}}}

	res, err := SolveSAT(context.Background(), f)
	require.NoError(t, err)
	require.True(t, res.Satisfiable)
	assert.Equal(t, map[int]bool{1: true, 2: false}, res.Assignment)
	assert.Equal(t, int64(1), res.Decisions)
}

func TestSolveSATUnitPropagation(t *testing.T) {
	f := Formula{NumVars: 3, Clauses: []Clause{{1}, {-1, 2}, {-2, 3}}}

	res, err := SolveSAT(context.Background(), f)
	require.NoError(t, err)
	require.True(t, res.Satisfiable)
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, res.Assignment)
	assert.Equal(t, int64(0), res.Decisions)
	assert.Equal(t, int64(3), res.Propagations)
}

func TestSolveSATPigeonholeAndBudget(t *testing.T) {
	// Pigeonhole 3 into 2: unsatisfiable and needs several decisions.
	// Variable p(i,h) = 2*(i-1) + h.
	f := Formula{NumVars: 6}
	for i := 1; i <= 3; i++ {
		f.Clauses = append(f.Clauses, Clause{2*(i-1) + 1, 2*(i-1) + 2})
	}
	for h := 1; h <= 2; h++ {
		for i := 1; i <= 3; i++ {
			for j := i + 1; j <= 3; j++ {
				f.Clauses = append(f.Clauses, Clause{-(2*(i-1) + h), -(2*(j-1) + h)})
			}
		}
	}

	res, err := SolveSAT(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, res.Satisfiable)
	assert.Positive(t, res.Decisions)

	// Two independent exclusive-or pairs need one decision each.
	pairs := Formula{NumVars: 4, Clauses: []Clause{{1, 2}, {-1, -2}, {3, 4}, {-3, -4}}}
	_, err = SolveSAT(context.Background(), pairs, WithMaxDecisions(1))
	require.Error(t, err)
	assert.True(t, term.IsResourceExhausted(err))

	res, err = SolveSAT(context.Background(), pairs, WithMaxDecisions(2))
	require.NoError(t, err)
	assert.True(t, res.Satisfiable)
}

func TestSolveSATCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SolveSAT(ctx, Formula{NumVars: 2, Clauses: []Clause{{1, 2}, {-1, -2}}})
	require.ErrorIs(t, err, context.Canceled)
}
