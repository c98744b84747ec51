package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/testutil"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *term.SymbolTable) {
	t.Helper()
	syms := term.NewSymbolTable()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(syms, append([]Option{WithLogger(quiet)}, opts...)...), syms
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// answers formats the binding of v in every solution of goal.
func answers(t *testing.T, e *Engine, goal term.Term, v term.Var) []string {
	t.Helper()
	sols, err := e.QueryAll(ctxT(t), goal, 0)
	require.NoError(t, err)
	out := make([]string, len(sols))
	for i, s := range sols {
		out[i] = term.Format(s.Get(v), e.Symbols())
	}
	return out
}

func count(t *testing.T, e *Engine, goal term.Term) int {
	t.Helper()
	sols, err := e.QueryAll(ctxT(t), goal, 0)
	require.NoError(t, err)
	return len(sols)
}

// family loads parent/2 facts and the recursive ancestor/2 rules.
func family(t *testing.T, e *Engine, b *testutil.Builder) {
	t.Helper()
	require.NoError(t, e.AddFact(b.C("parent", b.A("alice"), b.A("bob"))))
	require.NoError(t, e.AddFact(b.C("parent", b.A("bob"), b.A("charlie"))))

	x, y, z := b.V("X"), b.V("Y"), b.V("Z")
	require.NoError(t, e.AddRule(b.C("ancestor", x, y), b.C("parent", x, y)))
	require.NoError(t, e.AddRule(b.C("ancestor", x, y), b.C("parent", x, z), b.C("ancestor", z, y)))
}

func TestEngine_AncestorOrder(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	family(t, e, b)

	w := b.V("W")
	assert.Equal(t, []string{"bob", "charlie"}, answers(t, e, b.C("ancestor", b.A("alice"), w), w))
	assert.Empty(t, answers(t, e, b.C("ancestor", b.A("charlie"), w), w))
}

func TestEngine_QueryVariablesRenamedApart(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	family(t, e, b)

	// The query reuses the ids the stored clauses were written with.
	x, y := b.V("X"), b.V("Y")
	sols, err := e.QueryAll(ctxT(t), b.C("ancestor", x, y), 0)
	require.NoError(t, err)
	require.Len(t, sols, 3)

	got := make([]string, len(sols))
	for i, s := range sols {
		got[i] = term.Format(s.Get(x), syms) + "-" + term.Format(s.Get(y), syms)
	}
	assert.Equal(t, []string{"alice-bob", "bob-charlie", "alice-charlie"}, got)
}

func TestSolutions_LazyAndReset(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, e.AddFact(b.C("p", b.I(i))))
	}

	x := b.V("X")
	q := e.Query(ctxT(t), b.C("p", x))
	defer q.Close()

	assert.Nil(t, q.Solution())
	require.True(t, q.Next())
	assert.Equal(t, term.Int(1), q.Solution().Get(x))
	require.True(t, q.Next())
	assert.Equal(t, term.Int(2), q.Solution().Get(x))

	q.Reset()
	require.True(t, q.Next())
	assert.Equal(t, term.Int(1), q.Solution().Get(x))

	q.Close()
	assert.False(t, q.Next())
	assert.NoError(t, q.Err())
}

func TestSolutions_LogicalUpdateView(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	require.NoError(t, e.AddFact(b.C("p", b.I(1))))
	require.NoError(t, e.AddFact(b.C("p", b.I(2))))

	x := b.V("X")
	q := e.Query(ctxT(t), b.C("p", x))
	require.True(t, q.Next())

	// A running call keeps the clause list it started with.
	require.NoError(t, e.AddFact(b.C("p", b.I(3))))
	require.True(t, q.Next())
	assert.Equal(t, term.Int(2), q.Solution().Get(x))
	assert.False(t, q.Next())

	assert.Equal(t, []string{"1", "2", "3"}, answers(t, e, b.C("p", x), x))
}

func TestSolution_UnboundAndBindings(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x, y := b.V("X"), b.V("Y")

	sol, err := e.QueryFirst(ctxT(t), b.C("=", x, b.C("f", y)))
	require.NoError(t, err)
	require.NotNil(t, sol)

	assert.Equal(t, y, sol.Get(y), "unbound variable reports itself")
	assert.Equal(t, "f(Y)", b.Format(sol.Get(x)))
	require.Len(t, sol.Bindings(), 1)
	assert.Equal(t, x, sol.Bindings()[0].Var)
	assert.Equal(t, "g(f(Y))", b.Format(sol.Apply(b.C("g", x))))
	assert.Equal(t, "X = f(Y)", sol.Format(syms, b.Scope.NameMap()))
}

func TestEngine_QueryFirstNoSolution(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)

	sol, err := e.QueryFirst(ctxT(t), b.C("missing", b.A("x")))
	assert.NoError(t, err)
	assert.Nil(t, sol)
}

func TestEngine_NonCallableGoal(t *testing.T) {
	e, _ := newTestEngine(t)

	q := e.Query(ctxT(t), term.Int(3))
	assert.False(t, q.Next())
	assert.True(t, term.IsCode(q.Err(), term.CodeTypeMismatch))
}

func TestEngine_ContextCancelled(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	require.NoError(t, e.AddFact(b.C("p", b.I(1))))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := e.Query(ctx, b.C("p", b.V("X")))
	assert.False(t, q.Next())
	assert.ErrorIs(t, q.Err(), context.Canceled)
}

func TestEngine_Stats(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	family(t, e, b)

	_ = count(t, e, b.C("ancestor", b.A("alice"), b.V("W")))
	st := e.Stats()
	assert.Equal(t, int64(1), st.Queries)
	assert.Positive(t, st.Resolutions)
	assert.Equal(t, 4, e.NumClauses())
	assert.Len(t, e.Predicates(), 2)
}
