package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/testutil"
)

func formatAll(b *testutil.Builder, ts []term.Term) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = b.Format(t)
	}
	return out
}

func TestDerive_ReachesFixpoint(t *testing.T) {
	e, syms := newTestEngine(t, WithIDGenerator(testutil.NewSequentialIDs("derive")))
	b := testutil.NewBuilderWith(syms)
	family(t, e, b)

	res, err := e.Derive(ctxT(t), 10)
	require.NoError(t, err)

	assert.Equal(t, "derive-1", res.RunID)
	assert.True(t, res.Fixpoint)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, []string{
		"ancestor(alice,bob)",
		"ancestor(bob,charlie)",
		"ancestor(alice,charlie)",
	}, formatAll(b, res.NewFacts))

	// A second run finds nothing new and adds no duplicates.
	again, err := e.Derive(ctxT(t), 10)
	require.NoError(t, err)
	assert.Equal(t, "derive-2", again.RunID)
	assert.Empty(t, again.NewFacts)
	assert.Equal(t, 1, again.Iterations)
	assert.Len(t, e.Clauses(e.Key("ancestor", 2)), 5)
}

func TestDerive_StringSpellingsAreDistinctFacts(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	require.NoError(t, e.AddFact(b.C("w", term.Str("caf\u00e9"))))
	require.NoError(t, e.AddFact(b.C("w", term.Str("cafe\u0301"))))
	x := b.V("X")
	require.NoError(t, e.AddRule(b.C("d", x), b.C("w", x)))

	res, err := e.Derive(ctxT(t), 10)
	require.NoError(t, err)
	assert.True(t, res.Fixpoint)
	require.Len(t, res.NewFacts, 2)
	assert.Equal(t, term.Str("caf\u00e9"), res.NewFacts[0].(*term.Compound).Args[0])
	assert.Equal(t, term.Str("cafe\u0301"), res.NewFacts[1].(*term.Compound).Args[0])
}

func TestDerive_UnboundedRuleSetHitsCap(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x := b.V("X")
	require.NoError(t, e.AddFact(b.C("nat", b.I(0))))
	require.NoError(t, e.AddRule(b.C("nat", b.C("s", x)), b.C("nat", x)))

	res, err := e.Derive(ctxT(t), 5)
	require.Error(t, err)
	assert.True(t, term.IsResourceExhausted(err))
	require.NotNil(t, res)
	assert.False(t, res.Fixpoint)
	assert.Equal(t, 5, res.Iterations)
	assert.Len(t, res.NewFacts, 5)
	assert.Equal(t, "nat(s(s(s(s(s(0))))))", b.Format(res.NewFacts[4]))
}

func TestDerive_SkipsNonGroundHeads(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x, y := b.V("X"), b.V("Y")
	require.NoError(t, e.AddFact(b.C("item", b.A("a"))))
	require.NoError(t, e.AddRule(b.C("pair", x, y), b.C("item", x)))

	res, err := e.Derive(ctxT(t), 10)
	require.NoError(t, err)
	assert.Empty(t, res.NewFacts)
	assert.True(t, res.Fixpoint)
}

func TestDerive_UsesBuiltinsAndNegation(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x, y := b.V("X"), b.V("Y")
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, e.AddFact(b.C("num", b.I(i))))
	}
	require.NoError(t, e.AddFact(b.C("skip", b.I(3))))
	// big(Y) :- num(X), X > 2, \+ skip(X), Y is X * 10.
	require.NoError(t, e.AddRule(b.C("big", y),
		b.C("num", x), b.C(">", x, b.I(2)), b.C(`\+`, b.C("skip", x)), b.C("is", y, b.C("*", x, b.I(10)))))

	res, err := e.Derive(ctxT(t), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"big(40)"}, formatAll(b, res.NewFacts))
}
