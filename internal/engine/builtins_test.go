package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/testutil"
)

func TestBuiltins_Arithmetic(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x := b.V("X")
	op := func(name string, args ...term.Term) term.Term { return b.C(name, args...) }

	tests := []struct {
		name string
		expr term.Term
		want term.Term
	}{
		{"precedence by structure", op("+", b.I(2), op("*", b.I(3), b.I(4))), term.Int(14)},
		{"exact division stays integer", op("/", b.I(6), b.I(2)), term.Int(3)},
		{"inexact division is float", op("/", b.I(7), b.I(2)), term.Float(3.5)},
		{"integer division truncates", op("//", b.I(7), b.I(-2)), term.Int(-3)},
		{"mod takes divisor sign", op("mod", b.I(-7), b.I(3)), term.Int(2)},
		{"unary minus", op("-", b.I(7)), term.Int(-7)},
		{"abs", op("abs", b.I(-4)), term.Int(4)},
		{"max mixed", op("max", b.I(2), term.Float(2.5)), term.Float(2.5)},
		{"min", op("min", b.I(2), b.I(-1)), term.Int(-1)},
		{"succ", op("succ", b.I(4)), term.Int(5)},
		{"plus", op("plus", b.I(4), b.I(5)), term.Int(9)},
		{"float arithmetic", op("*", term.Float(1.5), b.I(2)), term.Float(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := e.QueryFirst(ctxT(t), b.C("is", x, tt.expr))
			require.NoError(t, err)
			require.NotNil(t, sol)
			assert.Equal(t, tt.want, sol.Get(x))
		})
	}
}

func TestBuiltins_Comparison(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)

	assert.Equal(t, 1, count(t, e, b.C("=:=", b.I(2), term.Float(2))))
	assert.Equal(t, 1, count(t, e, b.C(`=\=`, b.I(2), b.I(3))))
	assert.Equal(t, 1, count(t, e, b.C("<", b.I(2), b.C("+", b.I(1), b.I(2)))))
	assert.Equal(t, 0, count(t, e, b.C(">", b.I(2), b.I(3))))
	assert.Equal(t, 1, count(t, e, b.C("=<", b.I(3), b.I(3))))
	assert.Equal(t, 1, count(t, e, b.C(">=", term.Float(3.5), b.I(3))))
}

func TestBuiltins_ArithmeticErrorPolicy(t *testing.T) {
	b := testutil.NewBuilder()
	x := b.V("X")
	divZero := b.C("is", x, b.C("/", b.I(1), b.I(0)))
	unbound := b.C("is", x, b.C("+", b.V("Y"), b.I(1)))
	notNumber := b.C("is", x, b.C("+", b.A("a"), b.I(1)))

	lenient := New(b.Syms)
	for _, g := range []term.Term{divZero, unbound, notNumber} {
		q := lenient.Query(ctxT(t), g)
		assert.False(t, q.Next())
		assert.NoError(t, q.Err(), "arithmetic errors fail the goal by default")
	}

	strict := New(b.Syms, WithArithmetic(ArithError))
	cases := map[term.ErrorCode]term.Term{
		term.CodeArithmetic:   divZero,
		term.CodeTypeMismatch: unbound,
	}
	for code, g := range cases {
		q := strict.Query(ctxT(t), g)
		assert.False(t, q.Next())
		assert.True(t, term.IsCode(q.Err(), code), "want %s, got %v", code, q.Err())
	}
	q := strict.Query(ctxT(t), notNumber)
	assert.False(t, q.Next())
	assert.True(t, term.IsCode(q.Err(), term.CodeArithmetic))
}

func TestBuiltins_Unification(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x, y := b.V("X"), b.V("Y")

	assert.Equal(t, []string{"a"}, answers(t, e, b.C("=", b.C("f", x), b.C("f", b.A("a"))), x))
	assert.Equal(t, 1, count(t, e, b.C(`\=`, b.A("a"), b.A("b"))))
	assert.Equal(t, 0, count(t, e, b.C(`\=`, x, b.A("b"))))
	assert.Equal(t, 1, count(t, e, b.C("==", b.C("f", x), b.C("f", x))))
	assert.Equal(t, 0, count(t, e, b.C("==", x, y)))
	assert.Equal(t, 1, count(t, e, b.C(`\==`, x, y)))
}

func TestBuiltins_StandardOrder(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	o := b.V("O")

	assert.Equal(t, 1, count(t, e, b.C("@<", b.I(1), b.A("a"))))
	assert.Equal(t, 1, count(t, e, b.C("@>", b.C("f", b.I(1)), b.A("z"))))
	assert.Equal(t, []string{"<"}, answers(t, e, b.C("compare", o, b.I(1), b.I(2)), o))
	assert.Equal(t, []string{"="}, answers(t, e, b.C("compare", o, b.A("a"), b.A("a")), o))
	assert.Equal(t, []string{">"}, answers(t, e, b.C("compare", o, b.I(3), b.I(2)), o))

	l := b.V("L")
	assert.Equal(t, []string{"[1,2,2,3]"}, answers(t, e, b.C("msort", b.Ints(3, 2, 1, 2), l), l))
	assert.Equal(t, []string{"[1,2,3]"}, answers(t, e, b.C("sort", b.Ints(3, 2, 1, 2), l), l))
}

func TestBuiltins_Lists(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x, y, z, n := b.V("X"), b.V("Y"), b.V("Z"), b.V("N")

	assert.Equal(t, []string{"a", "b", "c"}, answers(t, e, b.C("member", x, b.Atoms("a", "b", "c")), x))
	assert.Equal(t, 0, count(t, e, b.C("member", b.A("d"), b.Atoms("a", "b"))))

	assert.Equal(t, []string{"[1,2,3]"}, answers(t, e, b.C("append", b.Ints(1), b.Ints(2, 3), z), z))

	sols, err := e.QueryAll(ctxT(t), b.C("append", x, y, b.Ints(1, 2)), 0)
	require.NoError(t, err)
	var splits []string
	for _, s := range sols {
		splits = append(splits, b.Format(s.Get(x))+"+"+b.Format(s.Get(y)))
	}
	assert.Equal(t, []string{"[]+[1,2]", "[1]+[2]", "[1,2]+[]"}, splits)

	assert.Equal(t, []string{"2"}, answers(t, e, b.C("length", b.Atoms("a", "b"), n), n))
	assert.Equal(t, 1, count(t, e, b.C("is_list", b.Ints(1, 2))))
	assert.Equal(t, 0, count(t, e, b.C("is_list", term.MakePartialList(x, b.I(1)))))
}

func TestBuiltins_LengthGenerates(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	l, n := b.V("L"), b.V("N")

	sol, err := e.QueryFirst(ctxT(t), b.C("length", l, b.I(2)))
	require.NoError(t, err)
	require.NotNil(t, sol)
	items, tail := term.ListItems(sol.Get(l))
	assert.Len(t, items, 2)
	assert.Equal(t, term.Nil{}, tail)

	sols, err := e.QueryAll(ctxT(t), b.C("length", l, n), 3)
	require.NoError(t, err)
	require.Len(t, sols, 3)
	for i, s := range sols {
		assert.Equal(t, term.Int(i), s.Get(n))
	}
}

func TestBuiltins_Between(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x := b.V("X")

	assert.Equal(t, []string{"1", "2", "3"}, answers(t, e, b.C("between", b.I(1), b.I(3), x), x))
	assert.Empty(t, answers(t, e, b.C("between", b.I(3), b.I(1), x), x))
	assert.Equal(t, 1, count(t, e, b.C("between", b.I(1), b.I(3), b.I(2))))
	assert.Equal(t, 0, count(t, e, b.C("between", b.I(1), b.I(3), b.I(5))))

	sols, err := e.QueryAll(ctxT(t), b.C("between", b.I(1), b.A("inf"), x), 4)
	require.NoError(t, err)
	assert.Len(t, sols, 4)
	assert.Equal(t, term.Int(4), sols[3].Get(x))
}

func TestBuiltins_TypeChecks(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x := b.V("X")

	tests := []struct {
		pred string
		arg  term.Term
		want bool
	}{
		{"var", x, true},
		{"var", b.A("a"), false},
		{"nonvar", b.I(1), true},
		{"atom", b.A("a"), true},
		{"atom", b.I(1), false},
		{"integer", b.I(1), true},
		{"integer", term.Float(1), false},
		{"float", term.Float(1), true},
		{"number", term.Float(1), true},
		{"string", term.Str("s"), true},
		{"compound", b.C("f", b.I(1)), true},
		{"compound", b.A("f"), false},
		{"ground", b.C("f", b.I(1)), true},
		{"ground", b.C("f", x), false},
		{"callable", b.A("f"), true},
	}
	for _, tt := range tests {
		got := count(t, e, b.C(tt.pred, tt.arg)) == 1
		assert.Equal(t, tt.want, got, "%s(%s)", tt.pred, b.Format(tt.arg))
	}
}

func TestBuiltins_TermInspection(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	n, a, x, c := b.V("N"), b.V("A"), b.V("X"), b.V("C")

	sol, err := e.QueryFirst(ctxT(t), b.C("functor", b.C("foo", b.A("a"), b.A("b")), n, a))
	require.NoError(t, err)
	assert.Equal(t, "foo", b.Format(sol.Get(n)))
	assert.Equal(t, term.Int(2), sol.Get(a))

	sol, err = e.QueryFirst(ctxT(t), b.C("functor", x, b.A("pt"), b.I(2)))
	require.NoError(t, err)
	built, ok := sol.Get(x).(*term.Compound)
	require.True(t, ok)
	assert.Equal(t, "pt", syms.MustName(built.Functor))
	assert.Len(t, built.Args, 2)

	assert.Equal(t, []string{"b"}, answers(t, e, b.C("arg", b.I(2), b.C("foo", b.A("a"), b.A("b")), x), x))
	assert.Equal(t, 0, count(t, e, b.C("arg", b.I(3), b.C("foo", b.A("a")), x)))

	y := b.V("Y")
	sol, err = e.QueryFirst(ctxT(t), b.C("copy_term", b.C("f", x, y, x), c))
	require.NoError(t, err)
	cp, ok := sol.Get(c).(*term.Compound)
	require.True(t, ok)
	assert.Equal(t, cp.Args[0], cp.Args[2], "shared variables stay shared")
	assert.NotEqual(t, cp.Args[0], cp.Args[1])
	assert.NotEqual(t, x, cp.Args[0], "copy uses fresh variables")
}

func TestBuiltins_WriteAndNl(t *testing.T) {
	var out bytes.Buffer
	e, syms := newTestEngine(t, WithOutput(&out))
	b := testutil.NewBuilderWith(syms)

	goal := b.C(",", b.C("write", term.Str("hi ")), b.C(",", b.C("write", b.C("foo", b.I(1))), b.C("nl")))
	assert.Equal(t, 1, count(t, e, goal))
	assert.Equal(t, "hi foo(1)\n", out.String())
}

func TestBuiltins_AssertRetract(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)
	x := b.V("X")

	assert.Equal(t, 1, count(t, e, b.C("assertz", b.C("counter", b.I(1)))))
	assert.Equal(t, 1, count(t, e, b.C("asserta", b.C("counter", b.I(0)))))
	assert.Equal(t, []string{"0", "1"}, answers(t, e, b.C("counter", x), x))

	assert.Equal(t, []string{"0"}, answers(t, e, b.C("retract", b.C("counter", x)), x))
	assert.Equal(t, []string{"1"}, answers(t, e, b.C("counter", x), x))

	// Rules can be asserted as (Head :- Body).
	rule := b.C(":-", b.C("double", x, b.V("Y")), b.C("is", b.V("Y"), b.C("*", x, b.I(2))))
	assert.Equal(t, 1, count(t, e, b.C("assert", rule)))
	y := b.V("Y")
	assert.Equal(t, []string{"8"}, answers(t, e, b.C("double", b.I(4), y), y))
}

func TestBuiltins_CannotRedefine(t *testing.T) {
	e, syms := newTestEngine(t)
	b := testutil.NewBuilderWith(syms)

	err := e.AddFact(b.C("member", b.A("a"), b.A("b")))
	assert.True(t, term.IsCode(err, term.CodeTypeMismatch))

	err = e.AddRule(b.C("bad"), term.Int(3))
	assert.True(t, term.IsCode(err, term.CodeTypeMismatch))
}
