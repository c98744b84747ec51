package unify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
)

func TestUnifyGroundSelf(t *testing.T) {
	syms := term.NewSymbolTable()
	ground := []term.Term{
		syms.Atom("a"),
		term.Int(4),
		term.Float(2.5),
		term.Str("s"),
		term.Bool(true),
		term.Nil{},
		syms.Compound("f", syms.Atom("a"), term.MakeList(term.Int(1), term.Int(2))),
	}

	for _, g := range ground {
		t.Run(term.Format(g, syms), func(t *testing.T) {
			s, ok := Unify(g, g, Empty())
			require.True(t, ok)
			assert.Equal(t, 0, s.Len(), "unifying a ground term with itself adds no bindings")
		})
	}
}

func TestUnifyBindsVariable(t *testing.T) {
	syms := term.NewSymbolTable()
	x := term.Var(0)
	tm := syms.Compound("g", syms.Atom("b"))

	s, ok := Unify(x, tm, Empty())
	require.True(t, ok)
	assert.True(t, term.Equal(tm, s.WalkDeep(x)))

	s, ok = Unify(tm, x, Empty())
	require.True(t, ok)
	assert.True(t, term.Equal(tm, s.WalkDeep(x)), "unification is symmetric")
}

func TestUnifyOccursCheck(t *testing.T) {
	syms := term.NewSymbolTable()
	x := term.Var(0)
	fx := syms.Compound("f", x)

	_, ok := Unify(x, fx, Empty())
	assert.False(t, ok, "X = f(X) must fail with the occurs check")

	loose := Unifier{OccursCheck: false}
	s, ok := loose.Unify(x, fx, Empty())
	require.True(t, ok, "X = f(X) succeeds without the occurs check")

	// WalkDeep still terminates on the cyclic binding.
	out := s.WalkDeep(x)
	c, isCompound := out.(*term.Compound)
	require.True(t, isCompound)
	assert.Equal(t, x, c.Args[0])
}

func TestUnifyCompounds(t *testing.T) {
	syms := term.NewSymbolTable()
	x, y := term.Var(0), term.Var(1)

	tests := []struct {
		name string
		a, b term.Term
		ok   bool
	}{
		{"same functor", syms.Compound("p", x, syms.Atom("b")), syms.Compound("p", syms.Atom("a"), y), true},
		{"functor mismatch", syms.Compound("p", x), syms.Compound("q", x), false},
		{"arity mismatch", syms.Compound("p", x), syms.Compound("p", x, y), false},
		{"constant mismatch", syms.Compound("p", syms.Atom("a")), syms.Compound("p", syms.Atom("b")), false},
		{"shared variable conflict", syms.Compound("p", x, x), syms.Compound("p", syms.Atom("a"), syms.Atom("b")), false},
		{"int vs float", term.Int(1), term.Float(1), false},
		{"list head tail", term.MakePartialList(y, x), term.MakeList(term.Int(1), term.Int(2)), true},
		{"list length mismatch", term.MakeList(x), term.MakeList(term.Int(1), term.Int(2)), false},
		{"nil vs cons", term.Nil{}, term.MakeList(x), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Unify(tt.a, tt.b, Empty())
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, term.Equal(s.WalkDeep(tt.a), s.WalkDeep(tt.b)))
			}
		})
	}
}

func TestUnifyErrDescribesMismatch(t *testing.T) {
	syms := term.NewSymbolTable()
	a := syms.Compound("p", syms.Atom("a"))
	b := syms.Compound("p", syms.Atom("b"))

	_, err := Default.UnifyErr(a, b, Empty(), syms)
	require.Error(t, err)
	assert.True(t, term.IsCode(err, term.CodeUnification))
	assert.Contains(t, err.Error(), "a vs b")
}

func TestUnifyDoesNotModifyInput(t *testing.T) {
	syms := term.NewSymbolTable()
	base := Empty().Bind(term.Var(9), syms.Atom("z"))

	_, ok := Unify(term.Var(0), syms.Atom("a"), base)
	require.True(t, ok)

	assert.Equal(t, 1, base.Len())
	_, bound := base.Lookup(term.Var(0))
	assert.False(t, bound)
}

func TestUnifyLongList(t *testing.T) {
	items := make([]term.Term, 20000)
	vars := make([]term.Term, len(items))
	for i := range items {
		items[i] = term.Int(int64(i))
		vars[i] = term.Var(int64(i))
	}

	s, ok := Unify(term.MakeList(vars...), term.MakeList(items...), Empty())
	require.True(t, ok)
	assert.Equal(t, len(items), s.Len())
	assert.Equal(t, term.Int(19999), s.Walk(term.Var(19999)))
}

func ExampleUnify() {
	syms := term.NewSymbolTable()
	x := term.Var(0)

	s, ok := Unify(syms.Compound("parent", x, syms.Atom("bob")),
		syms.Compound("parent", syms.Atom("alice"), syms.Atom("bob")), Empty())

	fmt.Println(ok, term.Format(s.WalkDeep(x), syms))
	// Output: true alice
}
