package unify

import (
	"github.com/roach88/koloss/internal/term"
)

// Unifier unifies terms under a fixed occurs-check policy.
type Unifier struct {
	// OccursCheck rejects binding a variable to a term containing it.
	OccursCheck bool
}

// Default is the sound unifier: occurs check enabled.
var Default = Unifier{OccursCheck: true}

// Unify unifies a and b under s with the occurs check enabled.
func Unify(a, b term.Term, s Subst) (Subst, bool) {
	return Default.Unify(a, b, s)
}

// Unify returns the most general extension of s that makes a and b equal,
// or false if none exists. s itself is never modified.
func (u Unifier) Unify(a, b term.Term, s Subst) (Subst, bool) {
	out, m := u.unify(a, b, s)
	return out, m == nil
}

// UnifyErr is Unify with a diagnostic: on failure it returns a
// CodeUnification error describing the first mismatching pair.
func (u Unifier) UnifyErr(a, b term.Term, s Subst, syms *term.SymbolTable) (Subst, error) {
	out, m := u.unify(a, b, s)
	if m == nil {
		return out, nil
	}
	return s, term.Errorf(term.CodeUnification, "%s: %s vs %s",
		m.reason, term.Format(m.a, syms), term.Format(m.b, syms))
}

type mismatch struct {
	a, b   term.Term
	reason string
}

type pair struct{ a, b term.Term }

func (u Unifier) unify(a, b term.Term, s Subst) (Subst, *mismatch) {
	work := []pair{{a, b}}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		x := s.Walk(p.a)
		y := s.Walk(p.b)

		if xv, ok := x.(term.Var); ok {
			if yv, ok := y.(term.Var); ok && xv == yv {
				continue
			}
			if u.OccursCheck && occurs(xv, y, s) {
				return s, &mismatch{x, y, "occurs check"}
			}
			s = s.Bind(xv, y)
			continue
		}
		if yv, ok := y.(term.Var); ok {
			if u.OccursCheck && occurs(yv, x, s) {
				return s, &mismatch{x, y, "occurs check"}
			}
			s = s.Bind(yv, x)
			continue
		}

		switch xt := x.(type) {
		case *term.Compound:
			yt, ok := y.(*term.Compound)
			if !ok {
				return s, &mismatch{x, y, "type mismatch"}
			}
			if xt.Functor != yt.Functor || len(xt.Args) != len(yt.Args) {
				return s, &mismatch{x, y, "functor mismatch"}
			}
			// Push in reverse so arguments are unified left to right.
			for i := len(xt.Args) - 1; i >= 0; i-- {
				work = append(work, pair{xt.Args[i], yt.Args[i]})
			}
		case *term.Cons:
			yt, ok := y.(*term.Cons)
			if !ok {
				return s, &mismatch{x, y, "type mismatch"}
			}
			work = append(work, pair{xt.Tail, yt.Tail}, pair{xt.Head, yt.Head})
		default:
			if !term.Equal(x, y) {
				return s, &mismatch{x, y, "constant mismatch"}
			}
		}
	}
	return s, nil
}

// occurs reports whether v occurs in t under s.
func occurs(v term.Var, t term.Term, s Subst) bool {
	stack := []term.Term{t}
	seen := make(map[term.Var]struct{})
	for len(stack) > 0 {
		cur := s.Walk(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		switch x := cur.(type) {
		case term.Var:
			if x == v {
				return true
			}
			if _, ok := seen[x]; ok {
				continue
			}
			seen[x] = struct{}{}
		case *term.Compound:
			stack = append(stack, x.Args...)
		case *term.Cons:
			stack = append(stack, x.Head, x.Tail)
		}
	}
	return false
}

// Occurs reports whether v occurs in t once t is walked under s.
func Occurs(v term.Var, t term.Term, s Subst) bool {
	return occurs(v, t, s)
}
