package engine

import (
	"math"
	"slices"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

type (
	detFunc    func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error)
	nondetFunc func(m *machine, args []term.Term, s unify.Subst) (generator, error)
)

// builtin is a predicate implemented in Go. Exactly one of det and nondet
// is set. A nondet built-in returns a generator that the machine keeps as
// a choice point; a nil generator fails.
type builtin struct {
	name   string
	arity  int
	arith  bool // Errors follow the ArithMode policy
	det    detFunc
	nondet nondetFunc
}

// builtinTable builds the built-in predicates for one engine.
func builtinTable(syms *term.SymbolTable) map[PredKey]*builtin {
	t := make(map[PredKey]*builtin)
	add := func(b *builtin) {
		t[PredKey{Name: syms.Intern(b.name), Arity: b.arity}] = b
	}
	det := func(name string, arity int, fn detFunc) {
		add(&builtin{name: name, arity: arity, det: fn})
	}
	nondet := func(name string, arity int, fn nondetFunc) {
		add(&builtin{name: name, arity: arity, nondet: fn})
	}

	det("true", 0, func(_ *machine, _ []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		return s, true, nil
	})
	det("fail", 0, biFail)
	det("false", 0, biFail)

	det("=", 2, func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		s2, ok := m.e.unifier.Unify(args[0], args[1], s)
		return s2, ok, nil
	})
	det(`\=`, 2, func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		_, ok := m.e.unifier.Unify(args[0], args[1], s)
		return s, !ok, nil
	})
	det("==", 2, compareWith(func(c int) bool { return c == 0 }))
	det(`\==`, 2, compareWith(func(c int) bool { return c != 0 }))
	det("@<", 2, compareWith(func(c int) bool { return c < 0 }))
	det("@>", 2, compareWith(func(c int) bool { return c > 0 }))
	det("@=<", 2, compareWith(func(c int) bool { return c <= 0 }))
	det("@>=", 2, compareWith(func(c int) bool { return c >= 0 }))
	det("compare", 3, biCompare)

	arith := newArithmetic(syms)
	add(&builtin{name: "is", arity: 2, arith: true, det: func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		v, err := arith.eval(args[1], s)
		if err != nil {
			return s, false, err
		}
		s2, ok := m.e.unifier.Unify(args[0], v, s)
		return s2, ok, nil
	}})
	for name, test := range map[string]func(int) bool{
		"=:=": func(c int) bool { return c == 0 },
		`=\=`: func(c int) bool { return c != 0 },
		"<":   func(c int) bool { return c < 0 },
		">":   func(c int) bool { return c > 0 },
		"=<":  func(c int) bool { return c <= 0 },
		">=":  func(c int) bool { return c >= 0 },
	} {
		add(&builtin{name: name, arity: 2, arith: true, det: func(_ *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
			x, err := arith.eval(args[0], s)
			if err != nil {
				return s, false, err
			}
			y, err := arith.eval(args[1], s)
			if err != nil {
				return s, false, err
			}
			return s, test(compareNum(x, y)), nil
		}})
	}

	nondet("member", 2, biMember)
	nondet("append", 3, biAppend)
	nondet("length", 2, biLength)
	det("is_list", 1, biIsList)
	det("msort", 2, sortList(false))
	det("sort", 2, sortList(true))

	det("var", 1, typeCheck(func(t term.Term) bool { _, ok := t.(term.Var); return ok }))
	det("nonvar", 1, typeCheck(func(t term.Term) bool { _, ok := t.(term.Var); return !ok }))
	det("atom", 1, typeCheck(func(t term.Term) bool {
		switch t.(type) {
		case term.Atom, term.Nil:
			return true
		}
		return false
	}))
	det("integer", 1, typeCheck(func(t term.Term) bool { _, ok := t.(term.Int); return ok }))
	det("float", 1, typeCheck(func(t term.Term) bool { _, ok := t.(term.Float); return ok }))
	det("number", 1, typeCheck(func(t term.Term) bool {
		switch t.(type) {
		case term.Int, term.Float:
			return true
		}
		return false
	}))
	det("string", 1, typeCheck(func(t term.Term) bool { _, ok := t.(term.Str); return ok }))
	det("compound", 1, typeCheck(func(t term.Term) bool {
		switch t.(type) {
		case *term.Compound, *term.Cons:
			return true
		}
		return false
	}))
	det("callable", 1, typeCheck(func(t term.Term) bool { _, _, ok := term.Indicator(t); return ok }))
	det("ground", 1, func(_ *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		return s, term.IsGround(s.WalkDeep(args[0])), nil
	})

	det("functor", 3, biFunctor)
	det("arg", 3, biArg)
	det("copy_term", 2, func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		s2, ok := m.e.unifier.Unify(args[1], m.e.renamer.CopyTerm(args[0], s), s)
		return s2, ok, nil
	})

	det("write", 1, func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		t := s.WalkDeep(args[0])
		if str, ok := t.(term.Str); ok {
			m.e.write(string(str))
		} else {
			m.e.write(term.Format(t, m.e.syms))
		}
		return s, true, nil
	})
	det("nl", 0, func(m *machine, _ []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		m.e.write("\n")
		return s, true, nil
	})
	nondet("between", 3, biBetween)

	det("assert", 1, biAssert(false))
	det("assertz", 1, biAssert(false))
	det("asserta", 1, biAssert(true))
	det("retract", 1, biRetract)
	return t
}

func biFail(_ *machine, _ []term.Term, s unify.Subst) (unify.Subst, bool, error) {
	return s, false, nil
}

func compareWith(test func(int) bool) detFunc {
	return func(_ *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		return s, test(term.Compare(s.WalkDeep(args[0]), s.WalkDeep(args[1]))), nil
	}
}

func biCompare(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
	order := "="
	switch c := term.Compare(s.WalkDeep(args[1]), s.WalkDeep(args[2])); {
	case c < 0:
		order = "<"
	case c > 0:
		order = ">"
	}
	s2, ok := m.e.unifier.Unify(args[0], m.e.syms.Atom(order), s)
	return s2, ok, nil
}

func typeCheck(test func(term.Term) bool) detFunc {
	return func(_ *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		return s, test(s.Walk(args[0])), nil
	}
}

func sortTerms(ts []term.Term) {
	slices.SortStableFunc(ts, term.Compare)
}

func compactTerms(ts []term.Term) []term.Term {
	return slices.CompactFunc(ts, term.Equal)
}

// functor/3 decomposes a bound term or builds a term with fresh arguments.
// A list cell has functor '.' and arity 2.
func biFunctor(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
	t := s.Walk(args[0])
	syms := m.e.syms
	var name term.Term
	var arity int
	switch x := t.(type) {
	case term.Var:
		name, n := s.Walk(args[1]), s.Walk(args[2])
		k, ok := n.(term.Int)
		if !ok {
			if _, unbound := n.(term.Var); unbound {
				return s, false, instantiationError("functor/3")
			}
			return s, false, typeError("functor/3", "integer", n, syms)
		}
		if k == 0 {
			s2, ok := m.e.unifier.Unify(x, name, s)
			return s2, ok, nil
		}
		atom, ok := name.(term.Atom)
		if !ok {
			return s, false, typeError("functor/3", "atom", name, syms)
		}
		fresh := make([]term.Term, k)
		for i := range fresh {
			fresh[i] = m.e.renamer.Fresh()
		}
		var built term.Term = &term.Compound{Functor: atom.Sym(), Args: fresh}
		if syms.MustName(atom.Sym()) == "." && k == 2 {
			built = &term.Cons{Head: fresh[0], Tail: fresh[1]}
		}
		s2, ok := m.e.unifier.Unify(x, built, s)
		return s2, ok, nil
	case *term.Compound:
		name, arity = term.Atom(x.Functor), len(x.Args)
	case *term.Cons:
		name, arity = syms.Atom("."), 2
	default:
		name, arity = x, 0
	}
	s2, ok := m.e.unifier.Unify(args[1], name, s)
	if !ok {
		return s, false, nil
	}
	s2, ok = m.e.unifier.Unify(args[2], term.Int(arity), s2)
	return s2, ok, nil
}

// arg/3 unifies the third argument with the N-th argument of a term.
func biArg(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
	n, ok := s.Walk(args[0]).(term.Int)
	if !ok {
		return s, false, instantiationError("arg/3")
	}
	var parts []term.Term
	switch x := s.Walk(args[1]).(type) {
	case *term.Compound:
		parts = x.Args
	case *term.Cons:
		parts = []term.Term{x.Head, x.Tail}
	case term.Var:
		return s, false, instantiationError("arg/3")
	default:
		return s, false, typeError("arg/3", "compound", x, m.e.syms)
	}
	if n < 1 || int(n) > len(parts) {
		return s, false, nil
	}
	s2, ok := m.e.unifier.Unify(args[2], parts[n-1], s)
	return s2, ok, nil
}

// between/3 yields Lo..Hi in order; Hi may be the atom inf.
func biBetween(m *machine, args []term.Term, s unify.Subst) (generator, error) {
	lo, ok := s.Walk(args[0]).(term.Int)
	if !ok {
		return nil, typeError("between/3", "integer", s.Walk(args[0]), m.e.syms)
	}
	hi := term.Int(math.MaxInt64)
	switch x := s.Walk(args[1]).(type) {
	case term.Int:
		hi = x
	case term.Atom:
		if m.e.syms.MustName(x.Sym()) != "inf" {
			return nil, typeError("between/3", "integer or inf", x, m.e.syms)
		}
	default:
		return nil, typeError("between/3", "integer", x, m.e.syms)
	}
	switch x := s.Walk(args[2]).(type) {
	case term.Int:
		if x < lo || x > hi {
			return nil, nil
		}
		done := false
		return func() (unify.Subst, bool, error) {
			ok := !done
			done = true
			return s, ok, nil
		}, nil
	case term.Var:
		next := lo
		exhausted := lo > hi
		return func() (unify.Subst, bool, error) {
			if exhausted {
				return s, false, nil
			}
			v := next
			if next == hi {
				exhausted = true
			} else {
				next++
			}
			return s.Bind(x, v), true, nil
		}, nil
	default:
		return nil, typeError("between/3", "integer", x, m.e.syms)
	}
}

// assert/1 and friends add a clause term (Head or Head :- Body).
func biAssert(first bool) detFunc {
	return func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		t := s.WalkDeep(args[0])
		if _, ok := t.(term.Var); ok {
			return s, false, instantiationError("assert/1")
		}
		c, err := m.e.clauseFromTerm(t)
		if err != nil {
			return s, false, err
		}
		if first {
			err = m.e.AssertFirst(c)
		} else {
			err = m.e.Assert(c)
		}
		return s, err == nil, err
	}
}

// retract/1 removes the first clause matching Head or Head :- Body and
// binds the pattern's variables to it.
func biRetract(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
	t := s.WalkDeep(args[0])
	if _, ok := t.(term.Var); ok {
		return s, false, instantiationError("retract/1")
	}
	c, err := m.e.clauseFromTerm(t)
	if err != nil {
		return s, false, err
	}
	key, _ := KeyOf(c.Head)
	for _, sc := range m.e.lookup(key) {
		if len(sc.bodySrc) != len(c.Body) {
			continue
		}
		off := m.e.renamer.Reserve(sc.nvars)
		s2, ok := m.e.unifier.Unify(c.Head, instantiate(sc.head, off), s)
		for i := 0; ok && i < len(c.Body); i++ {
			s2, ok = m.e.unifier.Unify(c.Body[i], instantiate(sc.bodySrc[i], off), s2)
		}
		if ok && m.e.removeClause(key, sc) {
			return s2, true, nil
		}
	}
	return s, false, nil
}
