package engine

import (
	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// walkList follows a list through s and returns its items and the walked
// tail: Nil for a proper list, a Var for a partial list, anything else
// for an improper one.
func walkList(t term.Term, s unify.Subst) ([]term.Term, term.Term) {
	var items []term.Term
	t = s.Walk(t)
	for {
		c, ok := t.(*term.Cons)
		if !ok {
			return items, t
		}
		items = append(items, c.Head)
		t = s.Walk(c.Tail)
	}
}

func isNil(t term.Term) bool {
	_, ok := t.(term.Nil)
	return ok
}

// member/2 leaves a choice point per element.
func biMember(m *machine, args []term.Term, s unify.Subst) (generator, error) {
	items, _ := walkList(args[1], s)
	i := 0
	return func() (unify.Subst, bool, error) {
		for i < len(items) {
			it := items[i]
			i++
			if s2, ok := m.e.unifier.Unify(args[0], it, s); ok {
				return s2, true, nil
			}
		}
		return s, false, nil
	}, nil
}

// append/3 is deterministic when the first list is proper; otherwise it
// enumerates the splits of the third.
func biAppend(m *machine, args []term.Term, s unify.Subst) (generator, error) {
	xs, tail := walkList(args[0], s)
	if isNil(tail) {
		done := false
		return func() (unify.Subst, bool, error) {
			if done {
				return s, false, nil
			}
			done = true
			s2, ok := m.e.unifier.Unify(args[2], term.MakePartialList(args[1], xs...), s)
			return s2, ok, nil
		}, nil
	}
	zs, ztail := walkList(args[2], s)
	if !isNil(ztail) {
		return nil, instantiationError("append/3")
	}
	i := 0
	return func() (unify.Subst, bool, error) {
		for i <= len(zs) {
			k := i
			i++
			s2, ok := m.e.unifier.Unify(args[0], term.MakeList(zs[:k]...), s)
			if !ok {
				continue
			}
			s2, ok = m.e.unifier.Unify(args[1], term.MakeList(zs[k:]...), s2)
			if ok {
				return s2, true, nil
			}
		}
		return s, false, nil
	}, nil
}

// length/2 enumerates lengths of a partial list when the length is
// unbound.
func biLength(m *machine, args []term.Term, s unify.Subst) (generator, error) {
	items, tail := walkList(args[0], s)
	n := s.Walk(args[1])
	once := func(s2 unify.Subst, ok bool) generator {
		done := false
		return func() (unify.Subst, bool, error) {
			if done {
				return s, false, nil
			}
			done = true
			return s2, ok, nil
		}
	}
	switch tail.(type) {
	case term.Nil:
		s2, ok := m.e.unifier.Unify(n, term.Int(len(items)), s)
		return once(s2, ok), nil
	case term.Var:
	default:
		return nil, typeError("length/2", "list", args[0], m.e.syms)
	}

	switch k := n.(type) {
	case term.Int:
		if int(k) < len(items) {
			return nil, nil
		}
		s2, ok := m.e.unifier.Unify(tail, m.freshList(int(k)-len(items)), s)
		return once(s2, ok), nil
	case term.Var:
		extra := 0
		return func() (unify.Subst, bool, error) {
			s2, ok := m.e.unifier.Unify(tail, m.freshList(extra), s)
			if ok {
				s2, ok = m.e.unifier.Unify(k, term.Int(len(items)+extra), s2)
			}
			extra++
			return s2, ok, nil
		}, nil
	default:
		return nil, typeError("length/2", "integer", n, m.e.syms)
	}
}

func (m *machine) freshList(n int) term.Term {
	items := make([]term.Term, n)
	for i := range items {
		items[i] = m.e.renamer.Fresh()
	}
	return term.MakeList(items...)
}

func biIsList(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
	_, tail := walkList(args[0], s)
	return s, isNil(tail), nil
}

// msort/2 sorts by standard order keeping duplicates; sort/2 removes them.
func sortList(dedupe bool) detFunc {
	return func(m *machine, args []term.Term, s unify.Subst) (unify.Subst, bool, error) {
		items, tail := walkList(args[0], s)
		if !isNil(tail) {
			return s, false, instantiationError("sort/2")
		}
		walked := make([]term.Term, len(items))
		for i, it := range items {
			walked[i] = s.WalkDeep(it)
		}
		sortTerms(walked)
		if dedupe {
			walked = compactTerms(walked)
		}
		s2, ok := m.e.unifier.Unify(args[1], term.MakeList(walked...), s)
		return s2, ok, nil
	}
}
