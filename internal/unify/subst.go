// Package unify implements substitutions and syntactic unification over
// terms.
//
// Subst is persistent: binding a variable returns a new substitution and
// leaves the old one untouched, so the engine can snapshot a substitution
// at every choice point for free and restore it on backtrack.
package unify

import (
	"github.com/roach88/koloss/internal/term"
)

type color uint8

const (
	red color = iota
	black
)

// node is a red-black tree node. Trees are never mutated after
// construction; inserts copy the path from the root.
type node struct {
	color       color
	left, right *node
	v           term.Var
	t           term.Term
}

// Subst is a finite mapping from variables to terms.
// The zero value is the empty substitution.
type Subst struct {
	root *node
	size int
}

// Empty returns the empty substitution.
func Empty() Subst { return Subst{} }

// Len returns the number of bound variables.
func (s Subst) Len() int { return s.size }

// Lookup returns the term v is directly bound to.
func (s Subst) Lookup(v term.Var) (term.Term, bool) {
	n := s.root
	for n != nil {
		switch {
		case v < n.v:
			n = n.left
		case v > n.v:
			n = n.right
		default:
			return n.t, true
		}
	}
	return nil, false
}

// Bind returns a substitution that also maps v to t.
// An existing binding for v is replaced.
func (s Subst) Bind(v term.Var, t term.Term) Subst {
	root, added := insert(s.root, v, t)
	r := *root
	r.color = black
	size := s.size
	if added {
		size++
	}
	return Subst{root: &r, size: size}
}

func insert(n *node, v term.Var, t term.Term) (*node, bool) {
	if n == nil {
		return &node{color: red, v: v, t: t}, true
	}
	ret := *n
	var added bool
	switch {
	case v < n.v:
		ret.left, added = insert(n.left, v, t)
		ret.balance()
	case v > n.v:
		ret.right, added = insert(n.right, v, t)
		ret.balance()
	default:
		ret.t = t
	}
	return &ret, added
}

// balance restores the red-black invariants after an insert
// (Okasaki, Purely Functional Data Structures).
func (n *node) balance() {
	if n.color != black {
		return
	}
	var a, b, c, d *node
	var x, y, z *node
	switch {
	case isRed(n.left) && isRed(n.left.left):
		x, y, z = n.left.left, n.left, n
		a, b, c, d = n.left.left.left, n.left.left.right, n.left.right, n.right
	case isRed(n.left) && isRed(n.left.right):
		x, y, z = n.left, n.left.right, n
		a, b, c, d = n.left.left, n.left.right.left, n.left.right.right, n.right
	case isRed(n.right) && isRed(n.right.left):
		x, y, z = n, n.right.left, n.right
		a, b, c, d = n.left, n.right.left.left, n.right.left.right, n.right.right
	case isRed(n.right) && isRed(n.right.right):
		x, y, z = n, n.right, n.right.right
		a, b, c, d = n.left, n.right.left, n.right.right.left, n.right.right.right
	default:
		return
	}
	*n = node{
		color: red,
		left:  &node{color: black, left: a, right: b, v: x.v, t: x.t},
		right: &node{color: black, left: c, right: d, v: z.v, t: z.t},
		v:     y.v,
		t:     y.t,
	}
}

func isRed(n *node) bool { return n != nil && n.color == red }

// Binding is one variable-to-term pair.
type Binding struct {
	Var  term.Var
	Term term.Term
}

// Bindings returns all direct bindings ordered by variable id.
func (s Subst) Bindings() []Binding {
	out := make([]Binding, 0, s.size)
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, Binding{Var: n.v, Term: n.t})
		walk(n.right)
	}
	walk(s.root)
	return out
}

// Walk dereferences t through variable bindings until it reaches a
// non-variable or an unbound variable. It does not descend into arguments.
func (s Subst) Walk(t term.Term) term.Term {
	// A chain longer than the number of bindings can only be a cycle, which
	// Bind allows when callers bypass Unify.
	for steps := 0; steps <= s.size; steps++ {
		v, ok := t.(term.Var)
		if !ok {
			return t
		}
		next, ok := s.Lookup(v)
		if !ok {
			return v
		}
		t = next
	}
	return t
}

// WalkDeep fully applies s to t, rebuilding compound terms and lists.
//
// With the occurs check disabled a variable can be bound to a term that
// contains it. WalkDeep still terminates: a variable met again while its own
// binding is being expanded is left unexpanded.
func (s Subst) WalkDeep(t term.Term) term.Term {
	if s.size == 0 {
		return t
	}
	return s.walkDeep(t, nil)
}

// Apply is WalkDeep.
func (s Subst) Apply(t term.Term) term.Term {
	return s.WalkDeep(t)
}

func (s Subst) walkDeep(t term.Term, expanding []term.Var) term.Term {
	t = s.walkGuarded(t, &expanding)
	switch x := t.(type) {
	case *term.Compound:
		var args []term.Term
		for i, a := range x.Args {
			na := s.walkDeep(a, expanding)
			if args == nil && na != a {
				args = make([]term.Term, len(x.Args))
				copy(args, x.Args[:i])
			}
			if args != nil {
				args[i] = na
			}
		}
		if args == nil {
			return x
		}
		return &term.Compound{Functor: x.Functor, Args: args}
	case *term.Cons:
		items, tail := term.ListItems(x)
		changed := false
		for i, it := range items {
			ni := s.walkDeep(it, expanding)
			if ni != it {
				changed = true
			}
			items[i] = ni
		}
		nt := s.walkDeep(tail, expanding)
		if nt != tail {
			changed = true
		}
		if !changed {
			return x
		}
		return term.MakePartialList(nt, items...)
	default:
		return t
	}
}

// walkGuarded dereferences t, recording every variable passed through.
// It stops at a variable already recorded.
func (s Subst) walkGuarded(t term.Term, expanding *[]term.Var) term.Term {
	for {
		v, ok := t.(term.Var)
		if !ok {
			return t
		}
		for _, e := range *expanding {
			if e == v {
				return v
			}
		}
		next, ok := s.Lookup(v)
		if !ok {
			return v
		}
		*expanding = append(*expanding, v)
		t = next
	}
}

// Compose returns s followed by other: other is applied to the term of
// every binding in s, then bindings of other for variables unbound in s are
// added. Applying the result equals applying s then other.
func (s Subst) Compose(other Subst) Subst {
	out := Subst{}
	for _, b := range s.Bindings() {
		out = out.Bind(b.Var, other.WalkDeep(b.Term))
	}
	for _, b := range other.Bindings() {
		if _, ok := s.Lookup(b.Var); !ok {
			out = out.Bind(b.Var, b.Term)
		}
	}
	return out
}

// Restrict returns the deep-walked bindings of vars only, skipping
// variables that resolve to themselves.
func (s Subst) Restrict(vars []term.Var) Subst {
	out := Subst{}
	for _, v := range vars {
		t := s.WalkDeep(v)
		if tv, ok := t.(term.Var); ok && tv == v {
			continue
		}
		out = out.Bind(v, t)
	}
	return out
}
