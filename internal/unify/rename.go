package unify

import (
	"sync/atomic"

	"github.com/roach88/koloss/internal/term"
)

// FreshBase is the first id a Renamer allocates. Variables created by
// decoders and tests use small ids, so fresh variables never collide with
// them.
const FreshBase term.Var = 1 << 40

// Renamer allocates fresh variables from a monotonic counter.
//
// Safe for concurrent use (atomic operations).
type Renamer struct {
	next atomic.Int64
}

// NewRenamer creates a renamer starting at FreshBase.
func NewRenamer() *Renamer {
	return NewRenamerAt(FreshBase)
}

// NewRenamerAt creates a renamer starting at a specific id.
func NewRenamerAt(start term.Var) *Renamer {
	r := &Renamer{}
	r.next.Store(int64(start))
	return r
}

// Fresh returns a variable never returned before by this renamer.
func (r *Renamer) Fresh() term.Var {
	return term.Var(r.next.Add(1) - 1)
}

// Reserve allocates n consecutive fresh ids and returns the first.
func (r *Renamer) Reserve(n int) term.Var {
	return term.Var(r.next.Add(int64(n)) - int64(n))
}

// Rename returns t with every variable replaced by a fresh one.
// Repeated occurrences of a variable map to the same fresh variable.
// The mapping is returned so callers can relate results to the original.
func (r *Renamer) Rename(t term.Term) (term.Term, map[term.Var]term.Var) {
	m := make(map[term.Var]term.Var)
	return r.RenameWith(t, m), m
}

// RenameWith renames t apart reusing and extending mapping m, so several
// terms can be renamed consistently.
func (r *Renamer) RenameWith(t term.Term, m map[term.Var]term.Var) term.Term {
	switch x := t.(type) {
	case term.Var:
		nv, ok := m[x]
		if !ok {
			nv = r.Fresh()
			m[x] = nv
		}
		return nv
	case *term.Compound:
		args := make([]term.Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = r.RenameWith(a, m)
		}
		return &term.Compound{Functor: x.Functor, Args: args}
	case *term.Cons:
		items, tail := term.ListItems(x)
		for i, it := range items {
			items[i] = r.RenameWith(it, m)
		}
		return term.MakePartialList(r.RenameWith(tail, m), items...)
	default:
		return t
	}
}

// CopyTerm returns t under s with its remaining free variables renamed
// apart.
func (r *Renamer) CopyTerm(t term.Term, s Subst) term.Term {
	out, _ := r.Rename(s.WalkDeep(t))
	return out
}
