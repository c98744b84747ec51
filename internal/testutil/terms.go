// Package testutil provides helpers shared by package tests: a compact term
// builder and deterministic run ids.
package testutil

import (
	"github.com/roach88/koloss/internal/term"
)

// Builder builds terms against one symbol table with named variables.
//
//	b := testutil.NewBuilder()
//	goal := b.C("parent", b.A("alice"), b.V("X"))
type Builder struct {
	Syms  *term.SymbolTable
	Scope *term.VarScope
}

// NewBuilder creates a builder with a fresh symbol table.
func NewBuilder() *Builder {
	return NewBuilderWith(term.NewSymbolTable())
}

// NewBuilderWith creates a builder over an existing symbol table.
func NewBuilderWith(syms *term.SymbolTable) *Builder {
	return &Builder{Syms: syms, Scope: term.NewVarScope(0)}
}

// A returns the atom name.
func (b *Builder) A(name string) term.Atom { return b.Syms.Atom(name) }

// C returns name(args...), or the atom name when args is empty.
func (b *Builder) C(name string, args ...term.Term) term.Term {
	return b.Syms.Callable(name, args...)
}

// V returns the variable called name. The same name yields the same
// variable for the builder's lifetime.
func (b *Builder) V(name string) term.Var { return b.Scope.Var(name) }

// I returns an integer.
func (b *Builder) I(n int64) term.Int { return term.Int(n) }

// L returns a proper list.
func (b *Builder) L(items ...term.Term) term.Term { return term.MakeList(items...) }

// Ints returns a proper list of integers.
func (b *Builder) Ints(ns ...int64) term.Term {
	items := make([]term.Term, len(ns))
	for i, n := range ns {
		items[i] = term.Int(n)
	}
	return term.MakeList(items...)
}

// Atoms returns a proper list of atoms.
func (b *Builder) Atoms(names ...string) term.Term {
	items := make([]term.Term, len(names))
	for i, n := range names {
		items[i] = b.A(n)
	}
	return term.MakeList(items...)
}

// Format renders t with the builder's variable names.
func (b *Builder) Format(t term.Term) string {
	return term.FormatNamed(t, b.Syms, b.Scope.NameMap())
}
