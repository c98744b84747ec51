package term

import (
	"math"

	"golang.org/x/text/unicode/norm"
)

// Term is a sealed interface over the term variants.
// Only Var, Atom, Int, Float, Str, Bool, *Compound, *Cons and Nil implement it.
type Term interface {
	term() // Sealed
}

// Var is a logic variable identified by a numeric id.
// Two variables are the same variable iff their ids are equal.
type Var int64

func (Var) term() {}

// Symbol is the id of an interned name. See SymbolTable.
type Symbol uint32

// Atom is a symbolic constant.
type Atom Symbol

func (Atom) term() {}

// Sym returns the interned symbol of the atom.
func (a Atom) Sym() Symbol { return Symbol(a) }

// Int is a 64-bit signed integer.
type Int int64

func (Int) term() {}

// Float is a 64-bit float compared under a total order.
type Float float64

func (Float) term() {}

// IsNaN reports whether f is NaN.
func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

// Str is a string literal. Strs compare by their bytes; build them with
// NewStr so canonically equivalent spellings are one value.
type Str string

func (Str) term() {}

// NewStr returns s as an NFC-normalized Str.
func NewStr(s string) Str { return Str(norm.NFC.String(s)) }

// Bool is a boolean constant.
type Bool bool

func (Bool) term() {}

// Compound is a functor applied to one or more arguments.
// A compound with zero arguments is legal but Atom is preferred.
type Compound struct {
	Functor Symbol
	Args    []Term
}

func (*Compound) term() {}

// Arity returns the number of arguments.
func (c *Compound) Arity() int { return len(c.Args) }

// Cons is a list cell.
type Cons struct {
	Head Term
	Tail Term
}

func (*Cons) term() {}

// Nil is the empty list.
type Nil struct{}

func (Nil) term() {}

// NewCompound creates a compound term. The args slice is not copied.
func NewCompound(functor Symbol, args ...Term) *Compound {
	return &Compound{Functor: functor, Args: args}
}

// NewCons creates a list cell.
func NewCons(head, tail Term) *Cons {
	return &Cons{Head: head, Tail: tail}
}

// MakeList builds a proper list from items.
func MakeList(items ...Term) Term {
	return MakePartialList(Nil{}, items...)
}

// MakePartialList builds a list of items ending in tail.
func MakePartialList(tail Term, items ...Term) Term {
	out := tail
	for i := len(items) - 1; i >= 0; i-- {
		out = &Cons{Head: items[i], Tail: out}
	}
	return out
}

// ListItems returns the items of t and the final tail.
// For a proper list the tail is Nil. For a term that is not a list cell the
// result is (nil, t).
func ListItems(t Term) ([]Term, Term) {
	var items []Term
	for {
		c, ok := t.(*Cons)
		if !ok {
			return items, t
		}
		items = append(items, c.Head)
		t = c.Tail
	}
}

// IsProperList reports whether t is Nil or a chain of cells ending in Nil.
func IsProperList(t Term) bool {
	_, tail := ListItems(t)
	_, ok := tail.(Nil)
	return ok
}

// IsGround reports whether t contains no variables.
func IsGround(t Term) bool {
	switch x := t.(type) {
	case Var:
		return false
	case *Compound:
		for _, a := range x.Args {
			if !IsGround(a) {
				return false
			}
		}
		return true
	case *Cons:
		for {
			if !IsGround(x.Head) {
				return false
			}
			next, ok := x.Tail.(*Cons)
			if !ok {
				return IsGround(x.Tail)
			}
			x = next
		}
	default:
		return true
	}
}

// Vars returns the distinct variables of t in first-occurrence order.
func Vars(t Term) []Var {
	var out []Var
	seen := make(map[Var]struct{})
	var walk func(Term)
	walk = func(t Term) {
		switch x := t.(type) {
		case Var:
			if _, ok := seen[x]; !ok {
				seen[x] = struct{}{}
				out = append(out, x)
			}
		case *Compound:
			for _, a := range x.Args {
				walk(a)
			}
		case *Cons:
			walk(x.Head)
			walk(x.Tail)
		}
	}
	walk(t)
	return out
}

// Size returns the number of nodes in t.
func Size(t Term) int {
	switch x := t.(type) {
	case *Compound:
		n := 1
		for _, a := range x.Args {
			n += Size(a)
		}
		return n
	case *Cons:
		return 1 + Size(x.Head) + Size(x.Tail)
	default:
		return 1
	}
}

// Contains reports whether v occurs in t. It does not follow bindings.
func Contains(t Term, v Var) bool {
	switch x := t.(type) {
	case Var:
		return x == v
	case *Compound:
		for _, a := range x.Args {
			if Contains(a, v) {
				return true
			}
		}
		return false
	case *Cons:
		return Contains(x.Head, v) || Contains(x.Tail, v)
	default:
		return false
	}
}

// Indicator returns the functor and arity of a callable term.
// Atoms have arity 0. ok is false for anything else.
func Indicator(t Term) (name Symbol, arity int, ok bool) {
	switch x := t.(type) {
	case Atom:
		return Symbol(x), 0, true
	case *Compound:
		return x.Functor, len(x.Args), true
	default:
		return 0, 0, false
	}
}

// Args returns the arguments of a callable term, or nil for an atom.
func Args(t Term) []Term {
	if c, ok := t.(*Compound); ok {
		return c.Args
	}
	return nil
}
