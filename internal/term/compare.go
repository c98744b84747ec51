package term

import (
	"cmp"
	"math"
)

// Standard order rank of each variant.
// Var < number < Atom < Str < Bool < Nil < Cons < Compound.
const (
	rankVar = iota
	rankNumber
	rankAtom
	rankStr
	rankBool
	rankNil
	rankCons
	rankCompound
)

func rank(t Term) int {
	switch t.(type) {
	case Var:
		return rankVar
	case Int, Float:
		return rankNumber
	case Atom:
		return rankAtom
	case Str:
		return rankStr
	case Bool:
		return rankBool
	case Nil:
		return rankNil
	case *Cons:
		return rankCons
	default:
		return rankCompound
	}
}

// CompareFloat orders floats totally: NaN is greatest and equal to itself,
// and -0 equals +0.
func CompareFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareNumber compares by value. An Int and a Float of equal value order
// the Float first so that Compare never reports distinct terms as equal.
func compareNumber(a, b Term) int {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(x, y)
		case Float:
			if c := CompareFloat(float64(x), float64(y)); c != 0 {
				return c
			}
			return 1
		}
	case Float:
		switch y := b.(type) {
		case Float:
			return CompareFloat(float64(x), float64(y))
		case Int:
			if c := CompareFloat(float64(x), float64(y)); c != 0 {
				return c
			}
			return -1
		}
	}
	return 0
}

// Compare orders two terms under the standard order of terms.
// It returns -1, 0 or +1. Compare(a, b) == 0 iff Equal(a, b).
//
// Atoms order by symbol id, which is interning order. Compounds order by
// arity, then functor id, then arguments left to right. List cells order by
// head, then tail.
func Compare(a, b Term) int {
	for {
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return cmp.Compare(ra, rb)
		}
		switch x := a.(type) {
		case Var:
			return cmp.Compare(x, b.(Var))
		case Int, Float:
			return compareNumber(a, b)
		case Atom:
			return cmp.Compare(x, b.(Atom))
		case Str:
			return cmp.Compare(x, b.(Str))
		case Bool:
			y := b.(Bool)
			switch {
			case x == y:
				return 0
			case !bool(x):
				return -1
			default:
				return 1
			}
		case Nil:
			return 0
		case *Cons:
			y := b.(*Cons)
			if c := Compare(x.Head, y.Head); c != 0 {
				return c
			}
			a, b = x.Tail, y.Tail
			continue
		case *Compound:
			y := b.(*Compound)
			if c := cmp.Compare(len(x.Args), len(y.Args)); c != 0 {
				return c
			}
			if c := cmp.Compare(x.Functor, y.Functor); c != 0 {
				return c
			}
			for i := range x.Args {
				if c := Compare(x.Args[i], y.Args[i]); c != 0 {
					return c
				}
			}
			return 0
		default:
			return 0
		}
	}
}

// Equal reports structural equality. Variables are equal by id and floats
// by the total order.
func Equal(a, b Term) bool {
	for {
		switch x := a.(type) {
		case Var:
			y, ok := b.(Var)
			return ok && x == y
		case Atom:
			y, ok := b.(Atom)
			return ok && x == y
		case Int:
			y, ok := b.(Int)
			return ok && x == y
		case Float:
			y, ok := b.(Float)
			return ok && CompareFloat(float64(x), float64(y)) == 0
		case Str:
			y, ok := b.(Str)
			return ok && x == y
		case Bool:
			y, ok := b.(Bool)
			return ok && x == y
		case Nil:
			_, ok := b.(Nil)
			return ok
		case *Cons:
			y, ok := b.(*Cons)
			if !ok || !Equal(x.Head, y.Head) {
				return false
			}
			a, b = x.Tail, y.Tail
		case *Compound:
			y, ok := b.(*Compound)
			if !ok || x.Functor != y.Functor || len(x.Args) != len(y.Args) {
				return false
			}
			for i := range x.Args {
				if !Equal(x.Args[i], y.Args[i]) {
					return false
				}
			}
			return true
		default:
			return false
		}
	}
}
