package engine

import (
	"math"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// arithmetic evaluates expression terms to Int or Float.
type arithmetic struct {
	syms *term.SymbolTable
	ops  map[term.Symbol]string
}

func newArithmetic(syms *term.SymbolTable) *arithmetic {
	a := &arithmetic{syms: syms, ops: make(map[term.Symbol]string)}
	for _, op := range []string{"+", "-", "*", "/", "//", "mod", "abs", "max", "min", "succ", "plus", "pi", "e"} {
		a.ops[syms.Intern(op)] = op
	}
	return a
}

func arithError(format string, args ...any) error {
	return term.Errorf(term.CodeArithmetic, format, args...)
}

// eval evaluates t under s. An unbound operand is TYPE_MISMATCH; a
// non-evaluable term or a division by zero is ARITHMETIC_ERROR.
func (a *arithmetic) eval(t term.Term, s unify.Subst) (term.Term, error) {
	switch x := s.Walk(t).(type) {
	case term.Int, term.Float:
		return x, nil
	case term.Var:
		return nil, instantiationError("is/2")
	case term.Atom:
		switch a.ops[x.Sym()] {
		case "pi":
			return term.Float(math.Pi), nil
		case "e":
			return term.Float(math.E), nil
		}
		return nil, arithError("%s is not evaluable", term.Format(x, a.syms))
	case *term.Compound:
		op, ok := a.ops[x.Functor]
		if !ok || len(x.Args) == 0 || len(x.Args) > 2 {
			return nil, arithError("%s/%d is not evaluable", a.syms.MustName(x.Functor), len(x.Args))
		}
		args := make([]term.Term, len(x.Args))
		for i, arg := range x.Args {
			v, err := a.eval(arg, s)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		if len(args) == 1 {
			return a.unary(op, args[0])
		}
		return a.binary(op, args[0], args[1])
	default:
		return nil, arithError("%s is not a number", term.Format(x, a.syms))
	}
}

func (a *arithmetic) unary(op string, x term.Term) (term.Term, error) {
	switch op {
	case "-":
		if i, ok := x.(term.Int); ok {
			if i == math.MinInt64 {
				return nil, arithError("integer overflow")
			}
			return -i, nil
		}
		return -x.(term.Float), nil
	case "+":
		return x, nil
	case "abs":
		if i, ok := x.(term.Int); ok {
			if i == math.MinInt64 {
				return nil, arithError("integer overflow")
			}
			return max(i, -i), nil
		}
		return term.Float(math.Abs(float64(x.(term.Float)))), nil
	case "succ":
		i, ok := x.(term.Int)
		if !ok {
			return nil, arithError("succ/1 expects an integer")
		}
		return a.binary("+", i, term.Int(1))
	}
	return nil, arithError("%s/1 is not evaluable", op)
}

func (a *arithmetic) binary(op string, x, y term.Term) (term.Term, error) {
	xi, xInt := x.(term.Int)
	yi, yInt := y.(term.Int)
	if xInt && yInt {
		return intOp(op, int64(xi), int64(yi))
	}
	xf, yf := toFloat(x), toFloat(y)
	switch op {
	case "+", "plus":
		return term.Float(xf + yf), nil
	case "-":
		return term.Float(xf - yf), nil
	case "*":
		return term.Float(xf * yf), nil
	case "/":
		if yf == 0 {
			return nil, arithError("division by zero")
		}
		return term.Float(xf / yf), nil
	case "//", "mod":
		return nil, term.Errorf(term.CodeTypeMismatch, "%s expects integers", op)
	case "max":
		if compareNum(x, y) >= 0 {
			return x, nil
		}
		return y, nil
	case "min":
		if compareNum(x, y) <= 0 {
			return x, nil
		}
		return y, nil
	}
	return nil, arithError("%s/2 is not evaluable", op)
}

func intOp(op string, x, y int64) (term.Term, error) {
	switch op {
	case "+", "plus":
		r := x + y
		if (r > x) != (y > 0) {
			return nil, arithError("integer overflow")
		}
		return term.Int(r), nil
	case "-":
		r := x - y
		if (r < x) != (y > 0) {
			return nil, arithError("integer overflow")
		}
		return term.Int(r), nil
	case "*":
		if x != 0 && y != 0 {
			r := x * y
			if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
				return nil, arithError("integer overflow")
			}
			return term.Int(r), nil
		}
		return term.Int(0), nil
	case "/":
		if y == 0 {
			return nil, arithError("division by zero")
		}
		if x%y == 0 && !(x == math.MinInt64 && y == -1) {
			return term.Int(x / y), nil
		}
		return term.Float(float64(x) / float64(y)), nil
	case "//":
		if y == 0 {
			return nil, arithError("division by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return nil, arithError("integer overflow")
		}
		return term.Int(x / y), nil
	case "mod":
		if y == 0 {
			return nil, arithError("division by zero")
		}
		if y == -1 {
			return term.Int(0), nil
		}
		// Result takes the sign of the divisor.
		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return term.Int(r), nil
	case "max":
		return term.Int(max(x, y)), nil
	case "min":
		return term.Int(min(x, y)), nil
	}
	return nil, arithError("%s/2 is not evaluable", op)
}

func toFloat(t term.Term) float64 {
	switch x := t.(type) {
	case term.Int:
		return float64(x)
	case term.Float:
		return float64(x)
	}
	return math.NaN()
}

// compareNum compares two evaluated numbers by value. Int pairs compare
// exactly; mixed pairs compare as floats under the total float order.
func compareNum(x, y term.Term) int {
	xi, xInt := x.(term.Int)
	yi, yInt := y.(term.Int)
	if xInt && yInt {
		switch {
		case xi < yi:
			return -1
		case xi > yi:
			return 1
		}
		return 0
	}
	return term.CompareFloat(toFloat(x), toFloat(y))
}
