package solver

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/koloss/internal/term"
)

// Constraint restricts the values of the variables in its scope.
type Constraint interface {
	// Scope names the constrained variables.
	Scope() []string

	// Check reports whether values, given in Scope order, satisfy the
	// constraint.
	Check(values []term.Term) (bool, error)
}

type binary struct {
	a, b string
	name string
	fn   func(x, y term.Term) bool
}

func (c binary) Scope() []string { return []string{c.a, c.b} }

func (c binary) Check(values []term.Term) (bool, error) {
	return c.fn(values[0], values[1]), nil
}

func (c binary) String() string { return fmt.Sprintf("%s(%s, %s)", c.name, c.a, c.b) }

// Equal requires a and b to take equal values.
func Equal(a, b string) Constraint {
	return binary{a: a, b: b, name: "equal", fn: term.Equal}
}

// NotEqual requires a and b to take different values.
func NotEqual(a, b string) Constraint {
	return binary{a: a, b: b, name: "not_equal", fn: func(x, y term.Term) bool {
		return !term.Equal(x, y)
	}}
}

// LessThan requires a to precede b in the standard order of terms.
func LessThan(a, b string) Constraint {
	return binary{a: a, b: b, name: "less_than", fn: func(x, y term.Term) bool {
		return term.Compare(x, y) < 0
	}}
}

// AllDifferent expands to pairwise NotEqual constraints.
func AllDifferent(vars ...string) []Constraint {
	var out []Constraint
	for i := range vars {
		for j := i + 1; j < len(vars); j++ {
			out = append(out, NotEqual(vars[i], vars[j]))
		}
	}
	return out
}

// Func is a constraint backed by an arbitrary Go predicate.
type Func struct {
	Name string
	Vars []string
	Fn   func(values []term.Term) bool
}

// Scope implements Constraint.
func (f Func) Scope() []string { return f.Vars }

// Check implements Constraint.
func (f Func) Check(values []term.Term) (bool, error) {
	return f.Fn(values), nil
}

// Expr is a constraint written as a boolean expr-lang expression over the
// scope variable names, e.g. "x + y == 10" or "dist(a, b) != 1".
type Expr struct {
	Source  string
	vars    []string
	program *vm.Program
	syms    *term.SymbolTable
}

// NewExpr compiles source once. Atoms are visible to the expression as
// their names, strings as strings, and numbers and booleans as themselves.
func NewExpr(source string, vars []string, syms *term.SymbolTable) (*Expr, error) {
	program, err := expr.Compile(source, exprOptions()...)
	if err != nil {
		return nil, term.Errorf(term.CodeParse, "constraint %q: %v", source, err)
	}
	return &Expr{Source: source, vars: vars, program: program, syms: syms}, nil
}

func exprOptions() []expr.Option {
	return []expr.Option{
		expr.AsBool(),
		expr.Function("dist", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("dist: want 2 arguments, got %d", len(params))
			}
			a, aok := toFloat(params[0])
			b, bok := toFloat(params[1])
			if !aok || !bok {
				return nil, fmt.Errorf("dist: not numbers: %T, %T", params[0], params[1])
			}
			d := a - b
			if d < 0 {
				d = -d
			}
			return d, nil
		}),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Scope implements Constraint.
func (e *Expr) Scope() []string { return e.vars }

// Check implements Constraint.
func (e *Expr) Check(values []term.Term) (bool, error) {
	env := make(map[string]any, len(values))
	for i, v := range values {
		env[e.vars[i]] = exprValue(v, e.syms)
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false, term.Errorf(term.CodeTypeMismatch, "constraint %q: %v", e.Source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, term.Errorf(term.CodeTypeMismatch, "constraint %q returned %T", e.Source, out)
	}
	return b, nil
}

func exprValue(t term.Term, syms *term.SymbolTable) any {
	switch x := t.(type) {
	case term.Int:
		return int(x)
	case term.Float:
		return float64(x)
	case term.Str:
		return string(x)
	case term.Bool:
		return bool(x)
	case term.Atom:
		return syms.MustName(term.Symbol(x))
	default:
		return term.Format(t, syms)
	}
}
