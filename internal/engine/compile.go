package engine

import (
	"github.com/roach88/koloss/internal/term"
)

// GoalKind tags a compiled goal.
type GoalKind uint8

const (
	// GoalUser calls a database predicate.
	GoalUser GoalKind = iota
	// GoalBuiltin runs a built-in predicate.
	GoalBuiltin
	// GoalCut truncates the choice stack to the frame's cut barrier.
	GoalCut
	// GoalFail always fails.
	GoalFail
	// GoalDisj tries Left, then Right on backtracking.
	GoalDisj
	// GoalIfThenElse commits to Then after the first solution of Cond,
	// otherwise runs Else.
	GoalIfThenElse
	// GoalIfThen is GoalIfThenElse with a failing else branch.
	GoalIfThen
	// GoalNot succeeds iff Cond has no solution.
	GoalNot
	// GoalCall compiles and runs its argument at call time.
	GoalCall
	// GoalFindall collects every instance of a template.
	GoalFindall
)

// Goal is a body goal compiled at clause-load time. Terms use the clause's
// local variable numbering; the machine offsets them per call.
type Goal struct {
	Kind GoalKind
	Term term.Term
	Key  PredKey

	// Cond, Then and Else hold sub-goals of control constructs: the
	// condition of if-then(-else), the inner goal of not/1 and findall/3.
	Cond, Then, Else []Goal

	// Left and Right are the alternatives of a disjunction.
	Left, Right []Goal

	builtin *builtin
	raw     bool // Bypass tabling; used to evaluate a table
}

var (
	cutGoal  = &Goal{Kind: GoalCut}
	failGoal = &Goal{Kind: GoalFail}
)

// controlSyms are the interned names of control constructs.
type controlSyms struct {
	comma, semi, arrow, cut, not, naf, call, findall, once, neck term.Symbol
}

func newControlSyms(syms *term.SymbolTable) controlSyms {
	return controlSyms{
		comma:   syms.Intern(","),
		semi:    syms.Intern(";"),
		arrow:   syms.Intern("->"),
		cut:     syms.Intern("!"),
		not:     syms.Intern("not"),
		naf:     syms.Intern(`\+`),
		call:    syms.Intern("call"),
		findall: syms.Intern("findall"),
		once:    syms.Intern("once"),
		neck:    syms.Intern(":-"),
	}
}

// maxCallArity is the largest call/N supported.
const maxCallArity = 8

// isControl reports whether key names a control construct.
func (e *Engine) isControl(key PredKey) bool {
	c := e.ctl
	switch key.Name {
	case c.comma, c.semi, c.arrow:
		return key.Arity == 2
	case c.cut:
		return key.Arity == 0
	case c.not, c.naf, c.once:
		return key.Arity == 1
	case c.call:
		return key.Arity >= 1 && key.Arity <= maxCallArity
	case c.findall:
		return key.Arity == 3
	}
	return false
}

func (e *Engine) isBuiltinKey(key PredKey) bool {
	_, ok := e.builtins[key]
	return ok || e.isControl(key)
}

// builtinArities lists the arities at which name is a built-in or control
// construct.
func (e *Engine) builtinArities(name term.Symbol) []int {
	var out []int
	for k := range e.builtins {
		if k.Name == name {
			out = append(out, k.Arity)
		}
	}
	for a := 0; a <= maxCallArity; a++ {
		if e.isControl(PredKey{Name: name, Arity: a}) {
			out = append(out, a)
		}
	}
	return out
}

// compileBody compiles a conjunction of body goals.
func (e *Engine) compileBody(body []term.Term) ([]Goal, error) {
	var out []Goal
	for _, g := range body {
		var err error
		out, err = e.compileInto(out, g)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// compileGoal compiles one goal term, flattening conjunctions.
func (e *Engine) compileGoal(t term.Term) ([]Goal, error) {
	return e.compileInto(nil, t)
}

func (e *Engine) compileInto(out []Goal, t term.Term) ([]Goal, error) {
	if v, ok := t.(term.Var); ok {
		return append(out, Goal{Kind: GoalCall, Term: e.syms.Compound("call", v)}), nil
	}
	key, ok := KeyOf(t)
	if !ok {
		return nil, typeError("call", "callable goal", t, e.syms)
	}
	args := term.Args(t)
	c := e.ctl

	switch {
	case key.Name == c.comma && key.Arity == 2:
		out, err := e.compileInto(out, args[0])
		if err != nil {
			return nil, err
		}
		return e.compileInto(out, args[1])

	case key.Name == c.semi && key.Arity == 2:
		if cond, ok := args[0].(*term.Compound); ok && cond.Functor == c.arrow && len(cond.Args) == 2 {
			g, err := e.compileITE(GoalIfThenElse, t, cond.Args[0], cond.Args[1])
			if err != nil {
				return nil, err
			}
			g.Else, err = e.compileGoal(args[1])
			if err != nil {
				return nil, err
			}
			return append(out, g), nil
		}
		left, err := e.compileGoal(args[0])
		if err != nil {
			return nil, err
		}
		right, err := e.compileGoal(args[1])
		if err != nil {
			return nil, err
		}
		return append(out, Goal{Kind: GoalDisj, Term: t, Left: left, Right: right}), nil

	case key.Name == c.arrow && key.Arity == 2:
		g, err := e.compileITE(GoalIfThen, t, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return append(out, g), nil

	case key.Name == c.once && key.Arity == 1:
		g, err := e.compileITE(GoalIfThen, t, args[0], e.syms.Atom("true"))
		if err != nil {
			return nil, err
		}
		return append(out, g), nil

	case key.Name == c.cut && key.Arity == 0:
		return append(out, Goal{Kind: GoalCut, Term: t}), nil

	case (key.Name == c.not || key.Name == c.naf) && key.Arity == 1:
		inner, err := e.compileGoal(args[0])
		if err != nil {
			return nil, err
		}
		return append(out, Goal{Kind: GoalNot, Term: t, Cond: inner}), nil

	case key.Name == c.call && key.Arity >= 1 && key.Arity <= maxCallArity:
		return append(out, Goal{Kind: GoalCall, Term: t}), nil

	case key.Name == c.findall && key.Arity == 3:
		inner, err := e.compileGoal(args[1])
		if err != nil {
			return nil, err
		}
		return append(out, Goal{Kind: GoalFindall, Term: t, Cond: inner}), nil
	}

	if b, ok := e.builtins[key]; ok {
		return append(out, Goal{Kind: GoalBuiltin, Term: t, Key: key, builtin: b}), nil
	}
	return append(out, Goal{Kind: GoalUser, Term: t, Key: key}), nil
}

func (e *Engine) compileITE(kind GoalKind, t, cond, then term.Term) (Goal, error) {
	c, err := e.compileGoal(cond)
	if err != nil {
		return Goal{}, err
	}
	th, err := e.compileGoal(then)
	if err != nil {
		return Goal{}, err
	}
	return Goal{Kind: kind, Term: t, Cond: c, Then: th}, nil
}

// clauseFromTerm splits (Head :- Body) into a clause. Other callable terms
// become facts.
func (e *Engine) clauseFromTerm(t term.Term) (Clause, error) {
	if c, ok := t.(*term.Compound); ok && c.Functor == e.ctl.neck && len(c.Args) == 2 {
		return Clause{Head: c.Args[0], Body: e.flattenConj(c.Args[1])}, nil
	}
	if _, ok := KeyOf(t); !ok {
		return Clause{}, typeError("assert", "callable clause", t, e.syms)
	}
	return Clause{Head: t}, nil
}

func (e *Engine) flattenConj(t term.Term) []term.Term {
	if c, ok := t.(*term.Compound); ok && c.Functor == e.ctl.comma && len(c.Args) == 2 {
		return append(e.flattenConj(c.Args[0]), e.flattenConj(c.Args[1])...)
	}
	return []term.Term{t}
}
