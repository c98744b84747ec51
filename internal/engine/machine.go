package engine

import (
	"context"

	"github.com/roach88/koloss/internal/budget"
	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// cont is an immutable continuation: the goals still to prove, innermost
// first. Choice points snapshot a *cont, so continuations are shared and
// never mutated.
type cont struct {
	goal  *Goal
	off   term.Var // Offset added to the goal's local variables; 0 for absolute terms
	cutB  int      // Choice stack height that a cut in this goal truncates to
	depth int
	next  *cont
}

// push prepends goals to next, all sharing one frame.
func push(goals []Goal, off term.Var, cutB, depth int, next *cont) *cont {
	c := next
	for i := len(goals) - 1; i >= 0; i-- {
		c = &cont{goal: &goals[i], off: off, cutB: cutB, depth: depth, next: c}
	}
	return c
}

type cpKind uint8

const (
	cpClauses cpKind = iota // Remaining clauses of a user call
	cpGen                   // Remaining solutions of a generator
	cpAlt                   // An alternative continuation
)

// generator yields successive solutions of a nondeterministic goal.
type generator func() (unify.Subst, bool, error)

type choicePoint struct {
	kind    cpKind
	subst   unify.Subst
	cont    *cont // Continuation after the call (cpClauses, cpGen) or the alternative (cpAlt)
	goal    term.Term
	clauses []*storedClause
	next    int
	depth   int
	cutB    int
	gen     generator
}

// session is the state shared by a query and its sub-proofs.
type session struct {
	ctx   context.Context
	steps *budget.Counter
	ticks int
	evals []*tableEval
	byKey map[string]*tableEval
}

func (e *Engine) newSession(ctx context.Context) *session {
	return &session{
		ctx:   ctx,
		steps: budget.New("steps", e.maxSteps),
		byKey: make(map[string]*tableEval),
	}
}

// machine runs one proof search with an explicit choice-point stack.
// Backtracking restores the substitution snapshot of the top choice point.
type machine struct {
	e         *Engine
	sess      *session
	stack     []choicePoint
	subst     unify.Subst
	cont      *cont
	factsOnly bool // User goals match facts only; used by derive
	started   bool
	done      bool
}

func (e *Engine) newMachine(sess *session, goals []Goal, off term.Var, depth int, s unify.Subst) *machine {
	return &machine{
		e:     e,
		sess:  sess,
		subst: s,
		cont:  push(goals, off, 0, depth, nil),
	}
}

// next advances to the next solution. On success m.subst holds it.
func (m *machine) next() (bool, error) {
	if m.done {
		return false, nil
	}
	if m.started {
		ok, err := m.backtrack()
		if err != nil || !ok {
			m.done = true
			return false, err
		}
	}
	m.started = true

	for {
		if m.cont == nil {
			return true, nil
		}
		if err := m.tick(); err != nil {
			m.done = true
			return false, err
		}
		c := m.cont
		m.cont = c.next
		ok, err := m.step(c)
		if err != nil {
			m.done = true
			return false, err
		}
		if ok {
			continue
		}
		ok, err = m.backtrack()
		if err != nil || !ok {
			m.done = true
			return false, err
		}
	}
}

func (m *machine) tick() error {
	if err := m.sess.steps.Check(); err != nil {
		return err
	}
	m.sess.ticks++
	if m.sess.ticks&0xff == 0 {
		return m.sess.ctx.Err()
	}
	return nil
}

// backtrack resumes the most recent choice point that still has an
// alternative. It reports false when the stack is exhausted.
func (m *machine) backtrack() (bool, error) {
	for len(m.stack) > 0 {
		top := &m.stack[len(m.stack)-1]
		switch top.kind {
		case cpAlt:
			m.subst, m.cont = top.subst, top.cont
			m.pop()
			return true, nil

		case cpGen:
			s, ok, err := top.gen()
			if err != nil {
				return false, err
			}
			if ok {
				m.subst, m.cont = s, top.cont
				return true, nil
			}
			m.pop()

		case cpClauses:
			if m.tryClauses(top) {
				return true, nil
			}
			m.pop()

		default:
			return false, internalError("unknown choice point kind %d", top.kind)
		}
	}
	return false, nil
}

func (m *machine) pop() {
	m.stack[len(m.stack)-1] = choicePoint{}
	m.stack = m.stack[:len(m.stack)-1]
}

// tryClauses resolves the goal of cp against its next matching clause.
// The choice point is popped before the last candidate is tried.
func (m *machine) tryClauses(cp *choicePoint) bool {
	for cp.next < len(cp.clauses) {
		sc := cp.clauses[cp.next]
		cp.next++
		off := m.e.renamer.Reserve(sc.nvars)
		s, ok := m.e.unifier.Unify(instantiate(sc.head, off), cp.goal, cp.subst)
		if !ok {
			continue
		}
		m.e.stats.resolutions.Add(1)
		m.e.metrics.resolution()
		m.subst = s
		m.cont = push(sc.body, off, cp.cutB, cp.depth+1, cp.cont)
		if cp.next >= len(cp.clauses) {
			m.pop()
		}
		return true
	}
	return false
}

// step executes one goal. It returns false when the goal fails; the
// caller then backtracks.
func (m *machine) step(c *cont) (bool, error) {
	g := c.goal
	switch g.Kind {
	case GoalUser:
		return m.callUser(c)

	case GoalBuiltin:
		return m.callBuiltin(c)

	case GoalCut:
		if c.cutB > len(m.stack) {
			return false, internalError("cut barrier %d above stack height %d", c.cutB, len(m.stack))
		}
		for len(m.stack) > c.cutB {
			m.pop()
		}
		return true, nil

	case GoalFail:
		return false, nil

	case GoalDisj:
		m.stack = append(m.stack, choicePoint{
			kind:  cpAlt,
			subst: m.subst,
			cont:  push(g.Right, c.off, c.cutB, c.depth, c.next),
		})
		m.cont = push(g.Left, c.off, c.cutB, c.depth, c.next)
		return true, nil

	case GoalIfThenElse, GoalIfThen:
		b := len(m.stack)
		if g.Kind == GoalIfThenElse {
			m.stack = append(m.stack, choicePoint{
				kind:  cpAlt,
				subst: m.subst,
				cont:  push(g.Else, c.off, c.cutB, c.depth, c.next),
			})
		}
		then := push(g.Then, c.off, c.cutB, c.depth, c.next)
		commit := &cont{goal: cutGoal, cutB: b, depth: c.depth, next: then}
		m.cont = push(g.Cond, c.off, len(m.stack), c.depth, commit)
		return true, nil

	case GoalNot:
		// Succeed through the alternative only if Cond has no proof.
		b := len(m.stack)
		m.stack = append(m.stack, choicePoint{kind: cpAlt, subst: m.subst, cont: c.next})
		fail := &cont{goal: failGoal, depth: c.depth}
		commit := &cont{goal: cutGoal, cutB: b, depth: c.depth, next: fail}
		m.cont = push(g.Cond, c.off, len(m.stack), c.depth, commit)
		return true, nil

	case GoalCall:
		return m.callN(c)

	case GoalFindall:
		return m.findall(c)
	}
	return false, internalError("unknown goal kind %d", g.Kind)
}

func (m *machine) callUser(c *cont) (bool, error) {
	g := c.goal
	if err := budget.CheckDepth(c.depth+1, m.e.maxDepth); err != nil {
		return false, err
	}
	goal := instantiate(g.Term, c.off)
	m.sess.noteCall(g.Key)

	if !g.raw && !m.factsOnly && m.e.IsTabled(g.Key) {
		return m.callTabled(goal, g.Key, c)
	}

	clauses := m.e.lookup(g.Key)
	if m.factsOnly {
		clauses = factsOf(clauses)
	}
	if len(clauses) == 0 {
		if m.factsOnly {
			return false, nil
		}
		return false, m.e.resolveUnknown(g.Key)
	}
	m.stack = append(m.stack, choicePoint{
		kind:    cpClauses,
		subst:   m.subst,
		cont:    c.next,
		goal:    goal,
		clauses: clauses,
		depth:   c.depth,
		cutB:    len(m.stack),
	})
	return false, nil
}

func factsOf(clauses []*storedClause) []*storedClause {
	var out []*storedClause
	for _, sc := range clauses {
		if sc.isFact() {
			out = append(out, sc)
		}
	}
	return out
}

func (m *machine) callBuiltin(c *cont) (bool, error) {
	g := c.goal
	b := g.builtin
	args := term.Args(instantiate(g.Term, c.off))

	if b.nondet != nil {
		gen, err := b.nondet(m, args, m.subst)
		if err != nil {
			return false, m.builtinError(b, err)
		}
		if gen == nil {
			return false, nil
		}
		m.stack = append(m.stack, choicePoint{kind: cpGen, subst: m.subst, cont: c.next, gen: m.guardGen(b, gen)})
		return false, nil
	}

	s, ok, err := b.det(m, args, m.subst)
	if err != nil {
		return false, m.builtinError(b, err)
	}
	if !ok {
		return false, nil
	}
	m.subst = s
	return true, nil
}

// builtinError maps an arithmetic error to failure in ArithFail mode.
func (m *machine) builtinError(b *builtin, err error) error {
	if b.arith && m.e.arith == ArithFail &&
		(term.IsCode(err, term.CodeArithmetic) || term.IsCode(err, term.CodeTypeMismatch)) {
		return nil
	}
	return err
}

func (m *machine) guardGen(b *builtin, gen generator) generator {
	return func() (unify.Subst, bool, error) {
		s, ok, err := gen()
		if err != nil {
			return s, false, m.builtinError(b, err)
		}
		return s, ok, nil
	}
}

// callN implements call/1..8: the goal is built and compiled at run time,
// and a cut inside it is local.
func (m *machine) callN(c *cont) (bool, error) {
	args := term.Args(instantiate(c.goal.Term, c.off))
	goal := m.subst.Walk(args[0])
	if _, ok := goal.(term.Var); ok {
		return false, instantiationError("call/1")
	}
	if len(args) > 1 {
		name, _, ok := term.Indicator(goal)
		if !ok {
			return false, typeError("call", "callable goal", goal, m.e.syms)
		}
		all := append(append([]term.Term{}, term.Args(goal)...), args[1:]...)
		goal = &term.Compound{Functor: name, Args: all}
	}
	goals, err := m.e.compileGoal(goal)
	if err != nil {
		return false, err
	}
	m.cont = push(goals, 0, len(m.stack), c.depth, c.next)
	return true, nil
}

// findall runs its goal to exhaustion in a sub-machine.
func (m *machine) findall(c *cont) (bool, error) {
	args := term.Args(instantiate(c.goal.Term, c.off))
	sub := m.sub(c.goal.Cond, c.off, c.depth)
	var items []term.Term
	for {
		ok, err := sub.next()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		items = append(items, m.e.renamer.CopyTerm(args[0], sub.subst))
	}
	s, ok := m.e.unifier.Unify(args[2], term.MakeList(items...), m.subst)
	if !ok {
		return false, nil
	}
	m.subst = s
	return true, nil
}

// sub creates a machine for a sub-proof sharing this machine's session.
func (m *machine) sub(goals []Goal, off term.Var, depth int) *machine {
	s := m.e.newMachine(m.sess, goals, off, depth, m.subst)
	s.factsOnly = m.factsOnly
	return s
}

// instantiate shifts the local variables of t by off.
func instantiate(t term.Term, off term.Var) term.Term {
	if off == 0 {
		return t
	}
	switch x := t.(type) {
	case term.Var:
		return x + off
	case *term.Compound:
		args := make([]term.Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = instantiate(a, off)
		}
		return &term.Compound{Functor: x.Functor, Args: args}
	case *term.Cons:
		return &term.Cons{Head: instantiate(x.Head, off), Tail: instantiate(x.Tail, off)}
	default:
		return t
	}
}
