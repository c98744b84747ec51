package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// Solutions is a lazy cursor over the answers of a query.
//
//	sols := e.Query(ctx, goal)
//	defer sols.Close()
//	for sols.Next() {
//		x := sols.Solution().Get(x)
//	}
//	if err := sols.Err(); err != nil { ... }
//
// A Solutions is not safe for concurrent use.
type Solutions struct {
	e       *Engine
	ctx     context.Context
	id      int64
	vars    []term.Var            // Caller's variables, first-occurrence order
	renamed map[term.Var]term.Var // Caller's variable -> query variable
	inverse map[term.Var]term.Var
	goals   []Goal
	m       *machine
	cur     *Solution
	err     error
	closed  bool
	count   int
	start   time.Time
}

// Solution is one answer: bindings for the caller's variables.
type Solution struct {
	s       unify.Subst
	vars    []term.Var
	renamed map[term.Var]term.Var
	inverse map[term.Var]term.Var
}

// Query proves goal and returns a cursor over its solutions. Variables of
// goal are renamed apart from clause variables; solutions report bindings
// against the caller's variables.
func (e *Engine) Query(ctx context.Context, goal term.Term) *Solutions {
	return e.QueryConj(ctx, goal)
}

// QueryConj proves the conjunction of goals.
func (e *Engine) QueryConj(ctx context.Context, goals ...term.Term) *Solutions {
	q := &Solutions{
		e:       e,
		ctx:     ctx,
		id:      e.queries.Add(1),
		renamed: make(map[term.Var]term.Var),
		start:   time.Now(),
	}
	e.metrics.query()

	var compiled []Goal
	for _, g := range goals {
		for _, v := range term.Vars(g) {
			if _, ok := q.renamed[v]; !ok {
				q.vars = append(q.vars, v)
			}
		}
		renamed := e.renamer.RenameWith(g, q.renamed)
		gs, err := e.compileGoal(renamed)
		if err != nil {
			q.err = err
			q.closed = true
			return q
		}
		compiled = append(compiled, gs...)
	}
	q.goals = compiled
	q.inverse = make(map[term.Var]term.Var, len(q.renamed))
	for orig, qv := range q.renamed {
		q.inverse[qv] = orig
	}
	q.reset()
	e.logger.Debug("query started", "query_id", q.id, "goals", len(goals))
	return q
}

func (q *Solutions) reset() {
	q.m = q.e.newMachine(q.e.newSession(q.ctx), q.goals, 0, 0, unify.Empty())
	q.cur = nil
	q.count = 0
}

// Next advances to the next solution. It returns false when there are no
// more solutions or an error occurred; check Err.
func (q *Solutions) Next() (ok bool) {
	if q.closed || q.err != nil {
		return false
	}
	if err := q.ctx.Err(); err != nil {
		q.fail(err)
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			q.fail(internalError("panic during query: %v", r))
			ok = false
		}
	}()

	found, err := q.m.next()
	if err != nil {
		q.fail(err)
		return false
	}
	if !found {
		q.finish()
		return false
	}
	q.count++
	q.cur = &Solution{s: q.m.subst, vars: q.vars, renamed: q.renamed, inverse: q.inverse}
	return true
}

func (q *Solutions) fail(err error) {
	q.err = err
	q.cur = nil
	if term.IsResourceExhausted(err) {
		q.e.logger.Warn("query budget exhausted", "query_id", q.id, "error", err)
	} else {
		q.e.logger.Debug("query failed", "query_id", q.id, "error", err)
	}
	q.e.metrics.queryDone("error", time.Since(q.start))
}

func (q *Solutions) finish() {
	q.cur = nil
	q.closed = true
	q.e.logger.Debug("query finished", "query_id", q.id, "solutions", q.count)
	q.e.metrics.queryDone("ok", time.Since(q.start))
}

// Solution returns the current solution, or nil before the first Next or
// after the last.
func (q *Solutions) Solution() *Solution {
	return q.cur
}

// Err returns the error that stopped enumeration, if any.
func (q *Solutions) Err() error {
	return q.err
}

// Reset restarts enumeration from the first solution. Database changes
// made since the query started become visible.
func (q *Solutions) Reset() {
	if q.goals == nil && q.err != nil {
		return // Compile error; nothing to restart
	}
	q.err = nil
	q.closed = false
	q.start = time.Now()
	q.reset()
}

// Close releases the cursor. Next returns false afterwards.
func (q *Solutions) Close() {
	q.closed = true
	q.cur = nil
	q.m = nil
}

// Get returns the binding of a caller variable, fully dereferenced.
// An unbound variable returns itself.
func (s *Solution) Get(v term.Var) term.Term {
	qv, ok := s.renamed[v]
	if !ok {
		return v
	}
	return s.restore(s.s.WalkDeep(qv))
}

// restore maps query variables left unbound in t back to the caller's.
func (s *Solution) restore(t term.Term) term.Term {
	switch x := t.(type) {
	case term.Var:
		if orig, ok := s.inverse[x]; ok {
			return orig
		}
		return x
	case *term.Compound:
		args := make([]term.Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = s.restore(a)
		}
		return &term.Compound{Functor: x.Functor, Args: args}
	case *term.Cons:
		return &term.Cons{Head: s.restore(x.Head), Tail: s.restore(x.Tail)}
	default:
		return t
	}
}

// Bindings returns the bindings of the caller's variables in first
// occurrence order. Unbound variables are omitted.
func (s *Solution) Bindings() []unify.Binding {
	var out []unify.Binding
	for _, v := range s.vars {
		if t := s.Get(v); t != v {
			out = append(out, unify.Binding{Var: v, Term: t})
		}
	}
	return out
}

// Subst returns the bindings as a substitution over the caller's
// variables.
func (s *Solution) Subst() unify.Subst {
	out := unify.Empty()
	for _, b := range s.Bindings() {
		out = out.Bind(b.Var, b.Term)
	}
	return out
}

// Apply instantiates t with the solution's bindings.
func (s *Solution) Apply(t term.Term) term.Term {
	return s.Subst().WalkDeep(t)
}

// Format renders the bindings as X = value pairs using names.
func (s *Solution) Format(syms *term.SymbolTable, names map[term.Var]string) string {
	bs := s.Bindings()
	if len(bs) == 0 {
		return "true"
	}
	out := ""
	for i, b := range bs {
		if i > 0 {
			out += ", "
		}
		name, ok := names[b.Var]
		if !ok {
			name = fmt.Sprintf("_G%d", b.Var)
		}
		out += name + " = " + term.FormatNamed(b.Term, syms, names)
	}
	return out
}

// QueryFirst returns the first solution of goal, or nil if there is none.
func (e *Engine) QueryFirst(ctx context.Context, goal term.Term) (*Solution, error) {
	q := e.Query(ctx, goal)
	defer q.Close()
	if q.Next() {
		return q.Solution(), nil
	}
	return nil, q.Err()
}

// QueryAll collects up to limit solutions of goal. A limit <= 0 collects
// all of them.
func (e *Engine) QueryAll(ctx context.Context, goal term.Term, limit int) ([]*Solution, error) {
	q := e.Query(ctx, goal)
	defer q.Close()
	var out []*Solution
	for (limit <= 0 || len(out) < limit) && q.Next() {
		out = append(out, q.Solution())
	}
	return out, q.Err()
}
