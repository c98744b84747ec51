package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// PredKey identifies a predicate by name and arity.
type PredKey struct {
	Name  term.Symbol
	Arity int
}

// String renders the key as name/arity.
func (k PredKey) String(syms *term.SymbolTable) string {
	return fmt.Sprintf("%s/%d", syms.MustName(k.Name), k.Arity)
}

// KeyOf returns the predicate key of a callable term.
func KeyOf(t term.Term) (PredKey, bool) {
	name, arity, ok := term.Indicator(t)
	return PredKey{Name: name, Arity: arity}, ok
}

// Key interns name and returns its predicate key.
func (e *Engine) Key(name string, arity int) PredKey {
	return PredKey{Name: e.syms.Intern(name), Arity: arity}
}

// Fitness is an opaque score attached to a clause by an external
// self-improvement process. The engine stores it and never interprets it.
type Fitness = float64

// Clause is a Horn clause. An empty body makes it a fact.
type Clause struct {
	Head    term.Term
	Body    []term.Term
	Fitness Fitness
}

// IsFact reports whether the clause has an empty body.
func (c Clause) IsFact() bool { return len(c.Body) == 0 }

// predicate holds the clauses of one name/arity.
type predicate struct {
	key     PredKey
	clauses []*storedClause // Copy-on-write; never mutated in place
	dynamic bool
	tabled  bool
}

// storedClause is a clause normalized to local variables 0..nvars-1 with a
// compiled body.
type storedClause struct {
	head    term.Term
	bodySrc []term.Term
	body    []Goal
	nvars   int
	seq     uint64
	fitness Fitness
}

func (c *storedClause) isFact() bool { return len(c.body) == 0 }

// clause returns the stored clause in its normalized form.
func (c *storedClause) clause() Clause {
	return Clause{Head: c.head, Body: slices.Clone(c.bodySrc), Fitness: c.fitness}
}

// normalize renumbers the variables of a clause to 0..n-1 in first
// occurrence order, head first.
func normalize(c Clause) (term.Term, []term.Term, int) {
	m := make(map[term.Var]term.Var)
	var rn func(term.Term) term.Term
	rn = func(t term.Term) term.Term {
		switch x := t.(type) {
		case term.Var:
			nv, ok := m[x]
			if !ok {
				nv = term.Var(len(m))
				m[x] = nv
			}
			return nv
		case *term.Compound:
			args := make([]term.Term, len(x.Args))
			for i, a := range x.Args {
				args[i] = rn(a)
			}
			return &term.Compound{Functor: x.Functor, Args: args}
		case *term.Cons:
			items, tail := term.ListItems(x)
			for i, it := range items {
				items[i] = rn(it)
			}
			return term.MakePartialList(rn(tail), items...)
		default:
			return t
		}
	}
	head := rn(c.Head)
	body := make([]term.Term, len(c.Body))
	for i, g := range c.Body {
		body[i] = rn(g)
	}
	return head, body, len(m)
}

// prepare validates and compiles a clause for storage.
func (e *Engine) prepare(c Clause) (*storedClause, PredKey, error) {
	if c.Head == nil {
		return nil, PredKey{}, term.Errorf(term.CodeTypeMismatch, "clause has no head")
	}
	key, ok := KeyOf(c.Head)
	if !ok {
		return nil, PredKey{}, typeError("assert", "callable head", c.Head, e.syms)
	}
	if e.isBuiltinKey(key) {
		return nil, key, term.Errorf(term.CodeTypeMismatch, "cannot modify built-in %s", e.indicator(key))
	}
	head, bodySrc, nvars := normalize(c)
	body, err := e.compileBody(bodySrc)
	if err != nil {
		return nil, key, fmt.Errorf("clause for %s: %w", e.indicator(key), err)
	}
	return &storedClause{head: head, bodySrc: bodySrc, body: body, nvars: nvars, fitness: c.Fitness}, key, nil
}

// Assert appends a clause to its predicate.
func (e *Engine) Assert(c Clause) error {
	return e.add(c, false)
}

// AssertFirst prepends a clause to its predicate.
func (e *Engine) AssertFirst(c Clause) error {
	return e.add(c, true)
}

// AddFact asserts a fact.
func (e *Engine) AddFact(head term.Term) error {
	return e.Assert(Clause{Head: head})
}

// AddRule asserts a rule.
func (e *Engine) AddRule(head term.Term, body ...term.Term) error {
	return e.Assert(Clause{Head: head, Body: body})
}

func (e *Engine) add(c Clause, first bool) error {
	sc, key, err := e.prepare(c)
	if err != nil {
		return err
	}
	e.mu.Lock()
	p := e.predLocked(key)
	e.seq++
	sc.seq = e.seq
	next := make([]*storedClause, 0, len(p.clauses)+1)
	if first {
		next = append(next, sc)
		next = append(next, p.clauses...)
	} else {
		next = append(next, p.clauses...)
		next = append(next, sc)
	}
	p.clauses = next
	e.mu.Unlock()

	e.changed(key)
	return nil
}

// predLocked returns the predicate for key, creating it. Caller holds e.mu.
func (e *Engine) predLocked(key PredKey) *predicate {
	p, ok := e.preds[key]
	if !ok {
		p = &predicate{key: key}
		e.preds[key] = p
		e.order = append(e.order, key)
		e.byName[key.Name] = append(e.byName[key.Name], key.Arity)
	}
	return p
}

// changed records a mutation of key and invalidates dependent tables.
func (e *Engine) changed(key PredKey) {
	e.tables.touch(key, e.gen.Add(1))
	if n := e.tables.invalidate(key); n > 0 {
		e.stats.tableInvalidations.Add(int64(n))
		e.logger.Debug("tables invalidated", "predicate", e.indicator(key), "count", n)
	}
}

// Retract removes the first clause whose head and body unify with the
// given ones. It reports whether a clause was removed.
func (e *Engine) Retract(head term.Term, body ...term.Term) bool {
	key, ok := KeyOf(head)
	if !ok {
		return false
	}
	pattern := term.MakeList(append([]term.Term{head}, body...)...)
	for _, sc := range e.lookup(key) {
		if len(sc.bodySrc) != len(body) {
			continue
		}
		inst, _ := e.renamer.Rename(term.MakeList(append([]term.Term{sc.head}, sc.bodySrc...)...))
		if _, ok := e.unifier.Unify(pattern, inst, unify.Empty()); ok {
			// False when a concurrent retract removed it first.
			if e.removeClause(key, sc) {
				return true
			}
		}
	}
	return false
}

// RetractAll removes every clause whose head unifies with head and
// returns how many were removed. The predicate stays known.
func (e *Engine) RetractAll(head term.Term) int {
	key, ok := KeyOf(head)
	if !ok {
		return 0
	}
	e.mu.Lock()
	p := e.predLocked(key)
	p.dynamic = true
	kept := make([]*storedClause, 0, len(p.clauses))
	for _, sc := range p.clauses {
		inst, _ := e.renamer.Rename(sc.head)
		if _, ok := e.unifier.Unify(head, inst, unify.Empty()); !ok {
			kept = append(kept, sc)
		}
	}
	removed := len(p.clauses) - len(kept)
	p.clauses = kept
	e.mu.Unlock()

	if removed > 0 {
		e.changed(key)
	}
	return removed
}

// Merge adds externally produced facts. Facts must be ground and callable.
// Facts already present are skipped. Returns the number added.
func (e *Engine) Merge(facts []term.Term) (int, error) {
	added := 0
	for _, f := range facts {
		if _, ok := KeyOf(f); !ok {
			return added, typeError("merge", "callable fact", f, e.syms)
		}
		if !term.IsGround(f) {
			return added, typeError("merge", "ground fact", f, e.syms)
		}
		if e.hasFact(f) {
			continue
		}
		if err := e.AddFact(f); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// hasFact reports whether an equal ground fact is stored.
func (e *Engine) hasFact(f term.Term) bool {
	key, _ := KeyOf(f)
	for _, sc := range e.lookup(key) {
		if sc.isFact() && term.Equal(sc.head, f) {
			return true
		}
	}
	return false
}

// Dynamic declares a predicate that may have no clauses. Calls to it fail
// quietly even under UnknownError.
func (e *Engine) Dynamic(name string, arity int) {
	key := e.Key(name, arity)
	e.mu.Lock()
	e.predLocked(key).dynamic = true
	e.mu.Unlock()
}

// Table marks a predicate as tabled.
func (e *Engine) Table(name string, arity int) {
	key := e.Key(name, arity)
	e.mu.Lock()
	e.predLocked(key).tabled = true
	e.mu.Unlock()
	e.changed(key)
}

// IsTabled reports whether key is tabled.
func (e *Engine) IsTabled(key PredKey) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.preds[key]
	return ok && p.tabled
}

// Clauses returns the clauses of key in database order, with variables
// renumbered from 0.
func (e *Engine) Clauses(key PredKey) []Clause {
	stored := e.lookup(key)
	out := make([]Clause, len(stored))
	for i, sc := range stored {
		out[i] = sc.clause()
	}
	return out
}

// Predicates returns every known predicate in first-assertion order.
func (e *Engine) Predicates() []PredKey {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

// Undefined returns the predicates called from clause bodies that have
// no clauses and are not declared dynamic, in first-call order. Calls
// through call/N with a variable goal are not seen.
func (e *Engine) Undefined() []PredKey {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := make(map[PredKey]bool)
	var out []PredKey
	var walk func([]Goal)
	walk = func(goals []Goal) {
		for _, g := range goals {
			if g.Kind == GoalUser && !seen[g.Key] {
				seen[g.Key] = true
				if p, ok := e.preds[g.Key]; !ok || len(p.clauses) == 0 && !p.dynamic {
					out = append(out, g.Key)
				}
			}
			walk(g.Cond)
			walk(g.Then)
			walk(g.Else)
			walk(g.Left)
			walk(g.Right)
		}
	}
	for _, key := range e.order {
		for _, sc := range e.preds[key].clauses {
			walk(sc.body)
		}
	}
	return out
}

// NumClauses returns the total number of stored clauses.
func (e *Engine) NumClauses() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, p := range e.preds {
		n += len(p.clauses)
	}
	return n
}

// lookup returns the current clause snapshot for key.
func (e *Engine) lookup(key PredKey) []*storedClause {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.preds[key]; ok {
		return p.clauses
	}
	return nil
}

// resolveUnknown decides what a call to key with no clauses does.
// It returns nil to fail quietly.
func (e *Engine) resolveUnknown(key PredKey) error {
	if e.unknown == UnknownFail {
		return nil
	}
	e.mu.RLock()
	_, known := e.preds[key]
	arities := slices.Clone(e.byName[key.Name])
	e.mu.RUnlock()
	if known {
		// Declared, tabled, or emptied by retract: a quiet failure.
		return nil
	}
	arities = append(arities, e.builtinArities(key.Name)...)
	if len(arities) > 0 {
		slices.Sort(arities)
		return arityMismatchError(e, key, slices.Compact(arities))
	}
	return unknownPredicateError(e, key)
}

// allRules returns every stored rule (non-fact clause) in global
// assertion order, paired with its predicate key.
func (e *Engine) allRules() []*storedClause {
	e.mu.RLock()
	var rules []*storedClause
	for _, p := range e.preds {
		for _, sc := range p.clauses {
			if !sc.isFact() {
				rules = append(rules, sc)
			}
		}
	}
	e.mu.RUnlock()
	slices.SortFunc(rules, func(a, b *storedClause) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return rules
}

// removeClause deletes sc from key if it is still stored.
func (e *Engine) removeClause(key PredKey, sc *storedClause) bool {
	e.mu.Lock()
	p, ok := e.preds[key]
	idx := -1
	if ok {
		idx = slices.Index(p.clauses, sc)
	}
	if idx >= 0 {
		p.clauses = slices.Delete(slices.Clone(p.clauses), idx, idx+1)
	}
	e.mu.Unlock()

	if idx < 0 {
		return false
	}
	e.changed(key)
	return true
}
