package engine

import (
	"sync"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// tableStore holds completed answer tables keyed by call variant.
//
// Thread-safety: each predicate's tables have their own mutex. Publishing
// and invalidation both take it. A mutation records its generation before
// invalidating, so a publish either sees the change and is refused or
// lands first and is invalidated.
type tableStore struct {
	mu        sync.Mutex
	preds     map[PredKey]*predTables
	changedAt map[PredKey]uint64 // Generation of the last mutation per predicate
}

type predTables struct {
	mu      sync.Mutex
	entries map[string]*tableEntry
}

// tableEntry is a complete answer set for one call variant.
type tableEntry struct {
	answers []term.Term
	deps    map[PredKey]struct{}
}

func newTableStore() *tableStore {
	return &tableStore{
		preds:     make(map[PredKey]*predTables),
		changedAt: make(map[PredKey]uint64),
	}
}

// touch records that key changed at generation gen.
func (ts *tableStore) touch(key PredKey, gen uint64) {
	ts.mu.Lock()
	ts.changedAt[key] = gen
	ts.mu.Unlock()
}

// changedSince reports whether pred or any of deps changed after gen.
func (ts *tableStore) changedSince(pred PredKey, deps map[PredKey]struct{}, gen uint64) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.changedAt[pred] > gen {
		return true
	}
	for k := range deps {
		if ts.changedAt[k] > gen {
			return true
		}
	}
	return false
}

func (ts *tableStore) forPred(key PredKey) *predTables {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	pt, ok := ts.preds[key]
	if !ok {
		pt = &predTables{entries: make(map[string]*tableEntry)}
		ts.preds[key] = pt
	}
	return pt
}

type keyedTables struct {
	key PredKey
	pt  *predTables
}

func (ts *tableStore) snapshot() []keyedTables {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]keyedTables, 0, len(ts.preds))
	for k, pt := range ts.preds {
		out = append(out, keyedTables{k, pt})
	}
	return out
}

func (ts *tableStore) lookup(pred PredKey, variant string) (*tableEntry, bool) {
	pt := ts.forPred(pred)
	pt.mu.Lock()
	defer pt.mu.Unlock()
	ent, ok := pt.entries[variant]
	return ent, ok
}

// publish stores a completed table unless pred or one of its dependencies
// changed since generation gen, when the evaluation started.
func (ts *tableStore) publish(pred PredKey, variant string, ent *tableEntry, gen uint64) bool {
	pt := ts.forPred(pred)
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if ts.changedSince(pred, ent.deps, gen) {
		return false
	}
	pt.entries[variant] = ent
	return true
}

// invalidate drops every table of key and every table that depends on it.
func (ts *tableStore) invalidate(key PredKey) int {
	n := 0
	for _, it := range ts.snapshot() {
		it.pt.mu.Lock()
		for v, ent := range it.pt.entries {
			if _, dep := ent.deps[key]; it.key == key || dep {
				delete(it.pt.entries, v)
				n++
			}
		}
		it.pt.mu.Unlock()
	}
	return n
}

func (ts *tableStore) clear() int {
	n := 0
	for _, it := range ts.snapshot() {
		it.pt.mu.Lock()
		n += len(it.pt.entries)
		clear(it.pt.entries)
		it.pt.mu.Unlock()
	}
	return n
}

func (ts *tableStore) count() int {
	n := 0
	for _, it := range ts.snapshot() {
		it.pt.mu.Lock()
		n += len(it.pt.entries)
		it.pt.mu.Unlock()
	}
	return n
}

// AbolishTables discards every completed table.
func (e *Engine) AbolishTables() {
	if n := e.tables.clear(); n > 0 {
		e.stats.tableInvalidations.Add(int64(n))
	}
}

// NumTables returns the number of completed tables.
func (e *Engine) NumTables() int {
	return e.tables.count()
}

// tableEval is an in-progress evaluation of one call variant.
type tableEval struct {
	variant   string
	pred      PredKey
	idx       int // Position on the session's evaluation stack
	low       int // Lowest stack position this evaluation consumed from
	answers   []term.Term
	seen      map[string]struct{}
	deps      map[PredKey]struct{}
	reentered bool
}

// noteCall records that the innermost running evaluation called key.
func (s *session) noteCall(key PredKey) {
	if n := len(s.evals); n > 0 {
		s.evals[n-1].deps[key] = struct{}{}
	}
}

func (s *session) noteDeps(deps map[PredKey]struct{}) {
	if n := len(s.evals); n > 0 {
		top := s.evals[n-1]
		for k := range deps {
			top.deps[k] = struct{}{}
		}
	}
}

// callTabled answers goal from its table, evaluating the table to a
// fixpoint first when it is missing. A variant re-entered during its own
// evaluation consumes the answers found so far; the evaluation repeats
// until no new answers appear.
func (m *machine) callTabled(goal term.Term, key PredKey, c *cont) (bool, error) {
	e := m.e
	goal = m.subst.WalkDeep(goal)
	variant := term.VariantKey(goal)

	if ent, ok := e.tables.lookup(key, variant); ok {
		e.stats.tableHits.Add(1)
		e.metrics.tableHit()
		m.sess.noteDeps(ent.deps)
		answers := ent.answers
		m.pushAnswers(goal, c, func(i int) (term.Term, bool) {
			if i < len(answers) {
				return answers[i], true
			}
			return nil, false
		})
		return false, nil
	}

	if ev, ok := m.sess.byKey[variant]; ok {
		ev.reentered = true
		top := m.sess.evals[len(m.sess.evals)-1]
		top.low = min(top.low, ev.idx)
		m.pushAnswers(goal, c, func(i int) (term.Term, bool) {
			if i < len(ev.answers) {
				return ev.answers[i], true
			}
			return nil, false
		})
		return false, nil
	}

	e.stats.tableMisses.Add(1)
	e.metrics.tableMiss()
	ev, err := m.evaluateShared(goal, key, c.depth)
	if err != nil {
		return false, err
	}
	answers := ev.answers
	m.pushAnswers(goal, c, func(i int) (term.Term, bool) {
		if i < len(answers) {
			return answers[i], true
		}
		return nil, false
	})
	return false, nil
}

// evaluateShared evaluates goal's table. Outside any running evaluation,
// concurrent callers of one variant wait for a single evaluation and then
// read the table it published. A caller that finds no table afterwards,
// because the evaluation failed or was not published, evaluates on its own.
func (m *machine) evaluateShared(goal term.Term, key PredKey, depth int) (*tableEval, error) {
	if len(m.sess.evals) > 0 {
		return m.evaluate(goal, key, depth)
	}
	variant := term.VariantKey(goal)
	var (
		own *tableEval
		err error
	)
	m.e.inflight.Do(variant, func() (any, error) {
		if _, ok := m.e.tables.lookup(key, variant); ok {
			return nil, nil
		}
		own, err = m.evaluate(goal, key, depth)
		return nil, nil
	})
	if own != nil || err != nil {
		return own, err
	}
	if ent, ok := m.e.tables.lookup(key, variant); ok {
		return &tableEval{variant: variant, pred: key, answers: ent.answers, deps: ent.deps}, nil
	}
	return m.evaluate(goal, key, depth)
}

func (m *machine) evaluate(goal term.Term, key PredKey, depth int) (*tableEval, error) {
	e, sess := m.e, m.sess
	gen := e.gen.Load()
	ev := &tableEval{
		variant: term.VariantKey(goal),
		pred:    key,
		idx:     len(sess.evals),
		seen:    make(map[string]struct{}),
		deps:    make(map[PredKey]struct{}),
	}
	ev.low = ev.idx
	sess.evals = append(sess.evals, ev)
	sess.byKey[ev.variant] = ev
	defer func() {
		sess.evals = sess.evals[:ev.idx]
		delete(sess.byKey, ev.variant)
		if ev.idx > 0 {
			parent := sess.evals[ev.idx-1]
			parent.low = min(parent.low, ev.low)
			for k := range ev.deps {
				parent.deps[k] = struct{}{}
			}
		}
	}()

	for {
		ev.reentered = false
		added := false
		copied, _ := e.renamer.Rename(goal)
		raw := []Goal{{Kind: GoalUser, Term: copied, Key: key, raw: true}}
		sub := e.newMachine(sess, raw, 0, depth, unify.Empty())
		for {
			ok, err := sub.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			ans := sub.subst.WalkDeep(copied)
			v := term.VariantKey(ans)
			if _, dup := ev.seen[v]; dup {
				continue
			}
			ev.seen[v] = struct{}{}
			ev.answers = append(ev.answers, ans)
			added = true
		}
		if !ev.reentered || !added {
			break
		}
	}

	if ev.low >= ev.idx {
		ent := &tableEntry{answers: ev.answers, deps: ev.deps}
		if e.tables.publish(key, ev.variant, ent, gen) {
			e.logger.Debug("table completed",
				"predicate", e.indicator(key),
				"answers", len(ev.answers))
		}
	}
	return ev, nil
}

// pushAnswers pushes a generator that unifies goal with each answer in
// turn. Non-ground answers are renamed apart on every use.
func (m *machine) pushAnswers(goal term.Term, c *cont, answer func(int) (term.Term, bool)) {
	base := m.subst
	i := 0
	gen := func() (unify.Subst, bool, error) {
		for {
			a, ok := answer(i)
			if !ok {
				return base, false, nil
			}
			i++
			if !term.IsGround(a) {
				a, _ = m.e.renamer.Rename(a)
			}
			if s, ok := m.e.unifier.Unify(goal, a, base); ok {
				return s, true, nil
			}
		}
	}
	m.stack = append(m.stack, choicePoint{kind: cpGen, subst: base, cont: c.next, gen: gen})
}
