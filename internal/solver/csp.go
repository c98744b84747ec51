package solver

import (
	"context"
	"fmt"

	"github.com/roach88/koloss/internal/budget"
	"github.com/roach88/koloss/internal/term"
)

// Variable is a CSP variable with a finite, ordered domain.
type Variable struct {
	Name   string
	Domain []term.Term
}

// Problem is a finite-domain constraint satisfaction problem.
type Problem struct {
	Vars        []Variable
	Constraints []Constraint
}

// CSPResult is the outcome of a CSP run.
type CSPResult struct {
	// Found is true iff a consistent total assignment exists.
	Found bool

	// Assignment maps each variable name to its value when Found.
	Assignment map[string]term.Term

	// Values holds the same assignment in declaration order.
	Values []term.Term

	// Nodes counts assignments tried.
	Nodes int64
}

type cspConfig struct {
	maxNodes int64
}

// CSPOption configures SolveCSP.
type CSPOption func(*cspConfig)

// WithMaxNodes bounds the number of assignments tried.
// Exceeding it yields a RESOURCE_EXHAUSTED error. 0 means unbounded.
func WithMaxNodes(n int64) CSPOption {
	return func(c *cspConfig) { c.maxNodes = n }
}

// compiled is a Problem with scopes resolved to variable indexes.
type compiled struct {
	names   []string
	domains [][]term.Term
	cons    []compiledConstraint
	// byVar lists the constraints mentioning each variable.
	byVar [][]int
}

type compiledConstraint struct {
	c     Constraint
	scope []int
	// last is the highest variable index in scope: the constraint becomes
	// checkable once it is assigned.
	last int
}

func compile(p Problem) (*compiled, error) {
	idx := make(map[string]int, len(p.Vars))
	c := &compiled{
		names:   make([]string, len(p.Vars)),
		domains: make([][]term.Term, len(p.Vars)),
		byVar:   make([][]int, len(p.Vars)),
	}
	for i, v := range p.Vars {
		if _, dup := idx[v.Name]; dup {
			return nil, term.Errorf(term.CodeTypeMismatch, "duplicate variable %q", v.Name)
		}
		idx[v.Name] = i
		c.names[i] = v.Name
		c.domains[i] = append([]term.Term(nil), v.Domain...)
	}
	for ci, con := range p.Constraints {
		names := con.Scope()
		if len(names) == 0 {
			return nil, term.Errorf(term.CodeTypeMismatch, "constraint %d has an empty scope", ci)
		}
		cc := compiledConstraint{c: con, scope: make([]int, len(names))}
		for i, n := range names {
			vi, ok := idx[n]
			if !ok {
				return nil, term.Errorf(term.CodeTypeMismatch, "constraint %d: unknown variable %q", ci, n)
			}
			cc.scope[i] = vi
			if vi > cc.last {
				cc.last = vi
			}
			c.byVar[vi] = appendUnique(c.byVar[vi], len(c.cons))
		}
		c.cons = append(c.cons, cc)
	}
	return c, nil
}

func appendUnique(s []int, n int) []int {
	for _, x := range s {
		if x == n {
			return s
		}
	}
	return append(s, n)
}

// SolveCSP finds the first consistent assignment of p.
//
// Variables are assigned in declaration order and values tried in domain
// order. After each assignment, forward checking removes from every later
// variable's domain the values that violate a constraint whose scope would
// then be fully assigned. An emptied domain backtracks immediately.
func SolveCSP(ctx context.Context, p Problem, opts ...CSPOption) (*CSPResult, error) {
	cfg := cspConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := compile(p)
	if err != nil {
		return nil, err
	}
	s := &cspSearch{
		ctx:   ctx,
		p:     c,
		nodes: budget.New("nodes", cfg.maxNodes),
	}
	domains, ok, err := s.nodeConsistent(c.domains)
	if err != nil {
		return nil, err
	}
	assignment := make([]term.Term, len(c.names))
	var found bool
	if ok {
		found, err = s.search(0, assignment, domains)
		if err != nil {
			return nil, err
		}
	}
	return s.result(found, assignment), nil
}

type cspSearch struct {
	ctx   context.Context
	p     *compiled
	nodes *budget.Counter
	// stop reports that this search may give up early. Used by parallel
	// branches that can no longer produce the winning answer.
	stop func() bool
}

func (s *cspSearch) result(found bool, assignment []term.Term) *CSPResult {
	res := &CSPResult{Found: found, Nodes: s.nodes.Current()}
	if found {
		res.Values = assignment
		res.Assignment = make(map[string]term.Term, len(assignment))
		for i, v := range assignment {
			res.Assignment[s.p.names[i]] = v
		}
	}
	return res
}

// nodeConsistent filters each domain by its unary constraints.
func (s *cspSearch) nodeConsistent(domains [][]term.Term) ([][]term.Term, bool, error) {
	out := make([][]term.Term, len(domains))
	for i, dom := range domains {
		kept := make([]term.Term, 0, len(dom))
		for _, v := range dom {
			ok := true
			for _, ci := range s.p.byVar[i] {
				cc := s.p.cons[ci]
				if !unaryOn(cc, i) {
					continue
				}
				vals := make([]term.Term, len(cc.scope))
				for k := range vals {
					vals[k] = v
				}
				sat, err := cc.c.Check(vals)
				if err != nil {
					return nil, false, err
				}
				if !sat {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			return out, false, nil
		}
		out[i] = kept
	}
	return out, true, nil
}

func unaryOn(cc compiledConstraint, v int) bool {
	for _, x := range cc.scope {
		if x != v {
			return false
		}
	}
	return true
}

// search assigns variable i onward. domains[j] for j >= i are already
// pruned against assignment[0:i].
func (s *cspSearch) search(i int, assignment []term.Term, domains [][]term.Term) (bool, error) {
	if i == len(assignment) {
		return true, nil
	}
	for _, v := range domains[i] {
		if err := s.ctx.Err(); err != nil {
			return false, fmt.Errorf("csp: %w", err)
		}
		if s.stop != nil && s.stop() {
			return false, nil
		}
		if err := s.nodes.Check(); err != nil {
			return false, err
		}
		assignment[i] = v

		ok, err := s.consistent(i, assignment)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		next, ok, err := s.forwardCheck(i, assignment, domains)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		found, err := s.search(i+1, assignment, next)
		if err != nil || found {
			return found, err
		}
	}
	assignment[i] = nil
	return false, nil
}

// consistent checks every constraint that becomes fully assigned at i.
func (s *cspSearch) consistent(i int, assignment []term.Term) (bool, error) {
	for _, ci := range s.p.byVar[i] {
		cc := s.p.cons[ci]
		if cc.last != i {
			continue
		}
		ok, err := check(cc, assignment)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// forwardCheck returns copies of the later domains pruned against the
// assignment up to i. ok is false when some domain becomes empty.
func (s *cspSearch) forwardCheck(i int, assignment []term.Term, domains [][]term.Term) ([][]term.Term, bool, error) {
	next := make([][]term.Term, len(domains))
	copy(next, domains)
	for j := i + 1; j < len(domains); j++ {
		var relevant []compiledConstraint
		for _, ci := range s.p.byVar[j] {
			cc := s.p.cons[ci]
			if mentions(cc, i) && checkableWith(cc, i, j) {
				relevant = append(relevant, cc)
			}
		}
		if len(relevant) == 0 {
			continue
		}
		kept := make([]term.Term, 0, len(domains[j]))
		for _, v := range domains[j] {
			assignment[j] = v
			ok := true
			for _, cc := range relevant {
				sat, err := check(cc, assignment)
				if err != nil {
					assignment[j] = nil
					return nil, false, err
				}
				if !sat {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, v)
			}
		}
		assignment[j] = nil
		if len(kept) == 0 {
			return nil, false, nil
		}
		next[j] = kept
	}
	return next, true, nil
}

func mentions(cc compiledConstraint, v int) bool {
	for _, x := range cc.scope {
		if x == v {
			return true
		}
	}
	return false
}

// checkableWith reports whether every scope variable is assigned (index
// <= i) or is j itself.
func checkableWith(cc compiledConstraint, i, j int) bool {
	for _, x := range cc.scope {
		if x > i && x != j {
			return false
		}
	}
	return true
}

func check(cc compiledConstraint, assignment []term.Term) (bool, error) {
	vals := make([]term.Term, len(cc.scope))
	for k, x := range cc.scope {
		vals[k] = assignment[x]
	}
	return cc.c.Check(vals)
}
