package solver

import (
	"context"
	"fmt"

	"github.com/roach88/koloss/internal/budget"
	"github.com/roach88/koloss/internal/term"
)

// Clause is a disjunction of DIMACS literals: +v for v, -v for not v.
type Clause []int

// Formula is a conjunction of clauses over variables 1..NumVars.
type Formula struct {
	NumVars int
	Clauses []Clause
}

// Validate checks that every literal names a declared variable.
func (f Formula) Validate() error {
	if f.NumVars < 0 {
		return term.Errorf(term.CodeTypeMismatch, "negative variable count %d", f.NumVars)
	}
	for i, c := range f.Clauses {
		for _, lit := range c {
			if lit == 0 {
				return term.Errorf(term.CodeTypeMismatch, "clause %d: literal 0 is not a variable", i)
			}
			if abs(lit) > f.NumVars {
				return term.Errorf(term.CodeTypeMismatch,
					"clause %d: literal %d exceeds %d variables", i, lit, f.NumVars)
			}
		}
	}
	return nil
}

// Satisfied reports whether assignment makes every clause true.
// Variables missing from the assignment count as false.
func (f Formula) Satisfied(assignment map[int]bool) bool {
	for _, c := range f.Clauses {
		ok := false
		for _, lit := range c {
			if assignment[abs(lit)] == (lit > 0) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// SATResult is the outcome of a satisfiability run.
type SATResult struct {
	// Satisfiable is true iff a model was found.
	Satisfiable bool

	// Assignment is a total model over 1..NumVars when Satisfiable.
	Assignment map[int]bool

	// Decisions counts branching choices.
	Decisions int64

	// Propagations counts unit and pure-literal assignments.
	Propagations int64
}

// Backend selects the SAT procedure.
type Backend int

const (
	// BackendDPLL is the built-in DPLL procedure with deterministic
	// branching. It is the default.
	BackendDPLL Backend = iota

	// BackendCDCL delegates to the gini CDCL solver. Models may differ
	// from DPLL's but satisfiability never does.
	BackendCDCL
)

type satConfig struct {
	maxDecisions int64
	backend      Backend
}

// SATOption configures SolveSAT.
type SATOption func(*satConfig)

// WithMaxDecisions bounds the number of branching decisions.
// Exceeding it yields a RESOURCE_EXHAUSTED error. 0 means unbounded.
func WithMaxDecisions(n int64) SATOption {
	return func(c *satConfig) { c.maxDecisions = n }
}

// WithBackend selects the SAT procedure.
func WithBackend(b Backend) SATOption {
	return func(c *satConfig) { c.backend = b }
}

// SolveSAT decides f.
//
// The DPLL procedure runs unit propagation to a fixpoint, then assigns the
// lowest pure literal, and otherwise branches on the lowest-numbered
// unassigned variable that still occurs, trying true then false. A
// formula with an empty clause is unsatisfiable; a formula with no clauses
// is satisfiable. Variables that never needed a value are reported false.
func SolveSAT(ctx context.Context, f Formula, opts ...SATOption) (*SATResult, error) {
	cfg := satConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if cfg.backend == BackendCDCL {
		return solveCDCL(f)
	}

	d := &dpll{
		ctx:       ctx,
		decisions: budget.New("decisions", cfg.maxDecisions),
		result:    &SATResult{},
	}
	clauses := make([][]int, len(f.Clauses))
	for i, c := range f.Clauses {
		clauses[i] = dedupeLits(c)
	}
	values := make([]int8, f.NumVars+1)

	model, err := d.solve(clauses, values)
	if err != nil {
		return nil, err
	}
	if model != nil {
		d.result.Satisfiable = true
		d.result.Assignment = make(map[int]bool, f.NumVars)
		for v := 1; v <= f.NumVars; v++ {
			d.result.Assignment[v] = model[v] > 0
		}
	}
	return d.result, nil
}

type dpll struct {
	ctx       context.Context
	decisions *budget.Counter
	result    *SATResult
}

// solve returns a model (values indexed by variable, +1 true, -1 false,
// 0 unassigned) or nil when the clauses are unsatisfiable.
func (d *dpll) solve(clauses [][]int, values []int8) ([]int8, error) {
	for {
		if hasEmpty(clauses) {
			return nil, nil
		}
		if len(clauses) == 0 {
			return values, nil
		}
		if lit, ok := findUnit(clauses); ok {
			d.result.Propagations++
			clauses, values = assign(clauses, values, lit)
			continue
		}
		if lit, ok := findPure(clauses, len(values)); ok {
			d.result.Propagations++
			clauses, values = assign(clauses, values, lit)
			continue
		}
		break
	}

	if err := d.ctx.Err(); err != nil {
		return nil, fmt.Errorf("sat: %w", err)
	}
	if err := d.decisions.Check(); err != nil {
		return nil, err
	}
	d.result.Decisions++

	v := lowestVar(clauses)
	for _, lit := range []int{v, -v} {
		c, vals := assign(clauses, values, lit)
		model, err := d.solve(c, vals)
		if err != nil || model != nil {
			return model, err
		}
	}
	return nil, nil
}

// assign sets lit true and simplifies: clauses containing lit are dropped
// and the negation of lit is removed from the rest. Inputs are not
// modified.
func assign(clauses [][]int, values []int8, lit int) ([][]int, []int8) {
	vals := append([]int8(nil), values...)
	if lit > 0 {
		vals[lit] = 1
	} else {
		vals[-lit] = -1
	}
	out := make([][]int, 0, len(clauses))
	for _, c := range clauses {
		satisfied := false
		for _, l := range c {
			if l == lit {
				satisfied = true
				break
			}
		}
		if satisfied {
			continue
		}
		reduced := make([]int, 0, len(c))
		for _, l := range c {
			if l != -lit {
				reduced = append(reduced, l)
			}
		}
		out = append(out, reduced)
	}
	return out, vals
}

func hasEmpty(clauses [][]int) bool {
	for _, c := range clauses {
		if len(c) == 0 {
			return true
		}
	}
	return false
}

// findUnit returns the literal of the first unit clause.
func findUnit(clauses [][]int) (int, bool) {
	for _, c := range clauses {
		if len(c) == 1 {
			return c[0], true
		}
	}
	return 0, false
}

// findPure returns the pure literal with the lowest variable.
func findPure(clauses [][]int, n int) (int, bool) {
	const (
		pos = 1 << iota
		neg
	)
	seen := make([]uint8, n)
	for _, c := range clauses {
		for _, l := range c {
			if l > 0 {
				seen[l] |= pos
			} else {
				seen[-l] |= neg
			}
		}
	}
	for v := 1; v < n; v++ {
		switch seen[v] {
		case pos:
			return v, true
		case neg:
			return -v, true
		}
	}
	return 0, false
}

func lowestVar(clauses [][]int) int {
	low := 0
	for _, c := range clauses {
		for _, l := range c {
			if v := abs(l); low == 0 || v < low {
				low = v
			}
		}
	}
	return low
}

func dedupeLits(c Clause) []int {
	out := make([]int, 0, len(c))
	for _, l := range c {
		dup := false
		for _, o := range out {
			if o == l {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, l)
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
