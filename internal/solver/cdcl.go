package solver

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
)

// solveCDCL decides f with gini. The caller has validated f.
func solveCDCL(f Formula) (*SATResult, error) {
	for _, c := range f.Clauses {
		if len(c) == 0 {
			return &SATResult{}, nil
		}
	}

	g := gini.New()
	for _, c := range f.Clauses {
		for _, lit := range c {
			g.Add(z.Dimacs2Lit(lit))
		}
		g.Add(z.LitNull)
	}

	res := &SATResult{}
	if g.Solve() != 1 {
		return res, nil
	}
	res.Satisfiable = true
	res.Assignment = make(map[int]bool, f.NumVars)
	maxVar := int(g.MaxVar())
	for v := 1; v <= f.NumVars; v++ {
		res.Assignment[v] = v <= maxVar && g.Value(z.Dimacs2Lit(v))
	}
	return res, nil
}
