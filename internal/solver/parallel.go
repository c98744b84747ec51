package solver

import (
	"context"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/koloss/internal/budget"
	"github.com/roach88/koloss/internal/term"
)

// SolveCSPParallel explores the values of the first variable as
// independent branches on up to workers goroutines.
//
// Each branch owns its own assignment and domain copies, so branches share
// no search state. The answer is the one SolveCSP returns: the solution of
// the lowest-indexed branch that has one. Branches that can no longer beat
// the best branch found so far stop early. Node limits apply per branch.
// An error in a branch is reported only if no earlier branch has a
// solution.
func SolveCSPParallel(ctx context.Context, p Problem, workers int, opts ...CSPOption) (*CSPResult, error) {
	if workers <= 1 || len(p.Vars) == 0 {
		return SolveCSP(ctx, p, opts...)
	}
	cfg := cspConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := compile(p)
	if err != nil {
		return nil, err
	}
	root := &cspSearch{ctx: ctx, p: c, nodes: budget.New("nodes", cfg.maxNodes)}
	domains, ok, err := root.nodeConsistent(c.domains)
	if err != nil {
		return nil, err
	}
	if !ok {
		return root.result(false, nil), nil
	}

	type branch struct {
		found      bool
		assignment []term.Term
		nodes      int64
		err        error
	}
	first := domains[0]
	results := make([]branch, len(first))
	var best atomic.Int64
	best.Store(math.MaxInt64)

	var g errgroup.Group
	g.SetLimit(workers)
	for bi := range first {
		g.Go(func() error {
			s := &cspSearch{
				ctx:   ctx,
				p:     c,
				nodes: budget.New("nodes", cfg.maxNodes),
				stop:  func() bool { return best.Load() < int64(bi) },
			}
			sub := append([][]term.Term(nil), domains...)
			sub[0] = first[bi : bi+1]
			assignment := make([]term.Term, len(c.names))
			found, err := s.search(0, assignment, sub)
			results[bi] = branch{found: found, assignment: assignment, nodes: s.nodes.Current(), err: err}
			if err == nil && found {
				for {
					cur := best.Load()
					if int64(bi) >= cur || best.CompareAndSwap(cur, int64(bi)) {
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var nodes int64
	for _, r := range results {
		nodes += r.nodes
	}
	// Scan in branch order so errors and answers surface exactly where a
	// sequential run would meet them.
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.found {
			res := root.result(true, r.assignment)
			res.Nodes = nodes
			return res, nil
		}
	}
	res := root.result(false, nil)
	res.Nodes = nodes
	return res, nil
}
