package search

import (
	"context"
	"errors"

	"github.com/roach88/koloss/internal/budget"
)

// DefaultIterativeDepth bounds IterativeDeepening when Limits.MaxDepth is 0.
const DefaultIterativeDepth = 64

// DFS searches depth-first, expanding successors in order.
//
// A state is revisited only when reached at a strictly shallower depth than
// before, so the search terminates on cyclic graphs while still finding every
// goal within Limits.MaxDepth.
func DFS[S, A any](ctx context.Context, p Problem[S, A], lim Limits) (*Result[S, A], error) {
	bound := lim.MaxDepth
	if bound <= 0 {
		bound = -1
	}
	res, _, err := depthFirst(ctx, p, bound, nodeBudget(lim))
	return res, err
}

// IterativeDeepening runs depth-bounded DFS with bounds 0, 1, ... up to
// Limits.MaxDepth (DefaultIterativeDepth when unset). It finds a goal with
// the fewest actions, like BFS, in memory linear in the depth.
//
// MaxNodes is shared across all iterations.
func IterativeDeepening[S, A any](ctx context.Context, p Problem[S, A], lim Limits) (*Result[S, A], error) {
	maxDepth := lim.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultIterativeDepth
	}
	nodes := nodeBudget(lim)
	for bound := 0; bound <= maxDepth; bound++ {
		res, cutoff, err := depthFirst(ctx, p, bound, nodes)
		if err == nil {
			res.Expanded = nodes.Current()
			return res, nil
		}
		if !errors.Is(err, ErrNoSolution) {
			return nil, err
		}
		if !cutoff {
			// The whole space fits under the bound; deeper passes see nothing new.
			return nil, ErrNoSolution
		}
	}
	return nil, ErrNoSolution
}

// depthFirst searches with a depth bound (negative for none). It also
// reports whether any node was cut off by the bound, so iterative deepening
// can stop once a pass exhausts the space.
func depthFirst[S, A any](ctx context.Context, p Problem[S, A], bound int, nodes *budget.Counter) (*Result[S, A], bool, error) {
	var stack lifo[*node[S, A]]
	best := make(map[string]int)
	cutoff := false

	initial := p.Initial()
	for i := len(initial) - 1; i >= 0; i-- {
		n := root(p, initial[i])
		if d, ok := best[n.key]; ok && d <= 0 {
			continue
		}
		best[n.key] = 0
		stack.Push(n)
	}

	for {
		n, ok := stack.Pop()
		if !ok {
			return nil, cutoff, ErrNoSolution
		}
		if d := best[n.key]; d < n.depth {
			// Superseded by a shallower path pushed later.
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, cutoff, err
		}
		if p.IsGoal(n.state) {
			return n.result(nodes.Current()), cutoff, nil
		}
		if bound >= 0 && n.depth >= bound {
			cutoff = true
			continue
		}
		if err := nodes.Check(); err != nil {
			return nil, cutoff, err
		}
		succ := p.Successors(n.state)
		for i := len(succ) - 1; i >= 0; i-- {
			c := n.child(p, succ[i])
			if d, ok := best[c.key]; ok && d <= c.depth {
				continue
			}
			best[c.key] = c.depth
			stack.Push(c)
		}
	}
}
