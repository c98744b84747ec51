package search

import (
	"context"
)

// BFS searches breadth-first. States are marked visited when enqueued, so
// each state is expanded at most once and the first goal dequeued has the
// fewest actions.
func BFS[S, A any](ctx context.Context, p Problem[S, A], lim Limits) (*Result[S, A], error) {
	nodes := nodeBudget(lim)
	queue := newFIFO[*node[S, A]]()
	visited := make(map[string]struct{})

	for _, s := range p.Initial() {
		n := root(p, s)
		if _, ok := visited[n.key]; ok {
			continue
		}
		visited[n.key] = struct{}{}
		queue.Push(n)
	}

	for {
		n, ok := queue.Pop()
		if !ok {
			return nil, ErrNoSolution
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.IsGoal(n.state) {
			return n.result(nodes.Current()), nil
		}
		if !withinDepth(n.depth, lim) {
			continue
		}
		if err := nodes.Check(); err != nil {
			return nil, err
		}
		for _, st := range p.Successors(n.state) {
			c := n.child(p, st)
			if _, ok := visited[c.key]; ok {
				continue
			}
			visited[c.key] = struct{}{}
			queue.Push(c)
		}
	}
}
