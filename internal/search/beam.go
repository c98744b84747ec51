package search

import (
	"context"
	"sort"
)

// Heuristic scores a state; lower is better.
type Heuristic[S any] func(S) float64

// Beam keeps the k best states per depth according to h, breaking ties by
// generation order. It is neither complete nor optimal: a goal reachable only
// through a pruned state is never found.
func Beam[S, A any](ctx context.Context, p Problem[S, A], h Heuristic[S], k int, lim Limits) (*Result[S, A], error) {
	if k <= 0 {
		k = 1
	}
	nodes := nodeBudget(lim)
	visited := make(map[string]struct{})

	var level []*node[S, A]
	for _, s := range p.Initial() {
		n := root(p, s)
		if _, ok := visited[n.key]; ok {
			continue
		}
		visited[n.key] = struct{}{}
		level = append(level, n)
	}
	level = prune(level, h, k)

	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, n := range level {
			if p.IsGoal(n.state) {
				return n.result(nodes.Current()), nil
			}
		}
		if !withinDepth(level[0].depth, lim) {
			break
		}

		var next []*node[S, A]
		for _, n := range level {
			if err := nodes.Check(); err != nil {
				return nil, err
			}
			for _, st := range p.Successors(n.state) {
				c := n.child(p, st)
				if _, ok := visited[c.key]; ok {
					continue
				}
				visited[c.key] = struct{}{}
				next = append(next, c)
			}
		}
		level = prune(next, h, k)
	}
	return nil, ErrNoSolution
}

func prune[S, A any](level []*node[S, A], h Heuristic[S], k int) []*node[S, A] {
	scores := make(map[*node[S, A]]float64, len(level))
	for _, n := range level {
		scores[n] = h(n.state)
	}
	sort.SliceStable(level, func(i, j int) bool {
		return scores[level[i]] < scores[level[j]]
	})
	if len(level) > k {
		level = level[:k]
	}
	return level
}
