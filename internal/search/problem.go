package search

import (
	"errors"

	"github.com/roach88/koloss/internal/budget"
)

// ErrNoSolution is returned when the reachable space holds no goal within
// the limits.
var ErrNoSolution = errors.New("search: no solution")

// Step is one transition out of a state.
type Step[S, A any] struct {
	Action A
	State  S
	Cost   float64
}

// Problem is a state space. Key must return equal strings for states that
// are the same, and is used for cycle detection.
type Problem[S, A any] interface {
	Initial() []S
	Successors(s S) []Step[S, A]
	IsGoal(s S) bool
	Key(s S) string
}

// Limits bound a search. Zero values mean unbounded.
type Limits struct {
	// MaxDepth bounds the number of actions on a path.
	MaxDepth int

	// MaxNodes bounds the number of node expansions.
	MaxNodes int64
}

// Result is a path from an initial state to a goal.
type Result[S, A any] struct {
	State    S
	Actions  []A
	Cost     float64
	Depth    int
	Expanded int64
}

// node is a search tree node; parents form the path back to the root.
type node[S, A any] struct {
	state  S
	key    string
	parent *node[S, A]
	action A
	cost   float64
	depth  int
}

func root[S, A any](p Problem[S, A], s S) *node[S, A] {
	return &node[S, A]{state: s, key: p.Key(s)}
}

func (n *node[S, A]) child(p Problem[S, A], st Step[S, A]) *node[S, A] {
	return &node[S, A]{
		state:  st.State,
		key:    p.Key(st.State),
		parent: n,
		action: st.Action,
		cost:   n.cost + st.Cost,
		depth:  n.depth + 1,
	}
}

// onPath reports whether key appears on the path from the root to n.
func (n *node[S, A]) onPath(key string) bool {
	for x := n; x != nil; x = x.parent {
		if x.key == key {
			return true
		}
	}
	return false
}

func (n *node[S, A]) result(expanded int64) *Result[S, A] {
	actions := make([]A, n.depth)
	for x := n; x.parent != nil; x = x.parent {
		actions[x.depth-1] = x.action
	}
	return &Result[S, A]{
		State:    n.state,
		Actions:  actions,
		Cost:     n.cost,
		Depth:    n.depth,
		Expanded: expanded,
	}
}

func withinDepth(depth int, lim Limits) bool {
	return lim.MaxDepth <= 0 || depth < lim.MaxDepth
}

func nodeBudget(lim Limits) *budget.Counter {
	return budget.New("nodes", lim.MaxNodes)
}
