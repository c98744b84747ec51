package search

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/koloss/internal/budget"
)

// Reward scores the state a rollout ends in. Higher is better; rewards are
// typically in [0, 1].
type Reward[S any] func(S) float64

// MCTSConfig configures Monte Carlo tree search.
type MCTSConfig struct {
	// Simulations is the number of select/expand/rollout/backpropagate
	// rounds. Default: DefaultSimulations.
	Simulations int

	// Exploration is the UCB1 constant c. Default: √2.
	Exploration float64

	// RolloutDepth bounds the random playout. Default: DefaultRolloutDepth.
	RolloutDepth int

	// Seed makes rollouts reproducible. Worker i uses Seed+i.
	Seed uint64

	// Workers > 1 runs that many independent trees and merges their root
	// statistics. Simulations are split across workers.
	Workers int

	// MaxNodes bounds the total tree nodes per worker (0 = unbounded).
	MaxNodes int64
}

const (
	DefaultSimulations  = 1000
	DefaultRolloutDepth = 32
)

func (c MCTSConfig) withDefaults() MCTSConfig {
	if c.Simulations <= 0 {
		c.Simulations = DefaultSimulations
	}
	if c.Exploration <= 0 {
		c.Exploration = math.Sqrt2
	}
	if c.RolloutDepth <= 0 {
		c.RolloutDepth = DefaultRolloutDepth
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// ChildStats is the aggregate for one root action.
type ChildStats[A any] struct {
	Action A
	Key    string // canonical key of the state the action leads to
	Visits int
	Mean   float64
}

// MCTSResult reports the recommended root action.
type MCTSResult[S, A any] struct {
	Action      A
	State       S
	Visits      int
	Mean        float64
	Children    []ChildStats[A]
	Simulations int
	Expanded    int64
}

type mctsNode[S, A any] struct {
	state    S
	key      string
	action   A
	parent   *mctsNode[S, A]
	children []*mctsNode[S, A]
	untried  []Step[S, A]
	expanded bool // successors generated
	visits   int
	total    float64
}

func (n *mctsNode[S, A]) mean() float64 {
	if n.visits == 0 {
		return 0
	}
	return n.total / float64(n.visits)
}

func (n *mctsNode[S, A]) onPath(key string) bool {
	for x := n; x != nil; x = x.parent {
		if x.key == key {
			return true
		}
	}
	return false
}

// ucb1 returns the child maximizing mean + c·sqrt(ln(N)/n). Unvisited
// children are chosen first; ties go to the earlier child.
func (n *mctsNode[S, A]) ucb1(c float64) *mctsNode[S, A] {
	var best *mctsNode[S, A]
	bestScore := math.Inf(-1)
	logN := math.Log(float64(n.visits))
	for _, ch := range n.children {
		if ch.visits == 0 {
			return ch
		}
		score := ch.mean() + c*math.Sqrt(logN/float64(ch.visits))
		if score > bestScore {
			best, bestScore = ch, score
		}
	}
	return best
}

// MCTS runs Monte Carlo tree search from the first initial state and
// recommends the root action with the most visits (ties: higher mean reward,
// then successor order).
//
// With the same Seed and Workers the result is reproducible.
func MCTS[S, A any](ctx context.Context, p Problem[S, A], reward Reward[S], cfg MCTSConfig) (*MCTSResult[S, A], error) {
	cfg = cfg.withDefaults()
	initial := p.Initial()
	if len(initial) == 0 {
		return nil, ErrNoSolution
	}
	start := initial[0]

	if cfg.Workers == 1 {
		t := newTree(p, reward, cfg, start, cfg.Seed, cfg.Simulations)
		if err := t.run(ctx); err != nil {
			return nil, err
		}
		return t.result()
	}

	trees := make([]*tree[S, A], cfg.Workers)
	for i := range trees {
		sims := cfg.Simulations / cfg.Workers
		if i < cfg.Simulations%cfg.Workers {
			sims++
		}
		trees[i] = newTree(p, reward, cfg, start, cfg.Seed+uint64(i), sims)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range trees {
		g.Go(func() error {
			return t.run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeTrees(trees)
}

// tree is one independent search tree. It is owned by a single goroutine.
type tree[S, A any] struct {
	p      Problem[S, A]
	reward Reward[S]
	cfg    MCTSConfig
	rng    *rand.Rand
	root   *mctsNode[S, A]
	sims   int
	nodes  *budget.Counter
}

func newTree[S, A any](p Problem[S, A], reward Reward[S], cfg MCTSConfig, start S, seed uint64, sims int) *tree[S, A] {
	return &tree[S, A]{
		p:      p,
		reward: reward,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		root:   &mctsNode[S, A]{state: start, key: p.Key(start)},
		sims:   sims,
		nodes:  budget.New("nodes", cfg.MaxNodes),
	}
}

func (t *tree[S, A]) run(ctx context.Context) error {
	for i := 0; i < t.sims; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.simulate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *tree[S, A]) simulate() error {
	n := t.root
	t.expand(n)

	// Selection: descend while every successor has a node.
	for len(n.untried) == 0 && len(n.children) > 0 {
		n = n.ucb1(t.cfg.Exploration)
		t.expand(n)
	}

	// Expansion: one new child, skipping states already on the root path.
	for len(n.untried) > 0 {
		st := n.untried[0]
		n.untried = n.untried[1:]
		key := t.p.Key(st.State)
		if n.onPath(key) {
			continue
		}
		if err := t.nodes.Check(); err != nil {
			return err
		}
		ch := &mctsNode[S, A]{state: st.State, key: key, action: st.Action, parent: n}
		n.children = append(n.children, ch)
		n = ch
		break
	}

	r := t.reward(t.rollout(n.state))

	for x := n; x != nil; x = x.parent {
		x.visits++
		x.total += r
	}
	return nil
}

// expand generates successors once. Goal states are terminal.
func (t *tree[S, A]) expand(n *mctsNode[S, A]) {
	if n.expanded {
		return
	}
	n.expanded = true
	if t.p.IsGoal(n.state) {
		return
	}
	n.untried = t.p.Successors(n.state)
}

// rollout plays uniformly random successors until a goal, a dead end or
// the rollout depth.
func (t *tree[S, A]) rollout(s S) S {
	for d := 0; d < t.cfg.RolloutDepth; d++ {
		if t.p.IsGoal(s) {
			return s
		}
		succ := t.p.Successors(s)
		if len(succ) == 0 {
			return s
		}
		s = succ[t.rng.IntN(len(succ))].State
	}
	return s
}

func (t *tree[S, A]) result() (*MCTSResult[S, A], error) {
	if len(t.root.children) == 0 {
		return nil, ErrNoSolution
	}
	res := &MCTSResult[S, A]{Simulations: t.sims, Expanded: t.nodes.Current()}
	for _, ch := range t.root.children {
		res.Children = append(res.Children, ChildStats[A]{
			Action: ch.action,
			Key:    ch.key,
			Visits: ch.visits,
			Mean:   ch.mean(),
		})
	}
	best := pickBest(res.Children)
	res.Action = res.Children[best].Action
	res.Visits = res.Children[best].Visits
	res.Mean = res.Children[best].Mean
	res.State = t.root.children[best].state
	return res, nil
}

// mergeTrees sums root statistics by state key, ordered by first appearance
// across workers.
func mergeTrees[S, A any](trees []*tree[S, A]) (*MCTSResult[S, A], error) {
	type agg struct {
		stats ChildStats[A]
		state S
		total float64
	}
	index := make(map[string]int)
	var merged []*agg
	res := &MCTSResult[S, A]{}
	for _, t := range trees {
		res.Simulations += t.sims
		res.Expanded += t.nodes.Current()
		for _, ch := range t.root.children {
			i, ok := index[ch.key]
			if !ok {
				i = len(merged)
				index[ch.key] = i
				merged = append(merged, &agg{
					stats: ChildStats[A]{Action: ch.action, Key: ch.key},
					state: ch.state,
				})
			}
			merged[i].stats.Visits += ch.visits
			merged[i].total += ch.total
		}
	}
	if len(merged) == 0 {
		return nil, ErrNoSolution
	}
	for _, a := range merged {
		if a.stats.Visits > 0 {
			a.stats.Mean = a.total / float64(a.stats.Visits)
		}
		res.Children = append(res.Children, a.stats)
	}
	best := pickBest(res.Children)
	res.Action = merged[best].stats.Action
	res.State = merged[best].state
	res.Visits = merged[best].stats.Visits
	res.Mean = merged[best].stats.Mean
	return res, nil
}

func pickBest[A any](children []ChildStats[A]) int {
	best := 0
	for i := 1; i < len(children); i++ {
		c, b := children[i], children[best]
		if c.Visits > b.Visits || (c.Visits == b.Visits && c.Mean > b.Mean) {
			best = i
		}
	}
	return best
}
