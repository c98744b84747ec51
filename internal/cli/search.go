package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/search"
	"github.com/roach88/koloss/internal/term"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Strategy    string
	BeamWidth   int
	MaxDepth    int
	MaxNodes    int64
	Simulations int
	Seed        uint64
	Workers     int
}

// graphFile is the YAML graph format.
//
//	start: [a]
//	goals: [e]
//	edges:
//	  - {from: a, to: b}
//	  - {from: b, to: e, label: finish, cost: 2}
//	heuristic: {a: 2, b: 1}   # beam: lower is better, missing is 0
//	reward: {e: 1}            # mcts: rollout end-state reward, missing is 0
type graphFile struct {
	Start     []string           `yaml:"start"`
	Goals     []string           `yaml:"goals"`
	Edges     []search.Edge      `yaml:"edges"`
	Heuristic map[string]float64 `yaml:"heuristic"`
	Reward    map[string]float64 `yaml:"reward"`
}

// SearchReport is a path found by a systematic strategy.
type SearchReport struct {
	Strategy string   `json:"strategy"`
	Found    bool     `json:"found"`
	Goal     string   `json:"goal,omitempty"`
	Actions  []string `json:"actions"`
	Cost     float64  `json:"cost"`
	Depth    int      `json:"depth"`
	Expanded int64    `json:"expanded"`
}

// MCTSReport is the recommendation of a Monte Carlo run.
type MCTSReport struct {
	Strategy    string       `json:"strategy"`
	Action      string       `json:"action"`
	State       string       `json:"state"`
	Visits      int          `json:"visits"`
	Mean        float64      `json:"mean"`
	Children    []ChildEntry `json:"children"`
	Simulations int          `json:"simulations"`
	Expanded    int64        `json:"expanded"`
}

// ChildEntry is one root action's statistics.
type ChildEntry struct {
	Action string  `json:"action"`
	Visits int     `json:"visits"`
	Mean   float64 `json:"mean"`
}

// Strategies lists the accepted --strategy values.
var Strategies = []string{"bfs", "dfs", "iddfs", "beam", "mcts"}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <graph.yaml>",
		Short: "Search an explicit state graph",
		Long: `Search a directed graph described in YAML from its start nodes to
any goal node. Successors follow edge order, so every strategy returns the
same path on every run; mcts is reproducible for a fixed --seed.

Strategies:
  bfs    fewest actions
  dfs    depth-first, bounded by --max-depth
  iddfs  iterative deepening up to --max-depth (default 64)
  beam   keeps the --beam-width best nodes per layer by heuristic
  mcts   recommends the first action by rollout reward

Exit codes:
  0 - Path found (or an mcts recommendation made)
  1 - No path, or a limit was hit
  2 - Command error

Examples:
  koloss search maze.yaml
  koloss search maze.yaml --strategy beam --beam-width 2
  koloss search game.yaml --strategy mcts --simulations 500 --seed 7`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Strategy, "strategy", "s", "bfs", "search strategy ("+strings.Join(Strategies, "|")+")")
	cmd.Flags().IntVar(&opts.BeamWidth, "beam-width", 3, "beam width")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "path length limit (0 = unbounded)")
	cmd.Flags().Int64Var(&opts.MaxNodes, "max-nodes", 0, "node expansion limit (0 = unbounded)")
	cmd.Flags().IntVar(&opts.Simulations, "simulations", search.DefaultSimulations, "mcts simulations")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "mcts rollout seed")
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "mcts root-parallel trees")

	return cmd
}

func runSearch(ctx context.Context, opts *SearchOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	doc, err := loadGraph(path)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to load graph", err)
	}
	var g search.Problem[string, string] = search.NewGraph(doc.Start, doc.Goals, doc.Edges)
	lim := search.Limits{MaxDepth: opts.MaxDepth, MaxNodes: opts.MaxNodes}
	f.VerboseLog("Loaded %d edge(s), %d start node(s), %d goal(s)", len(doc.Edges), len(doc.Start), len(doc.Goals))

	if opts.Strategy == "mcts" {
		return runMCTS(ctx, opts, f, g, doc)
	}

	var res *search.Result[string, string]
	switch opts.Strategy {
	case "bfs":
		res, err = search.BFS(ctx, g, lim)
	case "dfs":
		res, err = search.DFS(ctx, g, lim)
	case "iddfs":
		res, err = search.IterativeDeepening(ctx, g, lim)
	case "beam":
		h := func(s string) float64 { return doc.Heuristic[s] }
		res, err = search.Beam(ctx, g, h, opts.BeamWidth, lim)
	default:
		return f.Fail(ExitCommandError, "invalid strategy", fmt.Errorf("want one of %v, got %q", Strategies, opts.Strategy))
	}

	rep := SearchReport{Strategy: opts.Strategy, Actions: []string{}}
	switch {
	case errors.Is(err, search.ErrNoSolution):
	case err != nil:
		return f.Fail(limitExit(err), "search stopped", err)
	default:
		rep.Found = true
		rep.Goal = res.State
		rep.Actions = res.Actions
		rep.Cost = res.Cost
		rep.Depth = res.Depth
		rep.Expanded = res.Expanded
	}
	opts.logger().Debug("search finished", "strategy", opts.Strategy, "found", rep.Found, "expanded", rep.Expanded)

	if f.JSON() {
		status := StatusOK
		if !rep.Found {
			status = StatusNo
		}
		if err := f.Result(status, rep); err != nil {
			return err
		}
	} else if rep.Found {
		f.Pass("%s reached %s: %s (cost %g, %d expanded)", rep.Strategy, rep.Goal, strings.Join(rep.Actions, " -> "), rep.Cost, rep.Expanded)
	} else {
		f.Miss("%s found no path", rep.Strategy)
	}

	if !rep.Found {
		return NewExitError(ExitFailure, "no path")
	}
	return nil
}

func runMCTS(ctx context.Context, opts *SearchOptions, f *OutputFormatter, g search.Problem[string, string], doc *graphFile) error {
	reward := func(s string) float64 { return doc.Reward[s] }
	res, err := search.MCTS(ctx, g, reward, search.MCTSConfig{
		Simulations:  opts.Simulations,
		RolloutDepth: opts.MaxDepth,
		Seed:         opts.Seed,
		Workers:      opts.Workers,
		MaxNodes:     opts.MaxNodes,
	})
	if errors.Is(err, search.ErrNoSolution) {
		if f.JSON() {
			if err := f.Result(StatusNo, MCTSReport{Strategy: "mcts", Children: []ChildEntry{}}); err != nil {
				return err
			}
		} else {
			f.Miss("mcts: no moves from the start state")
		}
		return NewExitError(ExitFailure, "no moves")
	}
	if err != nil {
		return f.Fail(limitExit(err), "search stopped", err)
	}

	rep := MCTSReport{
		Strategy:    "mcts",
		Action:      res.Action,
		State:       res.State,
		Visits:      res.Visits,
		Mean:        res.Mean,
		Children:    make([]ChildEntry, len(res.Children)),
		Simulations: res.Simulations,
		Expanded:    res.Expanded,
	}
	for i, c := range res.Children {
		rep.Children[i] = ChildEntry{Action: c.Action, Visits: c.Visits, Mean: c.Mean}
	}
	opts.logger().Debug("mcts finished", "action", rep.Action, "visits", rep.Visits, "simulations", rep.Simulations)

	if f.JSON() {
		return f.Result(StatusOK, rep)
	}
	f.Pass("mcts recommends %s (visits %d, mean %.3f, %d simulations)", rep.Action, rep.Visits, rep.Mean, rep.Simulations)
	for _, c := range rep.Children {
		f.Line("   %-12s visits %-6d mean %.3f", c.Action, c.Visits, c.Mean)
	}
	return nil
}

// loadGraph reads a graph file. Unknown fields are rejected.
func loadGraph(path string) (*graphFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc graphFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, term.Errorf(term.CodeParse, "yaml: %v", err)
	}
	if len(doc.Start) == 0 {
		return nil, term.Errorf(term.CodeParse, "start: at least one node is required")
	}
	for i, e := range doc.Edges {
		if e.From == "" || e.To == "" {
			return nil, term.Errorf(term.CodeParse, "edge %d: from and to are required", i+1)
		}
		if e.Cost != nil && *e.Cost < 0 {
			return nil, term.Errorf(term.CodeParse, "edge %d: negative cost", i+1)
		}
	}
	return &doc, nil
}
