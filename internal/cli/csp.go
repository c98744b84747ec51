package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/program"
	"github.com/roach88/koloss/internal/solver"
	"github.com/roach88/koloss/internal/term"
)

// CSPOptions holds flags for the csp command.
type CSPOptions struct {
	*RootOptions
	Workers  int
	MaxNodes int64
}

// cspFile is the YAML problem format.
//
//	variables:
//	  - {name: wa, domain: [red, green, blue]}
//	  - {name: nt, domain: [red, green, blue]}
//	constraints:
//	  - not_equal: [wa, nt]
//	  - all_different: [x, y, z]
//	  - expr: "x + y == 10"
//	    vars: [x, y]
type cspFile struct {
	Variables   []cspVariable   `yaml:"variables"`
	Constraints []cspConstraint `yaml:"constraints"`
	Workers     int             `yaml:"workers"`
}

type cspVariable struct {
	Name   string `yaml:"name"`
	Domain []any  `yaml:"domain"`
}

type cspConstraint struct {
	Equal        []string `yaml:"equal"`
	NotEqual     []string `yaml:"not_equal"`
	LessThan     []string `yaml:"less_than"`
	AllDifferent []string `yaml:"all_different"`
	Expr         string   `yaml:"expr"`
	Vars         []string `yaml:"vars"`
}

// Binding is one variable's value.
type Binding struct {
	Var   string `json:"var"`
	Value string `json:"value"`
}

// CSPReport is the outcome of a CSP run.
type CSPReport struct {
	Found      bool      `json:"found"`
	Assignment []Binding `json:"assignment,omitempty"`
	Nodes      int64     `json:"nodes"`
}

// NewCSPCommand creates the csp command.
func NewCSPCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CSPOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "csp <problem.yaml>",
		Short: "Solve a finite-domain constraint problem",
		Long: `Solve a finite-domain CSP described in YAML. Variables are
assigned in declaration order and values tried in domain order, so the
first solution is the same on every run, with or without --workers.

Constraints: equal, not_equal, less_than (two variables each),
all_different (any number), and expr with an explicit vars scope.

Exit codes:
  0 - Solution found
  1 - No solution, or the node limit was hit
  2 - Command error

Examples:
  koloss csp australia.yaml
  koloss csp queens.yaml --workers 4 --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCSP(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel branches over the first variable (0 = file or 1)")
	cmd.Flags().Int64Var(&opts.MaxNodes, "max-nodes", 0, "assignment limit (0 = unbounded)")

	return cmd
}

func runCSP(ctx context.Context, opts *CSPOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	syms := term.NewSymbolTable()
	problem, workers, err := loadCSP(path, syms)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to load problem", err)
	}
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	f.VerboseLog("Loaded %d variable(s), %d constraint(s)", len(problem.Vars), len(problem.Constraints))

	res, err := solver.SolveCSPParallel(ctx, problem, workers, solver.WithMaxNodes(opts.MaxNodes))
	if err != nil {
		return f.Fail(limitExit(err), "solver stopped", err)
	}
	opts.logger().Debug("csp solved", "found", res.Found, "nodes", res.Nodes, "workers", workers)

	rep := CSPReport{Found: res.Found, Nodes: res.Nodes}
	if res.Found {
		for i, v := range problem.Vars {
			rep.Assignment = append(rep.Assignment, Binding{Var: v.Name, Value: term.Format(res.Values[i], syms)})
		}
	}

	if f.JSON() {
		status := StatusOK
		if !res.Found {
			status = StatusNo
		}
		if err := f.Result(status, rep); err != nil {
			return err
		}
	} else if res.Found {
		for _, b := range rep.Assignment {
			f.Line("%s = %s", b.Var, b.Value)
		}
	} else {
		f.Line("no solution (%d nodes)", res.Nodes)
	}

	if !res.Found {
		return NewExitError(ExitFailure, "no solution")
	}
	return nil
}

// loadCSP reads a problem file. Unknown fields are rejected.
func loadCSP(path string, syms *term.SymbolTable) (solver.Problem, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return solver.Problem{}, 0, err
	}
	var doc cspFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return solver.Problem{}, 0, term.Errorf(term.CodeParse, "yaml: %v", err)
	}

	var p solver.Problem
	for _, v := range doc.Variables {
		domain := make([]term.Term, len(v.Domain))
		for i, raw := range v.Domain {
			t, err := program.DecodeTerm(raw, syms, term.NewVarScope(0))
			if err != nil {
				return solver.Problem{}, 0, fmt.Errorf("variable %s: %w", v.Name, err)
			}
			domain[i] = t
		}
		p.Vars = append(p.Vars, solver.Variable{Name: v.Name, Domain: domain})
	}
	for i, c := range doc.Constraints {
		cons, err := c.build(syms)
		if err != nil {
			return solver.Problem{}, 0, fmt.Errorf("constraint %d: %w", i+1, err)
		}
		p.Constraints = append(p.Constraints, cons...)
	}
	return p, doc.Workers, nil
}

func (c cspConstraint) build(syms *term.SymbolTable) ([]solver.Constraint, error) {
	set := 0
	for _, on := range []bool{c.Equal != nil, c.NotEqual != nil, c.LessThan != nil, c.AllDifferent != nil, c.Expr != ""} {
		if on {
			set++
		}
	}
	if set != 1 {
		return nil, term.Errorf(term.CodeParse, "exactly one of equal, not_equal, less_than, all_different or expr is required")
	}
	if c.Vars != nil && c.Expr == "" {
		return nil, term.Errorf(term.CodeParse, "vars only applies to expr")
	}

	pair := func(name string, vars []string, mk func(a, b string) solver.Constraint) ([]solver.Constraint, error) {
		if len(vars) != 2 {
			return nil, term.Errorf(term.CodeParse, "%s takes two variables, got %d", name, len(vars))
		}
		return []solver.Constraint{mk(vars[0], vars[1])}, nil
	}
	switch {
	case c.Equal != nil:
		return pair("equal", c.Equal, solver.Equal)
	case c.NotEqual != nil:
		return pair("not_equal", c.NotEqual, solver.NotEqual)
	case c.LessThan != nil:
		return pair("less_than", c.LessThan, solver.LessThan)
	case c.AllDifferent != nil:
		return solver.AllDifferent(c.AllDifferent...), nil
	default:
		e, err := solver.NewExpr(c.Expr, c.Vars, syms)
		if err != nil {
			return nil, err
		}
		return []solver.Constraint{e}, nil
	}
}
