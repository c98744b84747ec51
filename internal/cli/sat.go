package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/koloss/internal/solver"
)

// SATOptions holds flags for the sat command.
type SATOptions struct {
	*RootOptions
	Backend      string // "dpll" | "cdcl"
	MaxDecisions int64
}

// SATReport is the outcome of a SAT run. Model lists one signed literal
// per variable.
type SATReport struct {
	Satisfiable  bool  `json:"satisfiable"`
	Model        []int `json:"model,omitempty"`
	Variables    int   `json:"variables"`
	Clauses      int   `json:"clauses"`
	Decisions    int64 `json:"decisions"`
	Propagations int64 `json:"propagations"`
}

// NewSATCommand creates the sat command.
func NewSATCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SATOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sat <file.cnf>",
		Short: "Decide a DIMACS CNF formula",
		Long: `Decide satisfiability of a CNF formula in DIMACS format ("-" reads
stdin). Text output follows the competition convention: an "s" status
line and, when satisfiable, a "v" model line.

The dpll backend branches deterministically (lowest variable, true
first). The cdcl backend delegates to gini; its models may differ.

Exit codes:
  0 - SATISFIABLE
  1 - UNSATISFIABLE, or the decision limit was hit
  2 - Command error (unreadable or malformed formula)

Examples:
  koloss sat pigeons.cnf
  koloss sat pigeons.cnf --backend cdcl
  cat f.cnf | koloss sat - --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSAT(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "dpll", "solver backend (dpll|cdcl)")
	cmd.Flags().Int64Var(&opts.MaxDecisions, "max-decisions", 0, "branching decision limit (0 = unbounded)")

	return cmd
}

func runSAT(ctx context.Context, opts *SATOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var backend solver.Backend
	switch opts.Backend {
	case "dpll":
		backend = solver.BackendDPLL
	case "cdcl":
		backend = solver.BackendCDCL
	default:
		return f.Fail(ExitCommandError, "invalid backend", fmt.Errorf("want dpll or cdcl, got %q", opts.Backend))
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to open formula", err)
		}
		defer file.Close()
		r = file
	}
	formula, err := solver.ParseDIMACS(r)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to parse formula", err)
	}
	f.VerboseLog("Parsed %d variable(s), %d clause(s)", formula.NumVars, len(formula.Clauses))

	res, err := solver.SolveSAT(ctx, formula, solver.WithBackend(backend), solver.WithMaxDecisions(opts.MaxDecisions))
	if err != nil {
		return f.Fail(limitExit(err), "solver stopped", err)
	}
	opts.logger().Debug("sat solved",
		"backend", opts.Backend,
		"satisfiable", res.Satisfiable,
		"decisions", res.Decisions,
		"propagations", res.Propagations)

	rep := SATReport{
		Satisfiable:  res.Satisfiable,
		Variables:    formula.NumVars,
		Clauses:      len(formula.Clauses),
		Decisions:    res.Decisions,
		Propagations: res.Propagations,
	}
	if res.Satisfiable {
		rep.Model = model(res.Assignment, formula.NumVars)
	}

	if f.JSON() {
		status := StatusOK
		if !res.Satisfiable {
			status = StatusNo
		}
		if err := f.Result(status, rep); err != nil {
			return err
		}
	} else if res.Satisfiable {
		f.Line("s SATISFIABLE")
		f.Line("v %s", modelLine(rep.Model))
	} else {
		f.Line("s UNSATISFIABLE")
	}

	if !res.Satisfiable {
		return NewExitError(ExitFailure, "unsatisfiable")
	}
	return nil
}

// model lists the assignment as signed literals 1..n.
func model(assignment map[int]bool, n int) []int {
	lits := make([]int, n)
	for v := 1; v <= n; v++ {
		if assignment[v] {
			lits[v-1] = v
		} else {
			lits[v-1] = -v
		}
	}
	return lits
}

func modelLine(lits []int) string {
	parts := make([]string, 0, len(lits)+1)
	for _, l := range lits {
		parts = append(parts, strconv.Itoa(l))
	}
	parts = append(parts, "0")
	return strings.Join(parts, " ")
}
