package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/koloss/internal/edgestore"
	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/term"
)

// DeriveOptions holds flags for the derive command.
type DeriveOptions struct {
	*RootOptions
	Database      string
	MaxIterations int
	RunID         string // fixed run id; a UUIDv7 when empty
}

// DeriveReport is the outcome of a forward-chaining run.
type DeriveReport struct {
	RunID      string   `json:"run_id"`
	Iterations int      `json:"iterations"`
	Fixpoint   bool     `json:"fixpoint"`
	NewFacts   []string `json:"new_facts"`
	Stored     int      `json:"stored,omitempty"`
	Skipped    int      `json:"skipped,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive <program>",
		Short: "Run forward chaining to a fixpoint",
		Long: `Load a program and apply its rules forward until no new facts
appear, printing the derived facts in derivation order.

With --db, unary and binary derived facts are exported to a SQLite edge
store under the run id; other facts are counted as skipped.

Exit codes:
  0 - Fixpoint reached
  1 - Iteration cap hit before the fixpoint (partial facts are still reported)
  2 - Command error

Examples:
  koloss derive graph.cue
  koloss derive graph.cue --db edges.db
  koloss derive rules.yaml --max-iterations 10 --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "export derived edges to this SQLite file")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "forward-chaining pass limit (0 = config or default)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id recorded with stored edges (default: a new UUIDv7)")

	return cmd
}

func runDerive(ctx context.Context, opts *DeriveOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var extra []engine.Option
	if opts.RunID != "" {
		extra = append(extra, engine.WithIDGenerator(engine.NewFixedGenerator(opts.RunID)))
	}
	s, err := openSession(opts.RootOptions, path, engine.Config{MaxIterations: opts.MaxIterations}, extra...)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to load program", err)
	}

	res, derr := s.engine.Derive(ctx, s.config.Iterations())
	if res == nil {
		return f.Fail(ExitFailure, "derive failed", derr)
	}
	rep := DeriveReport{
		RunID:      res.RunID,
		Iterations: res.Iterations,
		Fixpoint:   res.Fixpoint,
		NewFacts:   make([]string, len(res.NewFacts)),
	}
	for i, fact := range res.NewFacts {
		rep.NewFacts[i] = term.Format(fact, s.syms)
	}
	if derr != nil {
		rep.Error = derr.Error()
	}

	db := opts.Database
	if db == "" {
		db = opts.Settings.Database
	}
	if db != "" {
		rep.Stored, rep.Skipped, err = storeFacts(ctx, db, res.RunID, res.NewFacts, s.syms)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to write edge store", err)
		}
		f.VerboseLog("Stored %d edge(s) in %s (%d skipped)", rep.Stored, db, rep.Skipped)
	}
	s.logMetrics(opts.logger())

	if f.JSON() {
		status := StatusOK
		if derr != nil {
			status = StatusNo
		}
		if err := f.Result(status, rep); err != nil {
			return err
		}
	} else {
		printDeriveReport(f, rep, db)
	}

	if derr != nil {
		return WrapExitError(ExitFailure, "fixpoint not reached", derr)
	}
	return nil
}

func printDeriveReport(f *OutputFormatter, rep DeriveReport, db string) {
	for _, fact := range rep.NewFacts {
		f.Line("%s", fact)
	}
	summary := fmt.Sprintf("%d new fact(s) in %d iteration(s), run %s", len(rep.NewFacts), rep.Iterations, rep.RunID)
	if rep.Fixpoint {
		f.Pass("fixpoint: %s", summary)
	} else {
		f.Miss("no fixpoint: %s", summary)
	}
	if db != "" {
		f.Line("stored %d edge(s) in %s, skipped %d", rep.Stored, db, rep.Skipped)
	}
}

func storeFacts(ctx context.Context, path, runID string, facts []term.Term, syms *term.SymbolTable) (int, int, error) {
	st, err := edgestore.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer st.Close()
	return st.WriteFacts(ctx, runID, facts, syms)
}
