package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/edgestore"
	"github.com/roach88/koloss/internal/program"
	"github.com/roach88/koloss/internal/term"
)

// EdgesOptions holds flags for the edges command.
type EdgesOptions struct {
	*RootOptions
	Database string
	Pattern  string // YAML goal p(S) or p(S, O); variables are wildcards
	RunID    string
}

// EdgeRow is one stored edge as printed.
type EdgeRow struct {
	Seq       int64  `json:"seq"`
	RunID     string `json:"run_id"`
	Predicate string `json:"predicate"`
	Fact      string `json:"fact"`
}

// EdgesResult holds the listing.
type EdgesResult struct {
	Edges []EdgeRow `json:"edges"`
	Total int       `json:"total"`
}

// NewEdgesCommand creates the edges command.
func NewEdgesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EdgesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edges",
		Short: "List derived edges in an edge store",
		Long: `List the edges a derive run exported, in write order.

A pattern is a unary or binary goal; ground arguments filter and
variables match anything.

Examples:
  koloss edges --db edges.db
  koloss edges --db edges.db --pattern '{reach: [a, "?X"]}'
  koloss edges --db edges.db --run 0190c7e2-... --format json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdges(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite edge store (required)")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "goal pattern as YAML")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only edges written by this run")

	return cmd
}

func runEdges(ctx context.Context, opts *EdgesOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" {
		opts.Database = opts.Settings.Database
	}
	if opts.Database == "" {
		return f.Fail(ExitCommandError, "missing database", fmt.Errorf("--db is required"))
	}
	if _, err := os.Stat(opts.Database); err != nil {
		return f.Fail(ExitCommandError, "database not found", err)
	}
	syms := term.NewSymbolTable()

	var pat edgestore.Pattern
	if opts.Pattern != "" {
		var raw any
		if err := yaml.Unmarshal([]byte(opts.Pattern), &raw); err != nil {
			return f.Fail(ExitCommandError, "invalid pattern", term.Errorf(term.CodeParse, "pattern: %v", err))
		}
		goal, err := program.DecodeTerm(raw, syms, term.NewVarScope(0))
		if err != nil {
			return f.Fail(ExitCommandError, "invalid pattern", err)
		}
		if pat, err = edgestore.PatternFromGoal(goal, syms); err != nil {
			return f.Fail(ExitCommandError, "invalid pattern", err)
		}
	}
	pat.RunID = opts.RunID

	st, err := edgestore.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	edges, err := st.ReadEdges(ctx, pat, syms)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to read edges", err)
	}

	result := EdgesResult{Edges: make([]EdgeRow, len(edges)), Total: len(edges)}
	for i, e := range edges {
		result.Edges[i] = EdgeRow{
			Seq:       e.Seq,
			RunID:     e.RunID,
			Predicate: e.Predicate,
			Fact:      term.Format(e.Fact(syms), syms),
		}
	}

	if f.JSON() {
		return f.Result(StatusOK, result)
	}
	for _, row := range result.Edges {
		f.Line("%4d  %s  %s", row.Seq, row.RunID, row.Fact)
	}
	f.Line("%d edge(s)", result.Total)
	return nil
}
