package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/edgestore"
	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/program"
	"github.com/roach88/koloss/internal/term"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Goal     string // YAML goal overriding the program's embedded queries
	Limit    int
	Database string // edge store whose facts are merged before querying
	MaxDepth int
	MaxSteps int64
}

// QueryReport is the outcome of one query.
type QueryReport struct {
	Name    string           `json:"name,omitempty"`
	Goal    string           `json:"goal"`
	Answers []program.Answer `json:"answers"`
	Expect  []string         `json:"expect,omitempty"`
	Match   *bool            `json:"match,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// QueryResult holds every query report.
type QueryResult struct {
	Program string        `json:"program"`
	Queries []QueryReport `json:"queries"`
	Merged  int           `json:"merged,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <program>",
		Short: "Run backward-chaining queries",
		Long: `Load a program (.yaml, .cue or a directory of .cue files) and run
its embedded queries, or the goal given with --goal.

Goals use the program term encoding: strings starting with ? are
variables, single-key maps are compounds, lists are lists.

Exit codes:
  0 - Every query has an answer and every expectation holds
  1 - A query has no answer, fails an expectation or hits a limit
  2 - Command error (unreadable program, bad goal)

Examples:
  koloss query family.yaml
  koloss query family.yaml --goal '{ancestor: [tom, "?Who"]}'
  koloss query graph.cue --goal '[{reach: [a, "?X"]}, {reach: ["?X", d]}]' --limit 1
  koloss query rules.cue --db facts.db --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Goal, "goal", "g", "", "goal as YAML (a term or a list of terms)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum answers per query (0 = all)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "merge facts from this edge store before querying")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "resolution depth limit (0 = config or default)")
	cmd.Flags().Int64Var(&opts.MaxSteps, "max-steps", 0, "resolution step limit (0 = config or default)")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := openSession(opts.RootOptions, path, engine.Config{MaxDepth: opts.MaxDepth, MaxSteps: opts.MaxSteps})
	if err != nil {
		return f.Fail(ExitCommandError, "failed to load program", err)
	}
	result := QueryResult{Program: path}

	db := opts.Database
	if db == "" {
		db = opts.Settings.Database
	}
	if db != "" {
		n, err := mergeEdges(ctx, s, db)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to read edge store", err)
		}
		result.Merged = n
		f.VerboseLog("Merged %d fact(s) from %s", n, db)
	}

	queries := make([]program.Query, 0, len(s.program.Queries))
	if opts.Goal != "" {
		q, err := parseGoal(opts.Goal, s.syms)
		if err != nil {
			return f.Fail(ExitCommandError, "invalid goal", err)
		}
		queries = append(queries, *q)
	} else {
		queries = append(queries, s.program.Queries...)
	}
	if len(queries) == 0 {
		return f.Fail(ExitCommandError, "nothing to run", fmt.Errorf("%s has no queries; pass --goal", path))
	}

	failed := 0
	for _, q := range queries {
		if opts.Limit > 0 {
			q.Limit = opts.Limit
		}
		rep := runOneQuery(ctx, s, q)
		if rep.Error != "" || len(rep.Answers) == 0 && rep.Expect == nil || rep.Match != nil && !*rep.Match {
			failed++
		}
		result.Queries = append(result.Queries, rep)
		if !f.JSON() {
			printQueryReport(f, rep)
		}
	}
	s.logMetrics(opts.logger())

	if f.JSON() {
		status := StatusOK
		if failed > 0 {
			status = StatusNo
		}
		if err := f.Result(status, result); err != nil {
			return err
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d queries failed", failed, len(queries)))
	}
	return nil
}

func runOneQuery(ctx context.Context, s *session, q program.Query) QueryReport {
	rep := QueryReport{
		Name:   q.Name,
		Goal:   formatGoals(q.Goals, s.syms, q.Vars.NameMap()),
		Expect: q.Expect,
	}
	answers, err := q.Run(ctx, s.engine)
	rep.Answers = answers
	if rep.Answers == nil {
		rep.Answers = []program.Answer{}
	}
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	if q.Expect != nil {
		texts := make([]string, len(answers))
		for i, a := range answers {
			texts[i] = a.Text
		}
		match := slices.Equal(texts, q.Expect)
		rep.Match = &match
	}
	return rep
}

func printQueryReport(f *OutputFormatter, rep QueryReport) {
	header := "?- " + rep.Goal
	if rep.Name != "" {
		header = rep.Name + ": " + header
	}
	f.Line("%s", header)
	for _, a := range rep.Answers {
		f.Line("   %s", a.Text)
	}
	switch {
	case rep.Error != "":
		f.Miss("%s", rep.Error)
	case rep.Match != nil && *rep.Match:
		f.Pass("%d answer(s) as expected", len(rep.Answers))
	case rep.Match != nil:
		f.Miss("expected [%s]", strings.Join(rep.Expect, "; "))
	case len(rep.Answers) == 0:
		f.Line("   no")
	}
}

// parseGoal decodes a YAML goal. A list is a conjunction.
func parseGoal(src string, syms *term.SymbolTable) (*program.Query, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(src), &raw); err != nil {
		return nil, term.Errorf(term.CodeParse, "goal: %v", err)
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	if len(items) == 0 {
		return nil, term.Errorf(term.CodeParse, "goal: empty conjunction")
	}
	scope := term.NewVarScope(0)
	q := &program.Query{Vars: scope}
	for _, it := range items {
		g, err := program.DecodeTerm(it, syms, scope)
		if err != nil {
			return nil, err
		}
		q.Goals = append(q.Goals, g)
	}
	return q, nil
}

func formatGoals(goals []term.Term, syms *term.SymbolTable, names map[term.Var]string) string {
	parts := make([]string, len(goals))
	for i, g := range goals {
		parts[i] = term.FormatNamed(g, syms, names)
	}
	return strings.Join(parts, ", ")
}

// mergeEdges adds every stored edge to the session's database as a fact.
func mergeEdges(ctx context.Context, s *session, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	st, err := edgestore.Open(path)
	if err != nil {
		return 0, err
	}
	defer st.Close()
	facts, err := st.Facts(ctx, edgestore.Pattern{}, s.syms)
	if err != nil {
		return 0, err
	}
	return s.engine.Merge(facts)
}
