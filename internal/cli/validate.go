package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/term"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat calls to undefined predicates as errors
}

// ProgramCheck is the validation outcome of one program.
type ProgramCheck struct {
	Path       string   `json:"path"`
	Valid      bool     `json:"valid"`
	Name       string   `json:"name,omitempty"`
	Clauses    int      `json:"clauses"`
	Predicates int      `json:"predicates"`
	Queries    int      `json:"queries"`
	Tabled     []string `json:"tabled,omitempty"`
	Undefined  []string `json:"undefined,omitempty"`
	Error      string   `json:"error,omitempty"`
	Code       string   `json:"code,omitempty"`
}

// ValidationResult holds every program check.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Programs []ProgramCheck `json:"programs"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <program>...",
		Short: "Check programs without running them",
		Long: `Decode programs, check them against the document schema and load
them into an engine without running any query. Reports clause and query
counts and the predicates called but never defined.

Exit codes:
  0 - Every program is valid
  1 - A program has undefined predicates (with --strict)
  2 - A program is malformed or cannot be loaded

Examples:
  koloss validate family.yaml
  koloss validate rules/ graph.cue --strict --format json`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on calls to undefined predicates")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := ValidationResult{Valid: true}

	exit := ExitSuccess
	for _, path := range paths {
		check := checkProgram(opts, path)
		if check.Error != "" {
			exit = ExitCommandError
		} else if opts.Strict && len(check.Undefined) > 0 {
			check.Valid = false
			exit = max(exit, ExitFailure)
		}
		result.Valid = result.Valid && check.Valid
		result.Programs = append(result.Programs, check)
		if !f.JSON() {
			printProgramCheck(f, check)
		}
	}

	if f.JSON() {
		status := StatusOK
		if !result.Valid {
			status = StatusError
		}
		if err := f.Result(status, result); err != nil {
			return err
		}
	}
	if exit != ExitSuccess {
		return NewExitError(exit, "validation failed")
	}
	return nil
}

func checkProgram(opts *ValidateOptions, path string) ProgramCheck {
	check := ProgramCheck{Path: path}
	s, err := openSession(opts.RootOptions, path, engine.Config{})
	if err != nil {
		check.Error = err.Error()
		if code, ok := term.CodeOf(err); ok {
			check.Code = string(code)
		}
		return check
	}

	check.Valid = true
	check.Name = s.program.Name
	check.Clauses = s.engine.NumClauses()
	check.Predicates = len(s.engine.Predicates())
	check.Queries = len(s.program.Queries)
	for _, ind := range s.program.Tabled {
		check.Tabled = append(check.Tabled, ind.String())
	}
	for _, key := range s.engine.Undefined() {
		check.Undefined = append(check.Undefined, key.String(s.syms))
	}
	opts.logger().Debug("program validated", "path", path, "clauses", check.Clauses, "undefined", len(check.Undefined))
	return check
}

func printProgramCheck(f *OutputFormatter, c ProgramCheck) {
	if c.Error != "" {
		f.Miss("%s: %s", c.Path, c.Error)
		return
	}
	name := c.Path
	if c.Name != "" {
		name = fmt.Sprintf("%s (%s)", c.Path, c.Name)
	}
	if c.Valid {
		f.Pass("%s: %d clause(s), %d predicate(s), %d query(ies)", name, c.Clauses, c.Predicates, c.Queries)
	} else {
		f.Miss("%s: %d clause(s), %d predicate(s), %d query(ies)", name, c.Clauses, c.Predicates, c.Queries)
	}
	for _, u := range c.Undefined {
		f.Line("   undefined: %s", u)
	}
}
