package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/program"
	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/testutil"
)

// Harness runs the steps of one scenario against a fresh engine.
type Harness struct {
	engine *engine.Engine
	syms   *term.SymbolTable
	cfg    engine.Config
	result *Result
}

// Run executes a scenario and returns its result. Expectation and
// assertion failures are reported in the result; the error is reserved
// for scenarios that cannot run at all (unreadable program, bad config).
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	opts, err := scenario.Engine.Options()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	syms := term.NewSymbolTable()
	opts = append(opts,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(testutil.NewSequentialIDs("derive")),
	)

	h := &Harness{
		engine: engine.New(syms, opts...),
		syms:   syms,
		cfg:    scenario.Engine,
		result: NewResult(),
	}

	if scenario.Program != "" {
		p, err := program.LoadFile(scenario.Program, syms)
		if err != nil {
			return nil, fmt.Errorf("failed to load program: %w", err)
		}
		if err := p.Load(h.engine); err != nil {
			return nil, fmt.Errorf("failed to load program: %w", err)
		}
	}

	for i, step := range scenario.Setup {
		if err := h.runStep(ctx, fmt.Sprintf("setup[%d]", i), step); err != nil {
			return nil, err
		}
	}
	for i, step := range scenario.Flow {
		if err := h.runStep(ctx, fmt.Sprintf("flow[%d]", i), step); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{Ctx: ctx, Engine: h.engine}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// runStep returns an error only for malformed step terms.
func (h *Harness) runStep(ctx context.Context, where string, step Step) error {
	switch {
	case step.Assert != nil:
		c, err := program.DecodeClause(step.Assert, h.syms)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		text := formatClause(c, h.syms)
		if err := h.engine.Assert(c); err != nil {
			h.result.add(EventError, codeOf(err), err.Error())
			h.checkError(where, step.Expect, err)
			return nil
		}
		h.result.add(EventAssert, text, "")
		h.checkError(where, step.Expect, nil)

	case step.Retract != nil:
		c, err := program.DecodeClause(step.Retract, h.syms)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		removed := h.engine.Retract(c.Head, c.Body...)
		h.result.add(EventRetract, formatClause(c, h.syms), strconv.FormatBool(removed))
		if step.Expect != nil && step.Expect.Retracted != nil && *step.Expect.Retracted != removed {
			h.result.AddError(fmt.Sprintf("%s: retracted = %v, want %v", where, removed, *step.Expect.Retracted))
		}

	case step.Query != nil:
		scope := term.NewVarScope(0)
		goal, err := program.DecodeTerm(step.Query, h.syms, scope)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		q := program.Query{Goals: []term.Term{goal}, Vars: scope, Limit: step.Limit}
		h.result.add(EventQuery, term.FormatNamed(goal, h.syms, scope.NameMap()), "")
		answers, qerr := q.Run(ctx, h.engine)
		texts := make([]string, len(answers))
		for i, a := range answers {
			texts[i] = a.Text
			h.result.add(EventAnswer, a.Text, "")
		}
		if qerr != nil {
			h.result.add(EventError, codeOf(qerr), qerr.Error())
		}
		h.checkQuery(where, step.Expect, texts, qerr)

	case step.Derive != nil:
		limit := step.Derive.MaxIterations
		if limit <= 0 {
			limit = h.cfg.Iterations()
		}
		res, derr := h.engine.Derive(ctx, limit)
		if res != nil {
			h.result.add(EventDerive, res.RunID, fmt.Sprintf("iterations=%d new_facts=%d fixpoint=%v", res.Iterations, len(res.NewFacts), res.Fixpoint))
			for _, f := range res.NewFacts {
				h.result.add(EventFact, term.Format(f, h.syms), "")
			}
		}
		if derr != nil {
			h.result.add(EventError, codeOf(derr), derr.Error())
		}
		h.checkDerive(where, step.Expect, res, derr)
	}
	return nil
}

func (h *Harness) checkError(where string, exp *Expect, err error) bool {
	want := ""
	if exp != nil {
		want = exp.Error
	}
	got := ""
	if err != nil {
		got = codeOf(err)
	}
	if want != got {
		if want == "" {
			h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", where, err))
		} else {
			h.result.AddError(fmt.Sprintf("%s: error = %q, want %q", where, got, want))
		}
		return false
	}
	return true
}

func (h *Harness) checkQuery(where string, exp *Expect, answers []string, err error) {
	if !h.checkError(where, exp, err) || exp == nil || err != nil {
		return
	}
	if exp.None && len(answers) > 0 {
		h.result.AddError(fmt.Sprintf("%s: expected no solution, got %d", where, len(answers)))
	}
	if len(exp.Answers) > 0 && !slices.Equal(exp.Answers, answers) {
		h.result.AddError(fmt.Sprintf("%s: answers = [%s], want [%s]", where,
			strings.Join(answers, "; "), strings.Join(exp.Answers, "; ")))
	}
	if exp.Count != nil && *exp.Count != len(answers) {
		h.result.AddError(fmt.Sprintf("%s: %d answers, want %d", where, len(answers), *exp.Count))
	}
}

func (h *Harness) checkDerive(where string, exp *Expect, res *engine.DeriveResult, err error) {
	if !h.checkError(where, exp, err) || exp == nil || res == nil {
		return
	}
	if exp.Fixpoint != nil && *exp.Fixpoint != res.Fixpoint {
		h.result.AddError(fmt.Sprintf("%s: fixpoint = %v, want %v", where, res.Fixpoint, *exp.Fixpoint))
	}
	if exp.Count != nil && *exp.Count != len(res.NewFacts) {
		h.result.AddError(fmt.Sprintf("%s: %d new facts, want %d", where, len(res.NewFacts), *exp.Count))
	}
}

func codeOf(err error) string {
	if code, ok := term.CodeOf(err); ok {
		return string(code)
	}
	return "ERROR"
}

func formatClause(c engine.Clause, syms *term.SymbolTable) string {
	head := term.Format(c.Head, syms)
	if len(c.Body) == 0 {
		return head
	}
	body := make([]string, len(c.Body))
	for i, g := range c.Body {
		body[i] = term.Format(g, syms)
	}
	return head + " :- " + strings.Join(body, ", ")
}
