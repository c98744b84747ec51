package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/program"
	"github.com/roach88/koloss/internal/term"
)

// AssertionError is returned when an assertion fails. It carries the
// trace for debugging context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Type, ev.Text)
	}
	return buf.String()
}

// AssertionContext gives database assertions access to the final engine.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Engine
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertHolds, AssertFails:
			err = assertGoal(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type == a.Event && ev.Text == a.Text {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s event %q", a.Event, a.Text),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the texts occur in order. Other events may
// come between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Texts) && ev.Text == a.Texts[next] {
			next++
		}
	}
	if next == len(a.Texts) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("texts in order: %v", a.Texts),
		Actual:   fmt.Sprintf("missing or out of order: %q", a.Texts[next]),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == a.Event {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
		Actual:   fmt.Sprintf("%d %s events", count, a.Event),
		Trace:    trace,
	}
}

func assertGoal(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Engine == nil {
		return fmt.Errorf("%s needs an engine", a.Type)
	}
	syms := actx.Engine.Symbols()
	goal, err := program.DecodeTerm(a.Goal, syms, term.NewVarScope(0))
	if err != nil {
		return fmt.Errorf("%s goal: %w", a.Type, err)
	}
	sol, err := actx.Engine.QueryFirst(actx.Ctx, goal)
	if err != nil {
		return fmt.Errorf("%s %s: %w", a.Type, term.Format(goal, syms), err)
	}
	holds := sol != nil
	if holds == (a.Type == AssertHolds) {
		return nil
	}
	actual := "no solution"
	if holds {
		actual = "a solution"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: term.Format(goal, syms),
		Actual:   actual,
	}
}
