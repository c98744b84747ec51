package program

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/term"
)

// Program is a decoded document.
type Program struct {
	Name    string
	Tabled  []Indicator
	Dynamic []Indicator
	Clauses []engine.Clause
	Queries []Query
}

// Indicator names a predicate as name/arity.
type Indicator struct {
	Name  string
	Arity int
}

func (i Indicator) String() string {
	return i.Name + "/" + strconv.Itoa(i.Arity)
}

// ParseIndicator parses "name/arity". The name may itself contain '/'.
func ParseIndicator(s string) (Indicator, error) {
	i := strings.LastIndexByte(s, '/')
	if i <= 0 || i == len(s)-1 {
		return Indicator{}, term.Errorf(term.CodeParse, "predicate indicator %q is not name/arity", s)
	}
	arity, err := strconv.Atoi(s[i+1:])
	if err != nil || arity < 0 {
		return Indicator{}, term.Errorf(term.CodeParse, "predicate indicator %q has a bad arity", s)
	}
	return Indicator{Name: s[:i], Arity: arity}, nil
}

// Query is an embedded query with its named variables.
type Query struct {
	Name   string
	Goals  []term.Term
	Vars   *term.VarScope
	Limit  int
	Expect []string
}

// Load declares the program's directives in e and asserts its clauses in
// document order.
func (p *Program) Load(e *engine.Engine) error {
	for _, ind := range p.Dynamic {
		e.Dynamic(ind.Name, ind.Arity)
	}
	for _, ind := range p.Tabled {
		e.Table(ind.Name, ind.Arity)
	}
	for i, c := range p.Clauses {
		if err := e.Assert(c); err != nil {
			return fmt.Errorf("clause %d: %w", i+1, err)
		}
	}
	return nil
}

// Answer is one solution rendered for display.
type Answer struct {
	Text     string            `json:"text"`               // "X = a, Y = f(b)" or "true"
	Bindings map[string]string `json:"bindings,omitempty"` // named variable -> formatted value
}

// Run executes q against e and renders up to q.Limit answers (all when
// Limit is 0). Anonymous variables are not reported.
func (q *Query) Run(ctx context.Context, e *engine.Engine) ([]Answer, error) {
	sols := e.QueryConj(ctx, q.Goals...)
	defer sols.Close()

	names := q.Vars.NameMap()
	var out []Answer
	for (q.Limit <= 0 || len(out) < q.Limit) && sols.Next() {
		out = append(out, q.render(sols.Solution(), e.Symbols(), names))
	}
	return out, sols.Err()
}

func (q *Query) render(s *engine.Solution, syms *term.SymbolTable, names map[term.Var]string) Answer {
	a := Answer{Bindings: make(map[string]string)}
	var parts []string
	for _, name := range q.Vars.Names() {
		v, _ := q.Vars.Lookup(name)
		val := s.Get(v)
		if val == term.Term(v) {
			continue
		}
		text := term.FormatNamed(val, syms, names)
		a.Bindings[name] = text
		parts = append(parts, name+" = "+text)
	}
	if len(parts) == 0 {
		a.Text = "true"
	} else {
		a.Text = strings.Join(parts, ", ")
	}
	return a
}
