package program

import (
	"fmt"

	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/term"
)

// document is the plain-data form shared by the YAML and CUE decoders.
type document struct {
	Name    string     `yaml:"name"`
	Tabled  []string   `yaml:"tabled"`
	Dynamic []string   `yaml:"dynamic"`
	Clauses []any      `yaml:"clauses"`
	Queries []queryDoc `yaml:"queries"`
}

type queryDoc struct {
	Name   string   `yaml:"name"`
	Goal   any      `yaml:"goal"`
	Goals  []any    `yaml:"goals"`
	Limit  int      `yaml:"limit"`
	Expect []string `yaml:"expect"`
}

// reserved keys of the term encoding; a single-key map with any other key
// is shorthand for a compound.
var reserved = map[string]bool{"f": true, "args": true, "str": true, "atom": true, "list": true, "tail": true}

func (d *document) build(syms *term.SymbolTable) (*Program, error) {
	p := &Program{Name: d.Name}

	for _, s := range d.Tabled {
		ind, err := ParseIndicator(s)
		if err != nil {
			return nil, fmt.Errorf("tabled: %w", err)
		}
		p.Tabled = append(p.Tabled, ind)
	}
	for _, s := range d.Dynamic {
		ind, err := ParseIndicator(s)
		if err != nil {
			return nil, fmt.Errorf("dynamic: %w", err)
		}
		p.Dynamic = append(p.Dynamic, ind)
	}

	for i, raw := range d.Clauses {
		c, err := buildClause(raw, syms)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i+1, err)
		}
		p.Clauses = append(p.Clauses, c)
	}

	for i, qd := range d.Queries {
		q, err := qd.build(syms)
		if err != nil {
			name := qd.Name
			if name == "" {
				name = fmt.Sprintf("%d", i+1)
			}
			return nil, fmt.Errorf("query %s: %w", name, err)
		}
		p.Queries = append(p.Queries, *q)
	}
	return p, nil
}

func buildClause(raw any, syms *term.SymbolTable) (engine.Clause, error) {
	scope := term.NewVarScope(0)
	if m, ok := raw.(map[string]any); ok && isRule(m) {
		head, err := decodeTerm(m["head"], syms, scope)
		if err != nil {
			return engine.Clause{}, fmt.Errorf("head: %w", err)
		}
		var body []term.Term
		if b, present := m["body"]; present {
			items, ok := b.([]any)
			if !ok {
				return engine.Clause{}, term.Errorf(term.CodeParse, "body must be a list, got %T", b)
			}
			for j, it := range items {
				g, err := decodeTerm(it, syms, scope)
				if err != nil {
					return engine.Clause{}, fmt.Errorf("body goal %d: %w", j+1, err)
				}
				body = append(body, g)
			}
		}
		return engine.Clause{Head: head, Body: body}, nil
	}
	head, err := decodeTerm(raw, syms, scope)
	if err != nil {
		return engine.Clause{}, err
	}
	return engine.Clause{Head: head}, nil
}

func isRule(m map[string]any) bool {
	if _, ok := m["head"]; !ok {
		return false
	}
	switch len(m) {
	case 1:
		return true
	case 2:
		_, ok := m["body"]
		return ok
	}
	return false
}

func (qd *queryDoc) build(syms *term.SymbolTable) (*Query, error) {
	scope := term.NewVarScope(0)
	raw := qd.Goals
	if qd.Goal != nil {
		raw = append([]any{qd.Goal}, raw...)
	}
	if len(raw) == 0 {
		return nil, term.Errorf(term.CodeParse, "query has no goal")
	}
	if qd.Limit < 0 {
		return nil, term.Errorf(term.CodeParse, "limit must not be negative")
	}
	q := &Query{Name: qd.Name, Vars: scope, Limit: qd.Limit, Expect: qd.Expect}
	for _, r := range raw {
		g, err := decodeTerm(r, syms, scope)
		if err != nil {
			return nil, err
		}
		q.Goals = append(q.Goals, g)
	}
	return q, nil
}

// decodeTerm expands shorthand compounds, then decodes with term.FromValue.
func decodeTerm(v any, syms *term.SymbolTable, scope *term.VarScope) (term.Term, error) {
	return term.FromValue(expand(v), syms, scope)
}

func expand(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			out[i] = expand(it)
		}
		return out
	case map[string]any:
		if len(x) == 1 {
			for k, val := range x {
				if reserved[k] {
					break
				}
				args, ok := val.([]any)
				if !ok {
					args = []any{val}
				}
				return map[string]any{"f": k, "args": expand(args)}
			}
		}
		out := make(map[string]any, len(x))
		for k, val := range x {
			if k == "f" {
				out[k] = val
				continue
			}
			out[k] = expand(val)
		}
		return out
	default:
		return v
	}
}

// DecodeTerm decodes one term, resolving variables through scope.
func DecodeTerm(v any, syms *term.SymbolTable, scope *term.VarScope) (term.Term, error) {
	return decodeTerm(v, syms, scope)
}

// DecodeClause decodes one clause entry: a fact term or a {head, body}
// rule.
func DecodeClause(v any, syms *term.SymbolTable) (engine.Clause, error) {
	return buildClause(v, syms)
}
