package edgestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/koloss/internal/term"
)

// Edge is a stored fact. Object is nil for unary facts.
type Edge struct {
	ID        int64
	Predicate string
	Subject   term.Term
	Object    term.Term
	RunID     string
	Seq       int64
}

// Arity returns 1 for unary edges and 2 for binary ones.
func (e Edge) Arity() int {
	if e.Object == nil {
		return 1
	}
	return 2
}

// Fact rebuilds the fact term.
func (e Edge) Fact(syms *term.SymbolTable) term.Term {
	if e.Object == nil {
		return syms.Compound(e.Predicate, e.Subject)
	}
	return syms.Compound(e.Predicate, e.Subject, e.Object)
}

// EdgesFromFacts maps ground unary and binary facts to edges, in order.
// It returns the number of facts skipped because they have another shape
// or are not ground.
func EdgesFromFacts(facts []term.Term, syms *term.SymbolTable) ([]Edge, int) {
	var edges []Edge
	skipped := 0
	for _, f := range facts {
		c, ok := f.(*term.Compound)
		if !ok || len(c.Args) == 0 || len(c.Args) > 2 || !term.IsGround(c) {
			skipped++
			continue
		}
		e := Edge{Predicate: syms.MustName(c.Functor), Subject: c.Args[0]}
		if len(c.Args) == 2 {
			e.Object = c.Args[1]
		}
		edges = append(edges, e)
	}
	return edges, skipped
}

// encodeTerm renders a ground term as compact JSON in the term.ToValue
// encoding. Floats always carry a decimal point or exponent, so they decode
// back as floats.
func encodeTerm(t term.Term, syms *term.SymbolTable) (string, error) {
	v, err := jsonReady(term.ToValue(t, syms, nil))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode term: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func jsonReady(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, term.Errorf(term.CodeTypeMismatch, "cannot store non-finite float %v", x)
		}
		return json.RawMessage(term.FormatFloat(x)), nil
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			r, err := jsonReady(it)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, it := range x {
			r, err := jsonReady(it)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// decodeTerm is the inverse of encodeTerm.
func decodeTerm(s string, syms *term.SymbolTable) (term.Term, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, term.Errorf(term.CodeParse, "decode stored term: %v", err)
	}
	v, err := fromJSON(v)
	if err != nil {
		return nil, err
	}
	return term.FromValue(v, syms, term.NewVarScope(0))
}

func fromJSON(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if strings.ContainsAny(x.String(), ".eE") {
			f, err := x.Float64()
			if err != nil {
				return nil, term.Errorf(term.CodeParse, "bad float %s", x)
			}
			return f, nil
		}
		n, err := x.Int64()
		if err != nil {
			return nil, term.Errorf(term.CodeParse, "bad integer %s", x)
		}
		return n, nil
	case []any:
		for i, it := range x {
			r, err := fromJSON(it)
			if err != nil {
				return nil, err
			}
			x[i] = r
		}
		return x, nil
	case map[string]any:
		for k, it := range x {
			r, err := fromJSON(it)
			if err != nil {
				return nil, err
			}
			x[k] = r
		}
		return x, nil
	default:
		return v, nil
	}
}
