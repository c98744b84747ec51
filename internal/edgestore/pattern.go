package edgestore

import (
	"fmt"
	"strings"

	"github.com/roach88/koloss/internal/term"
)

// Pattern selects edges. Zero fields match anything; a nil or non-ground
// Subject or Object matches any value.
type Pattern struct {
	Predicate string
	Arity     int // 0 matches both unary and binary edges
	Subject   term.Term
	Object    term.Term
	RunID     string
}

// PatternFromGoal turns a goal p(S) or p(S, O) into a pattern. Ground
// arguments become equality filters; variables are wildcards.
func PatternFromGoal(goal term.Term, syms *term.SymbolTable) (Pattern, error) {
	c, ok := goal.(*term.Compound)
	if !ok || len(c.Args) > 2 {
		return Pattern{}, term.Errorf(term.CodeTypeMismatch, "edge pattern must be p(S) or p(S, O), got %s", term.Format(goal, syms))
	}
	p := Pattern{Predicate: syms.MustName(c.Functor), Arity: len(c.Args), Subject: c.Args[0]}
	if len(c.Args) == 2 {
		p.Object = c.Args[1]
	}
	return p, nil
}

// Compile renders the pattern as parameterized SQL.
//
// Values are always passed as parameters and every query ends with
// ORDER BY seq ASC, id ASC.
func (p Pattern) Compile(syms *term.SymbolTable) (string, []any, error) {
	var where []string
	var params []any

	if p.Predicate != "" {
		where = append(where, "predicate = ?")
		params = append(params, p.Predicate)
	}
	switch p.Arity {
	case 0:
	case 1, 2:
		where = append(where, "arity = ?")
		params = append(params, p.Arity)
	default:
		return "", nil, fmt.Errorf("unsupported edge arity %d", p.Arity)
	}
	if p.Subject != nil && term.IsGround(p.Subject) {
		enc, err := encodeTerm(p.Subject, syms)
		if err != nil {
			return "", nil, fmt.Errorf("compile subject: %w", err)
		}
		where = append(where, "subject = ?")
		params = append(params, enc)
	}
	if p.Object != nil && term.IsGround(p.Object) {
		enc, err := encodeTerm(p.Object, syms)
		if err != nil {
			return "", nil, fmt.Errorf("compile object: %w", err)
		}
		where = append(where, "object = ?")
		params = append(params, enc)
	}
	if p.RunID != "" {
		where = append(where, "run_id = ?")
		params = append(params, p.RunID)
	}

	sql := "SELECT id, predicate, arity, subject, object, run_id, seq FROM edges"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY seq ASC, id ASC"
	return sql, params, nil
}
