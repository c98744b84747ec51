package edgestore

import (
	"context"
	"fmt"

	"github.com/roach88/koloss/internal/term"
)

// ReadEdges returns the edges matching p in write order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadEdges(ctx context.Context, p Pattern, syms *term.SymbolTable) ([]Edge, error) {
	query, params, err := p.Compile(syms)
	if err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var (
			e       Edge
			arity   int
			subject string
			object  string
		)
		if err := rows.Scan(&e.ID, &e.Predicate, &arity, &subject, &object, &e.RunID, &e.Seq); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if e.Subject, err = decodeTerm(subject, syms); err != nil {
			return nil, fmt.Errorf("edge %d subject: %w", e.ID, err)
		}
		if arity == 2 {
			if e.Object, err = decodeTerm(object, syms); err != nil {
				return nil, fmt.Errorf("edge %d object: %w", e.ID, err)
			}
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// Facts returns the matching edges as fact terms, ready for
// engine.Merge.
func (s *Store) Facts(ctx context.Context, p Pattern, syms *term.SymbolTable) ([]term.Term, error) {
	edges, err := s.ReadEdges(ctx, p, syms)
	if err != nil {
		return nil, err
	}
	facts := make([]term.Term, len(edges))
	for i, e := range edges {
		facts[i] = e.Fact(syms)
	}
	return facts, nil
}
