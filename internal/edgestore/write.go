package edgestore

import (
	"context"
	"fmt"

	"github.com/roach88/koloss/internal/term"
)

// WriteEdges stores edges under runID in one transaction. Edges already
// present are left untouched. Returns the number of new rows.
func (s *Store) WriteEdges(ctx context.Context, runID string, edges []Edge, syms *term.SymbolTable) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write edges: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM edges").Scan(&seq); err != nil {
		return 0, fmt.Errorf("write edges: read seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (predicate, arity, subject, object, run_id, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (predicate, arity, subject, object) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("write edges: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range edges {
		subject, err := encodeTerm(e.Subject, syms)
		if err != nil {
			return 0, fmt.Errorf("write edges: %w", err)
		}
		object := ""
		if e.Object != nil {
			if object, err = encodeTerm(e.Object, syms); err != nil {
				return 0, fmt.Errorf("write edges: %w", err)
			}
		}
		res, err := stmt.ExecContext(ctx, e.Predicate, e.Arity(), subject, object, runID, seq+1)
		if err != nil {
			return 0, fmt.Errorf("write edges: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seq++
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write edges: commit: %w", err)
	}
	return inserted, nil
}

// WriteFacts stores the edge-shaped facts among facts. Returns rows
// inserted and facts skipped for having another shape.
func (s *Store) WriteFacts(ctx context.Context, runID string, facts []term.Term, syms *term.SymbolTable) (inserted, skipped int, err error) {
	edges, skipped := EdgesFromFacts(facts, syms)
	inserted, err = s.WriteEdges(ctx, runID, edges, syms)
	return inserted, skipped, err
}
