package engine

import (
	"context"
	"time"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// DeriveResult reports a forward-chaining run.
type DeriveResult struct {
	// RunID identifies the run in logs and in the edge store.
	RunID string

	// Iterations is the number of rule passes made, including the final
	// pass that found nothing new.
	Iterations int

	// NewFacts lists derived facts in derivation order.
	NewFacts []term.Term

	// Fixpoint is true when the last pass derived nothing.
	Fixpoint bool
}

// Derive runs forward chaining to a fixpoint. Each pass matches every rule
// body against the facts present at the start of the pass and asserts the
// ground heads not already stored. A maxIterations <= 0 uses
// DefaultMaxIterations.
//
// When the cap is hit, Derive returns the partial result and a
// RESOURCE_EXHAUSTED error. Facts asserted before the error stay asserted.
func (e *Engine) Derive(ctx context.Context, maxIterations int) (*DeriveResult, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	res := &DeriveResult{RunID: e.idGen.Generate()}
	start := time.Now()
	log := e.logger.With("run_id", res.RunID)

	for res.Iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Iterations++
		e.stats.deriveIterations.Add(1)
		e.metrics.deriveIteration()

		fresh, err := e.derivePass(ctx)
		if err != nil {
			return res, err
		}
		for _, f := range fresh {
			if err := e.AddFact(f); err != nil {
				return res, err
			}
		}
		res.NewFacts = append(res.NewFacts, fresh...)
		log.Info("derive iteration", "iteration", res.Iterations, "new_facts", len(fresh))

		if len(fresh) == 0 {
			res.Fixpoint = true
			log.Info("derive fixpoint",
				"iterations", res.Iterations,
				"new_facts", len(res.NewFacts),
				"duration", time.Since(start))
			return res, nil
		}
	}

	log.Warn("derive fixpoint not reached", "iterations", res.Iterations)
	return res, term.NewResourceExhausted("iterations", int64(maxIterations)).
		WithDetail("reason", "fixpoint not reached")
}

// derivePass runs one forward-chaining pass and returns the new ground
// heads without asserting them.
func (e *Engine) derivePass(ctx context.Context) ([]term.Term, error) {
	sess := e.newSession(ctx)
	seen := make(map[string]struct{})
	var fresh []term.Term

	for _, rule := range e.allRules() {
		off := e.renamer.Reserve(rule.nvars)
		m := e.newMachine(sess, rule.body, off, 0, unify.Empty())
		m.factsOnly = true
		head := instantiate(rule.head, off)
		for {
			ok, err := m.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			h := m.subst.WalkDeep(head)
			if !term.IsGround(h) {
				continue
			}
			k := term.Key(h)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if e.hasFact(h) {
				continue
			}
			fresh = append(fresh, h)
		}
	}
	return fresh, nil
}
