// Package solver provides the two decision procedures of the reasoning core:
// a DPLL satisfiability solver over CNF formulas, and a backtracking
// finite-domain constraint solver with forward checking.
//
// Both procedures are complete: they return a solution if one exists and
// report unsatisfiable only after exhausting the search tree. Both are
// deterministic. SAT branches on the lowest-numbered unassigned variable,
// trying true first. CSP assigns variables in declaration order and tries
// values in domain order.
package solver
