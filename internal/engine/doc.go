// Package engine implements the rule engine: a clause database with
// backward chaining, forward chaining, cut, negation as failure, tabling and
// built-in predicates.
//
// ARCHITECTURE:
//
// Clause Database:
// Clauses are grouped by predicate (name/arity) in assertion order. Clause
// lists are copy-on-write, so a running call keeps the snapshot it started
// with while Assert and Retract install new lists (logical update view).
// Each stored clause is normalized to local variables 0..n-1 and its body is
// compiled once into tagged goals, so built-ins are never looked up by name
// at call time.
//
// Resolution Machine:
// A query runs on an explicit machine: a continuation of pending goals and
// a stack of choice points. Each choice point holds the remaining clause
// alternatives (or a built-in generator), the continuation to resume, and
// the substitution snapshot to restore. Solutions are produced lazily by
// the Solutions iterator; asking for the next one backtracks into the top
// choice point.
//
// Cut:
// Every goal in a clause body carries a cut barrier: the stack height when
// the parent call was entered. Executing ! truncates the stack to that
// height, removing the remaining clauses of that call and every choice point
// created inside its body, never the caller's.
//
// Tabling:
// Calls to tabled predicates are keyed by variant. A missing table is
// computed by local fixpoint iteration; recursive variant calls consume the
// answers found so far. Complete tables are cached per predicate and
// invalidated when any predicate they depended on changes. A table whose
// dependencies changed while it was being computed is not cached.
// Concurrent top-level calls of one variant share a single evaluation.
//
// DETERMINISM:
// Clauses are tried in database order and arguments left to right. No
// randomness, no hidden global state. Separate engines share nothing but an
// optional symbol table.
package engine
