// Package search implements generic state-space search: depth-first,
// breadth-first, beam, iterative deepening and Monte Carlo tree search.
//
// A Problem supplies initial states, a successor function and a goal test.
// Every strategy tracks canonical state keys (Problem.Key) so cyclic state
// graphs terminate, and every strategy counts expanded nodes against
// Limits.MaxNodes, returning a RESOURCE_EXHAUSTED *term.Error when the
// budget runs out.
//
// The package does not depend on the rule engine. Program synthesis and
// graph traversal use it directly.
package search
