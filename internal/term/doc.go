// Package term provides the term algebra shared by every reasoning package.
//
// Terms are immutable values. A Term is one of Var, Atom, Int, Float, Str,
// Bool, *Compound, *Cons or Nil. Atoms and compound functors are interned in
// a SymbolTable so functor comparison is an integer compare.
//
// term imports nothing internal. unify, solver, engine and search all build
// on it.
//
// Key constraints:
//   - Floats use a total order: NaN sorts greatest and equals itself, -0 equals +0
//   - Equal, Compare and the canonical encoding agree with each other
//   - Strings and symbol names are NFC-normalized before interning or hashing
package term
