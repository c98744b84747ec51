// Package program decodes structured program documents into clauses,
// directives and queries.
//
// A document is plain data, written in YAML or CUE:
//
//	name: family
//	tabled: [ancestor/2]
//	clauses:
//	  - parent: [tom, bob]
//	  - head: {ancestor: ["?X", "?Y"]}
//	    body:
//	      - parent: ["?X", "?Y"]
//	queries:
//	  - name: descendants
//	    goal: {ancestor: [tom, "?Who"]}
//
// Terms use the encoding of term.FromValue ("?X" is a variable, a bare
// string is an atom, {f: name, args: [...]} is a compound, {str: text} is a
// string) plus one shorthand: a map with a single key other than the
// reserved keys is a compound, {parent: [tom, bob]} being parent(tom, bob).
// A clause entry whose keys are exactly head and optionally body is a rule;
// any other entry is a fact. Variables are scoped to one clause or query.
//
// CUE documents are validated against the #Program schema before decoding,
// so CUE comprehensions and references can generate clauses.
package program
