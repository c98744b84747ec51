// Package harness runs reasoning scenarios as executable contract tests.
//
// A scenario loads a program, changes the database, runs queries and
// forward chaining against a real engine, and checks the answers. Every
// observable effect is appended to a trace, which assertions inspect and
// golden files pin down.
//
// # Scenario Format
//
//	name: family_ancestry
//	description: "Ancestors follow parent links transitively"
//	program: programs/family.yaml
//	engine:
//	  max_depth: 64
//	setup:
//	  - assert: {parent: [joe, kim]}
//	flow:
//	  - query: {ancestor: [tom, "?Who"]}
//	    expect:
//	      answers: [Who = bob, Who = ann, Who = joe, Who = kim]
//	  - derive: {}
//	    expect:
//	      fixpoint: true
//	assertions:
//	  - type: holds
//	    goal: {ancestor: [tom, kim]}
//	  - type: trace_count
//	    event: answer
//	    count: 4
//
// Steps take one of assert, retract, query or derive. Terms use the
// program document encoding (see package program).
//
// # Assertion Types
//
//   - trace_contains: an event of the given type with the given text
//   - trace_order: texts appear in the given order
//   - trace_count: exactly count events of the given type
//   - holds: goal has at least one solution on the final database
//   - fails: goal has no solution on the final database
//
// # Deterministic Testing
//
// Derive run ids come from testutil.SequentialIDs, the logger discards
// output and each scenario gets a fresh engine, so traces are identical
// across runs and can be compared with golden files.
package harness
