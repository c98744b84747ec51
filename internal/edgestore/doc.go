// Package edgestore persists ground facts as graph edges in SQLite.
//
// A unary fact p(s) becomes the edge (s, p) and a binary fact p(s, o) the
// edge (s, p, o). Arguments are stored as JSON in the term.ToValue
// encoding, so atoms, numbers, strings and nested compounds read back as
// equal terms. Facts of any other shape are not edges and are skipped.
//
// # Ordering
//
// Every read is ordered by seq ASC, id ASC. seq is a logical write counter,
// never a timestamp, so the same writes always read back in the same order.
//
// # Idempotency
//
// UNIQUE(predicate, arity, subject, object) makes writes idempotent: storing
// a fact twice keeps the first row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package edgestore
