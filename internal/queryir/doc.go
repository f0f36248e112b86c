// Package queryir defines the selection AST: the predicate tree and the
// ordering clause a selq query compiles to.
//
// The AST is backend-agnostic. Two evaluators consume it:
//   - queryeval matches records in memory (Badger store, live queries)
//   - querysql compiles it to parameterized SQL (SQLite, PostgreSQL)
//
// # Node Types
//
//	Comparison   field <op> literal | field IN (literal, ...)
//	And, Or      binary, left-associative; AND binds tighter than OR
//	BoolLiteral  true | false
//
// # Invariants
//
//   - Nodes are immutable after construction. Rewrites build new trees.
//   - An IN comparison carries a non-empty list.
//   - A FieldPath has at least one segment.
//   - No placeholders survive into the AST; interpolation is resolved
//     textually before parsing.
//
// Both value and pointer forms of each node are accepted by the type
// switches in this package and its consumers. The parser produces values.
package queryir
