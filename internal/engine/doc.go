// Package engine serves one-shot fetches and live queries over a record
// backend.
//
// Single-writer change loop:
//
//  1. Put/Delete stamp the write with Clock.Next(), write it to the
//     backend, and enqueue the mutation (FIFO, unbounded).
//  2. Run dequeues mutations one at a time.
//  3. Each mutation is folded into every live query on its collection
//     with the in-memory evaluator (queryeval); live queries never go
//     back to the backend after their initial fetch.
//  4. A non-empty diff is delivered as a ChangeSet on the live query's
//     channel.
//
// Ordering rules:
//   - Seq numbers come from the logical Clock, never from wall time.
//   - Live queries see mutations in seq order.
//   - Result sets use the selection's ordering with ties broken by id,
//     the same order the backends return from Fetch.
package engine
