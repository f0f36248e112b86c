// Package store provides SQLite-backed storage for record collections.
//
// Each record is a canonical JSON object (see ir.Canonicalize) in the
// records table, keyed by (collection, id). Selections compile to SQL via
// querysql and run inside SQLite with json_type/json_extract; the result
// order always ends with id COLLATE BINARY ASC so fetches are
// deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// seq holds the engine's logical clock value for the last write to a
// record. The records_meta row 'maxseq' keeps the highest seq of any put
// or delete, so MaxSeq does not fall back when the newest record is
// deleted. Ordering never uses wall time.
package store
