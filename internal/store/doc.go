// Package store provides SQLite-backed storage for analyzed runs.
//
// Each run is written once, in a single transaction:
//   - runs: one row per run with its profile, summary and digests
//   - cycles: the per-cycle table of the summary, partial cycle included
//   - events: the ordered input lines, for replay
//
// Runs are append-only. Writing a run id that already exists is a no-op,
// so re-importing the same analysis is safe.
//
// # Ordering
//
// Runs are numbered by a store-assigned seq. All list queries include
// ORDER BY seq ASC, id ASC COLLATE BINARY, and events are read back by
// their logical seq, never by simulator timestamp, so replay feeds lines in
// exactly the order they were analyzed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
