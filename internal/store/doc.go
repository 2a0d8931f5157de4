// Package store provides the SQLite run journal.
//
// The journal records what traversals did:
//   - Runs: one row per traversal, from run_started to its terminal event
//   - Task events: every engine event in logical-clock order
//   - Plans: the plan cache, keyed by fingerprint, with the canonical shape
//
// Store implements engine.Observer, so attaching it with
// engine.WithObserver journals every traversal of an engine.
//
// # Ordering
//
// All ordering uses the seq column (the engine's logical clock), NEVER
// timestamps. Queries include ORDER BY seq ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Shapes are stored as RFC 8785 canonical JSON produced by internal/ir.
//
// RowSource exposes the rows of any SQL query as an engine.Source.
package store
