// Package store provides SQLite-backed durable storage for recorded builds.
//
// A recorded build is a run row plus its emitted events:
//   - Runs: script, script hash, seed, object count, trace hash, stats
//   - Events: seq, label, param, transform and colour of each object
//
// Consumers that need more than one pass over a build (measure, then
// draw) read the recorded events instead of building twice.
//
// # Ordering
//
//   - Runs are ordered by their insertion seq, never by wall time
//   - Events are ordered by their emission seq (ORDER BY seq ASC)
//
// A run is written in a single transaction and marked complete only when
// its final object count and trace hash are known, so a reader never sees
// a half-written trace as complete.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
