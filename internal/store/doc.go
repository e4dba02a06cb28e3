// Package store provides the SQLite-backed audit log of contract outcomes.
//
// The log is append-only. Every validation and admission outcome recorded
// through the store becomes one row in the outcomes table.
//
// # Ordering
//
//   - Rows are stamped with seq, a monotonic logical clock resumed from
//     MAX(seq) on Open. recorded_at is informational only.
//   - All queries order by seq ASC, so listings are identical across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Envelopes are stored as RFC 8785 canonical JSON; the fingerprint column
// carries the content identity computed at validation.
package store
