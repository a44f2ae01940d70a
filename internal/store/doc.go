// Package store provides SQLite-backed storage for leads, rules, users and
// the automation run log.
//
// For the engine this is the external entity store: it reads rules and leads
// and hands notifications and follow-ups off to it. The run log is the only
// table the engine owns.
//
// # Exactly-once execution
//
//   - UNIQUE(rule_id, lead_id) on run_log
//   - CommitRun inserts the entry with ON CONFLICT DO NOTHING and writes the
//     side effect in the same transaction, so two dispatches for the same pair
//     cannot both commit a side effect
//   - A raw unique-constraint violation surfaces as ErrDuplicateRun
//
// # Deterministic reads
//
// Every list query orders by a stable key (created_at, id) so that cycles,
// audit listings and golden traces are reproducible.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - one open connection: single writer
//
// Timestamps are stored as UTC RFC 3339 text with nanoseconds.
package store
