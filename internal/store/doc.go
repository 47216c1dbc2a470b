// Package store provides the SQLite-backed generation ledger.
//
// Every successful generate run is recorded with the library name, the
// canonical ABI fingerprint and the header digest of each backend. The
// pipeline consults the latest run for a library to report ABI drift
// between regenerations.
//
// # Ordering
//
// Runs are ordered by seq, an autoincrement column, never by created_at.
// Wall time is stored for display only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
