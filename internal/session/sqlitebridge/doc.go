// Package sqlitebridge provides a SQLite-backed session bridge.
//
// Each registration owns a set of (name, value) rows in the fields table.
// Field writes are staged in memory and flushed in a single transaction on
// Commit. Every Open of a registration records an attempt row; Terminate
// stamps its end time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package sqlitebridge
