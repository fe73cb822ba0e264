// Package store executes compiled queries against SQLite.
//
// It is the execution collaborator of the verification flow: compiled
// sqltext.Text statements go in with ? placeholders, decoded narrow.Row
// values come out. Declared tables and indexes are created from their
// queryir and index definitions, so a scenario database always matches the
// schema it is verified against.
//
// # Database Configuration
//
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - WAL mode for file databases
//   - one open connection; SQLite has a single writer
//
// OpenMemory names every in-memory database with a fresh UUID, so stores
// opened concurrently in the same process never share state.
package store
