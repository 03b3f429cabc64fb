// Package sqlite persists vector index snapshots in a SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database holds every language
// partition; each partition is exposed as a separate driven.IndexStore.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.stackqa/index/index.db
//
// # Atomicity
//
// A snapshot is replaced inside a single transaction, so a failed save leaves
// the previous snapshot intact.
package sqlite
