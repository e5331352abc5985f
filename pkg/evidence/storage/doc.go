// Package storage provides storage backends for verdict records.
//
//   - SQLiteStorage: durable single-node storage (github.com/mattn/go-sqlite3)
//     in WAL mode with indexes on workspace, action and record time.
//   - MemoryStorage: in-process storage for tests and offline runs.
//
// Both validate queries with the query package and order results by
// record time, newest first unless the query asks otherwise.
package storage
