// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, cross-compiles
// everywhere Go does. The default DSN is ":memory:", so the sqlite backend is
// as short-lived as the in-memory one; a file path can be passed for local
// debugging.
//
// ":memory:" AND THE CONNECTION POOL:
// sql.DB is a pool, and every new connection to ":memory:" opens a brand new,
// empty database. We pin the pool to a single connection so every query sees
// the same data. The single connection also serializes statements, and a
// writer mutex on top makes each check-then-write sequence atomic.
package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/samber/oops"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	// writeMu serializes mutations so uniqueness checks and inserts
	// cannot interleave.
	writeMu sync.Mutex
}

// New opens the database at dsn and runs migrations.
//
// dsn examples:
//   - ":memory:"         → in-memory database (default, lost on close)
//   - "data/users.db"    → file-based database
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("dsn", dsn).Wrap(err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, oops.Code("SQLITE_PING_FAILED").With("dsn", dsn).Wrap(err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, oops.Code("SQLITE_MIGRATE_FAILED").Wrap(err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema.
//
// AUTOINCREMENT is what guarantees ids are never reused after a delete:
// plain INTEGER PRIMARY KEY may hand out max(id)+1 again. The UNIQUE index on
// email uses SQLite's default BINARY collation, i.e. case-sensitive.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").Wrapf(err, "creating users table")
	}
	return nil
}

// withTx runs fn inside a transaction while holding the writer mutex.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return oops.Code("SQLITE_TX_FAILED").Wrap(err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return oops.Code("SQLITE_TX_FAILED").Wrap(err)
	}
	return nil
}
