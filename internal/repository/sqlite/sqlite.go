// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB     : a connection pool (NOT a single connection!)
//   - sql.Tx     : a transaction; here it backs repository.TaskUnit
//   - sql.Row    : a single result row
//   - sql.Rows   : multiple result rows (must be closed!)
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/tasklist/migrations"
)

// DB wraps a sql.DB connection pool and implements both
// repository.UserRepository and repository.TaskRepository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and applies pending migrations.
//
// dbPath examples:
//   - "data/tasklist.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on close)
//
// ONE CONNECTION:
// Every new connection to ":memory:" is a brand-new empty database, and
// SQLite allows only one writer at a time anyway. We cap the pool at a single
// connection; requests queue on it instead of failing with SQLITE_BUSY.
// Repository code must therefore never touch db.conn while a unit is open.
func New(ctx context.Context, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) lets readers in other processes keep going
	// while we write. It is a no-op for ":memory:".
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. tasks.owner_id references users.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// newWithConn wraps an existing pool without migrating. Tests use it with sqlmock.
func newWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies the embedded goose migrations under migrations/sqlite.
//
// goose records applied versions in goose_db_version, so running this on
// every start is safe. The Provider API keeps no global state, which matters
// because every test opens its own in-memory database.
func (db *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations.FS, migrations.SQLiteDir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(database.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
