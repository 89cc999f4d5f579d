// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. For a to-do list
// service that runs on one box this is all the database we need.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code, so no C compiler needed, works everywhere Go works.
//
// WHY sqlx ON TOP OF database/sql?
// sqlx keeps the database/sql API (same pool, same transactions) and adds
// struct scanning through `db:"..."` tags. GetContext/SelectContext replace the
// long rows.Scan(&a, &b, &c...) lists.
//
// THE INVARIANTS LIVE IN THE SCHEMA:
//   - users.email is UNIQUE            → one account per address, even under races
//   - items UNIQUE(list_id, text)      → no duplicate items in a list, even under races
//   - items.list_id NOT NULL + FK      → no item without a list
//   - tokens.consumed_at               → a login link works exactly once
package sqlite

import (
	"context"
	"fmt"
	"runtime"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sqlx.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// DB wraps two sqlx connection pools and provides repository methods.
// A single *DB implements every repository interface in internal/repository.
//
// conn is the only connection that writes. read serves plain SELECTs; under
// WAL they run alongside the writer and alongside each other.
type DB struct {
	conn *sqlx.DB
	read *sqlx.DB
	sb   sq.StatementBuilderType
}

// New opens (creating if needed) the SQLite database at dbPath and runs migrations.
//
// PRAGMAS IN THE DSN:
// PRAGMA statements are per-connection. Running them once with Exec would only
// configure whichever pooled connection happened to serve that call, so we pass
// them in the DSN and the driver applies them to every connection it opens:
//   - foreign_keys(1)    → enforce items.list_id → lists.id
//   - busy_timeout(5000) → wait up to 5s for a lock instead of failing with SQLITE_BUSY
//   - journal_mode(WAL)  → readers don't block the writer
//
// TWO POOLS:
// SQLite allows a single writer at a time. The write pool is capped at one
// connection, which serialises every write and transaction in-process, so a
// transaction's "check then write" can never interleave with another writer.
// Reads go through a separate pool sized to the CPUs; WAL gives each reader
// a consistent snapshot without waiting on the writer.
func New(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		dbPath,
	)

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query, which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := NewWithConn(conn)

	// The schema must exist before the read pool opens its first connection.
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	read, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: opening read pool: %w", err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))
	db.read = read

	return db, nil
}

// NewWithConn wraps an already-open connection without running migrations.
// The one connection serves both reads and writes. Tests use it to put a
// sqlmock connection behind the repository.
func NewWithConn(conn *sqlx.DB) *DB {
	return &DB{
		conn: conn,
		read: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Close closes both connection pools.
func (db *DB) Close() error {
	if db.read != db.conn {
		if err := db.read.Close(); err != nil {
			db.conn.Close()
			return err
		}
	}
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start. Creation order is
// the tables' implicit rowid: nothing is ever deleted from lists or items, so
// ORDER BY rowid is insertion order.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// uid_hash holds a BLAKE2b digest of the login uid, never the uid itself.
	// expires_at is a unix timestamp; 0 means the token never expires.
	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tokens (
			uid_hash    TEXT PRIMARY KEY,
			email       TEXT NOT NULL,
			issued_at   DATETIME NOT NULL,
			expires_at  INTEGER NOT NULL DEFAULT 0,
			consumed_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_tokens_email ON tokens(email);
	`)
	if err != nil {
		return fmt.Errorf("creating tokens table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lists (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT REFERENCES users(id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_lists_owner_id ON lists(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating lists table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS items (
			id         TEXT PRIMARY KEY,
			list_id    TEXT NOT NULL REFERENCES lists(id),
			text       TEXT NOT NULL CHECK (text <> ''),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (list_id, text)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating items table: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise (including on panic).
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
