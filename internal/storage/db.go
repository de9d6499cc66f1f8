package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a SQLite handle and provides repository methods for all
// persisted entities. It is the single shared mutable resource; every
// component goes through the same transactional interface.
type DB struct {
	sql  *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations. A failed migration is reported as a MigrationError so callers
// can still render best-effort data.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	// Serialized access keeps SQLite happy under concurrent goroutines.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StorageError{Op: "ping", Err: err}
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, &StorageError{Op: "pragma", Err: err}
	}

	d := &DB{sql: db, path: path}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (db *DB) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return &MigrationError{Err: fmt.Errorf("loading migrations: %w", err)}
	}
	driver, err := migratesqlite.WithInstance(db.sql, &migratesqlite.Config{})
	if err != nil {
		return &MigrationError{Err: fmt.Errorf("creating migration driver: %w", err)}
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return &MigrationError{Err: fmt.Errorf("creating migrator: %w", err)}
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return &MigrationError{Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	return db.sql.Close()
}

// SQL exposes the raw handle for diagnostics and backup tooling.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Path returns the file path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}
