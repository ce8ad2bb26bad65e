package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite). Cascade delete
	// from notes to note_versions depends on this.
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			created_by TEXT NOT NULL,
			full_name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			parent_note_id TEXT,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			content_markdown TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id),
			FOREIGN KEY (parent_note_id) REFERENCES notes(id)
		);`,
		`CREATE TABLE IF NOT EXISTS note_versions (
			id TEXT PRIMARY KEY,
			note_id TEXT NOT NULL,
			editor_id TEXT NOT NULL,
			content_markdown TEXT NOT NULL,
			version_number INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
			UNIQUE (note_id, version_number)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_patient ON notes(patient_id);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_note_id);`,
		`CREATE INDEX IF NOT EXISTS idx_note_versions_note ON note_versions(note_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// DBTX is the subset of database/sql methods the repositories need.
// It is satisfied by both *sql.DB and *sql.Tx, so the same repository code
// runs standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transact runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}
