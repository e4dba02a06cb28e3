package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade an existing audit log in order. Each runs once,
// inside a transaction, when PRAGMA user_version is below its version.
var migrations = []struct {
	version int
	name    string
	stmt    string
}{
	{
		version: 1,
		name:    "fingerprint index",
		// Duplicate-delivery lookups by envelope fingerprint.
		stmt: `CREATE INDEX IF NOT EXISTS idx_outcomes_fingerprint
			ON outcomes(fingerprint) WHERE fingerprint != ''`,
	},
}

// pragmas are applied to every connection before the schema.
var pragmas = []string{
	"PRAGMA journal_mode = WAL", // audit list reads while agents record
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is the durable audit log of validation and admission outcomes.
//
// Rows are ordered by seq, a logical clock resumed from the log on Open;
// recorded_at is wall time for humans and never used for ordering.
type Store struct {
	db    *sql.DB
	clock *Clock
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow sets the wall clock used for recorded_at. Tests pin it.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the audit log at path (":memory:" for a
// throwaway log), brings its schema up to date and resumes the seq clock.
// Opening an existing log is safe and leaves its rows untouched.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	var maxSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM outcomes").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("resume seq clock: %w", err)
	}

	s := &Store{db: db, clock: NewClockAt(maxSeq), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	// One connection: SQLite allows a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	setup := []func(*sql.DB) error{
		func(db *sql.DB) error { return db.Ping() },
		applyPragmas,
		applySchema,
	}
	for _, step := range setup {
		if err := step(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("open audit log %s: %w", path, err)
		}
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LastSeq returns the seq of the most recently written row.
func (s *Store) LastSeq() int64 {
	return s.clock.Current()
}

// Count returns the number of recorded outcomes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the outcomes table and runs pending migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := migrate(db, m.version, m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func migrate(db *sql.DB, version int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
