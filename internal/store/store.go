// Package store keeps session history in SQLite: sessions, finished task
// runs, emergencies and inefficiency counters.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"

	"github.com/xonecas/zoea-pilot/internal/config"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

const memoryPath = ":memory:"

// Store provides access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New opens pilot.db in the data directory.
func New() (*Store, error) {
	dir, err := config.EnsureDataDir()
	if err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return Open(filepath.Join(dir, "pilot.db"))
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == memoryPath {
		// Each pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

// OpenMemory opens a throwaway in-memory database.
func OpenMemory() (*Store, error) {
	return Open(memoryPath)
}

func dsn(path string) string {
	const common = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == memoryPath {
		return "file::memory:?" + common
	}
	return "file:" + path + "?" + common + "&_pragma=journal_mode(WAL)"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate brings the schema to schemaVersion. History is disposable, so an
// older schema is dropped and recreated rather than migrated in place.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("schema version %d is newer than supported %d", version, schemaVersion)
	}

	return s.withTx(func(tx *sql.Tx) error {
		if version > 0 {
			if _, err := tx.Exec(`
				DROP TABLE IF EXISTS inefficiency_counts;
				DROP TABLE IF EXISTS emergencies;
				DROP TABLE IF EXISTS task_runs;
				DROP TABLE IF EXISTS sessions;
			`); err != nil {
				return fmt.Errorf("drop tables: %w", err)
			}
		}
		if _, err := tx.Exec(schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing only if it returns nil.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
