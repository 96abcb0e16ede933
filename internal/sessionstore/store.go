// Package sessionstore persists the one piece of vizcore state that
// outlives a process: a caller-set tier-threshold override, so a
// restarted host process picks up where the user left off instead of
// resetting to device-class defaults.
//
// Schema is managed with golang-migrate against an embedded migrations
// directory, the same shape the teacher uses for its own SQLite store.
package sessionstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ThresholdOverrideKey is the single well-known row key vizcore
// persists: the caller's last tier-threshold override document, if
// any was ever saved.
const ThresholdOverrideKey = "hybrid-renderer-thresholds"

// Store wraps a single-file SQLite database holding session_kv.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path,
// applies pragmas matching the teacher's own concurrency settings, and
// migrates it to the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open %q: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sessionstore: %q: %w", p, err)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sessionstore: migrations subtree: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("sessionstore: source driver: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sessionstore: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sessionstore: migrate instance: %w", err)
	}
	// Not closed: the sqlite driver's Close would close s.db too, which
	// Store manages separately (same constraint the teacher documents).
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sessionstore: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts an arbitrary value (typically a JSON-encoded
// config.ThresholdOptions document) under key.
func (s *Store) Put(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO session_kv (key, value, updated_unix_nanos) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_unix_nanos = excluded.updated_unix_nanos
	`, key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sessionstore: put %q: %w", key, err)
	}
	return nil
}

// Get returns the stored value for key, or ok=false if nothing has
// been saved under it yet.
func (s *Store) Get(key string) (value []byte, ok bool, err error) {
	row := s.db.QueryRow(`SELECT value FROM session_kv WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sessionstore: get %q: %w", key, err)
	}
	return value, true, nil
}
