// Package sqlite stores settings and cycle history in a local SQLite file.
//
// WAL mode lets `screencheck status` read while the daemon writes. The
// daemon is the only writer of the session key, so contention is limited to
// the CLI's occasional `set`.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goodtune/screencheck/internal/storage"

	_ "modernc.org/sqlite"
)

// Store implements storage.Store on a single SQLite database.
type Store struct {
	db            *sql.DB
	settingsStore *settingsStore
	cycleStore    *cycleStore
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:            db,
		settingsStore: &settingsStore{db: db},
		cycleStore:    &cycleStore{db: db},
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Settings returns the SettingsStore implementation.
func (s *Store) Settings() storage.SettingsStore { return s.settingsStore }

// Cycles returns the CycleStore implementation.
func (s *Store) Cycles() storage.CycleStore { return s.cycleStore }

// Compile-time check that *Store implements storage.Store.
var _ storage.Store = (*Store)(nil)
