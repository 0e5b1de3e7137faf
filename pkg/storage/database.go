// Package storage persists device profiles and login sessions in SQLite.
package storage

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidName   = errors.New("invalid device name")
	ErrWrongPassword = errors.New("session sealed with a different passphrase")
)

// Store manages the local database. Session tokens are sealed with a key
// derived from the passphrase given to Open.
type Store struct {
	db  *sql.DB
	key []byte
	now func() time.Time
}

// Open opens or creates the database at dbPath
func Open(dbPath string, passphrase string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:  db,
		key: deriveKey(passphrase),
		now: time.Now,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func deriveKey(passphrase string) []byte {
	hash := sha256.Sum256([]byte("rqgo session v1|" + passphrase))
	return hash[:]
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		name TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		uin INTEGER PRIMARY KEY,
		protocol INTEGER NOT NULL,
		device_name TEXT NOT NULL,
		token BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (device_name) REFERENCES devices(name)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_device ON sessions(device_name);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
