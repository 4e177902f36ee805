// ABOUTME: SQLite implementation of TriageStore over modernc.org/sqlite or go-sqlite3
// ABOUTME: Opens the database in WAL mode and creates the schema on first use

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	_ "modernc.org/sqlite"
)

// Driver names accepted by NewSQLiteStore.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// availableDrivers lists the drivers compiled into this binary.
var availableDrivers = []string{DriverModernc}

// SQLiteStore implements TriageStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// NewSQLiteStore opens the database at path with the given driver ("" means
// DriverModernc). Parent directories and the schema are created if needed.
func NewSQLiteStore(path, driver string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if driver == "" {
		driver = DriverModernc
	}
	if !slices.Contains(availableDrivers, driver) {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, driver, availableDrivers)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := s.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS unknown_errors (
			code       INTEGER NOT NULL,
			message    TEXT NOT NULL,
			pattern    TEXT NOT NULL,
			count      INTEGER NOT NULL DEFAULT 1,
			first_seen TEXT NOT NULL,
			last_seen  TEXT NOT NULL,
			PRIMARY KEY (code, message)
		);

		CREATE INDEX IF NOT EXISTS idx_unknown_errors_pattern
			ON unknown_errors(code, pattern);

		CREATE TABLE IF NOT EXISTS session_events (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			ts         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_session_events_session_ts
			ON session_events(session_id, ts);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Driver returns the database/sql driver name in use.
func (s *SQLiteStore) Driver() string {
	return s.driver
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
