package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// DatabaseFileName is the tracking database file inside the cache directory
const DatabaseFileName = "voice_events.db"

// NewDatabase opens the SQLite database at dbPath and applies the schema
func NewDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection and :memory: databases are per connection too
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// ensureSchema creates the database schema if it doesn't exist
func ensureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS voice_events (
    id            INTEGER PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    session_id    TEXT    NOT NULL,
    slot          TEXT    NOT NULL CHECK (slot IN ('bus', 'channel')),
    kind          TEXT    NOT NULL,
    voice_id      INTEGER NOT NULL DEFAULT 0,
    sound_name    TEXT    NOT NULL,
    resolved_path TEXT    NOT NULL DEFAULT '',
    gain          REAL    NOT NULL DEFAULT 0,
    rate          REAL    NOT NULL DEFAULT 0,
    load_ms       INTEGER NOT NULL DEFAULT 0,
    error         TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON voice_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_events_sound ON voice_events(sound_name);
CREATE INDEX IF NOT EXISTS idx_events_session ON voice_events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_failed ON voice_events(sound_name) WHERE kind = 'failed';
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// GetDatabasePath returns the tracking database path inside cacheDir
func GetDatabasePath(cacheDir string) string {
	return filepath.Join(cacheDir, DatabaseFileName)
}
