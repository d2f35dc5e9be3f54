package storage

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the diagnostics schema.
// PRE: db is a valid database connection
// POST: All tables and indexes exist, WAL mode enabled
func InitDB(db *sql.DB) error {
	// WAL lets the prune job run while requests are recording attempts
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS retrieval_attempt (
		id TEXT PRIMARY KEY,
		section TEXT NOT NULL,
		locator TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL CHECK (outcome IN ('succeeded', 'failed')),
		status_code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		item_count INTEGER NOT NULL DEFAULT 0,
		duration_ms REAL NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_retrieval_attempt_started_at ON retrieval_attempt(started_at);
	CREATE INDEX IF NOT EXISTS idx_retrieval_attempt_section ON retrieval_attempt(section, started_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
