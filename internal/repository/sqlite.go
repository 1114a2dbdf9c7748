package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	password_hash  TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1,
	is_verified    INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	last_login     TEXT,
	preferences    TEXT NOT NULL DEFAULT '{}',
	oauth_provider TEXT NOT NULL DEFAULT '',
	oauth_id       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS triage_jobs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	owner_id      TEXT NOT NULL DEFAULT '',
	payload       TEXT NOT NULL,
	status        TEXT NOT NULL,
	result        TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triage_jobs_owner_created ON triage_jobs (owner_id, created_at);
`

// OpenSQLite opens (creating when needed) the database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set sqlite pragma: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

// SQLitePath extracts the file path from a sqlite:// URL.
func SQLitePath(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite:")
	if path == "" {
		return "brody.db"
	}
	return path
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqliteTimeLayout is fixed width so stored values sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(value time.Time) string {
	return value.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return parsed, nil
}

func nullableSQLiteTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatSQLiteTime(*value)
}
