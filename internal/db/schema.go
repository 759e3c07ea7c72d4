package db

import (
	"database/sql"
	"fmt"
)

// sqliteSchema is the full SQLite schema.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    cost       TEXT,
    link       TEXT,
    type       TEXT NOT NULL DEFAULT 'want' CHECK (type IN ('want', 'need')),
    added_by   TEXT NOT NULL DEFAULT 'Unknown',
    position   INTEGER NOT NULL CHECK (position > 0),
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_position ON items(position);

CREATE TABLE IF NOT EXISTS archive (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    original_id     INTEGER,
    name            TEXT NOT NULL,
    cost            TEXT,
    link            TEXT,
    type            TEXT NOT NULL CHECK (type IN ('want', 'need')),
    added_by        TEXT NOT NULL DEFAULT 'Unknown',
    archived_reason TEXT NOT NULL CHECK (archived_reason IN ('deleted', 'completed')),
    archived_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_archived_at ON archive(archived_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// postgresSchema mirrors sqliteSchema. Statements are run one at a time
// because the pgx stdlib driver rejects multi-statement Exec with arguments.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
	    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	    name       TEXT NOT NULL,
	    cost       NUMERIC(10, 2),
	    link       TEXT,
	    type       TEXT NOT NULL DEFAULT 'want' CHECK (type IN ('want', 'need')),
	    added_by   TEXT NOT NULL DEFAULT 'Unknown',
	    position   INTEGER NOT NULL CHECK (position > 0),
	    created_at TIMESTAMPTZ NOT NULL,
	    updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_position ON items(position)`,
	`CREATE TABLE IF NOT EXISTS archive (
	    id              BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	    original_id     BIGINT,
	    name            TEXT NOT NULL,
	    cost            NUMERIC(10, 2),
	    link            TEXT,
	    type            TEXT NOT NULL CHECK (type IN ('want', 'need')),
	    added_by        TEXT NOT NULL DEFAULT 'Unknown',
	    archived_reason TEXT NOT NULL CHECK (archived_reason IN ('deleted', 'completed')),
	    archived_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_archive_archived_at ON archive(archived_at)`,
	`CREATE TABLE IF NOT EXISTS settings (
	    key   TEXT PRIMARY KEY,
	    value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
	    jti        TEXT PRIMARY KEY,
	    expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB, dialect Dialect) error {
	if dialect == Postgres {
		for i, stmt := range postgresSchema {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("creating schema (statement %d): %w", i+1, err)
			}
		}
		return nil
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
