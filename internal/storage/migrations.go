package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Translation units
CREATE TABLE IF NOT EXISTS units (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    main_path TEXT NOT NULL UNIQUE,
    language TEXT NOT NULL,
    dialect TEXT,
    args TEXT,
    fingerprint INTEGER NOT NULL,
    content_hash INTEGER NOT NULL,
    file_count INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    indexed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Files visited per unit, in entry order
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    unit_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    file_index INTEGER NOT NULL,
    content_hash INTEGER,
    included_by TEXT,
    guard_name TEXT,
    guard_offset INTEGER,
    aborted BOOLEAN DEFAULT 0,
    token_count INTEGER DEFAULT 0,
    FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE,
    UNIQUE(unit_id, file_index)
);

CREATE INDEX IF NOT EXISTS idx_files_unit ON files(unit_id);
CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);

CREATE TABLE IF NOT EXISTS inclusions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    spelling TEXT NOT NULL,
    angled BOOLEAN DEFAULT 0,
    forced BOOLEAN DEFAULT 0,
    recursive BOOLEAN DEFAULT 0,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    resolved_fs TEXT,
    resolved_path TEXT,
    search_root TEXT,
    search_index INTEGER,
    default_root BOOLEAN DEFAULT 0,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_inclusions_file ON inclusions(file_id);
CREATE INDEX IF NOT EXISTS idx_inclusions_resolved ON inclusions(resolved_path);

CREATE TABLE IF NOT EXISTS macros (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    params TEXT,
    defined BOOLEAN DEFAULT 1,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    name_offset INTEGER,
    owner TEXT,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_macros_file ON macros(file_id);
CREATE INDEX IF NOT EXISTS idx_macros_name ON macros(name);

-- Full-text search on macro names
CREATE VIRTUAL TABLE IF NOT EXISTS macros_fts USING fts5(
    name,
    content='macros',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS macros_ai AFTER INSERT ON macros BEGIN
    INSERT INTO macros_fts(rowid, name) VALUES (new.id, new.name);
END;

CREATE TRIGGER IF NOT EXISTS macros_ad AFTER DELETE ON macros BEGIN
    INSERT INTO macros_fts(macros_fts, rowid, name) VALUES ('delete', old.id, old.name);
END;

CREATE TABLE IF NOT EXISTS macro_refs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    defined_in TEXT,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_macro_refs_file ON macro_refs(file_id);

CREATE TABLE IF NOT EXISTS skipped_ranges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_skipped_file ON skipped_ranges(file_id);

CREATE TABLE IF NOT EXISTS error_directives (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    message TEXT,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    state_checksum INTEGER,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_errors_file ON error_directives(file_id);

-- Macro state cache keyed by compilation entry
CREATE TABLE IF NOT EXISTS macro_states (
    key TEXT PRIMARY KEY,
    checksum INTEGER NOT NULL,
    cleaned BOOLEAN DEFAULT 0,
    macros TEXT,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationV1Down = `
DROP TRIGGER IF EXISTS macros_ad;
DROP TRIGGER IF EXISTS macros_ai;

DROP TABLE IF EXISTS macro_states;
DROP TABLE IF EXISTS error_directives;
DROP TABLE IF EXISTS skipped_ranges;
DROP TABLE IF EXISTS macro_refs;
DROP TABLE IF EXISTS macros_fts;
DROP TABLE IF EXISTS macros;
DROP TABLE IF EXISTS inclusions;
DROP TABLE IF EXISTS files;
DROP TABLE IF EXISTS units;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

// schemaVersion returns the applied schema version, 0.0.0 on a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var name string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var raw string
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&raw)
	if err == sql.ErrNoRows || (err == nil && raw == "") {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
	}
	return v, nil
}

// RollbackMigration reverts the most recently applied migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	var version string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	idx := slices.IndexFunc(AllMigrations, func(m Migration) bool { return m.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration %s not found", version)
	}
	if _, err := db.ExecContext(ctx, AllMigrations[idx].Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", version, err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", version, err)
	}
	return nil
}
