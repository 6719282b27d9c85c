package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration. Up scripts are
// idempotent (CREATE IF NOT EXISTS style) and run directly against the
// connection, never inside an explicit transaction, to avoid conflicting
// with pragma-induced implicit transactions.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in ascending order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Name:    "base schema",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Migration ledger
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Graph entities
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    data JSON,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_created ON entities(created_at);

-- Directed, typed edges between entities
CREATE TABLE IF NOT EXISTS relations (
    id TEXT PRIMARY KEY,
    from_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    to_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    properties JSON,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    CHECK (from_id != to_id)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_id);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(type);

-- Denormalized search projection, one row per live entity
CREATE TABLE IF NOT EXISTS search_index (
    entity_id TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
    original_name TEXT NOT NULL,
    normalized_name TEXT NOT NULL,
    name_tokens TEXT NOT NULL DEFAULT '',
    file_path TEXT NOT NULL DEFAULT '',
    file_extension TEXT NOT NULL DEFAULT '',
    entity_type TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    full_text TEXT NOT NULL DEFAULT '',
    trigrams TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_normalized ON search_index(normalized_name);
CREATE INDEX IF NOT EXISTS idx_search_type ON search_index(entity_type);
CREATE INDEX IF NOT EXISTS idx_search_extension ON search_index(file_extension);
CREATE INDEX IF NOT EXISTS idx_search_path ON search_index(file_path);

-- Batched, queryable log entries
CREATE TABLE IF NOT EXISTS log_entries (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    level TEXT NOT NULL CHECK (level IN ('fatal','error','warn','info','debug','trace')),
    service TEXT NOT NULL,
    message TEXT NOT NULL,
    metadata JSON,
    indexed_content TEXT NOT NULL DEFAULT '',
    process_id TEXT,
    session_id TEXT,
    trace_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON log_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON log_entries(level);
CREATE INDEX IF NOT EXISTS idx_logs_service ON log_entries(service);

-- Version bump and updated_at refresh on entity update. The WHEN guard
-- keeps an explicit version write from being bumped twice.
CREATE TRIGGER IF NOT EXISTS entities_au_version
AFTER UPDATE OF type, name, data ON entities
WHEN new.version = old.version
BEGIN
    UPDATE entities SET version = old.version + 1, updated_at = CURRENT_TIMESTAMP
    WHERE id = new.id;
END;

-- Seed the search index row on entity insert. Only the SQL-computable
-- columns are populated here; the indexer's synchronous upsert completes
-- the derived columns (tokens, trigrams, path, tags, full text).
CREATE TRIGGER IF NOT EXISTS entities_ai_index
AFTER INSERT ON entities
BEGIN
    INSERT INTO search_index (entity_id, original_name, normalized_name, entity_type)
    VALUES (new.id, new.name, lower(new.name), new.type)
    ON CONFLICT(entity_id) DO UPDATE SET
        original_name = excluded.original_name,
        normalized_name = excluded.normalized_name,
        entity_type = excluded.entity_type,
        updated_at = CURRENT_TIMESTAMP;
END;

-- Refresh the SQL-computable index columns on entity update
CREATE TRIGGER IF NOT EXISTS entities_au_index
AFTER UPDATE OF type, name ON entities
BEGIN
    UPDATE search_index SET
        original_name = new.name,
        normalized_name = lower(new.name),
        entity_type = new.type,
        updated_at = CURRENT_TIMESTAMP
    WHERE entity_id = new.id;
END;
`

const migrationV1Down = `
DROP TRIGGER IF EXISTS entities_au_index;
DROP TRIGGER IF EXISTS entities_ai_index;
DROP TRIGGER IF EXISTS entities_au_version;

DROP TABLE IF EXISTS log_entries;
DROP TABLE IF EXISTS search_index;
DROP TABLE IF EXISTS relations;
DROP TABLE IF EXISTS entities;
DROP TABLE IF EXISTS schema_migrations;
`

// ApplyMigrations runs all pending migrations in ascending version order,
// recording each applied version in the schema_migrations ledger
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if the ledger table exists yet
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_migrations'").Scan(&tableName)

	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_migrations table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_migrations: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		// Executed directly, not wrapped in an explicit transaction
		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	var currentVersion string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_migrations ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	// The down script may have dropped the ledger itself; ignore a missing
	// table when removing the record.
	_, _ = db.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", currentVersion)

	return nil
}
