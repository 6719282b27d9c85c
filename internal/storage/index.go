package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/devgraph/devgraph-mcp/pkg/types"
)

// UpsertSearchIndex writes the full derived row for an entity, inserting or
// replacing in place. Pass a transaction to batch writes; nil runs against
// the live connection.
func (d *DB) UpsertSearchIndex(ctx context.Context, tx *sql.Tx, entry *types.SearchIndexEntry) error {
	if d.db == nil {
		return ErrNotConnected
	}
	stmt, err := d.stmt(ctx, tx, StmtIndexUpsert)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx,
		entry.EntityID, entry.OriginalName, entry.NormalizedName, entry.NameTokens,
		entry.FilePath, entry.FileExtension, entry.EntityType, entry.Tags,
		entry.FullText, entry.Trigrams); err != nil {
		return fmt.Errorf("failed to upsert index entry %s: %w", entry.EntityID, err)
	}
	return nil
}

// GetSearchIndex loads the index row for an entity. Returns ErrNotFound
// when the entity has no row.
func (d *DB) GetSearchIndex(ctx context.Context, entityID string) (*types.SearchIndexEntry, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtIndexGet)
	if err != nil {
		return nil, err
	}
	var entry types.SearchIndexEntry
	err = stmt.QueryRowContext(ctx, entityID).Scan(
		&entry.EntityID, &entry.OriginalName, &entry.NormalizedName, &entry.NameTokens,
		&entry.FilePath, &entry.FileExtension, &entry.EntityType, &entry.Tags,
		&entry.FullText, &entry.Trigrams)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index entry %s: %w", entityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index entry %s: %w", entityID, err)
	}
	return &entry, nil
}

// DeleteSearchIndex removes an entity's index row. Missing rows are not an
// error; the cascade usually gets there first.
func (d *DB) DeleteSearchIndex(ctx context.Context, entityID string) error {
	if d.db == nil {
		return ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtIndexDelete)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, entityID); err != nil {
		return fmt.Errorf("failed to delete index entry %s: %w", entityID, err)
	}
	return nil
}

// ClearSearchIndex removes every index row
func (d *DB) ClearSearchIndex(ctx context.Context) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if _, err := d.db.ExecContext(ctx, "DELETE FROM search_index"); err != nil {
		return fmt.Errorf("failed to clear search index: %w", err)
	}
	return nil
}

// CountSearchIndex returns the number of index rows
func (d *DB) CountSearchIndex(ctx context.Context) (int64, error) {
	if d.db == nil {
		return 0, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtIndexCount)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := stmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count index rows: %w", err)
	}
	return count, nil
}

// HasSearchIndex reports whether an entity has an index row
func (d *DB) HasSearchIndex(ctx context.Context, entityID string) (bool, error) {
	_, err := d.GetSearchIndex(ctx, entityID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
