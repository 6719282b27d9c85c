package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devgraph/devgraph-mcp/internal/storage"
	"github.com/devgraph/devgraph-mcp/pkg/types"
)

// rebuildThreshold is the fraction of missing index rows that triggers a
// full rebuild during OptimizeIndex
const rebuildThreshold = 0.10

// Indexer keeps the search_index projection in sync with the entity table
type Indexer struct {
	db      *storage.DB
	workers int
}

// PopulateOptions controls a batch population run
type PopulateOptions struct {
	BatchSize    int  // entities per transaction (default: 100)
	SkipExisting bool // leave already-indexed entities untouched
	UpdateOnly   bool // only refresh existing rows, never create
}

// PopulateResult reports the outcome of a population run
type PopulateResult struct {
	Processed int           `json:"processed"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// OptimizeResult reports the outcome of an index maintenance pass
type OptimizeResult struct {
	Entities  int64 `json:"entities"`
	IndexRows int64 `json:"index_rows"`
	Rebuilt   bool  `json:"rebuilt"`
}

// New creates an Indexer over the given database
func New(db *storage.DB) *Indexer {
	return &Indexer{db: db, workers: runtime.NumCPU()}
}

// UpdateEntityIndex derives and writes the index row for a single entity.
// Called synchronously after every entity write.
func (idx *Indexer) UpdateEntityIndex(ctx context.Context, e *types.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return idx.db.UpsertSearchIndex(ctx, nil, Derive(e))
}

// RemoveEntityIndex deletes an entity's index row. The schema cascade
// covers entity deletion; this exists for explicit invalidation.
func (idx *Indexer) RemoveEntityIndex(ctx context.Context, entityID string) error {
	return idx.db.DeleteSearchIndex(ctx, entityID)
}

// PopulateIndex scans all entities in creation order and writes their
// index rows, one transaction per batch. A row that fails to write is
// counted and logged without aborting its batch.
func (idx *Indexer) PopulateIndex(ctx context.Context, opts PopulateOptions) (*PopulateResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	start := time.Now()
	result := &PopulateResult{}

	for offset := 0; ; offset += opts.BatchSize {
		batch, err := idx.db.ListEntities(ctx, "", opts.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list entities: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		if err := idx.populateBatch(ctx, batch, opts, result); err != nil {
			return nil, err
		}
		if len(batch) < opts.BatchSize {
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// populateBatch derives entries concurrently, then writes the batch in a
// single transaction. Existence is checked before the transaction opens;
// the single-connection pool would deadlock on reads from inside it.
func (idx *Indexer) populateBatch(ctx context.Context, batch []*types.Entity, opts PopulateOptions, result *PopulateResult) error {
	entries := make([]*types.SearchIndexEntry, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, e := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = Derive(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	exists := make([]bool, len(batch))
	for i, e := range batch {
		has, err := idx.db.HasSearchIndex(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to check index row %s: %w", e.ID, err)
		}
		exists[i] = has
	}

	return idx.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for i, entry := range entries {
			result.Processed++
			switch {
			case exists[i] && opts.SkipExisting:
				result.Skipped++
				continue
			case !exists[i] && opts.UpdateOnly:
				result.Skipped++
				continue
			}
			if err := idx.db.UpsertSearchIndex(ctx, tx, entry); err != nil {
				result.Errors++
				log.Printf("indexer: failed to index entity %s: %v", entry.EntityID, err)
				continue
			}
			if exists[i] {
				result.Updated++
			} else {
				result.Created++
			}
		}
		return nil
	})
}

// RebuildIndex clears the index and repopulates it from scratch
func (idx *Indexer) RebuildIndex(ctx context.Context) (*PopulateResult, error) {
	if err := idx.db.ClearSearchIndex(ctx); err != nil {
		return nil, err
	}
	return idx.PopulateIndex(ctx, PopulateOptions{})
}

// OptimizeIndex refreshes the query planner statistics and verifies index
// coverage, rebuilding from scratch when more than 10% of entities have no
// index row
func (idx *Indexer) OptimizeIndex(ctx context.Context) (*OptimizeResult, error) {
	if _, err := idx.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return nil, fmt.Errorf("failed to analyze: %w", err)
	}

	entities, err := idx.db.CountEntities(ctx)
	if err != nil {
		return nil, err
	}
	indexRows, err := idx.db.CountSearchIndex(ctx)
	if err != nil {
		return nil, err
	}

	result := &OptimizeResult{Entities: entities, IndexRows: indexRows}
	if entities == 0 {
		return result, nil
	}

	missing := entities - indexRows
	if missing > 0 && float64(missing)/float64(entities) > rebuildThreshold {
		log.Printf("indexer: %d of %d entities missing index rows, rebuilding", missing, entities)
		if _, err := idx.RebuildIndex(ctx); err != nil {
			return nil, err
		}
		result.Rebuilt = true
		if result.IndexRows, err = idx.db.CountSearchIndex(ctx); err != nil {
			return nil, err
		}
	}
	return result, nil
}
