// Package storage provides SQLite-based persistence for the entity graph,
// its denormalized search index, and batched log entries.
//
// The storage layer manages:
//   - Entities and typed relations between them
//   - The search_index projection consumed by the searcher
//   - Append-only log entries with retention sweeps
//   - Schema migrations and connection lifecycle
//   - A named, LRU-bounded prepared statement cache
//
// # Database Schema
//
// Tables:
//   - entities: Graph nodes with a JSON data document and a
//     trigger-maintained version counter
//   - relations: Directed typed edges, cascade-deleted with either endpoint
//   - search_index: One derived row per live entity (tokens, trigrams,
//     path, tags, full text)
//   - log_entries: Batched log records with derived searchable content
//   - schema_migrations: Applied migration ledger
//
// # Basic Usage
//
//	db := storage.New("~/.devgraph/graph.db", storage.Config{})
//	if err := db.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	entity := &types.Entity{Type: "component", Name: "UserProfile"}
//	if err := db.CreateEntity(ctx, entity); err != nil {
//	    return err
//	}
//
// # Transactions
//
// WithTransaction guarantees commit-or-rollback on every exit path and
// races completion against a timeout:
//
//	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
//	    // batched writes against tx
//	    return nil
//	})
//
// A timed-out transaction surfaces ErrTxTimeout to the caller but is not
// aborted mid-flight; it may still commit afterwards.
//
// # Connection Model
//
// The pool is capped at a single open connection. SQLite serializes
// writers anyway, and the statement cache depends on its handles staying
// bound to one live connection. WAL mode keeps readers concurrent with
// the writer.
package storage
