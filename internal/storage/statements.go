package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Statement names used with the catalog. Hot-path queries go through
// these so the statement cache can keep their handles warm.
const (
	StmtEntityGet         = "entity.get"
	StmtEntityInsert      = "entity.insert"
	StmtEntityUpdate      = "entity.update"
	StmtEntityDelete      = "entity.delete"
	StmtEntityList        = "entity.list"
	StmtEntityListByType  = "entity.list_by_type"
	StmtEntityCount       = "entity.count"
	StmtEntityCountByType = "entity.count_by_type"

	StmtRelationGet      = "relation.get"
	StmtRelationInsert   = "relation.insert"
	StmtRelationDelete   = "relation.delete"
	StmtRelationsByFrom  = "relation.by_from"
	StmtRelationsByTo    = "relation.by_to"
	StmtRelationsByType  = "relation.by_type"
	StmtRelationsForNode = "relation.for_node"

	StmtNeighbors    = "graph.neighbors"
	StmtNeighborhood = "graph.neighborhood"

	StmtIndexUpsert = "index.upsert"
	StmtIndexGet    = "index.get"
	StmtIndexDelete = "index.delete"
	StmtIndexCount  = "index.count"

	StmtLogInsert       = "log.insert"
	StmtLogQuery        = "log.query"
	StmtLogCountByLevel = "log.count_by_level"
	StmtLogDeleteBefore = "log.delete_before"
	StmtLogStats        = "log.stats"
)

const entityColumns = "id, type, name, data, created_at, updated_at, version"

// statementSQL maps each catalog name to its SQL text
var statementSQL = map[string]string{
	StmtEntityGet:    "SELECT " + entityColumns + " FROM entities WHERE id = ?",
	StmtEntityInsert: "INSERT INTO entities (id, type, name, data) VALUES (?, ?, ?, ?)",
	// version and updated_at are maintained by trigger; setting them here
	// would defeat the auto-increment guard
	StmtEntityUpdate:      "UPDATE entities SET type = ?, name = ?, data = ? WHERE id = ?",
	StmtEntityDelete:      "DELETE FROM entities WHERE id = ?",
	StmtEntityList:        "SELECT " + entityColumns + " FROM entities ORDER BY created_at, id LIMIT ? OFFSET ?",
	StmtEntityListByType:  "SELECT " + entityColumns + " FROM entities WHERE type = ? ORDER BY created_at, id LIMIT ? OFFSET ?",
	StmtEntityCount:       "SELECT COUNT(*) FROM entities",
	StmtEntityCountByType: "SELECT type, COUNT(*) FROM entities GROUP BY type ORDER BY type",

	StmtRelationGet:      "SELECT id, from_id, to_id, type, properties, created_at FROM relations WHERE id = ?",
	StmtRelationInsert:   "INSERT INTO relations (id, from_id, to_id, type, properties) VALUES (?, ?, ?, ?, ?)",
	StmtRelationDelete:   "DELETE FROM relations WHERE id = ?",
	StmtRelationsByFrom:  "SELECT id, from_id, to_id, type, properties, created_at FROM relations WHERE from_id = ? ORDER BY created_at, id",
	StmtRelationsByTo:    "SELECT id, from_id, to_id, type, properties, created_at FROM relations WHERE to_id = ? ORDER BY created_at, id",
	StmtRelationsByType:  "SELECT id, from_id, to_id, type, properties, created_at FROM relations WHERE type = ? ORDER BY created_at, id",
	StmtRelationsForNode: "SELECT id, from_id, to_id, type, properties, created_at FROM relations WHERE from_id = ?1 OR to_id = ?1 ORDER BY created_at, id",

	StmtNeighbors: `
SELECT e.id, e.type, e.name, r.type, 'outgoing'
FROM relations r JOIN entities e ON e.id = r.to_id
WHERE r.from_id = ?1
UNION ALL
SELECT e.id, e.type, e.name, r.type, 'incoming'
FROM relations r JOIN entities e ON e.id = r.from_id
WHERE r.to_id = ?1
ORDER BY 3, 1`,

	StmtNeighborhood: `
WITH RECURSIVE walk(id, depth) AS (
    SELECT ?1, 0
    UNION
    SELECT CASE WHEN r.from_id = w.id THEN r.to_id ELSE r.from_id END, w.depth + 1
    FROM relations r JOIN walk w ON r.from_id = w.id OR r.to_id = w.id
    WHERE w.depth < ?2
)
SELECT e.id, e.type, e.name, e.data, e.created_at, e.updated_at, e.version, MIN(w.depth)
FROM walk w JOIN entities e ON e.id = w.id
WHERE w.id != ?1
GROUP BY e.id
ORDER BY MIN(w.depth), e.name, e.id`,

	StmtIndexUpsert: `
INSERT INTO search_index (entity_id, original_name, normalized_name, name_tokens,
    file_path, file_extension, entity_type, tags, full_text, trigrams)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(entity_id) DO UPDATE SET
    original_name = excluded.original_name,
    normalized_name = excluded.normalized_name,
    name_tokens = excluded.name_tokens,
    file_path = excluded.file_path,
    file_extension = excluded.file_extension,
    entity_type = excluded.entity_type,
    tags = excluded.tags,
    full_text = excluded.full_text,
    trigrams = excluded.trigrams,
    updated_at = CURRENT_TIMESTAMP`,
	StmtIndexGet: `
SELECT entity_id, original_name, normalized_name, name_tokens, file_path,
    file_extension, entity_type, tags, full_text, trigrams
FROM search_index WHERE entity_id = ?`,
	StmtIndexDelete: "DELETE FROM search_index WHERE entity_id = ?",
	StmtIndexCount:  "SELECT COUNT(*) FROM search_index",

	StmtLogInsert: `
INSERT INTO log_entries (id, timestamp, level, service, message, metadata,
    indexed_content, process_id, session_id, trace_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	// Optional filters collapse to always-true when their parameter is
	// empty or NULL, so one prepared statement serves every filter shape
	StmtLogQuery: `
SELECT id, timestamp, level, service, message, metadata, indexed_content,
    process_id, session_id, trace_id
FROM log_entries
WHERE (?1 = '' OR level = ?1)
  AND (?2 = '' OR service = ?2)
  AND (?3 IS NULL OR timestamp >= ?3)
  AND (?4 IS NULL OR timestamp <= ?4)
  AND (?5 = '' OR instr(indexed_content, ?5) > 0)
ORDER BY timestamp DESC, id
LIMIT ?6`,
	StmtLogCountByLevel: "SELECT level, COUNT(*) FROM log_entries GROUP BY level ORDER BY level",
	StmtLogDeleteBefore: "DELETE FROM log_entries WHERE timestamp < ?",
	StmtLogStats:        "SELECT COUNT(*), COUNT(DISTINCT service), MIN(timestamp), MAX(timestamp) FROM log_entries",
}

// Statements is the named catalog over the statement cache. Lookups go by
// name; the SQL text lives here so callers never carry query strings.
type Statements struct {
	cache *StmtCache
}

// NewStatements creates the catalog backed by the given cache
func NewStatements(cache *StmtCache) *Statements {
	return &Statements{cache: cache}
}

// Get returns the prepared statement for a catalog name
func (s *Statements) Get(ctx context.Context, name string) (*sql.Stmt, error) {
	query, ok := statementSQL[name]
	if !ok {
		return nil, fmt.Errorf("unknown statement %q", name)
	}
	return s.cache.Get(ctx, name, query)
}

// Names returns every catalog name in sorted order
func (s *Statements) Names() []string {
	names := make([]string, 0, len(statementSQL))
	for name := range statementSQL {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
