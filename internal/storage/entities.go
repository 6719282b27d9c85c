package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/devgraph/devgraph-mcp/pkg/types"
)

// stmt resolves a catalog statement, rebinding it to tx when one is given
func (d *DB) stmt(ctx context.Context, tx *sql.Tx, name string) (*sql.Stmt, error) {
	if d.stmts == nil {
		return nil, ErrNotConnected
	}
	stmt, err := d.stmts.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx.StmtContext(ctx, stmt), nil
	}
	return stmt, nil
}

// marshalJSON serializes a document field, mapping nil to SQL NULL
func marshalJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON document: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON document: %w", err)
	}
	return m, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (*types.Entity, error) {
	var e types.Entity
	var data sql.NullString
	if err := s.Scan(&e.ID, &e.Type, &e.Name, &data, &e.CreatedAt, &e.UpdatedAt, &e.Version); err != nil {
		return nil, err
	}
	var err error
	if e.Data, err = unmarshalJSON(data); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRelation(s scanner) (*types.Relation, error) {
	var r types.Relation
	var props sql.NullString
	if err := s.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &props, &r.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.Properties, err = unmarshalJSON(props); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateEntity inserts a new entity. An empty ID is replaced with a
// generated UUID. Timestamps and version are filled in from the stored row.
func (d *DB) CreateEntity(ctx context.Context, e *types.Entity) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return err
	}

	if _, err := d.getEntity(ctx, nil, e.ID); err == nil {
		return fmt.Errorf("entity %s: %w", e.ID, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return d.createEntity(ctx, nil, e)
}

func (d *DB) createEntity(ctx context.Context, tx *sql.Tx, e *types.Entity) error {
	data, err := marshalJSON(e.Data)
	if err != nil {
		return err
	}
	stmt, err := d.stmt(ctx, tx, StmtEntityInsert)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, e.ID, e.Type, e.Name, data); err != nil {
		return fmt.Errorf("failed to insert entity %s: %w", e.ID, err)
	}
	return d.reloadEntity(ctx, tx, e)
}

// GetEntity loads an entity by ID. Returns ErrNotFound when absent.
func (d *DB) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	return d.getEntity(ctx, nil, id)
}

func (d *DB) getEntity(ctx context.Context, tx *sql.Tx, id string) (*types.Entity, error) {
	stmt, err := d.stmt(ctx, tx, StmtEntityGet)
	if err != nil {
		return nil, err
	}
	e, err := scanEntity(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}
	return e, nil
}

// UpdateEntity rewrites an entity's type, name and data. The stored row's
// version increments by one and updated_at refreshes; both are read back
// into e. Returns ErrNotFound when the entity doesn't exist.
func (d *DB) UpdateEntity(ctx context.Context, e *types.Entity) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return d.updateEntity(ctx, nil, e)
}

func (d *DB) updateEntity(ctx context.Context, tx *sql.Tx, e *types.Entity) error {
	data, err := marshalJSON(e.Data)
	if err != nil {
		return err
	}
	stmt, err := d.stmt(ctx, tx, StmtEntityUpdate)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, e.Type, e.Name, data, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", e.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("entity %s: %w", e.ID, ErrNotFound)
	}
	return d.reloadEntity(ctx, tx, e)
}

// reloadEntity refreshes the trigger-maintained fields after a write
func (d *DB) reloadEntity(ctx context.Context, tx *sql.Tx, e *types.Entity) error {
	stored, err := d.getEntity(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = stored.UpdatedAt
	e.Version = stored.Version
	return nil
}

// UpsertEntity creates the entity when absent, otherwise updates it
func (d *DB) UpsertEntity(ctx context.Context, e *types.Entity) (created bool, err error) {
	if d.db == nil {
		return false, ErrNotConnected
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return false, err
	}
	_, err = d.getEntity(ctx, nil, e.ID)
	if errors.Is(err, ErrNotFound) {
		return true, d.createEntity(ctx, nil, e)
	}
	if err != nil {
		return false, err
	}
	return false, d.updateEntity(ctx, nil, e)
}

// DeleteEntity removes an entity. Relations touching it and its search
// index row are cascade-deleted by the schema.
func (d *DB) DeleteEntity(ctx context.Context, id string) error {
	if d.db == nil {
		return ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtEntityDelete)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete entity %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListEntities pages through entities in creation order. An empty
// entityType lists all types.
func (d *DB) ListEntities(ctx context.Context, entityType string, limit, offset int) ([]*types.Entity, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if entityType == "" {
		stmt, serr := d.stmt(ctx, nil, StmtEntityList)
		if serr != nil {
			return nil, serr
		}
		rows, err = stmt.QueryContext(ctx, limit, offset)
	} else {
		stmt, serr := d.stmt(ctx, nil, StmtEntityListByType)
		if serr != nil {
			return nil, serr
		}
		rows, err = stmt.QueryContext(ctx, entityType, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// CountEntities returns the total number of entities
func (d *DB) CountEntities(ctx context.Context) (int64, error) {
	if d.db == nil {
		return 0, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtEntityCount)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := stmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

// CountEntitiesByType returns entity counts keyed by type
func (d *DB) CountEntitiesByType(ctx context.Context) (map[string]int64, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtEntityCountByType)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var entityType string
		var count int64
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		counts[entityType] = count
	}
	return counts, rows.Err()
}

// CreateRelation inserts a typed edge between two existing entities. An
// empty ID is replaced with a generated UUID. Both endpoints must exist;
// the foreign keys reject dangling edges.
func (d *DB) CreateRelation(ctx context.Context, r *types.Relation) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := r.Validate(); err != nil {
		return err
	}

	props, err := marshalJSON(r.Properties)
	if err != nil {
		return err
	}
	stmt, err := d.stmt(ctx, nil, StmtRelationInsert)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, r.ID, r.FromID, r.ToID, r.Type, props); err != nil {
		return fmt.Errorf("failed to insert relation %s -> %s: %w", r.FromID, r.ToID, err)
	}

	stored, err := d.getRelation(ctx, r.ID)
	if err != nil {
		return err
	}
	r.CreatedAt = stored.CreatedAt
	return nil
}

// GetRelation loads a relation by ID. Returns ErrNotFound when absent.
func (d *DB) GetRelation(ctx context.Context, id string) (*types.Relation, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	return d.getRelation(ctx, id)
}

func (d *DB) getRelation(ctx context.Context, id string) (*types.Relation, error) {
	stmt, err := d.stmt(ctx, nil, StmtRelationGet)
	if err != nil {
		return nil, err
	}
	r, err := scanRelation(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relation %s: %w", id, err)
	}
	return r, nil
}

// DeleteRelation removes a relation by ID
func (d *DB) DeleteRelation(ctx context.Context, id string) error {
	if d.db == nil {
		return ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtRelationDelete)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete relation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete relation %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	return nil
}

// RelationsForEntity returns every relation touching the entity in either
// direction, in creation order
func (d *DB) RelationsForEntity(ctx context.Context, entityID string) ([]*types.Relation, error) {
	return d.queryRelations(ctx, StmtRelationsForNode, entityID)
}

// RelationsByType returns every relation of the given type in creation order
func (d *DB) RelationsByType(ctx context.Context, relationType string) ([]*types.Relation, error) {
	return d.queryRelations(ctx, StmtRelationsByType, relationType)
}

func (d *DB) queryRelations(ctx context.Context, name string, arg any) ([]*types.Relation, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, name)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var relations []*types.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, r)
	}
	return relations, rows.Err()
}

// Neighbors returns the one-hop neighborhood of an entity, each neighbor
// tagged with the relation type and traversal direction
func (d *DB) Neighbors(ctx context.Context, entityID string) ([]types.Neighbor, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtNeighbors)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors of %s: %w", entityID, err)
	}
	defer rows.Close()

	var neighbors []types.Neighbor
	for rows.Next() {
		var n types.Neighbor
		if err := rows.Scan(&n.EntityID, &n.EntityType, &n.EntityName, &n.RelationType, &n.Direction); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// GraphEntity is an entity reached by a bounded traversal, with its
// shortest hop distance from the start node
type GraphEntity struct {
	Entity types.Entity
	Depth  int
}

// Neighborhood walks relations in both directions up to maxDepth hops from
// the start entity and returns the reached entities ordered by shortest
// distance. The start entity itself is excluded.
func (d *DB) Neighborhood(ctx context.Context, entityID string, maxDepth, limit int) ([]GraphEntity, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	if maxDepth <= 0 {
		maxDepth = 1
	}
	if limit <= 0 {
		limit = 100
	}

	stmt, err := d.stmt(ctx, nil, StmtNeighborhood)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, entityID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighborhood of %s: %w", entityID, err)
	}
	defer rows.Close()

	var results []GraphEntity
	for rows.Next() {
		var ge GraphEntity
		var data sql.NullString
		if err := rows.Scan(&ge.Entity.ID, &ge.Entity.Type, &ge.Entity.Name, &data,
			&ge.Entity.CreatedAt, &ge.Entity.UpdatedAt, &ge.Entity.Version, &ge.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan neighborhood entity: %w", err)
		}
		if ge.Entity.Data, err = unmarshalJSON(data); err != nil {
			return nil, err
		}
		results = append(results, ge)
		if len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}
