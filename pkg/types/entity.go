package types

import "time"

// Entity represents a typed, named node in the persisted project graph.
// Data holds an arbitrary structured document supplied by the caller;
// well-known fields in it (path, tags, description, ...) feed the search index.
type Entity struct {
	ID        string
	Type      string
	Name      string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64 // starts at 1, incremented once per successful update
}

// Validate checks entity invariants before a write
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrEmptyEntityID
	}
	if e.Type == "" {
		return ErrEmptyEntityType
	}
	if e.Name == "" {
		return ErrEmptyEntityName
	}
	return nil
}

// Relation represents a typed, directed edge between two entities.
// Both endpoints must exist; self-relations are rejected.
type Relation struct {
	ID         string
	FromID     string
	ToID       string
	Type       string
	Properties map[string]any
	CreatedAt  time.Time
}

// Validate checks relation invariants before a write
func (r *Relation) Validate() error {
	if r.FromID == "" || r.ToID == "" {
		return ErrMissingEndpoint
	}
	if r.FromID == r.ToID {
		return ErrSelfRelation
	}
	if r.Type == "" {
		return ErrEmptyRelationType
	}
	return nil
}

// Neighbor is a one-hop graph neighbor with the connecting relation
// and the traversal direction relative to the origin entity.
type Neighbor struct {
	EntityID     string
	EntityType   string
	EntityName   string
	RelationType string
	Direction    string // "outgoing" or "incoming"
}

// SearchIndexEntry is the denormalized search projection of one entity.
// Every field is derivable from the entity's current state; the row can
// always be regenerated by a rebuild.
type SearchIndexEntry struct {
	EntityID       string
	OriginalName   string
	NormalizedName string // lowercased name
	NameTokens     string // camelCase/snake_case split, space-joined
	FilePath       string
	FileExtension  string
	EntityType     string
	Tags           string // space-joined, lowercased
	FullText       string // name + type + descriptive fields, lowercased
	Trigrams       string // space-joined 3-grams of the normalized name
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
