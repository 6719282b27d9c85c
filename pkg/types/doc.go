// Package types provides shared type definitions for the devgraph MCP server.
//
// This package defines the domain types used across components: graph
// entities and relations, search index entries, log entries, and search
// results.
//
// # Core Types
//
// Entity represents a typed, named node in the persisted project graph:
//
//	entity := &types.Entity{
//	    ID:   "cmp-dashboard",
//	    Type: "Component",
//	    Name: "Dashboard.tsx",
//	    Data: map[string]any{"path": "src/components/Dashboard.tsx"},
//	}
//
// Relation represents a typed, directed edge between two entities:
//
//	rel := &types.Relation{
//	    FromID: "cmp-dashboard",
//	    ToID:   "util-format",
//	    Type:   "imports",
//	}
//
// SearchIndexEntry is the denormalized search projection of an entity. It
// is always derivable from the entity's current state and can be rebuilt
// from scratch at any time.
//
// # Validation
//
// Write paths validate domain types before touching storage:
//
//	if err := entity.Validate(); err != nil {
//	    return err
//	}
//
// # Search Results
//
// SearchResult carries the identifying columns of an index row plus
// pattern-specific scoring: Score for fuzzy (trigram) matches, Relevance
// tier for free-text matches.
package types
