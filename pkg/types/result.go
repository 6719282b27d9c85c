package types

// SearchResult represents a single search result row from the index
type SearchResult struct {
	// Identification
	EntityID   string
	Name       string // original (not normalized) name
	EntityType string
	FilePath   string // empty when the entity has no path field

	// Pattern-specific scoring
	Score     float64 // trigram similarity, fuzzy searches only
	Relevance int     // relevance tier (1 best), free-text searches only
}
