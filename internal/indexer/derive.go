package indexer

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/devgraph/devgraph-mcp/pkg/types"
)

// Data fields consulted for the file path, in priority order
var pathFields = []string{"path", "filePath", "file_path", "location", "url", "src"}

// Data fields whose values contribute tags
var tagFields = []string{"tags", "keywords", "categories", "labels"}

// Data fields whose values contribute free text
var textFields = []string{"description", "summary", "content", "text", "comment"}

// Derive computes the full search index row for an entity. Derivation is
// pure: the same entity always yields the same row.
func Derive(e *types.Entity) *types.SearchIndexEntry {
	normalized := strings.ToLower(e.Name)
	filePath := extractPath(e.Data)
	return &types.SearchIndexEntry{
		EntityID:       e.ID,
		OriginalName:   e.Name,
		NormalizedName: normalized,
		NameTokens:     tokenizeName(e.Name),
		FilePath:       filePath,
		FileExtension:  extractExtension(filePath),
		EntityType:     e.Type,
		Tags:           extractTags(e.Data),
		FullText:       buildFullText(e.Name, e.Type, e.Data),
		Trigrams:       trigrams(normalized),
	}
}

// tokenizeName splits a name on camelCase boundaries, underscores and
// hyphens, lowercases the result and collapses whitespace
func tokenizeName(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			// Boundary before an upper following a lower/digit, and before
			// the last upper of an acronym run ("HTTPServer" -> http server)
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// extractPath returns the first non-empty string among the recognized
// path fields
func extractPath(data map[string]any) string {
	for _, field := range pathFields {
		if s, ok := data[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// extractExtension returns the lowercased text after the final dot of the
// path's base name, or empty when the base has no dot
func extractExtension(filePath string) string {
	if filePath == "" {
		return ""
	}
	base := path.Base(filePath)
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// extractTags collects the values of every tag-bearing field, accepting
// arrays and scalars, lowercased and space-joined
func extractTags(data map[string]any) string {
	var parts []string
	for _, field := range tagFields {
		v, ok := data[field]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				if s := stringify(item); s != "" {
					parts = append(parts, s)
				}
			}
		case []string:
			parts = append(parts, val...)
		default:
			if s := stringify(val); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// buildFullText joins the name, type and any free-text data fields,
// lowercased
func buildFullText(name, entityType string, data map[string]any) string {
	parts := []string{name, entityType}
	for _, field := range textFields {
		if s := stringify(data[field]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// trigrams returns every overlapping 3-rune substring of the normalized
// name, space-joined. Names shorter than 3 runes yield no trigrams and
// therefore never fuzzy-match.
func trigrams(normalized string) string {
	runes := []rune(normalized)
	if len(runes) < 3 {
		return ""
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return strings.Join(grams, " ")
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64, int, int64, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
