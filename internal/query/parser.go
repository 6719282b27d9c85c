package query

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyQuery is returned for empty or whitespace-only input
var ErrEmptyQuery = errors.New("empty query")

// PatternType identifies which retrieval strategy a query maps to
type PatternType string

const (
	PatternWildcard   PatternType = "wildcard"
	PatternExtension  PatternType = "extension"
	PatternEntityType PatternType = "type"
	PatternPath       PatternType = "path"
	PatternExact      PatternType = "exact"
	PatternFuzzy      PatternType = "fuzzy"
	PatternRegex      PatternType = "regex"
	PatternContains   PatternType = "contains"
	PatternPrefix     PatternType = "prefix"
	PatternSuffix     PatternType = "suffix"
	PatternFreeText   PatternType = "freetext"
	PatternComposite  PatternType = "composite"
)

// PathMode refines a path query by where its glob stars sit
type PathMode string

const (
	PathExact    PathMode = "exact"
	PathPrefix   PathMode = "prefix"
	PathSuffix   PathMode = "suffix"
	PathContains PathMode = "contains"
)

// ParsedQuery is the classified form of a raw search string
type ParsedQuery struct {
	Type     PatternType
	Raw      string        // original input, trimmed
	Term     string        // extracted search term
	Flags    string        // regex flags, regex queries only
	PathMode PathMode      // path queries only
	Filters  []ParsedQuery // composite queries only
}

// validRegexFlags are the flag characters accepted after a /pattern/.
// Only i changes behavior; m and s are tolerated and ignored.
const validRegexFlags = "ims"

// Parse classifies a single query string. Classification is pure and
// tries the most specific shapes first:
//
//  1. "*" alone matches everything
//  2. "*.ext" is an extension query
//  3. "t:name" is an entity type query
//  4. anything containing "/" is a path query, unless it is shaped like
//     a /pattern/flags regex
//  5. double-quoted input is an exact match
//  6. a "~" prefix is a fuzzy match
//  7. /pattern/flags is a regex; an uncompilable pattern degrades to
//     free text rather than failing
//  8. remaining stars select contains/suffix/prefix by position
//  9. everything else is free text
func Parse(q string) (ParsedQuery, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return ParsedQuery{}, ErrEmptyQuery
	}

	switch {
	case q == "*":
		return ParsedQuery{Type: PatternWildcard, Raw: q, Term: q}, nil

	case strings.HasPrefix(q, "*.") && len(q) > 2:
		return ParsedQuery{Type: PatternExtension, Raw: q, Term: q[2:]}, nil

	case strings.HasPrefix(q, "t:") && len(q) > 2:
		return ParsedQuery{Type: PatternEntityType, Raw: q, Term: q[2:]}, nil

	case strings.Contains(q, "/") && !isRegexShaped(q):
		return parsePath(q), nil

	case len(q) >= 2 && strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`):
		return ParsedQuery{Type: PatternExact, Raw: q, Term: q[1 : len(q)-1]}, nil

	case strings.HasPrefix(q, "~"):
		return ParsedQuery{Type: PatternFuzzy, Raw: q, Term: q[1:]}, nil

	case isRegexShaped(q):
		return parseRegex(q), nil

	case strings.Contains(q, "*"):
		return parseGlob(q), nil

	default:
		return ParsedQuery{Type: PatternFreeText, Raw: q, Term: q}, nil
	}
}

// isRegexShaped reports whether q looks like /pattern/flags: a leading
// slash, a later closing slash, and only valid flag characters after it.
// Absolute paths fail the flag check and stay path queries.
func isRegexShaped(q string) bool {
	if len(q) < 2 || q[0] != '/' {
		return false
	}
	last := strings.LastIndex(q[1:], "/")
	if last < 0 {
		return false
	}
	flags := q[last+2:]
	for _, r := range flags {
		if !strings.ContainsRune(validRegexFlags, r) {
			return false
		}
	}
	return true
}

func parseRegex(q string) ParsedQuery {
	last := strings.LastIndex(q[1:], "/") + 1
	pattern := q[1:last]
	flags := q[last+1:]

	expanded := pattern
	if strings.ContainsRune(flags, 'i') {
		expanded = "(?i)" + pattern
	}
	if _, err := regexp.Compile(expanded); err != nil {
		// Not a valid regex after all; treat the whole thing as free text
		return ParsedQuery{Type: PatternFreeText, Raw: q, Term: q}
	}
	return ParsedQuery{Type: PatternRegex, Raw: q, Term: pattern, Flags: flags}
}

func parsePath(q string) ParsedQuery {
	p := ParsedQuery{Type: PatternPath, Raw: q}
	leading := strings.HasPrefix(q, "*")
	trailing := strings.HasSuffix(q, "*")
	switch {
	case leading && trailing:
		p.PathMode = PathContains
		p.Term = strings.Trim(q, "*")
	case leading:
		p.PathMode = PathSuffix
		p.Term = strings.TrimPrefix(q, "*")
	case trailing:
		p.PathMode = PathPrefix
		p.Term = strings.TrimSuffix(q, "*")
	default:
		p.PathMode = PathExact
		p.Term = q
	}
	return p
}

func parseGlob(q string) ParsedQuery {
	leading := strings.HasPrefix(q, "*")
	trailing := strings.HasSuffix(q, "*")
	switch {
	case leading && trailing:
		return ParsedQuery{Type: PatternContains, Raw: q, Term: strings.Trim(q, "*")}
	case leading:
		return ParsedQuery{Type: PatternSuffix, Raw: q, Term: strings.TrimPrefix(q, "*")}
	case trailing:
		return ParsedQuery{Type: PatternPrefix, Raw: q, Term: strings.TrimSuffix(q, "*")}
	default:
		// A star in the middle ("a*b") has no dedicated strategy yet and
		// falls back to match-everything. TODO: translate interior stars
		// to a LIKE pattern with % substitution.
		return ParsedQuery{Type: PatternWildcard, Raw: q, Term: q}
	}
}

// ParseComposite splits the input on unquoted, unescaped spaces and
// classifies each token. A single token degrades to a plain Parse; two or
// more become a Composite whose Filters are ANDed by the engine.
func ParseComposite(q string) (ParsedQuery, error) {
	tokens := splitTokens(q)
	if len(tokens) == 0 {
		return ParsedQuery{}, ErrEmptyQuery
	}
	if len(tokens) == 1 {
		return Parse(tokens[0])
	}

	filters := make([]ParsedQuery, 0, len(tokens))
	for _, token := range tokens {
		parsed, err := Parse(token)
		if err != nil {
			return ParsedQuery{}, err
		}
		filters = append(filters, parsed)
	}
	return ParsedQuery{Type: PatternComposite, Raw: strings.TrimSpace(q), Filters: filters}, nil
}

// splitTokens breaks the input on spaces, respecting double quotes and
// backslash escapes. Quotes stay inside their token so quoted tokens
// still classify as exact matches.
func splitTokens(s string) []string {
	var tokens []string
	var b strings.Builder
	inQuotes := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuotes:
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// Info describes a classified query for diagnostics
type Info struct {
	Description string `json:"description"`
	Expected    string `json:"expected"`
	Tier        string `json:"tier"` // fast, medium, slow
}

// PatternInfo explains what a parsed query will do and how expensive it
// is likely to be. Diagnostics only; the engine never consults this.
func PatternInfo(p ParsedQuery) Info {
	switch p.Type {
	case PatternWildcard:
		return Info{"match everything", "all indexed entities up to the limit", "fast"}
	case PatternExtension:
		return Info{"file extension match", "entities whose path ends in ." + p.Term, "fast"}
	case PatternEntityType:
		return Info{"entity type match", "entities of type " + p.Term, "fast"}
	case PatternPath:
		return Info{"file path match (" + string(p.PathMode) + ")", "entities whose path matches " + p.Term, "medium"}
	case PatternExact:
		return Info{"exact name match", "entities named exactly " + p.Term, "fast"}
	case PatternFuzzy:
		return Info{"fuzzy trigram match", "entities with names similar to " + p.Term, "slow"}
	case PatternRegex:
		return Info{"regular expression match", "entities whose name matches /" + p.Term + "/", "slow"}
	case PatternContains:
		return Info{"substring match", "entities whose name contains " + p.Term, "medium"}
	case PatternPrefix:
		return Info{"prefix match", "entities whose name starts with " + p.Term, "fast"}
	case PatternSuffix:
		return Info{"suffix match", "entities whose name ends with " + p.Term, "medium"}
	case PatternFreeText:
		return Info{"free text search", "entities mentioning " + p.Term + " in name or content", "medium"}
	case PatternComposite:
		return Info{"composite AND of filters", "entities matching every filter", "medium"}
	default:
		return Info{"unknown pattern", "", "medium"}
	}
}
