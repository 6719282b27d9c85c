package searcher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/devgraph/devgraph-mcp/internal/query"
	"github.com/devgraph/devgraph-mcp/internal/storage"
	"github.com/devgraph/devgraph-mcp/pkg/types"
)

var (
	// ErrFuzzyDisabled is returned for fuzzy queries when the engine is
	// configured without fuzzy search
	ErrFuzzyDisabled = errors.New("fuzzy search is disabled")
	// ErrRegexDisabled is returned for regex queries when the engine is
	// configured without regex search
	ErrRegexDisabled = errors.New("regex search is disabled")
	// ErrRegexTimeout is returned when client-side regex filtering
	// exceeds the configured deadline
	ErrRegexTimeout = errors.New("regex evaluation timed out")
)

// Config contains tuning knobs for the search engine
type Config struct {
	FuzzyEnabled       bool
	RegexEnabled       bool
	FuzzyThreshold     float64       // minimum fuzzy score, inclusive (default 0.3)
	DefaultLimit       int           // result limit when the caller gives none (default 50)
	MaxResults         int           // hard result ceiling (default 1000)
	RegexTimeout       time.Duration // client-side regex filtering deadline (default 100ms)
	SlowQueryThreshold time.Duration // queries slower than this are recorded (default 500ms)
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() Config {
	return Config{
		FuzzyEnabled:       true,
		RegexEnabled:       true,
		FuzzyThreshold:     0.3,
		DefaultLimit:       50,
		MaxResults:         1000,
		RegexTimeout:       100 * time.Millisecond,
		SlowQueryThreshold: 500 * time.Millisecond,
	}
}

// Options narrows a single search call
type Options struct {
	Limit         int  // 0 means the engine default
	CaseSensitive bool // match against original rather than normalized name
}

// Engine executes classified queries against the search index
type Engine struct {
	db    *storage.DB
	cfg   Config
	stats *stats
}

// New creates an Engine over the given database. A nil config uses
// DefaultConfig; zero-valued numeric fields are filled with defaults.
func New(db *storage.DB, cfg *Config) *Engine {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
		if c.FuzzyThreshold <= 0 {
			c.FuzzyThreshold = 0.3
		}
		if c.DefaultLimit <= 0 {
			c.DefaultLimit = 50
		}
		if c.MaxResults <= 0 {
			c.MaxResults = 1000
		}
		if c.RegexTimeout <= 0 {
			c.RegexTimeout = 100 * time.Millisecond
		}
		if c.SlowQueryThreshold <= 0 {
			c.SlowQueryThreshold = 500 * time.Millisecond
		}
	}
	return &Engine{db: db, cfg: c, stats: newStats()}
}

// Search parses and executes a raw query string. Multi-token input is
// treated as a composite AND of its tokens.
func (e *Engine) Search(ctx context.Context, rawQuery string, opts Options) ([]types.SearchResult, error) {
	parsed, err := query.ParseComposite(rawQuery)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := e.execute(ctx, parsed, opts)
	elapsed := time.Since(start)
	e.stats.record(parsed.Type, rawQuery, elapsed, e.cfg.SlowQueryThreshold)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchParsed executes an already-classified query
func (e *Engine) SearchParsed(ctx context.Context, parsed query.ParsedQuery, opts Options) ([]types.SearchResult, error) {
	return e.execute(ctx, parsed, opts)
}

func (e *Engine) limit(opts Options) int {
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}
	return limit
}

// execute dispatches on the pattern type. The switch is exhaustive over
// every PatternType the parser can produce.
func (e *Engine) execute(ctx context.Context, p query.ParsedQuery, opts Options) ([]types.SearchResult, error) {
	limit := e.limit(opts)

	switch p.Type {
	case query.PatternWildcard:
		// Interior-star queries degrade to match-everything here as well;
		// the parser preserves the raw pattern but no strategy consumes it
		return e.searchAll(ctx, limit)
	case query.PatternExtension:
		return e.searchExtension(ctx, p.Term, limit)
	case query.PatternEntityType:
		return e.searchType(ctx, p.Term, limit)
	case query.PatternPath:
		return e.searchPath(ctx, p, limit)
	case query.PatternExact:
		return e.searchExact(ctx, p.Term, opts.CaseSensitive, limit)
	case query.PatternFuzzy:
		return e.searchFuzzy(ctx, p.Term, limit)
	case query.PatternRegex:
		return e.searchRegex(ctx, p.Term, p.Flags, limit)
	case query.PatternPrefix:
		return e.searchLike(ctx, "search.prefix", likeEscape(p.Term)+"%", opts.CaseSensitive, limit)
	case query.PatternSuffix:
		return e.searchLike(ctx, "search.suffix", "%"+likeEscape(p.Term), opts.CaseSensitive, limit)
	case query.PatternContains:
		return e.searchLike(ctx, "search.contains", "%"+likeEscape(p.Term)+"%", opts.CaseSensitive, limit)
	case query.PatternFreeText:
		return e.searchFreeText(ctx, p.Term, limit)
	case query.PatternComposite:
		return e.searchComposite(ctx, p.Filters, limit)
	default:
		return nil, fmt.Errorf("unhandled pattern type %q", p.Type)
	}
}

const resultColumns = "entity_id, original_name, entity_type, file_path"

// Ordering shared by the direct-lookup strategies: shorter, more specific
// names first
const nameOrder = " ORDER BY length(original_name), original_name LIMIT ?"

// likeEscape escapes LIKE metacharacters; every LIKE in this package runs
// with ESCAPE '\'
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// queryResults runs a cached statement yielding resultColumns rows
func (e *Engine) queryResults(ctx context.Context, name, sql string, args ...any) ([]types.SearchResult, error) {
	stmt, err := e.db.Cache().Get(ctx, name, sql)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("search query %s failed: %w", name, err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.EntityID, &r.Name, &r.EntityType, &r.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (e *Engine) searchAll(ctx context.Context, limit int) ([]types.SearchResult, error) {
	return e.queryResults(ctx, "search.all",
		"SELECT "+resultColumns+" FROM search_index"+nameOrder, limit)
}

func (e *Engine) searchExtension(ctx context.Context, ext string, limit int) ([]types.SearchResult, error) {
	return e.queryResults(ctx, "search.extension",
		"SELECT "+resultColumns+" FROM search_index WHERE file_extension = ?"+nameOrder,
		strings.ToLower(ext), limit)
}

func (e *Engine) searchType(ctx context.Context, entityType string, limit int) ([]types.SearchResult, error) {
	return e.queryResults(ctx, "search.type",
		"SELECT "+resultColumns+" FROM search_index WHERE entity_type = ?"+nameOrder,
		entityType, limit)
}

func (e *Engine) searchExact(ctx context.Context, term string, caseSensitive bool, limit int) ([]types.SearchResult, error) {
	if caseSensitive {
		return e.queryResults(ctx, "search.exact_cs",
			"SELECT "+resultColumns+" FROM search_index WHERE original_name = ?"+nameOrder,
			term, limit)
	}
	return e.queryResults(ctx, "search.exact",
		"SELECT "+resultColumns+" FROM search_index WHERE normalized_name = ?"+nameOrder,
		strings.ToLower(term), limit)
}

// searchLike serves prefix, suffix and contains queries. pattern arrives
// pre-escaped with the stars already translated to %.
func (e *Engine) searchLike(ctx context.Context, name, pattern string, caseSensitive bool, limit int) ([]types.SearchResult, error) {
	if caseSensitive {
		return e.queryResults(ctx, name+"_cs",
			"SELECT "+resultColumns+" FROM search_index WHERE original_name LIKE ? ESCAPE '\\'"+nameOrder,
			pattern, limit)
	}
	return e.queryResults(ctx, name,
		"SELECT "+resultColumns+" FROM search_index WHERE normalized_name LIKE ? ESCAPE '\\'"+nameOrder,
		strings.ToLower(pattern), limit)
}

func (e *Engine) searchPath(ctx context.Context, p query.ParsedQuery, limit int) ([]types.SearchResult, error) {
	const order = " ORDER BY file_path LIMIT ?"
	switch p.PathMode {
	case query.PathPrefix:
		return e.queryResults(ctx, "search.path_prefix",
			"SELECT "+resultColumns+" FROM search_index WHERE file_path LIKE ? ESCAPE '\\'"+order,
			likeEscape(p.Term)+"%", limit)
	case query.PathSuffix:
		return e.queryResults(ctx, "search.path_suffix",
			"SELECT "+resultColumns+" FROM search_index WHERE file_path LIKE ? ESCAPE '\\'"+order,
			"%"+likeEscape(p.Term), limit)
	case query.PathContains:
		return e.queryResults(ctx, "search.path_contains",
			"SELECT "+resultColumns+" FROM search_index WHERE file_path LIKE ? ESCAPE '\\'"+order,
			"%"+likeEscape(p.Term)+"%", limit)
	default:
		return e.queryResults(ctx, "search.path_exact",
			"SELECT "+resultColumns+" FROM search_index WHERE file_path = ?"+order,
			p.Term, limit)
	}
}

func (e *Engine) searchFreeText(ctx context.Context, term string, limit int) ([]types.SearchResult, error) {
	lowered := strings.ToLower(term)
	prefix := likeEscape(lowered) + "%"
	contains := "%" + likeEscape(lowered) + "%"

	stmt, err := e.db.Cache().Get(ctx, "search.freetext", `
SELECT `+resultColumns+`,
    CASE
        WHEN normalized_name LIKE ?1 ESCAPE '\' THEN 1
        WHEN normalized_name LIKE ?2 ESCAPE '\' THEN 2
        ELSE 3
    END AS relevance
FROM search_index
WHERE normalized_name LIKE ?2 ESCAPE '\' OR full_text LIKE ?2 ESCAPE '\'
ORDER BY relevance, length(original_name), original_name
LIMIT ?3`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, prefix, contains, limit)
	if err != nil {
		return nil, fmt.Errorf("free-text search failed: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.EntityID, &r.Name, &r.EntityType, &r.FilePath, &r.Relevance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchFuzzy scores candidates by trigram overlap: three characters per
// distinct matched query trigram, divided by the length of the stored
// trigram string. Rows at or above the threshold are included.
func (e *Engine) searchFuzzy(ctx context.Context, term string, limit int) ([]types.SearchResult, error) {
	if !e.cfg.FuzzyEnabled {
		return nil, ErrFuzzyDisabled
	}

	queryGrams := distinctTrigrams(strings.ToLower(term))
	if len(queryGrams) == 0 {
		return nil, nil
	}

	stmt, err := e.db.Cache().Get(ctx, "search.fuzzy_candidates",
		"SELECT "+resultColumns+", trigrams FROM search_index WHERE trigrams != ''")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search failed: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		var trigrams string
		if err := rows.Scan(&r.EntityID, &r.Name, &r.EntityType, &r.FilePath, &trigrams); err != nil {
			return nil, fmt.Errorf("failed to scan fuzzy candidate: %w", err)
		}
		r.Score = fuzzyScore(queryGrams, trigrams)
		if r.Score >= e.cfg.FuzzyThreshold {
			results = append(results, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// distinctTrigrams returns the set of 3-rune substrings of s
func distinctTrigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	grams := make(map[string]struct{}, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}

// fuzzyScore is shared trigram character overlap over the stored trigram
// string length
func fuzzyScore(queryGrams map[string]struct{}, stored string) float64 {
	if stored == "" {
		return 0
	}
	storedSet := make(map[string]struct{})
	for _, g := range strings.Fields(stored) {
		storedSet[g] = struct{}{}
	}
	matched := 0
	for g := range queryGrams {
		if _, ok := storedSet[g]; ok {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched*3) / float64(len(stored))
}

// searchRegex loads up to limit name-ordered candidates and filters them
// client-side with a compiled, deadline-checked regex. Only the i flag
// changes matching; m and s are accepted and ignored.
func (e *Engine) searchRegex(ctx context.Context, pattern, flags string, limit int) ([]types.SearchResult, error) {
	if !e.cfg.RegexEnabled {
		return nil, ErrRegexDisabled
	}

	expanded := pattern
	if strings.ContainsRune(flags, 'i') {
		expanded = "(?i)" + pattern
	}
	re, err := regexp.Compile(expanded)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	candidates, err := e.queryResults(ctx, "search.regex_candidates",
		"SELECT "+resultColumns+" FROM search_index ORDER BY original_name LIMIT ?", limit)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(e.cfg.RegexTimeout)
	var results []types.SearchResult
	for _, c := range candidates {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("regex %q: %w", pattern, ErrRegexTimeout)
		}
		if re.MatchString(c.Name) {
			results = append(results, c)
		}
	}
	return results, nil
}

// searchComposite runs the first filter up to MaxResults, then intersects
// by entity_id with each subsequent filter's result set
func (e *Engine) searchComposite(ctx context.Context, filters []query.ParsedQuery, limit int) ([]types.SearchResult, error) {
	if len(filters) == 0 {
		return nil, query.ErrEmptyQuery
	}

	results, err := e.execute(ctx, filters[0], Options{Limit: e.cfg.MaxResults})
	if err != nil {
		return nil, err
	}

	for _, filter := range filters[1:] {
		if len(results) == 0 {
			break
		}
		next, err := e.execute(ctx, filter, Options{Limit: e.cfg.MaxResults})
		if err != nil {
			return nil, err
		}
		keep := make(map[string]struct{}, len(next))
		for _, r := range next {
			keep[r.EntityID] = struct{}{}
		}
		filtered := results[:0]
		for _, r := range results {
			if _, ok := keep[r.EntityID]; ok {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
