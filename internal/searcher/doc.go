// Package searcher executes classified queries against the search index.
//
// Every query string maps to exactly one retrieval strategy via the
// query package's classifier. Direct lookups (prefix, suffix, contains,
// exact, extension, type, path, wildcard) run as indexed LIKE/equality
// statements through the statement cache; fuzzy and regex queries load
// candidates and score or filter them in Go. Composite queries intersect
// their filters' result sets by entity ID.
//
// The engine keeps running statistics (query counts, average latency,
// per-pattern popularity, a bounded slow-query log) for observability.
package searcher
