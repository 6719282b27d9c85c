package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PreparedStatementInfo is a point-in-time snapshot of one cached
// statement's accounting, exposed through Stats for observability.
type PreparedStatementInfo struct {
	Name       string    `json:"name"`
	SQL        string    `json:"sql"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsed   time.Time `json:"last_used"`
	UsageCount int64     `json:"usage_count"`
}

type cachedStmt struct {
	stmt       *sql.Stmt
	sql        string
	createdAt  time.Time
	lastUsed   time.Time
	usageCount int64
}

// StmtCache holds prepared statements keyed by name, evicting the least
// recently used entry once capacity is reached. Eviction and Clear close
// the underlying statement handles.
type StmtCache struct {
	mu      sync.Mutex
	db      *sql.DB
	entries *lru.Cache[string, *cachedStmt]
}

// NewStmtCache creates a statement cache with the given capacity
func NewStmtCache(db *sql.DB, capacity int) (*StmtCache, error) {
	entries, err := lru.NewWithEvict(capacity, func(_ string, cs *cachedStmt) {
		_ = cs.stmt.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create statement cache: %w", err)
	}
	return &StmtCache{db: db, entries: entries}, nil
}

// Get returns the cached statement for name, preparing it on first use.
// Every hit refreshes the entry's recency and usage count.
func (c *StmtCache) Get(ctx context.Context, name, query string) (*sql.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cs, ok := c.entries.Get(name); ok {
		cs.lastUsed = time.Now()
		cs.usageCount++
		return cs.stmt, nil
	}

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement %s: %w", name, err)
	}

	now := time.Now()
	c.entries.Add(name, &cachedStmt{
		stmt:       stmt,
		sql:        query,
		createdAt:  now,
		lastUsed:   now,
		usageCount: 1,
	})
	return stmt, nil
}

// Remove closes and drops a single cached statement. Returns whether the
// statement was present.
func (c *StmtCache) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Remove(name)
}

// Clear closes and drops every cached statement
func (c *StmtCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len returns the number of cached statements
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Info returns a snapshot of every cached statement's accounting,
// sorted by name for stable output
func (c *StmtCache) Info() []PreparedStatementInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]PreparedStatementInfo, 0, c.entries.Len())
	for _, name := range c.entries.Keys() {
		cs, ok := c.entries.Peek(name)
		if !ok {
			continue
		}
		infos = append(infos, PreparedStatementInfo{
			Name:       name,
			SQL:        cs.sql,
			CreatedAt:  cs.createdAt,
			LastUsed:   cs.lastUsed,
			UsageCount: cs.usageCount,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
