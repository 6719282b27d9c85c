package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultStmtCacheSize = 64
	DefaultTxTimeout     = 30 * time.Second
)

// Config contains tuning knobs for the database lifecycle
type Config struct {
	StmtCacheSize int           // prepared statement cache capacity (default 64)
	TxTimeout     time.Duration // default transaction timeout (default 30s)
}

// DB owns the single physical SQLite connection and sequences its
// lifecycle: pragma configuration, schema migration, and statement cache
// initialization, in that order.
type DB struct {
	path  string
	cfg   Config
	db    *sql.DB
	cache *StmtCache
	stmts *Statements
}

// connectPragmas are applied in this exact order on every connect, before
// any schema statement runs. Pragmas and explicit transactions must not be
// interleaved, so migrations only start once the full list has executed.
var connectPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA mmap_size = 268435456",
}

// New creates an unconnected DB for the given database file path.
// Call Connect before use.
func New(path string, cfg Config) *DB {
	if cfg.StmtCacheSize <= 0 {
		cfg.StmtCacheSize = DefaultStmtCacheSize
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultTxTimeout
	}
	return &DB{path: path, cfg: cfg}
}

// Connect opens the database and prepares it for use: (1) ensure the
// backing file's directory exists, (2) open the physical connection,
// (3) configure pragmas, (4) run pending migrations, (5) initialize the
// statement cache. No-op when already connected.
func (d *DB) Connect(ctx context.Context) error {
	if d.db != nil {
		return nil
	}

	if !isMemoryPath(d.path) {
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, d.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer semantics: SQLite benefits from one open connection,
	// and the statement cache assumes its handles stay valid.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range connectPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	cache, err := NewStmtCache(db, d.cfg.StmtCacheSize)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create statement cache: %w", err)
	}

	d.db = db
	d.cache = cache
	d.stmts = NewStatements(cache)
	return nil
}

// Close clears the statement cache and closes the connection.
// Idempotent if already disconnected.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	d.cache.Clear()
	err := d.db.Close()
	d.db = nil
	d.cache = nil
	d.stmts = nil
	return err
}

// Connected reports whether Connect has completed and Close has not run
func (d *DB) Connected() bool {
	return d.db != nil
}

// Path returns the backing database file path
func (d *DB) Path() string {
	return d.path
}

// Stmts returns the named statement catalog. Nil before Connect.
func (d *DB) Stmts() *Statements {
	return d.stmts
}

// Cache returns the prepared statement cache. Nil before Connect.
func (d *DB) Cache() *StmtCache {
	return d.cache
}

// QueryContext runs an ad-hoc read query against the live connection
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs an ad-hoc single-row read query
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// ExecContext runs an ad-hoc statement against the live connection
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	return d.db.ExecContext(ctx, query, args...)
}

// WithTransaction runs fn inside a native transaction with the configured
// default timeout. See WithTransactionTimeout.
func (d *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return d.WithTransactionTimeout(ctx, d.cfg.TxTimeout, fn)
}

// WithTransactionTimeout runs fn inside a native transaction, guaranteeing
// commit-or-rollback on every exit path including panics, and races
// completion against the timeout. The timeout only affects the
// caller-visible result: the transaction body is not aborted mid-flight,
// so a "timed out" transaction may still commit after this returns
// ErrTxTimeout.
func (d *DB) WithTransactionTimeout(ctx context.Context, timeout time.Duration, fn func(*sql.Tx) error) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if timeout <= 0 {
		timeout = d.cfg.TxTimeout
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				done <- fmt.Errorf("transaction panicked: %v", r)
			}
		}()
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			done <- err
			return
		}
		if err := tx.Commit(); err != nil {
			done <- fmt.Errorf("failed to commit transaction: %w", err)
			return
		}
		done <- nil
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("transaction exceeded %s: %w", timeout, ErrTxTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports the outcome of a health check. A failure populates Error
// instead of surfacing a Go error, since callers poll this.
type Health struct {
	Connected   bool
	JournalMode string
	ForeignKeys bool
	Entities    int64
	Error       string
}

// HealthCheck probes the connection and core invariants. Never returns an
// error; failures are reported in the Error field.
func (d *DB) HealthCheck(ctx context.Context) Health {
	var h Health
	if d.db == nil {
		h.Error = ErrNotConnected.Error()
		return h
	}
	if err := d.db.PingContext(ctx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Connected = true

	if err := d.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&h.JournalMode); err != nil {
		h.Error = err.Error()
		return h
	}
	var fk int64
	if err := d.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		h.Error = err.Error()
		return h
	}
	h.ForeignKeys = fk == 1

	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&h.Entities); err != nil {
		h.Error = err.Error()
		return h
	}
	return h
}

// Stats reports database size and row counts plus statement cache state.
// Like Health, failures populate Error rather than surfacing a Go error.
type Stats struct {
	SizeBytes  int64
	PageCount  int64
	PageSize   int64
	Entities   int64
	Relations  int64
	IndexRows  int64
	LogEntries int64
	Statements []PreparedStatementInfo
	Error      string
}

// GetStats collects size and row-count statistics. Never returns an error.
func (d *DB) GetStats(ctx context.Context) Stats {
	var s Stats
	if d.db == nil {
		s.Error = ErrNotConnected.Error()
		return s
	}

	if err := d.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&s.PageCount); err != nil {
		s.Error = err.Error()
		return s
	}
	if err := d.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&s.PageSize); err != nil {
		s.Error = err.Error()
		return s
	}
	s.SizeBytes = s.PageCount * s.PageSize

	counts := []struct {
		table string
		dest  *int64
	}{
		{"entities", &s.Entities},
		{"relations", &s.Relations},
		{"search_index", &s.IndexRows},
		{"log_entries", &s.LogEntries},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			s.Error = err.Error()
			return s
		}
	}

	s.Statements = d.cache.Info()
	return s
}

// Backup writes a consistent snapshot of the database to destPath using
// VACUUM INTO. Blocks the caller for the duration.
func (d *DB) Backup(ctx context.Context, destPath string) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to backup database: %w", err)
	}
	return nil
}

// Optimize runs VACUUM then ANALYZE. Blocks the caller for the duration;
// schedule during low-traffic windows.
func (d *DB) Optimize(ctx context.Context) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze: %w", err)
	}
	return nil
}

// Checkpoint truncates the write-ahead log
func (d *DB) Checkpoint(ctx context.Context) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if _, err := d.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// isMemoryPath reports whether path names an in-memory database
func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
