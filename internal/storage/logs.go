package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devgraph/devgraph-mcp/pkg/types"
)

// LogFilter narrows a log query. Zero-valued fields match everything.
type LogFilter struct {
	Level    types.Level
	Service  string
	Since    time.Time
	Until    time.Time
	Contains string
	Limit    int
}

// DefaultLogQueryLimit caps unbounded log queries
const DefaultLogQueryLimit = 100

// LogStatistics summarizes the log store
type LogStatistics struct {
	Total    int64            `json:"total"`
	ByLevel  map[string]int64 `json:"by_level"`
	Services int64            `json:"services"`
	Oldest   time.Time        `json:"oldest,omitempty"`
	Newest   time.Time        `json:"newest,omitempty"`
}

// deriveIndexedContent builds the searchable text for a log entry: level,
// service, message and every scalar metadata value, lowercased
func deriveIndexedContent(entry *types.LogEntry) string {
	parts := []string{string(entry.Level), entry.Service, entry.Message}
	parts = append(parts, flattenValues(entry.Metadata)...)
	return strings.ToLower(strings.Join(parts, " "))
}

// flattenValues collects scalar values from a metadata document in sorted
// key order, recursing into nested maps and arrays
func flattenValues(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		out = append(out, flattenValue(m[k])...)
	}
	return out
}

func flattenValue(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return flattenValues(val)
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, flattenValue(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

// prepared holds an entry's generated fields before they are committed
type preparedLog struct {
	id        string
	timestamp time.Time
	metadata  any
	indexed   string
}

func prepareLog(entry *types.LogEntry) (preparedLog, error) {
	if err := entry.Validate(); err != nil {
		return preparedLog{}, err
	}
	p := preparedLog{id: entry.ID, timestamp: entry.Timestamp}
	if p.id == "" {
		p.id = uuid.NewString()
	}
	if p.timestamp.IsZero() {
		p.timestamp = time.Now()
	}
	p.timestamp = p.timestamp.UTC()

	var err error
	if p.metadata, err = marshalJSON(entry.Metadata); err != nil {
		return preparedLog{}, err
	}
	p.indexed = deriveIndexedContent(entry)
	return p, nil
}

// AppendLog stores a single log entry. An empty ID gets a generated UUID
// and a zero timestamp defaults to now; both are written back into entry
// along with the derived indexed content.
func (d *DB) AppendLog(ctx context.Context, entry *types.LogEntry) error {
	if d.db == nil {
		return ErrNotConnected
	}
	p, err := prepareLog(entry)
	if err != nil {
		return err
	}
	if err := d.insertLog(ctx, nil, entry, p); err != nil {
		return err
	}
	commitLog(entry, p)
	return nil
}

// AppendLogBatch stores a batch of entries in a single transaction. On
// failure nothing is written and the entries are left untouched, so the
// caller can retry the same slice.
func (d *DB) AppendLogBatch(ctx context.Context, entries []*types.LogEntry) error {
	if d.db == nil {
		return ErrNotConnected
	}
	if len(entries) == 0 {
		return nil
	}

	prepped := make([]preparedLog, len(entries))
	for i, entry := range entries {
		p, err := prepareLog(entry)
		if err != nil {
			return fmt.Errorf("log entry %d: %w", i, err)
		}
		prepped[i] = p
	}

	err := d.WithTransaction(ctx, func(tx *sql.Tx) error {
		for i, entry := range entries {
			if err := d.insertLog(ctx, tx, entry, prepped[i]); err != nil {
				return fmt.Errorf("log entry %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, entry := range entries {
		commitLog(entry, prepped[i])
	}
	return nil
}

func (d *DB) insertLog(ctx context.Context, tx *sql.Tx, entry *types.LogEntry, p preparedLog) error {
	stmt, err := d.stmt(ctx, tx, StmtLogInsert)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx,
		p.id, p.timestamp, entry.Level, entry.Service, entry.Message,
		p.metadata, p.indexed, entry.ProcessID, entry.SessionID, entry.TraceID); err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

func commitLog(entry *types.LogEntry, p preparedLog) {
	entry.ID = p.id
	entry.Timestamp = p.timestamp
	entry.IndexedContent = p.indexed
}

// QueryLogs returns entries matching the filter, newest first
func (d *DB) QueryLogs(ctx context.Context, filter LogFilter) ([]*types.LogEntry, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLogQueryLimit
	}

	var since, until any
	if !filter.Since.IsZero() {
		since = filter.Since.UTC()
	}
	if !filter.Until.IsZero() {
		until = filter.Until.UTC()
	}
	contains := strings.ToLower(filter.Contains)

	stmt, err := d.stmt(ctx, nil, StmtLogQuery)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, string(filter.Level), filter.Service, since, until, contains, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []*types.LogEntry
	for rows.Next() {
		var e types.LogEntry
		var metadata sql.NullString
		var processID, sessionID, traceID sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Service, &e.Message,
			&metadata, &e.IndexedContent, &processID, &sessionID, &traceID); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if e.Metadata, err = unmarshalJSON(metadata); err != nil {
			return nil, err
		}
		e.ProcessID = processID.String
		e.SessionID = sessionID.String
		e.TraceID = traceID.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// LogStats summarizes the log store: total count, per-level counts,
// distinct services and the timestamp range
func (d *DB) LogStats(ctx context.Context) (*LogStatistics, error) {
	if d.db == nil {
		return nil, ErrNotConnected
	}

	stats := &LogStatistics{ByLevel: make(map[string]int64)}

	stmt, err := d.stmt(ctx, nil, StmtLogStats)
	if err != nil {
		return nil, err
	}
	var oldest, newest sql.NullTime
	if err := stmt.QueryRowContext(ctx).Scan(&stats.Total, &stats.Services, &oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to read log stats: %w", err)
	}
	stats.Oldest = oldest.Time
	stats.Newest = newest.Time

	byLevel, err := d.stmt(ctx, nil, StmtLogCountByLevel)
	if err != nil {
		return nil, err
	}
	rows, err := byLevel.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read log level counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan log level count: %w", err)
		}
		stats.ByLevel[level] = count
	}
	return stats, rows.Err()
}

// DeleteLogsBefore removes entries older than cutoff and returns how many
// were deleted
func (d *DB) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if d.db == nil {
		return 0, ErrNotConnected
	}
	stmt, err := d.stmt(ctx, nil, StmtLogDeleteBefore)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old logs: %w", err)
	}
	return res.RowsAffected()
}

// TrimLogs keeps only the newest keep entries and returns how many were
// deleted. keep <= 0 clears the store.
func (d *DB) TrimLogs(ctx context.Context, keep int) (int64, error) {
	if d.db == nil {
		return 0, ErrNotConnected
	}
	if keep < 0 {
		keep = 0
	}
	res, err := d.db.ExecContext(ctx, `
DELETE FROM log_entries WHERE id NOT IN (
    SELECT id FROM log_entries ORDER BY timestamp DESC, id LIMIT ?
)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim logs: %w", err)
	}
	return res.RowsAffected()
}
