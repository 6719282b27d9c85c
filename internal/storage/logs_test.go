package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devgraph/devgraph-mcp/pkg/types"
)

func TestAppendLog(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	entry := &types.LogEntry{
		Level:   types.LevelInfo,
		Service: "indexer",
		Message: "Rebuild Complete",
		Metadata: map[string]any{
			"rows":   float64(42),
			"source": "Scheduler",
		},
	}
	require.NoError(t, db.AppendLog(ctx, entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	// Indexed content is lowercased level + service + message + metadata values
	assert.Contains(t, entry.IndexedContent, "info")
	assert.Contains(t, entry.IndexedContent, "rebuild complete")
	assert.Contains(t, entry.IndexedContent, "scheduler")
	assert.Contains(t, entry.IndexedContent, "42")
}

func TestAppendLogValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := db.AppendLog(ctx, &types.LogEntry{Level: "loud", Service: "s", Message: "m"})
	assert.ErrorIs(t, err, types.ErrInvalidLogLevel)

	err = db.AppendLog(ctx, &types.LogEntry{Level: types.LevelInfo, Message: "m"})
	assert.ErrorIs(t, err, types.ErrEmptyLogService)

	err = db.AppendLog(ctx, &types.LogEntry{Level: types.LevelInfo, Service: "s"})
	assert.ErrorIs(t, err, types.ErrEmptyLogMessage)
}

func TestAppendLogBatch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	entries := []*types.LogEntry{
		{Level: types.LevelInfo, Service: "api", Message: "one"},
		{Level: types.LevelWarn, Service: "api", Message: "two"},
		{Level: types.LevelError, Service: "worker", Message: "three"},
	}
	require.NoError(t, db.AppendLogBatch(ctx, entries))

	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
	}

	stats, err := db.LogStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
}

func TestAppendLogBatchIsAtomicAndRetryable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	entries := []*types.LogEntry{
		{Level: types.LevelInfo, Service: "api", Message: "good"},
		{Level: "bogus", Service: "api", Message: "bad"},
	}
	err := db.AppendLogBatch(ctx, entries)
	require.Error(t, err)

	// Nothing was written and the good entry was left untouched
	stats, statsErr := db.LogStats(ctx)
	require.NoError(t, statsErr)
	assert.Equal(t, int64(0), stats.Total)
	assert.Empty(t, entries[0].ID)

	// Fixing the batch makes the same slice retryable
	entries[1].Level = types.LevelWarn
	require.NoError(t, db.AppendLogBatch(ctx, entries))
	stats, statsErr = db.LogStats(ctx)
	require.NoError(t, statsErr)
	assert.Equal(t, int64(2), stats.Total)
}

func TestQueryLogs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	entries := []*types.LogEntry{
		{Timestamp: base, Level: types.LevelInfo, Service: "api", Message: "request served"},
		{Timestamp: base.Add(time.Minute), Level: types.LevelError, Service: "api", Message: "request failed", Metadata: map[string]any{"code": "ECONNRESET"}},
		{Timestamp: base.Add(2 * time.Minute), Level: types.LevelInfo, Service: "worker", Message: "job done"},
	}
	require.NoError(t, db.AppendLogBatch(ctx, entries))

	t.Run("newest first", func(t *testing.T) {
		got, err := db.QueryLogs(ctx, LogFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "job done", got[0].Message)
		assert.Equal(t, "request served", got[2].Message)
	})

	t.Run("by level", func(t *testing.T) {
		got, err := db.QueryLogs(ctx, LogFilter{Level: types.LevelError})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "request failed", got[0].Message)
	})

	t.Run("by service", func(t *testing.T) {
		got, err := db.QueryLogs(ctx, LogFilter{Service: "api"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by time range", func(t *testing.T) {
		got, err := db.QueryLogs(ctx, LogFilter{Since: base.Add(30 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = db.QueryLogs(ctx, LogFilter{Until: base.Add(30 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("contains searches metadata values", func(t *testing.T) {
		got, err := db.QueryLogs(ctx, LogFilter{Contains: "econnreset"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, types.LevelError, got[0].Level)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := db.QueryLogs(ctx, LogFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestLogStats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.AppendLogBatch(ctx, []*types.LogEntry{
		{Level: types.LevelInfo, Service: "api", Message: "one"},
		{Level: types.LevelInfo, Service: "worker", Message: "two"},
		{Level: types.LevelError, Service: "api", Message: "three"},
	}))

	stats, err := db.LogStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Services)
	assert.Equal(t, int64(2), stats.ByLevel["info"])
	assert.Equal(t, int64(1), stats.ByLevel["error"])
	assert.False(t, stats.Newest.Before(stats.Oldest))
}

func TestDeleteLogsBefore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.AppendLogBatch(ctx, []*types.LogEntry{
		{Timestamp: base, Level: types.LevelInfo, Service: "api", Message: "old"},
		{Timestamp: base.Add(time.Hour), Level: types.LevelInfo, Service: "api", Message: "new"},
	}))

	deleted, err := db.DeleteLogsBefore(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := db.QueryLogs(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Message)
}

func TestTrimLogs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	var entries []*types.LogEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, &types.LogEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Level:     types.LevelDebug,
			Service:   "api",
			Message:   "entry",
		})
	}
	require.NoError(t, db.AppendLogBatch(ctx, entries))

	deleted, err := db.TrimLogs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	stats, err := db.LogStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
}
