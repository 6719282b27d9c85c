package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db := New(":memory:", Config{})
	require.NoError(t, db.Connect(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConnectLifecycle(t *testing.T) {
	ctx := context.Background()
	db := New(":memory:", Config{})
	assert.False(t, db.Connected())

	require.NoError(t, db.Connect(ctx))
	assert.True(t, db.Connected())

	// Connect is a no-op when already connected
	require.NoError(t, db.Connect(ctx))

	require.NoError(t, db.Close())
	assert.False(t, db.Connected())

	// Close is idempotent
	require.NoError(t, db.Close())
}

func TestConnectCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "graph.db")
	db := New(path, Config{})
	require.NoError(t, db.Connect(ctx))
	defer db.Close()

	assert.Equal(t, path, db.Path())
}

func TestConnectAppliesPragmas(t *testing.T) {
	ctx := context.Background()
	db := New(filepath.Join(t.TempDir(), "graph.db"), Config{})
	require.NoError(t, db.Connect(ctx))
	defer db.Close()

	h := db.HealthCheck(ctx)
	assert.Empty(t, h.Error)
	assert.True(t, h.Connected)
	assert.Equal(t, "wal", h.JournalMode)
	assert.True(t, h.ForeignKeys)
}

func TestOperationsRequireConnection(t *testing.T) {
	ctx := context.Background()
	db := New(":memory:", Config{})

	_, err := db.QueryContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = db.ExecContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrNotConnected)

	h := db.HealthCheck(ctx)
	assert.Equal(t, ErrNotConnected.Error(), h.Error)

	s := db.GetStats(ctx)
	assert.Equal(t, ErrNotConnected.Error(), s.Error)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	// Connect already applied them once; a second pass must be a no-op
	require.NoError(t, ApplyMigrations(ctx, db.db))

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)

	var version string
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY applied_at DESC LIMIT 1").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestWithTransactionCommit(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO entities (id, type, name) VALUES ('e1', 'test', 'One')")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransactionRollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	wantErr := assert.AnError
	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx,
			"INSERT INTO entities (id, type, name) VALUES ('e1', 'test', 'One')")
		require.NoError(t, execErr)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransactionRollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx,
			"INSERT INTO entities (id, type, name) VALUES ('e1', 'test', 'One')")
		require.NoError(t, execErr)
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransactionTimeout(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	done := make(chan struct{})
	err := db.WithTransactionTimeout(ctx, 50*time.Millisecond, func(tx *sql.Tx) error {
		defer close(done)
		time.Sleep(200 * time.Millisecond)
		_, err := tx.ExecContext(ctx,
			"INSERT INTO entities (id, type, name) VALUES ('late', 'test', 'Late')")
		return err
	})
	// The caller sees the timeout even though the body later completes
	assert.ErrorIs(t, err, ErrTxTimeout)

	<-done
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	_, err := db.ExecContext(ctx,
		"INSERT INTO entities (id, type, name) VALUES ('e1', 'test', 'One')")
	require.NoError(t, err)

	s := db.GetStats(ctx)
	assert.Empty(t, s.Error)
	assert.Equal(t, int64(1), s.Entities)
	assert.Equal(t, int64(1), s.IndexRows) // seeded by trigger
	assert.Greater(t, s.SizeBytes, int64(0))
	assert.NotNil(t, s.Statements)
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	db := New(filepath.Join(t.TempDir(), "graph.db"), Config{})
	require.NoError(t, db.Connect(ctx))
	defer db.Close()

	_, err := db.ExecContext(ctx,
		"INSERT INTO entities (id, type, name) VALUES ('e1', 'test', 'One')")
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backup", "graph.db")
	require.NoError(t, db.Backup(ctx, dest))

	restored := New(dest, Config{})
	require.NoError(t, restored.Connect(ctx))
	defer restored.Close()

	var count int
	require.NoError(t, restored.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOptimizeAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	db := New(filepath.Join(t.TempDir(), "graph.db"), Config{})
	require.NoError(t, db.Connect(ctx))
	defer db.Close()

	require.NoError(t, db.Optimize(ctx))
	require.NoError(t, db.Checkpoint(ctx))
}
