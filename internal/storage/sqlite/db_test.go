// ABOUTME: Tests for database lifecycle, schema versioning and stats
// ABOUTME: Verifies creation, version stamping, refusal of newer schemas and index counts
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/models"
)

func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Equal(t, ":memory:", db.Path())

	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestSchemaInitialization(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	for _, table := range []string{"chunks", "chunk_wells", "chunks_fts", "turns"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	for _, idx := range []string{"idx_chunks_mode", "idx_chunks_document", "idx_chunk_wells_well", "idx_turns_session"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		assert.NoError(t, err, "index %s", idx)
	}

	var fkEnabled int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fkEnabled))
	assert.Equal(t, 1, fkEnabled)
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "wellrag.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "wellrag.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	_, err = NewChunkStore(db).Add(ctx, sampleChunks()[0])
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	n, err := NewChunkStore(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "wellrag.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(dbPath)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	empty, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, empty)

	_, err = NewChunkStore(db).Add(ctx, sampleChunks()[:3]...)
	require.NoError(t, err)

	turn, err := models.NewConversationTurn("What is the TD of HAG-GT-01?", "2694.5 m (HAG-GT-01_EOWR.pdf, p.8)", models.QueryModeFactual, "HAG-GT-01")
	require.NoError(t, err)
	_, err = NewTurnLog(db).Append(ctx, "s-1", turn, true, 0.9)
	require.NoError(t, err)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 2, Chunks: 3, Embedded: 3, Wells: 2, Sessions: 1, Turns: 1}, stats)
}

func TestCloseMultipleTimes(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	// a second close may report an error but must not panic
	_ = db.Close()
}
