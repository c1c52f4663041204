// ABOUTME: Tests for HybridRetriever fusion, ordering, filtering and degradation
// ABOUTME: Uses the in-memory chunk store with a deterministic embedder
package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/storage"
)

var unitEmbedder = llm.EmbedderFunc(func(context.Context, string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
})

type failingKeywordStore struct {
	*storage.MemoryStore
}

func (failingKeywordStore) SearchKeyword(context.Context, []string, storage.Filter, int) ([]models.ScoredChunk, error) {
	return nil, errors.New("fts index corrupt")
}

func withEmbedding(c models.Chunk, v ...float64) models.Chunk {
	c.Embedding = v
	return c
}

func TestNewHybridRetrieverWeights(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := testConfig().Retrieval

	t.Run("default weights accepted", func(t *testing.T) {
		_, err := NewHybridRetriever(store, unitEmbedder, cfg, nil)
		require.NoError(t, err)
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		bad := cfg
		bad.SemanticWeight, bad.KeywordWeight = 0.6, 0.3
		_, err := NewHybridRetriever(store, unitEmbedder, bad, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrConfig))
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		bad := cfg
		bad.SemanticWeight, bad.KeywordWeight = 1.2, -0.2
		_, err := NewHybridRetriever(store, unitEmbedder, bad, nil)
		assert.True(t, errors.Is(err, models.ErrConfig))
	})
}

func TestRetrieveTieBreaksByPageThenID(t *testing.T) {
	text := "total depth 2694 m"
	store := storage.NewMemoryStore(
		withEmbedding(chunk("b", "doc", 5, models.ChunkModeFactual, text), 1, 0, 0),
		withEmbedding(chunk("z", "doc", 3, models.ChunkModeFactual, text), 1, 0, 0),
		withEmbedding(chunk("a", "doc", 3, models.ChunkModeFactual, text), 1, 0, 0),
	)
	r, err := NewHybridRetriever(store, unitEmbedder, testConfig().Retrieval, nil)
	require.NoError(t, err)

	set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
	require.NoError(t, err)
	require.Len(t, set.Results, 3)

	ids := []string{set.Results[0].ChunkID, set.Results[1].ChunkID, set.Results[2].ChunkID}
	assert.Equal(t, []string{"a", "z", "b"}, ids)
	for i, res := range set.Results {
		assert.Equal(t, i+1, res.Rank)
		assert.InDelta(t, 1.0, res.FusedScore, 1e-9)
	}
	assert.False(t, set.Degraded)
}

func TestRetrieveFusesWeightedScores(t *testing.T) {
	store := storage.NewMemoryStore(
		withEmbedding(chunk("sem", "doc", 1, models.ChunkModeFactual, "casing program overview"), 1, 0, 0),
		withEmbedding(chunk("kw", "doc", 2, models.ChunkModeFactual, "total depth total depth reached"), 0, 1, 0),
	)
	r, err := NewHybridRetriever(store, unitEmbedder, testConfig().Retrieval, nil)
	require.NoError(t, err)

	set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
	require.NoError(t, err)
	require.Len(t, set.Results, 2)

	// semantic weight 0.65 beats keyword weight 0.35
	assert.Equal(t, "sem", set.Results[0].ChunkID)
	assert.InDelta(t, 0.65, set.Results[0].FusedScore, 1e-9)
	assert.InDelta(t, 0.35, set.Results[1].FusedScore, 1e-9)
	for _, res := range set.Results {
		assert.GreaterOrEqual(t, res.SemanticScore, 0.0)
		assert.LessOrEqual(t, res.SemanticScore, 1.0)
		assert.GreaterOrEqual(t, res.KeywordScore, 0.0)
		assert.LessOrEqual(t, res.KeywordScore, 1.0)
	}
}

func TestRetrieveTopKAndModes(t *testing.T) {
	var chunks []models.Chunk
	for i := 0; i < 30; i++ {
		chunks = append(chunks, withEmbedding(chunk(string(rune('a'+i%26))+string(rune('0'+i/26)), "doc", i+1,
			models.ChunkModeSummary, "well summary depth"), 1, 0, 0))
	}
	chunks = append(chunks, withEmbedding(chunk("fact", "doc", 1, models.ChunkModeFactual, "well summary depth"), 1, 0, 0))
	store := storage.NewMemoryStore(chunks...)
	r, err := NewHybridRetriever(store, unitEmbedder, testConfig().Retrieval, nil)
	require.NoError(t, err)

	set, err := r.Retrieve(context.Background(), "summary depth", models.QueryModeSummary, "", 0)
	require.NoError(t, err)
	assert.Len(t, set.Results, 15)
	for _, res := range set.Results {
		assert.Equal(t, models.ChunkModeSummary, res.Chunk.Mode)
	}

	set, err = r.Retrieve(context.Background(), "summary depth", models.QueryModeSummary, "", 4)
	require.NoError(t, err)
	assert.Len(t, set.Results, 4)

	_, err = r.Retrieve(context.Background(), "x", models.QueryMode("poem"), "", 4)
	assert.Error(t, err)
}

func TestRetrieveWellFilter(t *testing.T) {
	store := storage.NewMemoryStore(
		withEmbedding(chunk("h1", "HAG.pdf", 8, models.ChunkModeFactual, "total depth 2694 m", "HAG-GT-01"), 1, 0, 0),
		withEmbedding(chunk("a1", "ADK.pdf", 5, models.ChunkModeFactual, "total depth 2101 m", "ADK-GT-01"), 1, 0, 0),
		withEmbedding(chunk("h2", "HAG.pdf", 9, models.ChunkModeFactual, "casing depth 1200 m", "HAG-GT-01"), 0.5, 0.5, 0),
	)
	r, err := NewHybridRetriever(store, unitEmbedder, testConfig().Retrieval, nil)
	require.NoError(t, err)

	set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "hag-gt-01", 10)
	require.NoError(t, err)
	require.NotEmpty(t, set.Results)
	for _, res := range set.Results {
		assert.True(t, res.Chunk.HasWell("HAG-GT-01"), "chunk %s leaked through the well filter", res.ChunkID)
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	r, err := NewHybridRetriever(storage.NewMemoryStore(), unitEmbedder, testConfig().Retrieval, nil)
	require.NoError(t, err)

	set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
	require.NoError(t, err)
	assert.Empty(t, set.Results)
	assert.False(t, set.Degraded)
}

func TestRetrieveDegradation(t *testing.T) {
	chunks := []models.Chunk{
		withEmbedding(chunk("c1", "doc", 1, models.ChunkModeFactual, "total depth 2694 m"), 1, 0, 0),
		withEmbedding(chunk("c2", "doc", 2, models.ChunkModeFactual, "casing shoe"), 0, 1, 0),
	}
	embedDown := llm.EmbedderFunc(func(context.Context, string) ([]float64, error) {
		return nil, models.Unavailable("embeddings", "embed", errors.New("connection refused"))
	})
	cfg := testConfig().Retrieval

	t.Run("semantic failure falls back to keywords", func(t *testing.T) {
		r, err := NewHybridRetriever(storage.NewMemoryStore(chunks...), embedDown, cfg, nil)
		require.NoError(t, err)

		set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
		require.NoError(t, err)
		assert.True(t, set.Degraded)
		require.NotEmpty(t, set.Reasons)
		assert.Contains(t, set.Reasons[0], "semantic search unavailable")
		require.Len(t, set.Results, 1)
		assert.Equal(t, "c1", set.Results[0].ChunkID)
		assert.InDelta(t, 1.0, set.Results[0].FusedScore, 1e-9)
	})

	t.Run("nil embedder is degraded", func(t *testing.T) {
		r, err := NewHybridRetriever(storage.NewMemoryStore(chunks...), nil, cfg, nil)
		require.NoError(t, err)
		set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
		require.NoError(t, err)
		assert.True(t, set.Degraded)
	})

	t.Run("keyword failure falls back to vectors", func(t *testing.T) {
		store := failingKeywordStore{storage.NewMemoryStore(chunks...)}
		r, err := NewHybridRetriever(store, unitEmbedder, cfg, nil)
		require.NoError(t, err)

		set, err := r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
		require.NoError(t, err)
		assert.True(t, set.Degraded)
		assert.Contains(t, set.Reasons[0], "keyword search unavailable")
		require.Len(t, set.Results, 2)
		assert.Equal(t, "c1", set.Results[0].ChunkID)
	})

	t.Run("both backends down is unavailable", func(t *testing.T) {
		store := failingKeywordStore{storage.NewMemoryStore(chunks...)}
		r, err := NewHybridRetriever(store, embedDown, cfg, nil)
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "total depth", models.QueryModeFactual, "", 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrServiceUnavailable))
	})
}

func TestNormalize(t *testing.T) {
	hits := []models.ScoredChunk{{Score: 4}, {Score: 2}, {Score: 3}}
	assert.Equal(t, []float64{1, 0, 0.5}, normalize(hits))
	assert.Equal(t, []float64{1, 1}, normalize([]models.ScoredChunk{{Score: 0.3}, {Score: 0.3}}))
	assert.Equal(t, []float64{0}, normalize([]models.ScoredChunk{{Score: 0}}))
	assert.Empty(t, normalize(nil))
}

