// ABOUTME: Tests for the in-process chunk store
// ABOUTME: Vector and keyword search with mode and well filters
package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "a", SourceDocument: "HAG-doc", PageNumber: 8, Mode: models.ChunkModeFactual,
			Text: "The total depth is 2694 m (TVD) for HAG-GT-01.", Embedding: []float64{1, 0, 0}, WellIDs: []string{"HAG-GT-01"}},
		{ID: "b", SourceDocument: "HAG-doc", PageNumber: 3, Mode: models.ChunkModeFactual,
			Text: "Drilling started in March 2011 with a 26 inch conductor.", Embedding: []float64{0, 1, 0}, WellIDs: []string{"HAG-GT-01"}},
		{ID: "c", SourceDocument: "NLW-doc", PageNumber: 5, Mode: models.ChunkModeFactual,
			Text: "NLW-GT-03 reached a total depth of 2900 m.", Embedding: []float64{0.9, 0.1, 0}, WellIDs: []string{"NLW-GT-03"}},
		{ID: "d", SourceDocument: "NLW-doc", PageNumber: 5, Mode: models.ChunkModeTechnical,
			Text: "MD TVD ID table", WellIDs: []string{"NLW-GT-03"}},
	}
}

func TestMemoryStore_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(sampleChunks()...)

	n, err := s.Add(ctx, sampleChunks()[0])
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMemoryStore_Get(t *testing.T) {
	s := NewMemoryStore(sampleChunks()...)

	c, err := s.Get(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "NLW-doc", c.SourceDocument)

	_, err = s.Get(context.Background(), "zzz")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestMemoryStore_Wells(t *testing.T) {
	wells, err := NewMemoryStore(sampleChunks()...).Wells(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"HAG-GT-01", "NLW-GT-03"}, wells)
}

func TestMemoryStore_SearchVector(t *testing.T) {
	s := NewMemoryStore(sampleChunks()...)

	t.Run("Should rank by cosine similarity within the mode", func(t *testing.T) {
		hits, err := s.SearchVector(context.Background(), []float64{1, 0, 0}, Filter{Mode: models.ChunkModeFactual}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "a", hits[0].Chunk.ID)
		assert.Equal(t, "c", hits[1].Chunk.ID)
	})

	t.Run("Should honor the well filter", func(t *testing.T) {
		hits, err := s.SearchVector(context.Background(), []float64{1, 0, 0},
			Filter{Mode: models.ChunkModeFactual, WellID: "nlw-gt-03"}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c", hits[0].Chunk.ID)
	})

	t.Run("Should cap at k", func(t *testing.T) {
		hits, err := s.SearchVector(context.Background(), []float64{1, 0, 0}, Filter{}, 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})
}

func TestMemoryStore_SearchKeyword(t *testing.T) {
	s := NewMemoryStore(sampleChunks()...)

	hits, err := s.SearchKeyword(context.Background(), Tokenize("What is the total depth?"),
		Filter{Mode: models.ChunkModeFactual}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Contains(t, []string{"a", "c"}, h.Chunk.ID)
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore(sampleChunks()...).SearchKeyword(ctx, []string{"depth"}, Filter{}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
