// ABOUTME: ChunkStore capability interfaces consumed by the retriever
// ABOUTME: Vector and keyword search primitives with mode and well filtering
package storage

import (
	"context"

	"github.com/harper/wellrag/internal/models"
)

// Filter restricts candidates before scoring. Zero values match everything.
type Filter struct {
	Mode   models.ChunkMode
	WellID string
}

// Match reports whether c passes the filter
func (f Filter) Match(c models.Chunk) bool {
	if f.Mode != "" && c.Mode != f.Mode {
		return false
	}
	if f.WellID != "" && !c.HasWell(f.WellID) {
		return false
	}
	return true
}

// VectorSearcher ranks chunks by embedding similarity
type VectorSearcher interface {
	SearchVector(ctx context.Context, vector []float64, filter Filter, k int) ([]models.ScoredChunk, error)
}

// KeywordSearcher ranks chunks by term-weighted lexical relevance
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, terms []string, filter Filter, k int) ([]models.ScoredChunk, error)
}

// ChunkStore holds ingested chunks. The core only reads; ingestion writes.
type ChunkStore interface {
	VectorSearcher
	KeywordSearcher
	Add(ctx context.Context, chunks ...models.Chunk) (int, error)
	Get(ctx context.Context, id string) (models.Chunk, error)
	Wells(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}
