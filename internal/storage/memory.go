// ABOUTME: In-process ChunkStore with cosine vector search and BM25 keyword search
// ABOUTME: Backs tests and in-memory benchmark runs without a database
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/harper/wellrag/internal/models"
)

// MemoryStore keeps chunks in insertion order
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []models.Chunk
	byID   map[string]int
}

// NewMemoryStore creates a store seeded with chunks
func NewMemoryStore(chunks ...models.Chunk) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int)}
	_, _ = s.Add(context.Background(), chunks...)
	return s
}

// Add inserts chunks, ignoring ids already present. Returns the number inserted.
func (s *MemoryStore) Add(_ context.Context, chunks ...models.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, c := range chunks {
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
		added++
	}
	return added, nil
}

// Get returns the chunk with id
func (s *MemoryStore) Get(_ context.Context, id string) (models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return models.Chunk{}, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
	}
	return s.chunks[i], nil
}

// Wells lists every well named in chunk metadata, sorted
func (s *MemoryStore) Wells(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var wells []string
	for _, c := range s.chunks {
		for _, w := range c.WellIDs {
			key := strings.ToUpper(w)
			if !seen[key] {
				seen[key] = true
				wells = append(wells, w)
			}
		}
	}
	sort.Strings(wells)
	return wells, nil
}

// Count returns the number of stored chunks
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// SearchVector ranks filtered chunks by cosine similarity. Chunks without embeddings are skipped.
func (s *MemoryStore) SearchVector(ctx context.Context, vector []float64, filter Filter, k int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates := s.filtered(filter)

	results := make([]models.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		results = append(results, models.ScoredChunk{Chunk: c, Score: CosineSimilarity(vector, c.Embedding)})
	}
	return SortScored(results, k), nil
}

// SearchKeyword ranks filtered chunks by BM25. Chunks with no matching term are skipped.
func (s *MemoryStore) SearchKeyword(ctx context.Context, terms []string, filter Filter, k int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates := s.filtered(filter)

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	scores := BM25Scores(docs, terms)

	results := make([]models.ScoredChunk, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] > 0 {
			results = append(results, models.ScoredChunk{Chunk: c, Score: scores[i]})
		}
	}
	return SortScored(results, k), nil
}

func (s *MemoryStore) filtered(filter Filter) []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if filter.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// SortScored sorts by score descending (page, id for ties) and truncates to k
func SortScored(results []models.ScoredChunk, k int) []models.ScoredChunk {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.PageNumber != results[j].Chunk.PageNumber {
			return results[i].Chunk.PageNumber < results[j].Chunk.PageNumber
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
