// ABOUTME: HybridRetriever fuses semantic and keyword rankings into one ordered result set
// ABOUTME: Falls back to a single backend with a degradation flag when the other fails
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/storage"
)

// Searcher is the read side of a chunk store
type Searcher interface {
	storage.VectorSearcher
	storage.KeywordSearcher
}

// Retriever is what the agent needs from retrieval
type Retriever interface {
	Retrieve(ctx context.Context, query string, mode models.QueryMode, wellFilter string, topK int) (models.RetrievalSet, error)
}

// HybridRetriever combines cosine similarity and BM25 with fixed weights
type HybridRetriever struct {
	store          Searcher
	embedder       llm.Embedder
	semanticWeight float64
	keywordWeight  float64
	topK           map[models.QueryMode]int
	multiplier     int
	log            logger.Logger
}

// NewHybridRetriever validates the weights and builds a retriever.
// A nil embedder makes every query keyword-only and degraded.
func NewHybridRetriever(store Searcher, embedder llm.Embedder, cfg config.RetrievalConfig, log logger.Logger) (*HybridRetriever, error) {
	if store == nil {
		return nil, errors.New("retriever requires a chunk store")
	}
	if err := config.CheckWeights(cfg.SemanticWeight, cfg.KeywordWeight); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	topK := make(map[models.QueryMode]int, len(models.QueryModes))
	for _, m := range models.QueryModes {
		topK[m] = cfg.TopKFor(m)
	}
	multiplier := cfg.CandidateMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	return &HybridRetriever{
		store:          store,
		embedder:       embedder,
		semanticWeight: cfg.SemanticWeight,
		keywordWeight:  cfg.KeywordWeight,
		topK:           topK,
		multiplier:     multiplier,
		log:            log,
	}, nil
}

// Retrieve returns at most topK chunks of the mode's chunk type, ranked by fused score.
// topK <= 0 uses the per-mode default.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, mode models.QueryMode, wellFilter string, topK int) (models.RetrievalSet, error) {
	if !mode.IsValid() {
		return models.RetrievalSet{}, fmt.Errorf("unknown query mode %q", mode)
	}
	if topK <= 0 {
		topK = r.topK[mode]
	}
	if topK <= 0 {
		topK = 10
	}

	filter := storage.Filter{Mode: mode.ChunkMode(), WellID: wellFilter}
	k := topK * r.multiplier

	var (
		vecHits, kwHits []models.ScoredChunk
		vecErr, kwErr   error
	)
	// each branch records its own error so one failure never cancels the other
	var g errgroup.Group
	g.Go(func() error {
		vecHits, vecErr = r.semantic(ctx, query, filter, k)
		return nil
	})
	g.Go(func() error {
		terms := storage.Tokenize(query)
		if len(terms) == 0 {
			return nil
		}
		kwHits, kwErr = r.store.SearchKeyword(ctx, terms, filter, k)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return models.RetrievalSet{}, err
	}

	set := models.RetrievalSet{Results: []models.RetrievalResult{}}
	wSem, wKw := r.semanticWeight, r.keywordWeight
	switch {
	case vecErr != nil && kwErr != nil:
		return set, models.Unavailable("retrieval", "retrieve", errors.Join(vecErr, kwErr))
	case vecErr != nil:
		set.Degraded = true
		set.Reasons = append(set.Reasons, fmt.Sprintf("semantic search unavailable, keyword-only ranking: %v", vecErr))
		wSem, wKw = 0, 1
		vecHits = nil
		r.log.Warn("retrieval degraded", "backend", "semantic", "error", vecErr)
	case kwErr != nil:
		set.Degraded = true
		set.Reasons = append(set.Reasons, fmt.Sprintf("keyword search unavailable, semantic-only ranking: %v", kwErr))
		wSem, wKw = 1, 0
		kwHits = nil
		r.log.Warn("retrieval degraded", "backend", "keyword", "error", kwErr)
	}

	set.Results = fuse(vecHits, kwHits, wSem, wKw, filter, topK)
	r.log.Debug("retrieved chunks", "mode", mode, "well", wellFilter, "results", len(set.Results), "degraded", set.Degraded)
	return set, nil
}

func (r *HybridRetriever) semantic(ctx context.Context, query string, filter storage.Filter, k int) ([]models.ScoredChunk, error) {
	if r.embedder == nil {
		return nil, errors.New("no embedding service configured")
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.store.SearchVector(ctx, vec, filter, k)
}

// fuse normalizes each signal over its hits and ranks the union by the weighted sum
func fuse(vecHits, kwHits []models.ScoredChunk, wSem, wKw float64, filter storage.Filter, topK int) []models.RetrievalResult {
	byID := make(map[string]*models.RetrievalResult)
	var order []string

	add := func(hits []models.ScoredChunk, semantic bool) {
		norm := normalize(hits)
		for i, h := range hits {
			res, ok := byID[h.Chunk.ID]
			if !ok {
				res = &models.RetrievalResult{ChunkID: h.Chunk.ID, Chunk: h.Chunk}
				byID[h.Chunk.ID] = res
				order = append(order, h.Chunk.ID)
			}
			if semantic {
				res.SemanticScore = norm[i]
			} else {
				res.KeywordScore = norm[i]
			}
		}
	}
	add(vecHits, true)
	add(kwHits, false)

	results := make([]models.RetrievalResult, 0, len(order))
	for _, id := range order {
		res := byID[id]
		// backends filter already; this guards against a store that ignores the filter
		if !filter.Match(res.Chunk) {
			continue
		}
		res.FusedScore = wSem*res.SemanticScore + wKw*res.KeywordScore
		results = append(results, *res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.Chunk.PageNumber != b.Chunk.PageNumber {
			return a.Chunk.PageNumber < b.Chunk.PageNumber
		}
		return a.ChunkID < b.ChunkID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// normalize maps scores to [0,1] by min-max. A constant positive signal maps to 1.
func normalize(hits []models.ScoredChunk) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}
	for i, h := range hits {
		switch {
		case hi > lo:
			out[i] = (h.Score - lo) / (hi - lo)
		case h.Score > 0:
			out[i] = 1
		}
	}
	return out
}
