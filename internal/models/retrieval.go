// ABOUTME: Retrieval result types produced by the hybrid retriever
// ABOUTME: Includes per-chunk scores and the degradation flag for the whole result set
package models

// ScoredChunk is a raw hit from a single search backend
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is one ranked chunk for a query
type RetrievalResult struct {
	ChunkID       string  `json:"chunk_id"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
	FusedScore    float64 `json:"fused_score"`
	Rank          int     `json:"rank"`
	Chunk         Chunk   `json:"chunk"`
}

// RetrievalSet is the ordered output of one retrieval call
type RetrievalSet struct {
	Results  []RetrievalResult `json:"results"`
	Degraded bool              `json:"degraded"`
	Reasons  []string          `json:"reasons,omitempty"`
}

// Chunks returns the chunks in rank order
func (s RetrievalSet) Chunks() []Chunk {
	chunks := make([]Chunk, 0, len(s.Results))
	for _, r := range s.Results {
		chunks = append(chunks, r.Chunk)
	}
	return chunks
}
