// ABOUTME: Tests for BM25 scoring and tokenization
package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"total", "depth", "hag-gt-01", "2694.5"},
		Tokenize("What is the total depth of HAG-GT-01? 2694.5 m"))
	assert.Empty(t, Tokenize("the of a"))
}

func TestBM25Scores(t *testing.T) {
	docs := []string{
		"total depth 2694 m total depth",
		"casing shoe at 1200 m",
		"depth",
	}

	scores := BM25Scores(docs, []string{"total", "depth"})

	assert.Greater(t, scores[0], scores[2], "more matching terms should score higher")
	assert.Equal(t, 0.0, scores[1])
	for _, s := range scores {
		assert.False(t, math.IsNaN(s))
	}
}

func TestBM25Scores_Empty(t *testing.T) {
	assert.Empty(t, BM25Scores(nil, []string{"depth"}))
	assert.Equal(t, []float64{0}, BM25Scores([]string{"depth"}, nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}
