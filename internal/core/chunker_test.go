// ABOUTME: Tests for mode-specific chunking of report pages
// ABOUTME: Covers window overlap, whole tables, deterministic ids and well detection
package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/models"
)

func wordsPage(n int) Page {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return Page{Document: "HAG-GT-01_EOWR.pdf", Number: 3, Text: strings.Join(words, " ")}
}

func TestChunkPageWindows(t *testing.T) {
	c := NewChunker(testConfig().Chunking, EstimateCounter())
	page := wordsPage(450)

	factual := c.ChunkPage(page, models.ChunkModeFactual, nil)
	require.Len(t, factual, 3)
	assert.True(t, strings.HasPrefix(factual[1].Text, "w150 "))
	assert.True(t, strings.HasSuffix(factual[2].Text, " w449"))
	for _, ch := range factual {
		assert.Equal(t, 3, ch.PageNumber)
		assert.Equal(t, "HAG-GT-01_EOWR.pdf", ch.SourceDocument)
		assert.Equal(t, models.ChunkModeFactual, ch.Mode)
		assert.NoError(t, ch.Validate())
		assert.Positive(t, ch.TokenCount)
	}

	assert.Len(t, c.ChunkPage(page, models.ChunkModeTechnical, nil), 2)
	assert.Len(t, c.ChunkPage(page, models.ChunkModeSummary, nil), 1)
}

func TestChunkPageKeepsTablesWhole(t *testing.T) {
	c := NewChunker(testConfig().Chunking, nil)
	table := "| MD (m) | TVD (m) |\n| 0 | 0 |\n| 10 | 10 |"
	page := Page{Document: "doc", Number: 1, Text: "Trajectory survey below.\n\n" + table + "\n\nClosing remarks."}

	chunks := c.ChunkPage(page, models.ChunkModeFactual, nil)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Trajectory survey below.", chunks[0].Text)
	assert.Equal(t, table, chunks[1].Text)
	assert.Equal(t, "Closing remarks.", chunks[2].Text)
}

func TestChunkPageIDsAreDeterministic(t *testing.T) {
	c := NewChunker(testConfig().Chunking, nil)
	page := wordsPage(50)

	first := c.ChunkPage(page, models.ChunkModeFactual, nil)
	second := c.ChunkPage(page, models.ChunkModeFactual, nil)
	require.Len(t, first, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	other := c.ChunkPage(page, models.ChunkModeSummary, nil)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}

func TestChunkPageWells(t *testing.T) {
	c := NewChunker(testConfig().Chunking, nil)
	page := Page{Document: "doc", Number: 2, Text: "HAG-GT-01 was drilled before ADK GT 02."}

	chunks := c.ChunkPage(page, models.ChunkModeFactual, []string{"hag-gt-01"})
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"hag-gt-01", "ADK-GT-02"}, chunks[0].WellIDs)
}

func TestChunkPageBlank(t *testing.T) {
	c := NewChunker(testConfig().Chunking, nil)
	assert.Nil(t, c.ChunkPage(Page{Document: "doc", Number: 1, Text: " \n\n "}, models.ChunkModeFactual, nil))
}

func TestChunkPagesAllModes(t *testing.T) {
	c := NewChunker(testConfig().Chunking, nil)
	chunks := c.ChunkPages([]Page{wordsPage(10), {Document: "doc", Number: 4, Text: "more words"}}, nil)

	counts := map[models.ChunkMode]int{}
	for _, ch := range chunks {
		counts[ch.Mode]++
	}
	assert.Equal(t, map[models.ChunkMode]int{
		models.ChunkModeFactual:   2,
		models.ChunkModeTechnical: 2,
		models.ChunkModeSummary:   2,
	}, counts)
}

func TestEstimateCounter(t *testing.T) {
	assert.Equal(t, 3, EstimateCounter().Count("abcd efgh"))
	assert.Equal(t, 0, EstimateCounter().Count(""))
}
