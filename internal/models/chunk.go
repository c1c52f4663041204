// ABOUTME: Chunk represents a span of well-report text prepared for retrieval
// ABOUTME: Carries mode-specific text, embedding and the (document, page) pair used for citations
package models

import (
	"fmt"
	"strings"
)

// ChunkMode is the chunking strategy a chunk was produced for
type ChunkMode string

const (
	ChunkModeFactual   ChunkMode = "factual"
	ChunkModeTechnical ChunkMode = "technical"
	ChunkModeSummary   ChunkMode = "summary"
)

// IsValid reports whether the mode is one of the known chunking strategies
func (m ChunkMode) IsValid() bool {
	switch m {
	case ChunkModeFactual, ChunkModeTechnical, ChunkModeSummary:
		return true
	}
	return false
}

// Chunk is the atomic retrieval unit. Chunks are immutable once ingested.
type Chunk struct {
	ID             string    `json:"id" yaml:"id"`
	SourceDocument string    `json:"source_document" yaml:"source_document"`
	PageNumber     int       `json:"page_number" yaml:"page_number"`
	Mode           ChunkMode `json:"mode" yaml:"mode"`
	Text           string    `json:"text" yaml:"text"`
	Embedding      []float64 `json:"embedding,omitempty" yaml:"-"`
	TokenCount     int       `json:"token_count" yaml:"token_count"`
	WellIDs        []string  `json:"well_ids,omitempty" yaml:"well_ids,omitempty"`
}

// Citation renders the chunk's source as "(document_name, p.X)"
func (c Chunk) Citation() string {
	return fmt.Sprintf("(%s, p.%d)", c.SourceDocument, c.PageNumber)
}

// Cite appends the chunk citation to a value, e.g. "2694 m (WELL-01-doc, p.8)"
func (c Chunk) Cite(value string) string {
	return value + " " + c.Citation()
}

// HasWell reports whether the chunk metadata names the given well (case-insensitive)
func (c Chunk) HasWell(wellID string) bool {
	for _, w := range c.WellIDs {
		if strings.EqualFold(w, wellID) {
			return true
		}
	}
	return false
}

// Validate checks that the chunk can be cited
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("chunk id cannot be empty")
	}
	if strings.TrimSpace(c.SourceDocument) == "" {
		return fmt.Errorf("chunk %s: source document cannot be empty", c.ID)
	}
	if c.PageNumber < 1 {
		return fmt.Errorf("chunk %s: page number must be positive, got %d", c.ID, c.PageNumber)
	}
	if !c.Mode.IsValid() {
		return fmt.Errorf("chunk %s: invalid mode %q", c.ID, c.Mode)
	}
	return nil
}
