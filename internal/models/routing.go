// ABOUTME: QueryMode is the closed set of pipeline variants a query can be routed to
// ABOUTME: Each mode maps to one retrieval/prompt configuration and one chunk mode
package models

import (
	"fmt"
	"strings"
)

// QueryMode selects the pipeline variant for a query
type QueryMode string

const (
	QueryModeFactual    QueryMode = "factual"
	QueryModeSummary    QueryMode = "summary"
	QueryModeExtraction QueryMode = "extraction"
)

// QueryModes lists every mode in dispatch order
var QueryModes = []QueryMode{QueryModeFactual, QueryModeSummary, QueryModeExtraction}

// IsValid reports whether the mode is known
func (m QueryMode) IsValid() bool {
	switch m {
	case QueryModeFactual, QueryModeSummary, QueryModeExtraction:
		return true
	}
	return false
}

// ChunkMode returns the chunking strategy searched for this query mode
func (m QueryMode) ChunkMode() ChunkMode {
	switch m {
	case QueryModeSummary:
		return ChunkModeSummary
	case QueryModeExtraction:
		return ChunkModeTechnical
	default:
		return ChunkModeFactual
	}
}

// ParseQueryMode accepts the canonical names plus the short aliases "qa" and "extract"
func ParseQueryMode(s string) (QueryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "factual", "qa":
		return QueryModeFactual, nil
	case "summary":
		return QueryModeSummary, nil
	case "extraction", "extract":
		return QueryModeExtraction, nil
	}
	return "", fmt.Errorf("unknown query mode %q", s)
}

// QueryRoute is the routing decision for one query
type QueryRoute struct {
	Mode   QueryMode `json:"mode"`
	WellID string    `json:"well_id,omitempty"`
}
