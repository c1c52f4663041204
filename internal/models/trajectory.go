// ABOUTME: Trajectory types for MD/TVD/ID well-path tables
// ABOUTME: TrajectoryResult is the structured record handed to nodal analysis
package models

// ExtractionMethod records which tier produced a trajectory
type ExtractionMethod string

const (
	MethodRegex       ExtractionMethod = "regex"
	MethodLLMFallback ExtractionMethod = "llm_fallback"
	MethodHybrid      ExtractionMethod = "hybrid"
	MethodNone        ExtractionMethod = "none"
)

// UnitMetres is the canonical depth and diameter unit of extracted points
const UnitMetres = "m"

// TrajectoryPoint is one row of a trajectory table
type TrajectoryPoint struct {
	MeasuredDepth     float64 `json:"md" yaml:"md"`
	TrueVerticalDepth float64 `json:"tvd" yaml:"tvd"`
	InnerDiameter     float64 `json:"id" yaml:"id"`
	Unit              string  `json:"unit" yaml:"unit"`
	SourcePage        int     `json:"source_page,omitempty" yaml:"source_page,omitempty"`
}

// TrajectoryResult is the output of one extraction request.
// Points are ordered by measured depth ascending.
type TrajectoryResult struct {
	WellID      string            `json:"well_id" yaml:"well_id"`
	Points      []TrajectoryPoint `json:"points" yaml:"points"`
	Method      ExtractionMethod  `json:"extraction_method" yaml:"extraction_method"`
	Confidence  float64           `json:"confidence" yaml:"confidence"`
	Unit        string            `json:"unit" yaml:"unit"`
	UnitAssumed bool              `json:"unit_assumed" yaml:"unit_assumed"`
	Anomalies   []string          `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
	Reasons     []string          `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// EmptyTrajectory is the result when nothing depth-like was found
func EmptyTrajectory(wellID string, reasons ...string) TrajectoryResult {
	return TrajectoryResult{
		WellID:     wellID,
		Points:     []TrajectoryPoint{},
		Method:     MethodNone,
		Confidence: 0,
		Unit:       UnitMetres,
		Reasons:    reasons,
	}
}

// Empty reports whether no points were extracted
func (r TrajectoryResult) Empty() bool {
	return len(r.Points) == 0
}

// IsMonotonic reports whether measured depth never decreases
func (r TrajectoryResult) IsMonotonic() bool {
	for i := 1; i < len(r.Points); i++ {
		if r.Points[i].MeasuredDepth < r.Points[i-1].MeasuredDepth {
			return false
		}
	}
	return true
}
