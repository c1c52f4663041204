// ABOUTME: Validation types produced by the ensemble judge
// ABOUTME: JudgeVote is one pass, ValidationVerdict is the aggregated terminal state
package models

// JudgeVote is the outcome of one validation pass
type JudgeVote struct {
	ModelID                 string   `json:"model_id"`
	Confidence              float64  `json:"confidence"`
	FlaggedIssues           []string `json:"flagged_issues,omitempty"`
	IsNumericallyConsistent bool     `json:"is_numerically_consistent"`
}

// ValidationVerdict is the aggregated decision for a draft answer.
// A verdict with Accepted=false is a legitimate result, not an error.
type ValidationVerdict struct {
	FinalConfidence float64     `json:"final_confidence"`
	Accepted        bool        `json:"accepted"`
	Issues          []string    `json:"issues,omitempty"`
	RetryCount      int         `json:"retry_count"`
	Votes           []JudgeVote `json:"votes,omitempty"`
}

// Rejected reports whether the verdict is a terminal rejection
func (v ValidationVerdict) Rejected() bool {
	return !v.Accepted
}
