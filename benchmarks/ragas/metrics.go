// ABOUTME: Deterministic metrics for citation presence, faithfulness and context recall
// ABOUTME: Scores a pipeline answer against scenario ground truth and its own retrieved passages

package ragas

import (
	"fmt"
	"strings"

	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/models"
)

// PassThreshold is the minimum for every metric of a passing scenario
const PassThreshold = 0.9

// MetricsCalculator computes benchmark scores
type MetricsCalculator struct{}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// CalculateCitationPresence scores inline citations (0.0-1.0).
// Citations must exist and each must name a retrieved page.
func (m *MetricsCalculator) CalculateCitationPresence(response string, sources []models.Chunk) (float64, string) {
	citations := core.ParseCitations(response)
	if len(citations) == 0 {
		return 0.0, "No inline citations in response"
	}

	issues := core.CitationIssues(response, sources)
	if len(issues) == 0 {
		return 1.0, fmt.Sprintf("%d citation(s), all match retrieved pages", len(citations))
	}
	score := 1.0 - float64(len(issues))/float64(len(citations))
	if score < 0 {
		score = 0
	}
	return score, fmt.Sprintf("Unsupported citations: %v", issues)
}

// CalculateTrajectoryCitations scores the share of points that carry a source page
func (m *MetricsCalculator) CalculateTrajectoryCitations(points []models.TrajectoryPoint) (float64, string) {
	if len(points) == 0 {
		return 0.0, "No trajectory points"
	}
	cited := 0
	for _, p := range points {
		if p.SourcePage > 0 {
			cited++
		}
	}
	score := float64(cited) / float64(len(points))
	return score, fmt.Sprintf("%d of %d points cite a page", cited, len(points))
}

// CalculateFaithfulness computes faithfulness (0.0-1.0): expected values present,
// forbidden values absent and every numeric claim found in the retrieved passages
func (m *MetricsCalculator) CalculateFaithfulness(
	response string,
	expectedInResponse []string,
	forbiddenInResponse []string,
	sources []models.Chunk,
) (float64, string) {
	responseUpper := strings.ToUpper(response)

	missingItems := []string{}
	for _, expected := range expectedInResponse {
		if !strings.Contains(responseUpper, strings.ToUpper(expected)) {
			missingItems = append(missingItems, expected)
		}
	}

	forbiddenFound := []string{}
	for _, forbidden := range forbiddenInResponse {
		if strings.Contains(responseUpper, strings.ToUpper(forbidden)) {
			forbiddenFound = append(forbiddenFound, forbidden)
		}
	}

	unsupported := core.NumericIssues(response, sources)

	failures := 0
	var details []string
	if len(missingItems) > 0 {
		failures++
		details = append(details, fmt.Sprintf("missing expected items: %v", missingItems))
	}
	if len(forbiddenFound) > 0 {
		failures++
		details = append(details, fmt.Sprintf("forbidden items found: %v", forbiddenFound))
	}
	if len(unsupported) > 0 {
		failures++
		details = append(details, fmt.Sprintf("unsupported numbers: %v", unsupported))
	}

	switch failures {
	case 0:
		return 1.0, "Perfect faithfulness - response matches ground truth and context"
	case 1:
		return 0.5, "Partial faithfulness - " + details[0]
	default:
		return 0.0, "Faithfulness failure - " + strings.Join(details, "; ")
	}
}

// CalculateTrajectoryFaithfulness compares extracted points with the expected count
// and penalizes anomalies such as decreasing MD
func (m *MetricsCalculator) CalculateTrajectoryFaithfulness(result *models.TrajectoryResult, expectedPoints int) (float64, string) {
	if result == nil || result.Empty() {
		return 0.0, "No trajectory extracted"
	}
	got := len(result.Points)
	score := 1.0
	if expectedPoints > 0 && got != expectedPoints {
		diff := got - expectedPoints
		if diff < 0 {
			diff = -diff
		}
		score -= float64(diff) / float64(expectedPoints)
	}
	if len(result.Anomalies) > 0 {
		score -= 0.25
	}
	if score < 0 {
		score = 0
	}
	return score, fmt.Sprintf("%d points (expected %d), %d anomalies, method %s",
		got, expectedPoints, len(result.Anomalies), result.Method)
}

// CalculateContextRecall computes context recall (0.0-1.0)
// Context Recall = Were the passages holding the answer retrieved?
func (m *MetricsCalculator) CalculateContextRecall(
	retrievedContext []string,
	expectedContextItems []string,
) (float64, string) {
	if len(expectedContextItems) == 0 {
		return 1.0, "No context retrieval required"
	}

	allContext := strings.ToUpper(strings.Join(retrievedContext, " "))

	foundCount := 0
	missingItems := []string{}
	for _, expectedItem := range expectedContextItems {
		if strings.Contains(allContext, strings.ToUpper(expectedItem)) {
			foundCount++
		} else {
			missingItems = append(missingItems, expectedItem)
		}
	}

	recall := float64(foundCount) / float64(len(expectedContextItems))
	if recall == 1.0 {
		return 1.0, "Perfect context recall - all expected items retrieved"
	}

	return recall, fmt.Sprintf(
		"Partial context recall (%.2f) - missing items: %v",
		recall, missingItems,
	)
}

// EvaluateTest runs the full evaluation for a scenario's final answer
func (m *MetricsCalculator) EvaluateTest(scenario TestScenario, answer core.Answer) TestResult {
	sources := make([]models.Chunk, 0, len(answer.Sources))
	contextItems := make([]string, 0, len(answer.Sources))
	for _, s := range answer.Sources {
		sources = append(sources, s.Chunk)
		contextItems = append(contextItems, s.Chunk.Text)
	}

	var citation, faithfulness float64
	var citationDetail, faithfulnessDetail string
	if scenario.GroundTruth.ExpectedPoints > 0 {
		var points []models.TrajectoryPoint
		if answer.Trajectory != nil {
			points = answer.Trajectory.Points
		}
		citation, citationDetail = m.CalculateTrajectoryCitations(points)
		faithfulness, faithfulnessDetail = m.CalculateTrajectoryFaithfulness(answer.Trajectory, scenario.GroundTruth.ExpectedPoints)
	} else {
		citation, citationDetail = m.CalculateCitationPresence(answer.Text, sources)
		faithfulness, faithfulnessDetail = m.CalculateFaithfulness(
			answer.Text,
			scenario.GroundTruth.ExpectedInResponse,
			scenario.GroundTruth.ForbiddenInResponse,
			sources,
		)
	}

	recall, recallDetail := m.CalculateContextRecall(contextItems, scenario.GroundTruth.ExpectedContextItems)

	overallScore := (citation + faithfulness + recall) / 3.0

	status := "FAIL"
	if citation >= PassThreshold && faithfulness >= PassThreshold && recall >= PassThreshold {
		status = "PASS"
	}

	details := map[string]interface{}{
		"citation_detail":     citationDetail,
		"faithfulness_detail": faithfulnessDetail,
		"recall_detail":       recallDetail,
		"final_response":      preview(answer.Text, 200),
		"answer_status":       string(answer.Status),
		"attempts":            answer.Attempts,
		"context_items":       len(contextItems),
	}
	if answer.Verdict != nil {
		details["judge_confidence"] = answer.Verdict.FinalConfidence
	}

	return TestResult{
		TestID:             scenario.ID,
		TestName:           scenario.Name,
		CitationScore:      citation,
		FaithfulnessScore:  faithfulness,
		ContextRecallScore: recall,
		OverallScore:       overallScore,
		Status:             status,
		Details:            details,
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
