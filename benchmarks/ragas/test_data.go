// ABOUTME: Benchmark scenarios for the well report pipeline
// ABOUTME: Seed report pages, conversation turns and the ground truth each final answer is scored against

package ragas

import "github.com/harper/wellrag/internal/models"

// TestScenario represents a complete benchmark test
type TestScenario struct {
	ID          string
	Name        string
	Description string
	Documents   []SeedDocument
	Turns       []ConversationTurn
	GroundTruth GroundTruth
}

// SeedDocument is a report indexed before the conversation starts.
// Each entry of Pages is one page of text.
type SeedDocument struct {
	Name  string
	Pages []string
}

// ConversationTurn represents a single query in a test conversation
type ConversationTurn struct {
	TurnNumber int
	Query      string
	Mode       models.QueryMode // empty lets the router decide
	WellID     string
}

// GroundTruth defines expected outcomes for the final query turn
type GroundTruth struct {
	FinalQueryTurn      int
	ExpectedInResponse  []string // must appear in the answer
	ForbiddenInResponse []string // must not appear in the answer

	// Text the retrieved passages should contain
	ExpectedContextItems []string

	// Trajectory scenarios only
	ExpectedPoints int
}

const (
	adkEOWRPage1 = `End of well report ADK-GT-01

Operator: Aardwarmte Den Haag. Spud date 2019-03-02.
The well ADK-GT-01 reached a total depth of 2694 m MD (2610 m TVD).
Bottom hole temperature was measured at 92 °C.`

	adkEOWRPage2 = `Casing and completion

The 13 3/8" surface casing was set at 1200 m MD. The production liner has an
inner diameter of 0.1778 m and was set from 1150 m to 2694 m MD.`

	adkEOWRPage3 = `Well trajectory

MD (m)  TVD (m)  ID (m)
0       0        0.3397
1200    1150     0.3397
2694    2610     0.1778`

	nlwPage1 = `Completion report NAALDWIJK-GT-02-S1

The sidetrack NAALDWIJK-GT-02-S1 was drilled to 2455 m MD.
Flow test results: 150 m3/h at a wellhead temperature of 78 °C.`
)

func adkReport() SeedDocument {
	return SeedDocument{
		Name:  "ADK-GT-01_EOWR.txt",
		Pages: []string{adkEOWRPage1, adkEOWRPage2, adkEOWRPage3},
	}
}

func nlwReport() SeedDocument {
	return SeedDocument{
		Name:  "NAALDWIJK-GT-02-S1_completion.txt",
		Pages: []string{nlwPage1},
	}
}

// GetTestTD returns the single-turn factual scenario
// Tests that the total depth is answered with a page citation
func GetTestTD() TestScenario {
	return TestScenario{
		ID:          "td",
		Name:        "Total depth with citation",
		Description: "A factual question about one well must be answered from that well's report with an inline citation.",
		Documents:   []SeedDocument{adkReport(), nlwReport()},
		Turns: []ConversationTurn{
			{TurnNumber: 1, Query: "What is the total depth of ADK-GT-01?"},
		},
		GroundTruth: GroundTruth{
			FinalQueryTurn:       1,
			ExpectedInResponse:   []string{"2694", "ADK-GT-01_EOWR"},
			ForbiddenInResponse:  []string{"2455"},
			ExpectedContextItems: []string{"total depth of 2694 m"},
		},
	}
}

// GetTestFollowUp returns the two-turn memory scenario
// Tests that a follow-up without a well name stays on the previously cited well
func GetTestFollowUp() TestScenario {
	return TestScenario{
		ID:          "followup",
		Name:        "Follow-up resolves the well from memory",
		Description: "The second question names no well. The answer must come from the well discussed in the first turn.",
		Documents:   []SeedDocument{adkReport(), nlwReport()},
		Turns: []ConversationTurn{
			{TurnNumber: 1, Query: "What is the total depth of ADK-GT-01?"},
			{TurnNumber: 2, Query: "What is the inner diameter of its production liner?"},
		},
		GroundTruth: GroundTruth{
			FinalQueryTurn:       2,
			ExpectedInResponse:   []string{"0.1778"},
			ForbiddenInResponse:  []string{"NAALDWIJK"},
			ExpectedContextItems: []string{"inner diameter of 0.1778 m"},
		},
	}
}

// GetTestTrajectory returns the extraction scenario
// Tests that the trajectory table is turned into ordered MD/TVD points
func GetTestTrajectory() TestScenario {
	return TestScenario{
		ID:          "trajectory",
		Name:        "Trajectory extraction",
		Description: "Extracting the ADK-GT-01 trajectory must yield the three table rows with the cited page.",
		Documents:   []SeedDocument{adkReport()},
		Turns: []ConversationTurn{
			{TurnNumber: 1, Query: "Extract the well trajectory of ADK-GT-01", Mode: models.QueryModeExtraction, WellID: "ADK-GT-01"},
		},
		GroundTruth: GroundTruth{
			FinalQueryTurn: 1,
			ExpectedPoints: 3,
		},
	}
}

// GetAllTests returns all benchmark scenarios
func GetAllTests() []TestScenario {
	return []TestScenario{
		GetTestTD(),
		GetTestFollowUp(),
		GetTestTrajectory(),
	}
}

// GetTest finds a scenario by ID
func GetTest(id string) (TestScenario, bool) {
	for _, s := range GetAllTests() {
		if s.ID == id {
			return s, true
		}
	}
	return TestScenario{}, false
}

// TestResult holds the scores of one scenario
type TestResult struct {
	TestID             string                 `json:"test_id"`
	TestName           string                 `json:"test_name"`
	CitationScore      float64                `json:"citation_score"`
	FaithfulnessScore  float64                `json:"faithfulness_score"`
	ContextRecallScore float64                `json:"context_recall_score"`
	OverallScore       float64                `json:"overall_score"`
	Status             string                 `json:"status"`
	Details            map[string]interface{} `json:"details"`
}
