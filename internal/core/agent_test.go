// ABOUTME: Tests for the Agent pipeline: validation loop, statuses, memory and routing
// ABOUTME: Every backend is a fake so the loop can be driven deterministically
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/models"
)

var depthSet = models.RetrievalSet{Results: []models.RetrievalResult{{
	ChunkID:    "c1",
	FusedScore: 0.9,
	Rank:       1,
	Chunk:      chunk("c1", "HAG-GT-01_EOWR.pdf", 8, models.ChunkModeFactual, "Total depth 2694 m MD", "HAG-GT-01"),
}}}

type agentFixture struct {
	retriever *fakeRetriever
	generator *fakeGenerator
	judge     *fakeJudge
	extractor *fakeExtractor
	recorder  *fakeRecorder
	agent     *Agent
}

func newAgentFixture(t *testing.T, verdicts ...models.ValidationVerdict) *agentFixture {
	t.Helper()
	if len(verdicts) == 0 {
		verdicts = []models.ValidationVerdict{{Accepted: true, FinalConfidence: 0.9}}
	}
	f := &agentFixture{
		retriever: &fakeRetriever{set: depthSet},
		generator: &fakeGenerator{drafts: []string{"The total depth of HAG-GT-01 is 2694 m (HAG-GT-01_EOWR.pdf, p.8)."}},
		judge:     &fakeJudge{verdicts: verdicts},
		extractor: &fakeExtractor{},
		recorder:  &fakeRecorder{},
	}
	agent, err := NewAgent(AgentDeps{
		Config:    testConfig(),
		Retriever: f.retriever,
		Generator: f.generator,
		Judge:     f.judge,
		Extractor: f.extractor,
		Recorder:  f.recorder,
	})
	require.NoError(t, err)
	f.agent = agent
	return f
}

func rejected(issue string) models.ValidationVerdict {
	return models.ValidationVerdict{FinalConfidence: 0.4, Issues: []string{issue}}
}

func TestNewAgentRequiresDependencies(t *testing.T) {
	_, err := NewAgent(AgentDeps{Config: testConfig()})
	assert.Error(t, err)
}

func TestAskAccepted(t *testing.T) {
	f := newAgentFixture(t)

	ans, err := f.agent.Ask(context.Background(), "s1", "What is the total depth of HAG-GT-01?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, ans.Status)
	assert.Equal(t, "s1", ans.SessionID)
	assert.Equal(t, models.QueryModeFactual, ans.Mode)
	assert.Equal(t, "HAG-GT-01", ans.WellID)
	assert.Equal(t, 1, ans.Attempts)
	require.NotNil(t, ans.Verdict)
	assert.True(t, ans.Verdict.Accepted)
	assert.Contains(t, ans.Text, "(HAG-GT-01_EOWR.pdf, p.8)")
	assert.Len(t, ans.Sources, 1)

	require.Len(t, f.retriever.calls, 1)
	assert.Equal(t, "HAG-GT-01", f.retriever.calls[0].WellID)

	session, release := f.agent.Sessions().Acquire("s1")
	defer release()
	assert.Equal(t, 1, session.Memory.Len())
	require.Len(t, f.recorder.turns, 1)
	assert.Equal(t, []string{"HAG-GT-01"}, f.recorder.turns[0].turn.CitedWells)
}

func TestAskRetriesAtMostMaxRetries(t *testing.T) {
	f := newAgentFixture(t, rejected("issue one"), rejected("issue two"), rejected("issue three"), rejected("never reached"))

	ans, err := f.agent.Ask(context.Background(), "s1", "What is the total depth of HAG-GT-01?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, ans.Status)
	assert.Equal(t, 3, ans.Attempts)
	assert.Equal(t, 3, f.judge.calls)
	require.NotNil(t, ans.Verdict)
	assert.False(t, ans.Verdict.Accepted)
	assert.Equal(t, 2, ans.Verdict.RetryCount)
	assert.Equal(t, []string{"issue one", "issue two", "issue three"}, ans.Verdict.Issues)

	require.Len(t, f.generator.inputs, 3)
	assert.Empty(t, f.generator.inputs[0].PriorIssues)
	assert.Equal(t, []string{"issue one", "issue two"}, f.generator.inputs[2].PriorIssues)

	session, release := f.agent.Sessions().Acquire("s1")
	defer release()
	assert.Equal(t, 0, session.Memory.Len(), "rejected answers stay out of memory")
	require.Len(t, f.recorder.turns, 1)
	assert.False(t, f.recorder.turns[0].verdict.Accepted)
}

func TestAskAcceptedOnRetry(t *testing.T) {
	f := newAgentFixture(t, rejected("numeric value \"2700 m\" not found"), models.ValidationVerdict{Accepted: true, FinalConfidence: 0.88})

	ans, err := f.agent.Ask(context.Background(), "", "What is the total depth of HAG-GT-01?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, ans.Status)
	assert.Equal(t, 2, ans.Attempts)
	assert.NotEmpty(t, ans.SessionID)
	assert.Equal(t, 1, ans.Verdict.RetryCount)
	assert.Equal(t, []string{"numeric value \"2700 m\" not found"}, f.generator.inputs[1].PriorIssues)
}

func TestAskNoRetriesConfigured(t *testing.T) {
	f := newAgentFixture(t, rejected("x"))
	f.agent.cfg.Judge.MaxRetries = 0

	ans, err := f.agent.Ask(context.Background(), "s1", "total depth?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, ans.Attempts)
	assert.Equal(t, StatusRejected, ans.Status)
}

func TestAskDegradedRetrieval(t *testing.T) {
	f := newAgentFixture(t)
	f.retriever.set.Degraded = true
	f.retriever.set.Reasons = []string{"semantic search unavailable, keyword-only ranking: refused"}

	ans, err := f.agent.Ask(context.Background(), "s1", "total depth of HAG-GT-01?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, ans.Status)
	assert.Contains(t, ans.Reasons, "semantic search unavailable, keyword-only ranking: refused")
}

func TestAskEmptyRetrieval(t *testing.T) {
	f := newAgentFixture(t)
	f.retriever.set = models.RetrievalSet{}

	ans, err := f.agent.Ask(context.Background(), "s1", "total depth of HAG-GT-01?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, ans.Status)
	assert.Equal(t, emptyAnswer, ans.Text)
	assert.Empty(t, f.generator.inputs)
	assert.Zero(t, f.judge.calls)
}

func TestAskServiceUnavailable(t *testing.T) {
	down := models.Unavailable("embeddings", "embed", errors.New("refused"))

	t.Run("retrieval", func(t *testing.T) {
		f := newAgentFixture(t)
		f.retriever.err = down
		ans, err := f.agent.Ask(context.Background(), "s1", "total depth?", AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, StatusUnavailable, ans.Status)
		require.NotEmpty(t, ans.Reasons)
		assert.Contains(t, ans.Reasons[0], "retrieval unavailable")
	})

	t.Run("generation", func(t *testing.T) {
		f := newAgentFixture(t)
		f.generator.err = down
		ans, err := f.agent.Ask(context.Background(), "s1", "total depth?", AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, StatusUnavailable, ans.Status)
		assert.Equal(t, 1, ans.Attempts)
	})

	t.Run("validation", func(t *testing.T) {
		f := newAgentFixture(t)
		f.judge.err = down
		ans, err := f.agent.Ask(context.Background(), "s1", "total depth?", AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, StatusUnavailable, ans.Status)
		assert.NotNil(t, ans.Verdict)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		f := newAgentFixture(t)
		f.retriever.err = errors.New("disk I/O error")
		_, err := f.agent.Ask(context.Background(), "s1", "total depth?", AskOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval")
	})
}

func TestAskRejectsBadInput(t *testing.T) {
	f := newAgentFixture(t)

	_, err := f.agent.Ask(context.Background(), "s1", "   ", AskOptions{})
	assert.Error(t, err)

	_, err = f.agent.Ask(context.Background(), "s1", "depth?", AskOptions{Mode: models.QueryMode("poem")})
	assert.Error(t, err)
}

func TestAskOptionsOverrideRouting(t *testing.T) {
	f := newAgentFixture(t)

	ans, err := f.agent.Ask(context.Background(), "s1", "tell me about HAG-GT-01", AskOptions{
		Mode:   models.QueryModeSummary,
		WellID: "ADK-GT-01",
		TopK:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QueryModeSummary, ans.Mode)
	assert.Equal(t, models.QueryRoute{Mode: models.QueryModeSummary, WellID: "ADK-GT-01"}, f.retriever.calls[0])
}

func TestAskResolvesFollowUpWell(t *testing.T) {
	f := newAgentFixture(t)

	_, err := f.agent.Ask(context.Background(), "s1", "What is the total depth of HAG-GT-01?", AskOptions{})
	require.NoError(t, err)
	ans, err := f.agent.Ask(context.Background(), "s1", "And the TVD of this well?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, "HAG-GT-01", ans.WellID)
	require.Len(t, f.retriever.calls, 2)
	assert.Equal(t, "HAG-GT-01", f.retriever.calls[1].WellID)
	assert.Contains(t, f.generator.inputs[1].MemoryContext, "Previous Q: What is the total depth")
}

func TestAskExtraction(t *testing.T) {
	f := newAgentFixture(t)
	f.extractor.result = models.TrajectoryResult{
		Points: []models.TrajectoryPoint{
			{MeasuredDepth: 0, TrueVerticalDepth: 0, Unit: "m"},
			{MeasuredDepth: 34, TrueVerticalDepth: 34, Unit: "m"},
		},
		Method:     models.MethodRegex,
		Confidence: 1,
		Unit:       "m",
	}

	ans, err := f.agent.Ask(context.Background(), "s1", "Extract the trajectory for HAG-GT-01", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.QueryModeExtraction, ans.Mode)
	assert.Equal(t, StatusOK, ans.Status)
	require.NotNil(t, ans.Trajectory)
	assert.Equal(t, "HAG-GT-01", ans.Trajectory.WellID)
	assert.Len(t, ans.Trajectory.Points, 2)
	assert.Contains(t, ans.Text, "2 trajectory points")
	assert.Equal(t, models.QueryRoute{Mode: models.QueryModeExtraction, WellID: "HAG-GT-01"}, f.retriever.calls[0])
	assert.Len(t, f.extractor.chunks, 1)
	assert.Zero(t, f.judge.calls)
}

func TestAskExtractionEmpty(t *testing.T) {
	f := newAgentFixture(t)
	f.extractor.result = models.EmptyTrajectory("", "no chunks contain depth tokens")

	ans, err := f.agent.Ask(context.Background(), "s1", "extract trajectory", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, ans.Status)
	assert.Equal(t, models.MethodNone, ans.Trajectory.Method)
}

func TestExtractOutsideSession(t *testing.T) {
	f := newAgentFixture(t)
	f.extractor.result = models.TrajectoryResult{Points: []models.TrajectoryPoint{{MeasuredDepth: 1}}, Method: models.MethodRegex}
	f.retriever.set.Degraded = true
	f.retriever.set.Reasons = []string{"keyword search unavailable"}

	res, err := f.agent.Extract(context.Background(), "HAG-GT-01")
	require.NoError(t, err)
	assert.Contains(t, res.Reasons, "retrieval degraded: keyword search unavailable")
	assert.Equal(t, 0, f.agent.Sessions().Len())
}

type stubWells []string

func (s stubWells) Wells(context.Context) ([]string, error) { return s, nil }

func TestRefreshWells(t *testing.T) {
	f := newAgentFixture(t)
	f.agent.wells = stubWells{"Brielle-2"}

	wells, err := f.agent.RefreshWells(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Brielle-2"}, wells)

	_, err = f.agent.Ask(context.Background(), "s1", "depth of brielle-2?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Brielle-2", f.retriever.calls[0].WellID)
}

func TestAskWhileRefreshingWells(t *testing.T) {
	f := newAgentFixture(t)
	f.agent.wells = stubWells{"HAG-GT-01", "Brielle-2"}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.agent.RefreshWells(ctx)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			ans, err := f.agent.Ask(ctx, fmt.Sprintf("s%d", i), "What is the total depth of HAG-GT-01?", AskOptions{})
			assert.NoError(t, err)
			assert.Equal(t, "HAG-GT-01", ans.WellID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, f.agent.Sessions().Len())
	assert.Len(t, f.recorder.turns, 20)
}
