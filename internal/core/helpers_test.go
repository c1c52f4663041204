// ABOUTME: Shared fakes and fixtures for core package tests
// ABOUTME: Stands in for the model service, retriever, judge and turn log
package core

import (
	"context"
	"sync"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/models"
)

func testConfig() *config.Config {
	return config.Default()
}

var _ llm.Completer = (*scriptedCompleter)(nil)

// scriptedCompleter answers by model name and records every call
type scriptedCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []llm.CompletionOptions
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string, opts llm.CompletionOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, opts)
	c.prompts = append(c.prompts, prompt)
	if err := c.errs[opts.Model]; err != nil {
		return "", err
	}
	return c.replies[opts.Model], nil
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeRetriever struct {
	mu    sync.Mutex
	set   models.RetrievalSet
	err   error
	calls []models.QueryRoute
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, mode models.QueryMode, wellFilter string, _ int) (models.RetrievalSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, models.QueryRoute{Mode: mode, WellID: wellFilter})
	return f.set, f.err
}

type fakeGenerator struct {
	mu     sync.Mutex
	drafts []string
	err    error
	inputs []PromptInput
}

func (f *fakeGenerator) Generate(_ context.Context, in PromptInput, attempt int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return "", f.err
	}
	if attempt < len(f.drafts) {
		return f.drafts[attempt], nil
	}
	return f.drafts[len(f.drafts)-1], nil
}

type fakeJudge struct {
	mu       sync.Mutex
	verdicts []models.ValidationVerdict
	err      error
	calls    int
}

func (f *fakeJudge) Validate(_ context.Context, _ string, _ []models.Chunk, _ models.QueryMode) (models.ValidationVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.verdicts)-1)
	f.calls++
	return f.verdicts[i], f.err
}

type fakeExtractor struct {
	result models.TrajectoryResult
	err    error
	chunks []models.Chunk
}

func (f *fakeExtractor) Extract(_ context.Context, wellID string, chunks []models.Chunk) (models.TrajectoryResult, error) {
	f.chunks = chunks
	res := f.result
	res.WellID = wellID
	return res, f.err
}

type recordedTurn struct {
	session string
	turn    models.ConversationTurn
	verdict models.ValidationVerdict
}

type fakeRecorder struct {
	mu    sync.Mutex
	turns []recordedTurn
}

func (f *fakeRecorder) RecordTurn(_ context.Context, sessionID string, turn models.ConversationTurn, verdict models.ValidationVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, recordedTurn{sessionID, turn, verdict})
	return nil
}

func chunk(id, doc string, page int, mode models.ChunkMode, text string, wells ...string) models.Chunk {
	return models.Chunk{ID: id, SourceDocument: doc, PageNumber: page, Mode: mode, Text: text, WellIDs: wells}
}
