// ABOUTME: Test runner for the benchmarks - seeds an isolated store, replays turns and scores answers
// ABOUTME: Each scenario gets its own fresh store so results never leak between tests

package ragas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/ingest"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/storage"
)

// Pipeline answers queries within a session
type Pipeline interface {
	Ask(ctx context.Context, sessionID, query string, opts core.AskOptions) (core.Answer, error)
}

// EnvironmentFactory builds a pipeline seeded with a scenario's documents.
// The returned cleanup releases everything the environment created.
type EnvironmentFactory func(ctx context.Context, scenario TestScenario) (Pipeline, func() error, error)

// BenchmarkRunner executes benchmark scenarios
type BenchmarkRunner struct {
	newEnv  EnvironmentFactory
	metrics *MetricsCalculator
	out     io.Writer
	verbose bool
}

// NewBenchmarkRunner creates a runner backed by the real pipeline. Scenarios
// are indexed in memory unless onDisk asks for a temporary SQLite database.
func NewBenchmarkRunner(cfg *config.Config, log logger.Logger, onDisk, verbose bool) (*BenchmarkRunner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	factory := MemoryEnvironment(cfg, log)
	if onDisk {
		factory = AppEnvironment(cfg, log)
	}
	return NewRunnerWithFactory(factory, os.Stdout, verbose), nil
}

// NewRunnerWithFactory creates a runner over any environment factory
func NewRunnerWithFactory(factory EnvironmentFactory, out io.Writer, verbose bool) *BenchmarkRunner {
	if out == nil {
		out = io.Discard
	}
	return &BenchmarkRunner{
		newEnv:  factory,
		metrics: NewMetricsCalculator(),
		out:     out,
		verbose: verbose,
	}
}

// MemoryEnvironment wires the full pipeline over an in-process chunk store.
// Turns are not logged.
func MemoryEnvironment(cfg *config.Config, log logger.Logger) EnvironmentFactory {
	return func(ctx context.Context, scenario TestScenario) (Pipeline, func() error, error) {
		client, err := llm.NewOpenAIClient(cfg.Service, log)
		if err != nil {
			return nil, nil, fmt.Errorf("creating model client: %w", err)
		}
		return memoryPipeline(ctx, cfg, client, scenario, log)
	}
}

func memoryPipeline(ctx context.Context, cfg *config.Config, service llm.Service, scenario TestScenario, log logger.Logger) (Pipeline, func() error, error) {
	store := storage.NewMemoryStore()
	if err := SeedDocuments(ctx, app.NewIngester(cfg, service, store, log), scenario.Documents); err != nil {
		return nil, nil, err
	}
	_, agent, err := app.BuildPipeline(cfg, service, store, nil, nil, log)
	if err != nil {
		return nil, nil, err
	}
	if _, err := agent.RefreshWells(ctx); err != nil {
		return nil, nil, err
	}
	return agent, func() error { return nil }, nil
}

// AppEnvironment wires the full pipeline over a fresh database in a temp dir
func AppEnvironment(cfg *config.Config, log logger.Logger) EnvironmentFactory {
	return func(ctx context.Context, scenario TestScenario) (Pipeline, func() error, error) {
		tmpDir, err := os.MkdirTemp("", fmt.Sprintf("wellrag_bench_%s_", scenario.ID))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create test dir: %w", err)
		}

		scoped := *cfg
		scoped.Storage.DBPath = filepath.Join(tmpDir, "wellrag.db")

		a, err := app.OpenStore(&scoped, log)
		if err != nil {
			_ = os.RemoveAll(tmpDir)
			return nil, nil, err
		}
		cleanup := func() error {
			err := a.Close()
			_ = os.RemoveAll(tmpDir)
			return err
		}

		if err := a.Connect(); err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		if err := SeedDocuments(ctx, a.Ingester(true), scenario.Documents); err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		// wire after seeding so the router knows the scenario's wells
		if err := a.Wire(ctx); err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		return a.Agent, cleanup, nil
	}
}

// SeedDocuments indexes scenario documents, one page per entry
func SeedDocuments(ctx context.Context, ing *ingest.Ingester, docs []SeedDocument) error {
	for _, doc := range docs {
		pages := ingest.SplitPages(doc.Name, strings.Join(doc.Pages, "\f"))
		if _, err := ing.IngestPages(ctx, doc.Name, pages); err != nil {
			return fmt.Errorf("seeding %s: %w", doc.Name, err)
		}
	}
	return nil
}

// RunTest executes a single benchmark scenario
func (r *BenchmarkRunner) RunTest(ctx context.Context, scenario TestScenario) (TestResult, error) {
	if r.verbose {
		fmt.Fprintf(r.out, "\n========================================\n")
		fmt.Fprintf(r.out, "RUNNING: %s\n", scenario.Name)
		fmt.Fprintf(r.out, "========================================\n")
		fmt.Fprintf(r.out, "Description: %s\n\n", scenario.Description)
	}

	pipeline, cleanup, err := r.newEnv(ctx, scenario)
	if err != nil {
		return TestResult{}, fmt.Errorf("setup failed: %w", err)
	}
	defer func() { _ = cleanup() }()

	var final core.Answer
	sessionID := ""
	for _, turn := range scenario.Turns {
		if r.verbose {
			fmt.Fprintf(r.out, "[Turn %d] Query: %s\n", turn.TurnNumber, turn.Query)
		}

		answer, err := pipeline.Ask(ctx, sessionID, turn.Query, core.AskOptions{Mode: turn.Mode, WellID: turn.WellID})
		if err != nil {
			return TestResult{}, fmt.Errorf("turn %d failed: %w", turn.TurnNumber, err)
		}
		sessionID = answer.SessionID

		if r.verbose {
			fmt.Fprintf(r.out, "[Turn %d] %s (%s): %s\n\n", turn.TurnNumber, answer.Status, answer.Mode, preview(answer.Text, 150))
		}

		if turn.TurnNumber == scenario.GroundTruth.FinalQueryTurn {
			final = answer
		}
	}

	result := r.metrics.EvaluateTest(scenario, final)

	if r.verbose {
		fmt.Fprintf(r.out, "\n========================================\n")
		fmt.Fprintf(r.out, "RESULTS: %s\n", scenario.Name)
		fmt.Fprintf(r.out, "========================================\n")
		fmt.Fprintf(r.out, "Citations: %.2f\n", result.CitationScore)
		fmt.Fprintf(r.out, "Faithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Fprintf(r.out, "Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Fprintf(r.out, "Overall Score: %.2f\n", result.OverallScore)
		fmt.Fprintf(r.out, "Status: %s\n", result.Status)
		fmt.Fprintf(r.out, "========================================\n\n")
	}

	return result, nil
}

// RunAllTests executes all benchmark scenarios
func (r *BenchmarkRunner) RunAllTests(ctx context.Context) ([]TestResult, error) {
	scenarios := GetAllTests()
	results := make([]TestResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		result, err := r.RunTest(ctx, scenario)
		if err != nil {
			return nil, fmt.Errorf("test %s failed: %w", scenario.ID, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// Summary is the exported benchmark report
type Summary struct {
	Timestamp  string       `json:"timestamp"`
	TotalTests int          `json:"total_tests"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Results    []TestResult `json:"results"`
}

// Summarize counts passes and failures
func Summarize(results []TestResult) Summary {
	s := Summary{
		Timestamp:  time.Now().Format(time.RFC3339),
		TotalTests: len(results),
		Results:    results,
	}
	for _, result := range results {
		if result.Status == "PASS" {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// ExportResults exports test results to JSON
func (r *BenchmarkRunner) ExportResults(results []TestResult, outputPath string) error {
	jsonData, err := json.MarshalIndent(Summarize(results), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	fmt.Fprintf(r.out, "✓ Results exported to: %s\n", outputPath)
	return nil
}
