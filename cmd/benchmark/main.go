// ABOUTME: Command-line benchmark runner for the well report pipeline
// ABOUTME: Runs citation, faithfulness and context recall scenarios and writes JSON results

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harper/wellrag/benchmarks/ragas"
	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/logger"
)

func main() {
	testID := flag.String("test", "", "Run specific test ("+strings.Join(scenarioIDs(), ", ")+"). If empty, runs all tests.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	configPath := flag.String("config", os.Getenv("WELLRAG_CONFIG"), "Config file")
	onDisk := flag.Bool("sqlite", false, "Index scenarios into a temporary SQLite database instead of memory")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	lc := logger.DefaultConfig()
	lc.Output = os.Stderr
	if *verbose {
		lc.Level = logger.DebugLevel
	}
	log := logger.NewLogger(lc)

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, continuing", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading config", "error", err)
		os.Exit(1)
	}

	fmt.Println("========================================")
	fmt.Println("WELLRAG Benchmarks")
	fmt.Println("========================================")
	fmt.Println()

	runner, err := ragas.NewBenchmarkRunner(cfg, log, *onDisk, *verbose)
	if err != nil {
		log.Error("failed to create benchmark runner", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []ragas.TestResult
	if *testID == "" {
		fmt.Println("Running all benchmark tests...")
		fmt.Println()

		results, err = runner.RunAllTests(ctx)
		if err != nil {
			log.Error("benchmark failed", "error", err)
			os.Exit(1)
		}
	} else {
		scenario, ok := ragas.GetTest(*testID)
		if !ok {
			log.Error("unknown test", "id", *testID, "valid", strings.Join(scenarioIDs(), ", "))
			os.Exit(1)
		}

		fmt.Printf("Running test: %s\n\n", scenario.Name)

		result, err := runner.RunTest(ctx, scenario)
		if err != nil {
			log.Error("test failed", "id", *testID, "error", err)
			os.Exit(1)
		}
		results = []ragas.TestResult{result}
	}

	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println("========================================")

	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.TestID, result.TestName)
		fmt.Printf("  Citations: %.2f\n", result.CitationScore)
		fmt.Printf("  Faithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Printf("  Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Printf("  Overall: %.2f\n", result.OverallScore)
		fmt.Printf("  Status: %s\n", result.Status)
	}

	summary := ragas.Summarize(results)
	fmt.Println("\n========================================")
	fmt.Printf("Total Tests: %d\n", summary.TotalTests)
	fmt.Printf("Passed: %d\n", summary.Passed)
	fmt.Printf("Failed: %d\n", summary.Failed)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, *outputPath); err != nil {
		log.Error("failed to export results", "error", err)
		os.Exit(1)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func scenarioIDs() []string {
	var ids []string
	for _, s := range ragas.GetAllTests() {
		ids = append(ids, s.ID)
	}
	return ids
}
