// ABOUTME: CLI command to ask one question about the indexed well reports
// ABOUTME: Prints the cited answer with its validation verdict and sources
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/models"
)

var (
	askSession string
	askMode    string
	askWell    string
	askTopK    int
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the well reports",
		Long: `Ask one question about the indexed well reports.

The query is routed to factual, summary or extraction mode, answered from
retrieved passages with inline citations and checked by the judge ensemble.
Rejected answers are still shown, marked with the judges' issues.

Examples:
  wellrag ask "What is the total depth of ADK-GT-01?"
  wellrag ask --mode summary "Summarize the completion of NLW-GT-03"
  wellrag ask --well HAG-GT-01 --format json "casing shoe depth"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askSession, "session", "", "Session id (only meaningful with a long-running process)")
	cmd.Flags().StringVar(&askMode, "mode", "", "Force mode: factual, summary or extraction")
	cmd.Flags().StringVar(&askWell, "well", "", "Restrict retrieval to one well")
	cmd.Flags().IntVar(&askTopK, "top-k", 0, "Override the number of retrieved chunks")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	opts, err := askOptions(askMode, askWell, askTopK)
	if err != nil {
		return err
	}

	a, err := app.Open(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	answer, err := a.Agent.Ask(cmd.Context(), askSession, strings.Join(args, " "), opts)
	if err != nil {
		return err
	}
	return printAnswer(cmd.OutOrStdout(), answer)
}

func askOptions(mode, well string, topK int) (core.AskOptions, error) {
	opts := core.AskOptions{WellID: strings.TrimSpace(well), TopK: topK}
	if topK < 0 {
		return opts, fmt.Errorf("top-k must not be negative, got %d", topK)
	}
	if mode != "" {
		m, err := models.ParseQueryMode(mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = m
	}
	return opts, nil
}

func printAnswer(w io.Writer, answer core.Answer) error {
	if jsonOutput() {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	fmt.Fprintln(w, answer.Text)
	if quiet {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s  mode=%s", statusMark(answer.Status), answer.Mode)
	if answer.WellID != "" {
		fmt.Fprintf(w, " well=%s", answer.WellID)
	}
	if answer.Verdict != nil {
		fmt.Fprintf(w, " confidence=%.2f attempts=%d", answer.Verdict.FinalConfidence, answer.Attempts)
	}
	fmt.Fprintln(w)

	if answer.Verdict != nil {
		for _, issue := range answer.Verdict.Issues {
			fmt.Fprintf(w, "  ! %s\n", issue)
		}
	}
	for _, reason := range answer.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	if verbose {
		for _, src := range answer.Sources {
			fmt.Fprintf(w, "  [%d] %.3f %s\n", src.Rank, src.FusedScore, src.Chunk.Citation())
		}
	}
	return nil
}

func statusMark(status core.AnswerStatus) string {
	switch status {
	case core.StatusOK:
		return "✓ accepted"
	case core.StatusRejected:
		return "✗ rejected"
	case core.StatusDegraded:
		return "~ degraded"
	case core.StatusEmpty:
		return "∅ no passages"
	default:
		return "! " + string(status)
	}
}
