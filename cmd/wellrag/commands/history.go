// ABOUTME: CLI commands to browse and export the conversation turn log
// ABOUTME: history lists sessions or one session's turns, export writes YAML, JSON or Markdown
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/storage/sqlite"
)

var (
	historySession string
	historyLimit   int

	exportSession string
	exportFmt     string
	exportOutput  string
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List logged sessions and turns",
		Long: `List logged question answering sessions, or the turns of one session.

Every answered turn is logged with its validation outcome, including
rejected answers that never entered the session's memory.

Examples:
  wellrag history
  wellrag history --session 3f2a...
  wellrag history --limit 50 --format json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().StringVar(&historySession, "session", "", "Show the turns of one session")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum turns to show")

	return cmd
}

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the turn log",
		Long: `Export logged turns as YAML, JSON or Markdown.

Examples:
  wellrag export
  wellrag export --export-format markdown --output review.md
  wellrag export --session 3f2a... --export-format json`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVar(&exportSession, "session", "", "Export one session only")
	cmd.Flags().StringVar(&exportFmt, "export-format", "yaml", "Export format: yaml, json or markdown")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(historyLimit, "limit"); err != nil {
		return err
	}

	a, err := app.OpenStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if historySession == "" {
		sessions, err := a.Turns.Sessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		return printSessions(cmd.OutOrStdout(), sessions)
	}

	records, err := a.Turns.List(cmd.Context(), historySession, historyLimit)
	if err != nil {
		return fmt.Errorf("listing turns: %w", err)
	}
	return printTurns(cmd.OutOrStdout(), records)
}

func printSessions(out io.Writer, sessions []sqlite.SessionSummary) error {
	if len(sessions) == 0 {
		if !quiet {
			fmt.Fprintln(out, "No sessions logged")
		}
		return nil
	}
	if jsonOutput() {
		return writeJSON(out, sessions)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SESSION\tTURNS\tLAST\n")
	fmt.Fprintf(w, "-------\t-----\t----\n")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.SessionID, s.Turns, formatTime(s.LastAt))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(out, "\nTotal: %d session(s)\n", len(sessions))
	}
	return nil
}

func printTurns(out io.Writer, records []sqlite.TurnRecord) error {
	if len(records) == 0 {
		if !quiet {
			fmt.Fprintln(out, "No turns found")
		}
		return nil
	}
	if jsonOutput() {
		return writeJSON(out, records)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tWHEN\tMODE\tCONF\tOK\tQUERY\n")
	fmt.Fprintf(w, "-\t----\t----\t----\t--\t-----\n")
	for _, r := range records {
		ok := "✓"
		if !r.Accepted {
			ok = "✗"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\t%s\n",
			r.Turn.TurnIndex,
			formatTime(r.Turn.Timestamp),
			r.Turn.Mode,
			r.Confidence,
			ok,
			truncate(r.Turn.Query, 60))
	}
	_ = w.Flush()
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := parseExportFormat(exportFmt)
	if err != nil {
		return err
	}

	a, err := app.OpenStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOutput, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := a.Turns.WriteExport(cmd.Context(), out, exportSession, format); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if exportOutput != "" && !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported to %s\n", exportOutput)
	}
	return nil
}

func parseExportFormat(s string) (sqlite.ExportFormat, error) {
	switch s {
	case "yaml", "yml", "":
		return sqlite.FormatYAML, nil
	case "json":
		return sqlite.FormatJSON, nil
	case "markdown", "md":
		return sqlite.FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (use yaml, json or markdown)", s)
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(out, "%s\n", data)
	return nil
}
