// ABOUTME: CLI commands to inspect retrieval without generating an answer
// ABOUTME: search shows fused hybrid scores, wells lists the wells found in indexed reports
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/models"
)

var (
	searchLimit int
	searchMode  string
	searchWell  string
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed report passages",
		Long: `Search indexed passages with hybrid semantic and keyword retrieval.

Shows the semantic, keyword and fused scores of each hit. Useful to check why
an answer cited what it cited. When the embedding service is down the search
falls back to keywords and says so.

Examples:
  wellrag search "casing shoe depth"
  wellrag search --limit 10 --well ADK-GT-01 "production temperature"
  wellrag search --format json "trajectory table"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")
	cmd.Flags().StringVar(&searchMode, "mode", "factual", "Mode whose chunks to search: factual, summary or extraction")
	cmd.Flags().StringVar(&searchWell, "well", "", "Restrict results to one well")

	return cmd
}

// NewWellsCmd creates the wells command
func NewWellsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wells",
		Short: "List wells found in indexed reports",
		Long:  `List the well names detected in the indexed reports.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.OpenStore(cfg, newLogger())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			wells, err := a.Chunks.Wells(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing wells: %w", err)
			}
			if jsonOutput() {
				if wells == nil {
					wells = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), wells)
			}
			for _, w := range wells {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			if len(wells) == 0 && !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "No wells indexed yet (run wellrag ingest)")
			}
			return nil
		},
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	mode, err := models.ParseQueryMode(searchMode)
	if err != nil {
		return err
	}

	a, err := app.Open(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	set, err := a.Retriever.Retrieve(cmd.Context(), args[0], mode, searchWell, searchLimit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, set)
	}

	if len(set.Results) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No passages found for query: %s\n", args[0])
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tFUSED\tSEM\tKW\tSOURCE\tPREVIEW\n")
	fmt.Fprintf(w, "----\t-----\t---\t--\t------\t-------\n")
	for _, r := range set.Results {
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%s\t%s\n",
			r.Rank,
			r.FusedScore,
			r.SemanticScore,
			r.KeywordScore,
			truncate(r.Chunk.Citation(), 30),
			truncate(r.Chunk.Text, 60))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(out, "\nFound %d result(s)\n", len(set.Results))
		for _, reason := range set.Reasons {
			fmt.Fprintf(out, "  ~ degraded: %s\n", reason)
		}
	}
	return nil
}
