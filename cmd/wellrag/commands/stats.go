// ABOUTME: CLI command summarizing the local index and turn log
// ABOUTME: Counts documents, chunks, embeddings, wells, sessions and turns
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Show how many reports, chunks and wells are indexed and how many
conversation turns have been logged. Chunks without embeddings are only
reachable by keyword search.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.OpenStore(cfg, newLogger())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.DB.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Database:\t%s\n", a.DB.Path())
			fmt.Fprintf(w, "Documents:\t%d\n", stats.Documents)
			fmt.Fprintf(w, "Chunks:\t%d (%d embedded)\n", stats.Chunks, stats.Embedded)
			fmt.Fprintf(w, "Wells:\t%d\n", stats.Wells)
			fmt.Fprintf(w, "Sessions:\t%d (%d turns)\n", stats.Sessions, stats.Turns)
			if err := w.Flush(); err != nil {
				return err
			}
			if stats.Chunks > stats.Embedded && !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d chunk(s) have no embedding; re-run ingest with a model endpoint for semantic search\n",
					stats.Chunks-stats.Embedded)
			}
			return nil
		},
	}
}
