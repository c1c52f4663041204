// ABOUTME: CLI command to index well reports into the chunk store
// ABOUTME: Accepts PDF and text files or directories of them; one bad file does not stop the rest
package commands

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/ingest"
)

var (
	ingestNoEmbed     bool
	ingestConcurrency int
)

var ingestExtensions = map[string]bool{".pdf": true, ".txt": true, ".text": true, ".md": true}

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index well reports",
		Long: `Index well reports for question answering.

PDF pages are read directly; text files use form feeds as page breaks.
Directories are searched recursively. Well names are detected per document,
pages are chunked per mode and embedded before storing. Re-ingesting a file
replaces nothing and adds nothing new.

Examples:
  wellrag ingest reports/ADK-GT-01_EOWR.pdf
  wellrag ingest reports/
  wellrag ingest --no-embed notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().BoolVar(&ingestNoEmbed, "no-embed", false, "Store chunks for keyword search only")
	cmd.Flags().IntVar(&ingestConcurrency, "concurrency", 4, "Parallel embedding requests")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(ingestConcurrency, "concurrency"); err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .pdf, .txt or .md files found")
	}

	a, err := app.OpenStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !ingestNoEmbed {
		if err := a.Connect(); err != nil {
			return err
		}
	}
	ing := a.Ingester(!ingestNoEmbed)
	ing.SetConcurrency(ingestConcurrency)

	reports, ingestErr := ing.IngestFiles(cmd.Context(), files)
	if err := printReports(cmd, reports); err != nil {
		return err
	}
	if ingestErr != nil {
		return fmt.Errorf("%d of %d file(s) failed: %w", len(files)-len(reports), len(files), ingestErr)
	}
	return nil
}

// collectFiles expands directories and keeps supported extensions, sorted and unique
func collectFiles(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && ingestExtensions[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func printReports(cmd *cobra.Command, reports []ingest.Report) error {
	out := cmd.OutOrStdout()
	if jsonOutput() {
		if reports == nil {
			reports = []ingest.Report{}
		}
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}
	if quiet || len(reports) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DOCUMENT\tPAGES\tCHUNKS\tADDED\tWELLS\n")
	fmt.Fprintf(w, "--------\t-----\t------\t-----\t-----\n")
	total := 0
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", truncate(r.Document, 40), r.Pages, r.Chunks, r.Added, strings.Join(r.Wells, ","))
		total += r.Added
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n✓ Indexed %d document(s), %d new chunk(s)\n", len(reports), total)
	return nil
}
