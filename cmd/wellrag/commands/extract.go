// ABOUTME: CLI commands for trajectory extraction and the nodal-analysis handoff
// ABOUTME: extract prints or writes the MD/TVD/ID table, nodal also runs the external tool
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/nodal"
)

var (
	extractOutput string
	extractFormat string

	nodalCommand string
	nodalTimeout time.Duration
	nodalKeep    bool
)

// NewExtractCmd creates the extract command
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <well>",
		Short: "Extract a well trajectory table",
		Long: `Extract the trajectory (MD, TVD, inner diameter) of a well from its reports.

Tables are parsed directly when possible; a model extracts the rest and the two
are merged. All values are converted to metres.

Examples:
  wellrag extract ADK-GT-01
  wellrag extract ADK-GT-01 --output adk.csv
  wellrag extract ADK-GT-01 --export-format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Write the trajectory to a file (format from extension)")
	cmd.Flags().StringVar(&extractFormat, "export-format", "", "Export format: json, yaml or csv")

	return cmd
}

// NewNodalCmd creates the nodal command
func NewNodalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodal <well>",
		Short: "Extract a trajectory and run nodal analysis on it",
		Long: `Extract the trajectory of a well, export it and hand it to an external
nodal-analysis command, which receives "--input <file>".

Examples:
  wellrag nodal ADK-GT-01 --command "python nodal/NodalAnalysis.py"
  wellrag nodal ADK-GT-01 --command ./nodal --timeout 2m --keep`,
		Args: cobra.ExactArgs(1),
		RunE: runNodal,
	}

	cmd.Flags().StringVar(&nodalCommand, "command", os.Getenv("WELLRAG_NODAL_COMMAND"), "Nodal-analysis command (env WELLRAG_NODAL_COMMAND)")
	cmd.Flags().DurationVar(&nodalTimeout, "timeout", nodal.DefaultTimeout, "Maximum run time")
	cmd.Flags().BoolVar(&nodalKeep, "keep", false, "Keep the exported input file")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	format, err := exportFormat(extractFormat, extractOutput)
	if err != nil {
		return err
	}

	a, err := app.Open(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Agent.Extract(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extracting trajectory: %w", err)
	}

	if extractOutput != "" {
		if err := nodal.WriteFile(extractOutput, result, format); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d points for %s to %s\n", len(result.Points), result.WellID, extractOutput)
		}
		return nil
	}

	if extractFormat != "" || jsonOutput() {
		return nodal.Export(cmd.OutOrStdout(), result, format)
	}
	printTrajectory(cmd.OutOrStdout(), result)
	return nil
}

func runNodal(cmd *cobra.Command, args []string) error {
	runner, err := nodal.NewRunner(nodalCommand, nodalTimeout)
	if err != nil {
		return fmt.Errorf("%w (set --command or WELLRAG_NODAL_COMMAND)", err)
	}

	a, err := app.Open(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Agent.Extract(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extracting trajectory: %w", err)
	}
	if result.Empty() {
		return fmt.Errorf("no trajectory found for %s: %s", args[0], strings.Join(result.Reasons, "; "))
	}

	dir, err := os.MkdirTemp("", "wellrag-nodal-")
	if err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	if !nodalKeep {
		defer func() { _ = os.RemoveAll(dir) }()
	}
	input := filepath.Join(dir, result.WellID+".json")
	if err := nodal.WriteFile(input, result, nodal.FormatJSON); err != nil {
		return err
	}

	a.Log.Info("running nodal analysis", "well", result.WellID, "points", len(result.Points), "input", input)
	res, err := runner.Run(cmd.Context(), input)
	fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Nodal analysis finished in %s\n", res.Elapsed.Round(time.Millisecond))
		if nodalKeep {
			fmt.Fprintf(cmd.ErrOrStderr(), "  input kept at %s\n", input)
		}
	}
	return nil
}

func exportFormat(flag, path string) (nodal.Format, error) {
	if flag != "" {
		return nodal.ParseFormat(flag)
	}
	if path != "" {
		return nodal.FormatFromPath(path), nil
	}
	return nodal.FormatJSON, nil
}

func printTrajectory(w io.Writer, result models.TrajectoryResult) {
	if result.Empty() {
		fmt.Fprintf(w, "No trajectory found for %s\n", result.WellID)
		for _, r := range result.Reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "MD (m)\tTVD (m)\tID (m)\tPAGE\t\n")
	for _, p := range result.Points {
		fmt.Fprintf(tw, "%.2f\t%.2f\t%.4f\t%d\t\n", p.MeasuredDepth, p.TrueVerticalDepth, p.InnerDiameter, p.SourcePage)
	}
	_ = tw.Flush()

	if quiet {
		return
	}
	fmt.Fprintf(w, "\n%s: %d points, method %s, confidence %.2f", result.WellID, len(result.Points), result.Method, result.Confidence)
	if result.UnitAssumed {
		fmt.Fprint(w, " (unit assumed)")
	}
	fmt.Fprintln(w)
	for _, a := range result.Anomalies {
		fmt.Fprintf(w, "  ! %s\n", a)
	}
	for _, r := range result.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}
