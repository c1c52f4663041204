// ABOUTME: Root command, global flags and shared configuration loading for the wellrag CLI
// ABOUTME: Loads .env and the YAML config once before any subcommand runs
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/logger"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string

	// set by PersistentPreRunE
	cfg *config.Config
)

const banner = `
██╗    ██╗███████╗██╗     ██╗     ██████╗  █████╗  ██████╗
██║    ██║██╔════╝██║     ██║     ██╔══██╗██╔══██╗██╔════╝
██║ █╗ ██║█████╗  ██║     ██║     ██████╔╝███████║██║  ███╗
██║███╗██║██╔══╝  ██║     ██║     ██╔══██╗██╔══██║██║   ██║
╚███╔███╔╝███████╗███████╗███████╗██║  ██║██║  ██║╚██████╔╝
 ╚══╝╚══╝ ╚══════╝╚══════╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wellrag",
		Short: "Question answering over geothermal well reports",
		Long: banner + `

Ask cited questions about indexed geothermal well reports, extract well
trajectories for nodal analysis and serve the pipeline to LLM agents over MCP.

Answers are validated by an ensemble of judge models before they are shown.
Configuration is read from $XDG_CONFIG_HOME/wellrag/config.yaml and WELLRAG_*
environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text or json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $WELLRAG_CONFIG or $XDG_CONFIG_HOME/wellrag/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewExtractCmd(),
		NewNodalCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewWellsCmd(),
		NewStatsCmd(),
		NewHistoryCmd(),
		NewExportCmd(),
		NewConfigCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("WELLRAG_CONFIG")
	}
	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded
	return nil
}

// newLogger honours --verbose and --quiet over the configured level
func newLogger() logger.Logger {
	lc := logger.DefaultConfig()
	lc.Output = os.Stderr
	if cfg != nil {
		lc.Level = logger.LogLevel(cfg.Log.Level)
		lc.JSON = cfg.Log.JSON
	}
	switch {
	case verbose:
		lc.Level = logger.DebugLevel
	case quiet:
		lc.Level = logger.ErrorLevel
	}
	return logger.NewLogger(lc)
}

func jsonOutput() bool {
	return outputFormat == "json"
}
