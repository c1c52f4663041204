// ABOUTME: CLI command to inspect the effective configuration
// ABOUTME: Prints the merged YAML after file and environment overrides, or the file paths
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/config"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show the effective configuration after the config file and WELLRAG_*
environment overrides are applied. The API key is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *cfg
			if shown.Service.APIKey != "" {
				shown.Service.APIKey = "****"
			}
			return shown.WriteYAML(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config and database paths",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path := configPath
			if path == "" {
				path = os.Getenv("WELLRAG_CONFIG")
			}
			if path == "" {
				path = config.DefaultConfigPath()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config:   %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "database: %s\n", cfg.Storage.DBPath)
		},
	})

	return cmd
}
