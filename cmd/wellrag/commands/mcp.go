// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents ask questions and extract trajectories via stdio
package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs wellrag as an MCP (Model Context Protocol) server over stdio, so LLM
agents like Claude can ask cited questions about the well reports, extract
trajectories and manage chat sessions.

Logs go to stderr; stdout carries only protocol traffic. Set metrics.addr
(or WELLRAG_METRICS_ADDR) to also expose Prometheus metrics.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  wellrag mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "wellrag": {
  #       "command": "wellrag",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Log.Warn("error closing store", "error", err)
		}
	}()
	a.ServeMetrics(ctx)

	return mcp.ServeStdio(ctx, a.Agent, versionInfo.Version, a.Log)
}
