// ABOUTME: Stdio MCP server lifecycle shared by "wellrag mcp" and the standalone server binary
// ABOUTME: Waits for running tool calls before returning on shutdown
package mcp

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/wellrag/internal/logger"
)

// ServerName is reported to MCP clients
const ServerName = "wellrag"

// NewServer creates an MCP server with every tool registered
func NewServer(pipeline Pipeline, version string, log logger.Logger) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(
		ServerName,
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	return server, RegisterTools(server, pipeline, log)
}

// ServeStdio serves on stdin/stdout until the client disconnects or ctx is cancelled
func ServeStdio(ctx context.Context, pipeline Pipeline, version string, log logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	server, handlers := NewServer(pipeline, version, log)

	log.Info("MCP server starting on stdio")
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("server error: %w", err)
		}
	}

	handlers.Shutdown()
	log.Info("shutdown complete")
	return err
}
