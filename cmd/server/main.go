// ABOUTME: Standalone MCP server binary with stdio transport
// ABOUTME: Loads config, wires the pipeline and optionally serves Prometheus metrics
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/mcp"
)

var version = "dev"

func main() {
	// stdout belongs to the protocol, so everything else goes to stderr
	log := logger.NewLogger(nil)

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found", "error", err)
	}

	cfg, err := config.Load(os.Getenv("WELLRAG_CONFIG"))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log = logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		JSON:       cfg.Log.JSON,
		Output:     os.Stderr,
		TimeFormat: logger.DefaultConfig().TimeFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	a.ServeMetrics(ctx)

	err = mcp.ServeStdio(ctx, a.Agent, version, log)
	if cerr := a.Close(); cerr != nil {
		log.Warn("error closing store", "error", cerr)
	}
	if err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
