// ABOUTME: MCP tool handler implementations for the wellrag server
// ABOUTME: Tool errors are returned as error results; only transport failures are Go errors
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/nodal"
)

// Pipeline is the part of core.Agent the tools drive
type Pipeline interface {
	Ask(ctx context.Context, sessionID, query string, opts core.AskOptions) (core.Answer, error)
	Extract(ctx context.Context, wellID string) (models.TrajectoryResult, error)
	ResetSession(id string) bool
	RefreshWells(ctx context.Context) ([]string, error)
}

var _ Pipeline = (*core.Agent)(nil)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	pipeline Pipeline
	log      logger.Logger

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup // calls still running at shutdown
}

// begin registers a running call. It fails once Shutdown has started so
// no call is added while Shutdown waits.
func (h *Handlers) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.inFlight.Add(1)
	return true
}

func shuttingDown() *mcp.CallToolResult {
	return mcp.NewToolResultError("server is shutting down")
}

// AskQuestion handles the ask_question tool
func (h *Handlers) AskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !h.begin() {
		return shuttingDown(), nil
	}
	defer h.inFlight.Done()

	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	mode, err := parseMode(request.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := core.AskOptions{
		Mode:        mode,
		WellID:      strings.TrimSpace(request.GetString("well_id", "")),
		Interactive: true,
	}
	answer, err := h.pipeline.Ask(ctx, request.GetString("session_id", ""), query, opts)
	if err != nil {
		h.log.Warn("ask_question failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("question failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"session_id": answer.SessionID,
		"answer":     answer.Text,
		"status":     string(answer.Status),
		"mode":       string(answer.Mode),
		"well_id":    answer.WellID,
		"attempts":   answer.Attempts,
		"sources":    sourceSummaries(answer.Sources),
	}
	if answer.Verdict != nil {
		response["confidence"] = answer.Verdict.FinalConfidence
		response["accepted"] = answer.Verdict.Accepted
		response["issues"] = answer.Verdict.Issues
	}
	if answer.Trajectory != nil {
		response["trajectory"] = answer.Trajectory
	}
	if len(answer.Reasons) > 0 {
		response["reasons"] = answer.Reasons
	}

	return jsonResult(response)
}

// ExtractTrajectory handles the extract_trajectory tool
func (h *Handlers) ExtractTrajectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !h.begin() {
		return shuttingDown(), nil
	}
	defer h.inFlight.Done()

	wellID, err := request.RequireString("well_id")
	if err != nil || strings.TrimSpace(wellID) == "" {
		return mcp.NewToolResultError("well_id argument is required and must be a string"), nil
	}

	format, err := nodal.ParseFormat(request.GetString("format", string(nodal.FormatJSON)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := h.pipeline.Extract(ctx, strings.TrimSpace(wellID))
	if err != nil {
		h.log.Warn("extract_trajectory failed", "well", wellID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("trajectory extraction failed: %v", err)), nil
	}

	var buf bytes.Buffer
	if err := nodal.Export(&buf, result, format); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export trajectory: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// ResetSession handles the reset_session tool
func (h *Handlers) ResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !h.begin() {
		return shuttingDown(), nil
	}
	defer h.inFlight.Done()

	sessionID, err := request.RequireString("session_id")
	if err != nil || sessionID == "" {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}

	return jsonResult(map[string]interface{}{
		"session_id": sessionID,
		"reset":      h.pipeline.ResetSession(sessionID),
	})
}

// ListWells handles the list_wells tool
func (h *Handlers) ListWells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !h.begin() {
		return shuttingDown(), nil
	}
	defer h.inFlight.Done()

	wells, err := h.pipeline.RefreshWells(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list wells: %v", err)), nil
	}
	if wells == nil {
		wells = []string{}
	}
	return jsonResult(map[string]interface{}{
		"wells": wells,
		"count": len(wells),
	})
}

// Shutdown refuses new tool calls and waits for running ones to finish
func (h *Handlers) Shutdown() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.log.Info("waiting for running tool calls to complete")
	h.inFlight.Wait()
	h.log.Info("all tool calls completed")
}

func parseMode(s string) (models.QueryMode, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return models.ParseQueryMode(s)
}

func sourceSummaries(sources []models.RetrievalResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(sources))
	for _, s := range sources {
		out = append(out, map[string]interface{}{
			"chunk_id": s.Chunk.ID,
			"citation": s.Chunk.Citation(),
			"score":    s.FusedScore,
		})
	}
	return out
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
