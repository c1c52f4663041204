// ABOUTME: MCP tool definitions and registration for the wellrag server
// ABOUTME: Declares JSON schemas for question answering, trajectory extraction and session tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/wellrag/internal/logger"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, pipeline Pipeline, log logger.Logger) *Handlers {
	handlers := NewHandlers(pipeline, log)

	// 1. ask_question - answer a question about the indexed well reports
	server.AddTool(mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question about indexed geothermal well reports. Answers carry inline citations and an ensemble validation verdict. Reuse session_id for follow-up questions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation session id (omit to start a new session)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"factual", "summary", "extraction"},
					"description": "Force a query mode instead of routing by keywords",
				},
				"well_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict retrieval to one well",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.AskQuestion)

	// 2. extract_trajectory - structured MD/TVD/ID table for nodal analysis
	server.AddTool(mcp.Tool{
		Name:        "extract_trajectory",
		Description: "Extract the well trajectory (MD, TVD, inner diameter in metres) for a well, ready for nodal analysis.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"well_id": map[string]interface{}{
					"type":        "string",
					"description": "Well name, e.g. ADK-GT-01",
				},
				"format": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"json", "yaml", "csv"},
					"description": "Output format (default: json)",
				},
			},
			Required: []string{"well_id"},
		},
	}, handlers.ExtractTrajectory)

	// 3. reset_session - clear chat memory
	server.AddTool(mcp.Tool{
		Name:        "reset_session",
		Description: "Clear the chat memory of a session so follow-ups no longer resolve against earlier turns.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session to reset",
				},
			},
			Required: []string{"session_id"},
		},
	}, handlers.ResetSession)

	// 4. list_wells - wells known to the index
	server.AddTool(mcp.Tool{
		Name:        "list_wells",
		Description: "List the well names found in the indexed reports.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListWells)

	return handlers
}

// NewHandlers builds handlers without registering them
func NewHandlers(pipeline Pipeline, log logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handlers{
		pipeline: pipeline,
		log:      log,
	}
}
