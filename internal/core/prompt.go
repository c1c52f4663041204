// ABOUTME: Prompt assembly for answer generation, one profile per query mode
// ABOUTME: Chunks are rendered with [document, p.N] headers so answers can cite them
package core

import (
	"fmt"
	"strings"

	"github.com/harper/wellrag/internal/models"
)

// modeProfile sizes the context window and instructions for a query mode
type modeProfile struct {
	maxChunks    int
	chunkChars   int
	maxTokens    int
	instructions string
}

const citationRule = "Cite every number inline as: value (document_name, p.X), using the document and page " +
	"from the chunk header. Only use values that appear in the context. If the context does not contain " +
	"the answer, say so."

func profileFor(mode models.QueryMode) modeProfile {
	switch mode {
	case models.QueryModeSummary:
		return modeProfile{
			maxChunks:  15,
			chunkChars: 400,
			maxTokens:  450,
			instructions: "Write a structured summary of the well with these sections: Location and purpose; " +
				"Depths (MD/TVD); Casing and completion; Reservoir and temperatures; Notable events. " +
				"Skip a section when the context says nothing about it.",
		}
	case models.QueryModeExtraction:
		return modeProfile{
			maxChunks:    8,
			chunkChars:   800,
			maxTokens:    600,
			instructions: "List the well trajectory rows (MD, TVD, inner diameter) found in the context.",
		}
	default:
		return modeProfile{
			maxChunks:    10,
			chunkChars:   700,
			maxTokens:    300,
			instructions: "Answer the question concisely in one to three sentences.",
		}
	}
}

// PromptInput is everything a generation prompt is built from
type PromptInput struct {
	Query         string
	Mode          models.QueryMode
	WellID        string
	Chunks        []models.Chunk
	MemoryContext string
	PriorIssues   []string
}

// BuildPrompt renders the user prompt for a generation attempt
func BuildPrompt(in PromptInput) string {
	p := profileFor(in.Mode)
	var sb strings.Builder

	sb.WriteString("You answer questions about geothermal well reports using only the context below.\n")
	sb.WriteString(p.instructions + "\n")
	sb.WriteString(citationRule + "\n\n")

	if in.MemoryContext != "" {
		sb.WriteString("CONVERSATION SO FAR:\n")
		sb.WriteString(truncate(in.MemoryContext, 300) + "\n\n")
	}

	if len(in.PriorIssues) > 0 {
		sb.WriteString("A previous draft was rejected. Fix these problems:\n")
		for _, issue := range in.PriorIssues {
			sb.WriteString("- " + issue + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("CONTEXT:\n")
	for i, c := range in.Chunks {
		if i >= p.maxChunks {
			break
		}
		fmt.Fprintf(&sb, "[%s, p.%d]\n%s\n\n", c.SourceDocument, c.PageNumber, truncate(c.Text, p.chunkChars))
	}

	if in.WellID != "" {
		fmt.Fprintf(&sb, "WELL: %s\n", in.WellID)
	}
	fmt.Fprintf(&sb, "QUESTION: %s\nANSWER:", in.Query)
	return sb.String()
}
