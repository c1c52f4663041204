// ABOUTME: LLM tier of trajectory extraction
// ABOUTME: Asks for strict JSON rows and falls back to MD,TVD,ID CSV lines
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/models"
)

const (
	llmChunkChars       = 800
	extractionMaxTokens = 1500
	extractionTemp      = 0.1
)

type llmTrajectory struct {
	Unit   string     `json:"unit"`
	IDUnit string     `json:"id_unit"`
	Points []llmPoint `json:"points"`
}

type llmPoint struct {
	MD   *float64 `json:"md"`
	TVD  *float64 `json:"tvd"`
	ID   float64  `json:"id"`
	Page int      `json:"page"`
}

func (e *TrajectoryExtractor) extractWithLLM(ctx context.Context, wellID string, chunks []models.Chunk) (tierResult, error) {
	out, err := e.completer.Complete(ctx, buildExtractionPrompt(wellID, chunks), llm.CompletionOptions{
		Model:       e.model,
		Temperature: extractionTemp,
		MaxTokens:   extractionMaxTokens,
		Timeout:     e.timeout,
	})
	if err != nil {
		return tierResult{}, err
	}
	return buildTier(models.MethodLLMFallback, []segment{parseLLMTrajectory(out)}), nil
}

func buildExtractionPrompt(wellID string, chunks []models.Chunk) string {
	var sb strings.Builder
	sb.WriteString("Extract the well trajectory table from the well report excerpts below.\n")
	if wellID != "" {
		fmt.Fprintf(&sb, "Well: %s\n", wellID)
	}
	sb.WriteString("Find every row with MD (measured depth), TVD (true vertical depth) and ID (inner diameter).\n")
	sb.WriteString(`Reply with JSON only: {"unit": "m|ft", "id_unit": "m|in|mm", "points": [{"md": 0.0, "tvd": 0.0, "id": 0.0, "page": 1}]}`)
	sb.WriteString("\nunit is the depth unit and id_unit the diameter unit, as stated in the table. Do not invent rows.\n\nEXCERPTS:\n")
	for _, c := range chunks {
		fmt.Fprintf(&sb, "[p.%d]\n%s\n\n", c.PageNumber, truncate(c.Text, llmChunkChars))
	}
	return sb.String()
}

// parseLLMTrajectory reads the JSON reply, or MD,TVD,ID lines when there is no JSON
func parseLLMTrajectory(reply string) segment {
	var seg segment
	var parsed llmTrajectory
	if err := llm.DecodeJSON(reply, &parsed); err == nil && len(parsed.Points) > 0 {
		unit := normalizeUnit(parsed.Unit)
		idUnit := idUnitFor(normalizeUnit(parsed.IDUnit), unit)
		for _, p := range parsed.Points {
			if p.MD == nil || p.TVD == nil {
				continue
			}
			seg.rows = append(seg.rows, rawRow{
				md:      toMetres(*p.MD, unit),
				tvd:     toMetres(*p.TVD, unit),
				id:      toMetres(p.ID, idUnit),
				hasUnit: unit != "",
				page:    p.Page,
			})
		}
		return seg
	}

	for _, line := range strings.Split(reply, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) < 2 {
			continue
		}
		md, ok1 := parseNumber(strings.TrimSpace(parts[0]))
		tvd, ok2 := parseNumber(strings.TrimSpace(parts[1]))
		if !ok1 || !ok2 {
			continue
		}
		row := rawRow{md: md, tvd: tvd}
		if len(parts) > 2 {
			if id, ok := parseNumber(strings.TrimSpace(parts[2])); ok {
				row.id = id
			}
		}
		seg.rows = append(seg.rows, row)
	}
	return seg
}
