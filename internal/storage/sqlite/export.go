// ABOUTME: Export functionality for the conversation turn log
// ABOUTME: Supports YAML, JSON and Markdown export formats
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportFormat selects the export encoding
type ExportFormat string

const (
	FormatYAML     ExportFormat = "yaml"
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version    string          `yaml:"version" json:"version"`
	ExportedAt string          `yaml:"exported_at" json:"exported_at"`
	Tool       string          `yaml:"tool" json:"tool"`
	Sessions   []ExportSession `yaml:"sessions" json:"sessions"`
}

// ExportSession groups logged turns of one session
type ExportSession struct {
	SessionID string       `yaml:"session_id" json:"session_id"`
	Turns     []TurnRecord `yaml:"turns" json:"turns"`
}

// Export collects logged turns, optionally restricted to one session
func (l *TurnLog) Export(ctx context.Context, sessionID string) (*ExportData, error) {
	records, err := l.List(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "wellrag",
		Sessions:   []ExportSession{},
	}
	index := make(map[string]int)
	for _, rec := range records {
		i, ok := index[rec.SessionID]
		if !ok {
			i = len(data.Sessions)
			index[rec.SessionID] = i
			data.Sessions = append(data.Sessions, ExportSession{SessionID: rec.SessionID})
		}
		data.Sessions[i].Turns = append(data.Sessions[i].Turns, rec)
	}
	return data, nil
}

// WriteExport encodes the export in the requested format
func (l *TurnLog) WriteExport(ctx context.Context, w io.Writer, sessionID string, format ExportFormat) error {
	data, err := l.Export(ctx, sessionID)
	if err != nil {
		return err
	}

	switch format {
	case FormatYAML, "":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case FormatMarkdown:
		return writeMarkdown(w, data)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func writeMarkdown(w io.Writer, data *ExportData) error {
	_, _ = fmt.Fprintf(w, "# Well Report Q&A Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Generated: %s\n\n", data.ExportedAt)

	for _, s := range data.Sessions {
		_, _ = fmt.Fprintf(w, "## Session %s\n\n", s.SessionID)
		for _, rec := range s.Turns {
			status := "accepted"
			if !rec.Accepted {
				status = "rejected"
			}
			_, _ = fmt.Fprintf(w, "**Q%d (%s):** %s\n\n", rec.Turn.TurnIndex, rec.Turn.Mode, rec.Turn.Query)
			if rec.Turn.Answer != "" {
				_, _ = fmt.Fprintf(w, "**A:** %s\n\n", rec.Turn.Answer)
			}
			_, _ = fmt.Fprintf(w, "*%s, confidence %.2f", status, rec.Confidence)
			if len(rec.Turn.CitedWells) > 0 {
				_, _ = fmt.Fprintf(w, ", wells: %s", strings.Join(rec.Turn.CitedWells, ", "))
			}
			_, _ = fmt.Fprint(w, "*\n\n")
		}
		_, _ = fmt.Fprintln(w, "---")
		_, _ = fmt.Fprintln(w)
	}
	return nil
}
