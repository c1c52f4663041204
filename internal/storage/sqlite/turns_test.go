// ABOUTME: Tests for the turn log and its exports
// ABOUTME: Verifies session grouping, ordering, limits and export encodings
package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/wellrag/internal/models"
)

func newTestTurnLog(t *testing.T) *TurnLog {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewTurnLog(db)
}

func seedTurns(t *testing.T, log *TurnLog) {
	t.Helper()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	turns := []struct {
		session string
		turn    models.ConversationTurn
	}{
		{"s1", models.ConversationTurn{TurnIndex: 0, Query: "total depth of HAG-GT-01?", Answer: "2694.5 m (HAG-GT-01_EOWR.pdf, p.8)", CitedWells: []string{"HAG-GT-01"}, Mode: models.QueryModeFactual, Timestamp: base}},
		{"s1", models.ConversationTurn{TurnIndex: 1, Query: "and its casing?", Answer: "1200 m", Mode: models.QueryModeFactual, Timestamp: base.Add(time.Minute)}},
		{"s2", models.ConversationTurn{TurnIndex: 0, Query: "summarize ADK-GT-01", Answer: "summary", Mode: models.QueryModeSummary, Timestamp: base.Add(2 * time.Minute)}},
	}
	for _, tt := range turns {
		if _, err := log.Append(context.Background(), tt.session, tt.turn, true, 0.85); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestTurnLogAppendAndList(t *testing.T) {
	ctx := context.Background()
	log := newTestTurnLog(t)
	seedTurns(t, log)

	records, err := log.List(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}
	if records[0].Turn.TurnIndex != 0 || records[1].Turn.TurnIndex != 1 {
		t.Errorf("List() not chronological: %d, %d", records[0].Turn.TurnIndex, records[1].Turn.TurnIndex)
	}
	if got := records[0].Turn.CitedWells; len(got) != 1 || got[0] != "HAG-GT-01" {
		t.Errorf("CitedWells = %v", got)
	}
	if records[0].Turn.Mode != models.QueryModeFactual {
		t.Errorf("Mode = %q", records[0].Turn.Mode)
	}

	limited, err := log.List(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(limited) != 1 || limited[0].Turn.TurnIndex != 1 {
		t.Errorf("List(limit=1) should keep the latest turn, got %+v", limited)
	}

	all, err := log.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(all) returned %d records, want 3", len(all))
	}
}

func TestTurnLogAppendRequiresSession(t *testing.T) {
	log := newTestTurnLog(t)
	if _, err := log.Append(context.Background(), "", models.ConversationTurn{Query: "q"}, true, 1); err == nil {
		t.Error("Append() with empty session should fail")
	}
}

func TestTurnLogSessions(t *testing.T) {
	ctx := context.Background()
	log := newTestTurnLog(t)
	seedTurns(t, log)

	sessions, err := log.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions() returned %d, want 2", len(sessions))
	}
	if sessions[0].SessionID != "s2" {
		t.Errorf("most recent session = %s, want s2", sessions[0].SessionID)
	}
	if sessions[1].Turns != 2 {
		t.Errorf("s1 turns = %d, want 2", sessions[1].Turns)
	}

	n, err := log.DeleteSession(ctx, "s1")
	if err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteSession() removed %d, want 2", n)
	}
}

func TestTurnLogExport(t *testing.T) {
	ctx := context.Background()
	log := newTestTurnLog(t)
	seedTurns(t, log)

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := log.WriteExport(ctx, &buf, "", FormatYAML); err != nil {
			t.Fatalf("WriteExport() error = %v", err)
		}
		var data ExportData
		if err := yaml.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("invalid YAML: %v", err)
		}
		if len(data.Sessions) != 2 {
			t.Errorf("sessions = %d, want 2", len(data.Sessions))
		}
	})

	t.Run("json single session", func(t *testing.T) {
		var buf bytes.Buffer
		if err := log.WriteExport(ctx, &buf, "s2", FormatJSON); err != nil {
			t.Fatalf("WriteExport() error = %v", err)
		}
		var data ExportData
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(data.Sessions) != 1 || data.Sessions[0].SessionID != "s2" {
			t.Errorf("unexpected sessions: %+v", data.Sessions)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		if err := log.WriteExport(ctx, &buf, "s1", FormatMarkdown); err != nil {
			t.Fatalf("WriteExport() error = %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "## Session s1") || !strings.Contains(out, "wells: HAG-GT-01") {
			t.Errorf("markdown missing content:\n%s", out)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		if err := log.WriteExport(ctx, &buf, "", ExportFormat("xml")); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
