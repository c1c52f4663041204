// ABOUTME: End-to-end tests for commands that only touch the local store
// ABOUTME: ingest (keyword-only), wells, history and export against a temp database

package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/models"
)

const reportText = "End of well report ADK-GT-01\n\nThe well ADK-GT-01 reached a total depth of 2694 m MD.\f" +
	"Trajectory\n\nMD 0 m TVD 0 m\nMD 1200 m TVD 1150 m\nMD 2694 m TVD 2610 m"

func writeReport(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(reportText), 0o600))
	return path
}

func TestIngestAndWells(t *testing.T) {
	dir := isolate(t)
	report := writeReport(t, dir, "ADK-GT-01_EOWR.txt")

	out, err := execute(t, "ingest", "--no-embed", report)
	require.NoError(t, err)
	assert.Contains(t, out, "ADK-GT-01_EOWR.txt")
	assert.Contains(t, out, "Indexed 1 document(s)")

	out, err = execute(t, "wells")
	require.NoError(t, err)
	assert.Equal(t, "ADK-GT-01\n", out)

	out, err = execute(t, "--format", "json", "wells")
	require.NoError(t, err)
	var wells []string
	require.NoError(t, json.Unmarshal([]byte(out), &wells))
	assert.Equal(t, []string{"ADK-GT-01"}, wells)
}

func TestStats(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:  0")

	report := writeReport(t, dir, "ADK-GT-01_EOWR.txt")
	_, err = execute(t, "ingest", "--no-embed", report)
	require.NoError(t, err)

	out, err = execute(t, "--format", "json", "stats")
	require.NoError(t, err)
	var stats struct {
		Documents int `json:"documents"`
		Chunks    int `json:"chunks"`
		Embedded  int `json:"embedded"`
		Wells     int `json:"wells"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Documents)
	assert.Positive(t, stats.Chunks)
	assert.Zero(t, stats.Embedded)
	assert.Equal(t, 1, stats.Wells)

	out, err = execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "have no embedding")
}

func TestIngest_ReingestAddsNothing(t *testing.T) {
	dir := isolate(t)
	report := writeReport(t, dir, "ADK-GT-01_EOWR.txt")

	_, err := execute(t, "ingest", "--no-embed", report)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "ingest", "--no-embed", report)
	require.NoError(t, err)
	var reports []struct {
		Chunks int `json:"chunks"`
		Added  int `json:"added"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Positive(t, reports[0].Chunks)
	assert.Zero(t, reports[0].Added)
}

func TestIngest_FailuresReported(t *testing.T) {
	dir := isolate(t)
	good := writeReport(t, dir, "good.txt")
	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))

	out, err := execute(t, "ingest", "--no-embed", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 file(s) failed")
	assert.Contains(t, out, "good.txt")
}

func TestIngest_Validation(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "ingest", "--concurrency", "0", dir)
	assert.ErrorContains(t, err, "concurrency must be positive")

	_, err = execute(t, "ingest", dir)
	assert.ErrorContains(t, err, "no .pdf, .txt or .md files found")

	_, err = execute(t, "ingest", filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"b.pdf", "a.TXT", "notes.md", "image.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.pdf"), nil, 0o600))
	explicit := filepath.Join(dir, "image.png")

	files, err := collectFiles([]string{dir, filepath.Join(dir, "b.pdf"), explicit})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.TXT"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "image.png"),
		filepath.Join(dir, "nested", "c.pdf"),
		filepath.Join(dir, "notes.md"),
	}, files)
}

func seedTurns(t *testing.T) {
	t.Helper()
	c, err := config.Load(os.Getenv("WELLRAG_CONFIG"))
	require.NoError(t, err)
	a, err := app.OpenStore(c, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	accepted, err := models.NewConversationTurn("What is the TD of ADK-GT-01?", "2694 m (ADK-GT-01_EOWR.txt, p.1)", models.QueryModeFactual, "ADK-GT-01")
	require.NoError(t, err)
	accepted.TurnIndex = 1
	_, err = a.Turns.Append(ctx, "session-a", accepted, true, 0.875)
	require.NoError(t, err)

	rejected, err := models.NewConversationTurn("And its TVD?", "2700 m", models.QueryModeFactual)
	require.NoError(t, err)
	_, err = a.Turns.Append(ctx, "session-a", rejected, false, 0.4)
	require.NoError(t, err)
}

func TestHistory(t *testing.T) {
	isolate(t)

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions logged")

	seedTurns(t)

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "session-a")
	assert.Contains(t, out, "Total: 1 session(s)")

	out, err = execute(t, "history", "--session", "session-a")
	require.NoError(t, err)
	assert.Contains(t, out, "What is the TD of ADK-GT-01?")
	assert.Contains(t, out, "0.88")
	assert.Contains(t, out, "✗")

	_, err = execute(t, "history", "--limit", "0")
	assert.ErrorContains(t, err, "limit must be positive")
}

func TestExport(t *testing.T) {
	dir := isolate(t)
	seedTurns(t)

	out, err := execute(t, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "tool: wellrag")
	assert.Contains(t, out, "session_id: session-a")

	target := filepath.Join(dir, "review.json")
	_, err = execute(t, "export", "--export-format", "json", "--output", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var exported struct {
		Sessions []struct {
			Turns []json.RawMessage `json:"turns"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	require.Len(t, exported.Sessions, 1)
	assert.Len(t, exported.Sessions[0].Turns, 2)

	_, err = execute(t, "export", "--export-format", "xml")
	assert.ErrorContains(t, err, "unknown export format")
}
