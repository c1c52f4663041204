// ABOUTME: Tests for report reading and ingestion into the in-memory store
// ABOUTME: Text fixtures stand in for PDFs; pages are separated by form feeds
package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/storage"
)

const reportText = "End of well report HAG-GT-01\n\nThe well reached a total depth of 2694 m MD." +
	"\f| MD (m) | TVD (m) | ID (in) |\n| 0 | 0 | 26 |\n| 500 | 499 | 13.375 |" +
	"\f\fSidetrack planned from HAG GT 02."

func writeReport(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func newIngester(embedder llm.Embedder) (*Ingester, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	chunker := core.NewChunker(config.Default().Chunking, core.EstimateCounter())
	return NewIngester(chunker, embedder, store, nil), store
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages("doc.txt", "one\ftwo\f\ffour")
	require.Len(t, pages, 4)
	assert.Equal(t, 4, pages[3].Number)
	assert.Equal(t, "four", pages[3].Text)
	assert.Equal(t, "doc.txt", pages[0].Document)
}

func TestReadPagesUnsupported(t *testing.T) {
	_, err := ReadPages("report.docx")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestReadPagesMissingPDF(t *testing.T) {
	_, err := ReadPages(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestIngestFile(t *testing.T) {
	var calls atomic.Int32
	embedder := llm.EmbedderFunc(func(context.Context, string) ([]float64, error) {
		calls.Add(1)
		return []float64{0.1, 0.2}, nil
	})
	ing, store := newIngester(embedder)
	path := writeReport(t, "HAG-GT-01_EOWR.txt", reportText)

	rep, err := ing.IngestFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "HAG-GT-01_EOWR.txt", rep.Document)
	assert.Equal(t, 4, rep.Pages)
	assert.Equal(t, []string{"HAG-GT-01", "HAG-GT-02"}, rep.Wells)
	assert.Positive(t, rep.Chunks)
	assert.Equal(t, rep.Chunks, rep.Added)
	assert.Equal(t, rep.Chunks, rep.Embedded)
	assert.Equal(t, int32(rep.Chunks), calls.Load())

	wells, err := store.Wells(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"HAG-GT-01", "HAG-GT-02"}, wells)

	hits, err := store.SearchKeyword(context.Background(), []string{"tvd"}, storage.Filter{Mode: models.ChunkModeTechnical}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 2, hits[0].Chunk.PageNumber)
	assert.Contains(t, hits[0].Chunk.Text, "| 500 | 499 | 13.375 |")
}

func TestIngestIsIdempotent(t *testing.T) {
	ing, store := newIngester(nil)
	path := writeReport(t, "report.txt", reportText)

	first, err := ing.IngestFile(context.Background(), path)
	require.NoError(t, err)
	second, err := ing.IngestFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Zero(t, second.Added)
	assert.Zero(t, second.Embedded)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Chunks, count)
}

func TestIngestEmbeddingFailure(t *testing.T) {
	down := models.Unavailable("embeddings", "embed", errors.New("refused"))
	ing, store := newIngester(llm.EmbedderFunc(func(context.Context, string) ([]float64, error) {
		return nil, down
	}))

	_, err := ing.IngestFile(context.Background(), writeReport(t, "report.txt", reportText))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrServiceUnavailable))

	count, _ := store.Count(context.Background())
	assert.Zero(t, count, "nothing is stored when embedding fails")
}

func TestIngestFilesContinuesPastFailures(t *testing.T) {
	ing, _ := newIngester(nil)
	good := writeReport(t, "good.txt", reportText)

	reports, err := ing.IngestFiles(context.Background(), []string{"bad.docx", good})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
	require.Len(t, reports, 1)
	assert.Equal(t, "good.txt", reports[0].Document)
}

func TestIngestBlankReport(t *testing.T) {
	ing, _ := newIngester(nil)
	rep, err := ing.IngestPages(context.Background(), "blank.txt", SplitPages("blank.txt", " \f "))
	require.NoError(t, err)
	assert.Zero(t, rep.Chunks)
	assert.Equal(t, 2, rep.Pages)
}
