// ABOUTME: Ingester turns report files into embedded, mode-specific chunks in the store
// ABOUTME: Wells are detected per document; re-ingesting the same file adds nothing
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
)

const defaultEmbedConcurrency = 4

// ChunkWriter is the write side of a chunk store
type ChunkWriter interface {
	Add(ctx context.Context, chunks ...models.Chunk) (int, error)
}

// Report summarizes one ingested document
type Report struct {
	Document string   `json:"document"`
	Pages    int      `json:"pages"`
	Wells    []string `json:"wells,omitempty"`
	Chunks   int      `json:"chunks"`
	Added    int      `json:"added"`
	Embedded int      `json:"embedded"`
}

// Ingester reads, chunks, embeds and stores reports
type Ingester struct {
	chunker     *core.Chunker
	embedder    llm.Embedder
	store       ChunkWriter
	concurrency int
	log         logger.Logger
}

// NewIngester creates an Ingester. A nil embedder stores chunks without
// vectors, which leaves them reachable by keyword search only.
func NewIngester(chunker *core.Chunker, embedder llm.Embedder, store ChunkWriter, log logger.Logger) *Ingester {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingester{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		concurrency: defaultEmbedConcurrency,
		log:         log,
	}
}

// SetConcurrency bounds parallel embedding calls
func (i *Ingester) SetConcurrency(n int) {
	i.concurrency = max(1, n)
}

// IngestFiles ingests each file, continuing past failures. The returned error
// joins every per-file failure.
func (i *Ingester) IngestFiles(ctx context.Context, paths []string) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, path := range paths {
		rep, err := i.IngestFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			i.log.Error("ingest failed", "file", filepath.Base(path), "error", err)
			errs = append(errs, err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// IngestFile reads one report and stores its chunks
func (i *Ingester) IngestFile(ctx context.Context, path string) (Report, error) {
	pages, err := ReadPages(path)
	if err != nil {
		return Report{}, err
	}
	return i.IngestPages(ctx, filepath.Base(path), pages)
}

// IngestPages chunks, embeds and stores already extracted pages
func (i *Ingester) IngestPages(ctx context.Context, document string, pages []core.Page) (Report, error) {
	var full strings.Builder
	for _, p := range pages {
		full.WriteString(p.Text)
		full.WriteString("\n")
	}
	wells := core.DetectWellNames(full.String())
	sort.Strings(wells)

	chunks := i.chunker.ChunkPages(pages, wells)
	rep := Report{Document: document, Pages: len(pages), Wells: wells, Chunks: len(chunks)}
	if len(chunks) == 0 {
		i.log.Warn("report has no text", "document", document, "pages", len(pages))
		return rep, nil
	}

	embedded, err := i.embed(ctx, chunks)
	if err != nil {
		return rep, fmt.Errorf("embed %s: %w", document, err)
	}
	rep.Embedded = embedded

	added, err := i.store.Add(ctx, chunks...)
	if err != nil {
		return rep, fmt.Errorf("store %s: %w", document, err)
	}
	rep.Added = added

	i.log.Info("report ingested", "document", document, "pages", rep.Pages, "wells", strings.Join(wells, ","),
		"chunks", rep.Chunks, "added", rep.Added)
	return rep, nil
}

// embed fills chunk embeddings in place
func (i *Ingester) embed(ctx context.Context, chunks []models.Chunk) (int, error) {
	if i.embedder == nil {
		i.log.Warn("no embedding service configured, storing chunks for keyword search only")
		return 0, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for idx := range chunks {
		g.Go(func() error {
			vec, err := i.embedder.Embed(gctx, chunks[idx].Text)
			if err != nil {
				return err
			}
			chunks[idx].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
