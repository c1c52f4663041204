// ABOUTME: Chunker splits report pages into mode-specific word windows with page metadata
// ABOUTME: Table-like paragraphs are kept whole so trajectory rows are never split
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/models"
)

const defaultEncoding = "cl100k_base"

// chunkNamespace seeds deterministic chunk ids so re-ingesting a report is idempotent
var chunkNamespace = uuid.MustParse("6f1c1a52-3c55-4bd4-9d0e-5b8a4c1f2e7d")

var tableLine = regexp.MustCompile(`(\d+(?:\.\d+)?[\s|\t]+){2,}\d+(?:\.\d+)?`)

// Page is one page of extracted report text
type Page struct {
	Document string
	Number   int
	Text     string
}

// TokenCounter measures text in model tokens
type TokenCounter interface {
	Count(text string) int
}

type estimateCounter struct{}

// Count approximates tokens as runes/4
func (estimateCounter) Count(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}

type tiktokenCounter struct {
	tke *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.tke.Encode(text, nil, nil))
}

// NewTokenCounter loads a tiktoken encoding, falling back to a runes/4 estimate
// when the encoding cannot be loaded (for example offline).
func NewTokenCounter(encoding string) TokenCounter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return estimateCounter{}
	}
	return tiktokenCounter{tke: tke}
}

// EstimateCounter returns the runes/4 counter
func EstimateCounter() TokenCounter {
	return estimateCounter{}
}

// Chunker handles per-mode text chunking
type Chunker struct {
	cfg     config.ChunkingConfig
	counter TokenCounter
}

// NewChunker creates a Chunker. A nil counter uses the estimate.
func NewChunker(cfg config.ChunkingConfig, counter TokenCounter) *Chunker {
	if counter == nil {
		counter = estimateCounter{}
	}
	return &Chunker{cfg: cfg, counter: counter}
}

// ChunkPages chunks every page in every chunk mode
func (c *Chunker) ChunkPages(pages []Page, docWells []string) []models.Chunk {
	var chunks []models.Chunk
	for _, mode := range []models.ChunkMode{models.ChunkModeFactual, models.ChunkModeTechnical, models.ChunkModeSummary} {
		for _, p := range pages {
			chunks = append(chunks, c.ChunkPage(p, mode, docWells)...)
		}
	}
	return chunks
}

// ChunkPage splits one page. Blank pages produce no chunks.
func (c *Chunker) ChunkPage(page Page, mode models.ChunkMode, docWells []string) []models.Chunk {
	if strings.TrimSpace(page.Text) == "" {
		return nil
	}
	spec := c.cfg.SpecFor(mode)
	size := max(1, spec.Size)
	step := max(1, size-spec.Overlap)

	var texts []string
	var words []string
	flush := func() {
		if len(words) == 0 {
			return
		}
		for start := 0; ; start += step {
			end := min(start+size, len(words))
			texts = append(texts, strings.Join(words[start:end], " "))
			if end == len(words) {
				break
			}
		}
		words = nil
	}

	for _, para := range splitParagraphs(page.Text) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if isTable(para) {
			flush()
			texts = append(texts, para)
			continue
		}
		words = append(words, strings.Fields(para)...)
	}
	flush()

	wells := mergeWells(docWells, DetectWellNames(page.Text))
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		key := fmt.Sprintf("%s|%d|%s|%d", page.Document, page.Number, mode, i)
		chunks = append(chunks, models.Chunk{
			ID:             uuid.NewSHA1(chunkNamespace, []byte(key)).String(),
			SourceDocument: page.Document,
			PageNumber:     page.Number,
			Mode:           mode,
			Text:           text,
			TokenCount:     c.counter.Count(text),
			WellIDs:        wells,
		})
	}
	return chunks
}

// isTable treats a paragraph as a table when it has pipes or two or more numeric rows
func isTable(para string) bool {
	lines := strings.Split(para, "\n")
	if len(lines) < 2 {
		return false
	}
	numeric := 0
	for _, l := range lines {
		if strings.Count(l, "|") >= 2 || tableLine.MatchString(l) || inlineRow.MatchString(l) {
			numeric++
		}
	}
	return numeric >= 2
}

// splitParagraphs splits text by blank lines
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n\n")
}

func mergeWells(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, w := range list {
			key := strings.ToUpper(w)
			if w == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, w)
		}
	}
	return out
}
