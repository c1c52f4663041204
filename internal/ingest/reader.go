// ABOUTME: Reads well reports into numbered pages of plain text
// ABOUTME: PDFs go through ledongthuc/pdf; text files split pages on form feeds
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/harper/wellrag/internal/core"
)

// ErrUnsupported is returned for files that are neither PDF nor text
var ErrUnsupported = errors.New("unsupported report format")

// ReadPages extracts page text from a report. Page numbers start at 1.
func ReadPages(path string) ([]core.Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return readPDF(path)
	case ".txt", ".text", ".md":
		return readText(path)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
}

func readPDF(path string) ([]core.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	doc := filepath.Base(path)
	pages := make([]core.Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read %s page %d: %w", doc, i, err)
		}
		pages = append(pages, core.Page{Document: doc, Number: i, Text: text})
	}
	return pages, nil
}

func readText(path string) ([]core.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return SplitPages(filepath.Base(path), string(data)), nil
}

// SplitPages splits text on form feeds. Blank pages keep their number.
func SplitPages(doc, text string) []core.Page {
	parts := strings.Split(text, "\f")
	pages := make([]core.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, core.Page{Document: doc, Number: i + 1, Text: part})
	}
	return pages
}
