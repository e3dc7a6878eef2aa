// Package ocr turns bid-package files into ordered page text.
package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/config"
	"github.com/sells-group/takeoff-cli/internal/fetcher"
)

// Extractor extracts per-page text from PDF files.
type Extractor interface {
	ExtractPages(ctx context.Context, pdfPath string) ([]string, error)
}

// NewExtractor creates an Extractor based on config. log receives retry
// warnings from remote providers.
func NewExtractor(cfg config.OCRConfig, log *zap.Logger) (Extractor, error) {
	if log == nil {
		log = zap.L()
	}
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel, WithScanLogger(log)), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Source supplies the ordered page text of one document. Blank pages are
// kept as empty strings so page numbers stay stable.
type Source interface {
	Pages(ctx context.Context) ([]string, error)
}

// Static is page text already in memory.
type Static []string

// Pages returns the pages unchanged.
func (s Static) Pages(_ context.Context) ([]string, error) {
	return []string(s), nil
}

// File reads a document from disk, choosing the reader by extension: PDFs go
// through the Extractor, .xlsx bid forms become one page per sheet, anything
// else is read as form-feed separated text.
type File struct {
	Path string
	PDF  Extractor
}

// SourceForPath returns a File source for path.
func SourceForPath(path string, pdf Extractor) File {
	return File{Path: path, PDF: pdf}
}

// Pages extracts the document's pages.
func (f File) Pages(ctx context.Context) ([]string, error) {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".pdf":
		if f.PDF == nil {
			return nil, eris.Errorf("ocr: no PDF extractor configured for %s", f.Path)
		}
		return f.PDF.ExtractPages(ctx, f.Path)
	case ".xlsx":
		return spreadsheetPages(f.Path)
	default:
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read %s", f.Path)
		}
		return SplitPages(string(data)), nil
	}
}

// SplitPages splits text on form feeds. A trailing form feed does not start
// a new page.
func SplitPages(text string) []string {
	text = strings.TrimSuffix(text, "\f")
	return strings.Split(text, "\f")
}

// spreadsheetPages renders each sheet as one page, one row per line, with
// non-empty cells separated by two spaces.
func spreadsheetPages(path string) ([]string, error) {
	sheets, err := fetcher.ReadWorkbook(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read workbook %s", path)
	}

	pages := make([]string, 0, len(sheets))
	for _, s := range sheets {
		var lines []string
		for _, row := range s.Rows {
			var cells []string
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, "  "))
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}
