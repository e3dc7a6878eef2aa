package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText reads the text layer of a PDF with poppler's pdftotext.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext in layout mode so bid-form columns stay on one
// line. Each page ends with a form feed, which SplitPages uses as the page
// boundary. A document whose every page is empty has no text layer and is
// reported as an error so the caller can switch to a scanning provider.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, strings.TrimSpace(stderr.String()))
	}

	pages := SplitPages(stdout.String())
	for _, pg := range pages {
		if strings.TrimSpace(pg) != "" {
			return pages, nil
		}
	}
	return nil, eris.Errorf("ocr: %s has no text layer (%d pages); use the mistral provider for scanned sets", pdfPath, len(pages))
}
