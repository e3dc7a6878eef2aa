package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "pixtral-large-latest"

	// Plan sets larger than this are rejected before upload.
	maxScanBytes = 50 << 20
)

// MistralOption configures a MistralOCR.
type MistralOption func(*MistralOCR)

// WithEndpoint overrides the OCR endpoint.
func WithEndpoint(u string) MistralOption {
	return func(m *MistralOCR) { m.endpoint = u }
}

// WithScanRetry sets the retry policy for transient OCR failures.
func WithScanRetry(p resilience.Policy) MistralOption {
	return func(m *MistralOCR) { m.retry = p }
}

// WithScanLogger sets the logger.
func WithScanLogger(l *zap.Logger) MistralOption {
	return func(m *MistralOCR) { m.log = l }
}

// MistralOCR extracts page text from scanned plan sets that carry no text
// layer, using the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    resilience.Policy
	log      *zap.Logger
}

// NewMistralOCR creates a MistralOCR extractor. If model is empty, the default is used.
func NewMistralOCR(apiKey, model string, opts ...MistralOption) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	m := &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 5 * time.Minute},
		retry:    resilience.DefaultPolicy(),
		log:      zap.L(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.retry.Log == nil {
		m.retry.Log = m.log
	}
	return m
}

type scanRequest struct {
	Model    string       `json:"model"`
	Document scanDocument `json:"document"`
}

type scanDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type scanResponse struct {
	Pages []scanPage `json:"pages"`
}

type scanPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractPages uploads the PDF and returns one string per page. Pages the
// service skipped come back as blank pages so later page numbers hold.
func (m *MistralOCR) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	info, err := os.Stat(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read PDF %s", pdfPath)
	}
	if info.Size() > maxScanBytes {
		return nil, eris.Errorf("ocr: %s is %d bytes, over the %d byte scan limit", pdfPath, info.Size(), maxScanBytes)
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read PDF %s", pdfPath)
	}

	body, err := json.Marshal(scanRequest{
		Model: m.model,
		Document: scanDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	resp, err := resilience.Retry(ctx, m.retry, "ocr.mistral", func(ctx context.Context) (*scanResponse, error) {
		return m.post(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	pages := orderPages(resp.Pages)
	m.log.Debug("ocr: scanned document",
		zap.String("path", pdfPath),
		zap.Int("pages", len(pages)),
	)
	return pages, nil
}

func (m *MistralOCR) post(ctx context.Context, body []byte) (*scanResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "ocr: read mistral response"), 0)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(raw))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out scanResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}
	return &out, nil
}

// orderPages places each page at its zero-based index. Negative indexes are
// dropped.
func orderPages(in []scanPage) []string {
	n := 0
	for _, p := range in {
		if p.Index+1 > n {
			n = p.Index + 1
		}
	}
	pages := make([]string, n)
	for _, p := range in {
		if p.Index >= 0 {
			pages[p.Index] = p.Markdown
		}
	}
	return pages
}
