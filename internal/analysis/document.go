package analysis

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/registry"
)

// Document confidence adjustments.
const (
	highTermBonus      = 0.05
	highTermBonusCap   = 0.2
	quantityBonus      = 0.01
	quantityBonusCap   = 0.1
	criticalPenalty    = 0.1
	criticalPenaltyCap = 0.3
)

// DocumentAnalyzer runs a PageAnalyzer over every page of one document and
// summarises the findings.
type DocumentAnalyzer struct {
	pages  *PageAnalyzer
	lumber *LumberEstimator
	cfg    Config
	log    *zap.Logger
}

// NewDocumentAnalyzer builds a DocumentAnalyzer over the shared libraries.
func NewDocumentAnalyzer(libs *registry.Libraries, cfg Config, lumber LumberConfig, opts ...Option) *DocumentAnalyzer {
	cfg = cfg.withDefaults()
	o := applyOptions(cfg, opts)
	return &DocumentAnalyzer{
		pages:  NewPageAnalyzer(libs, cfg, opts...),
		lumber: NewLumberEstimator(lumber),
		cfg:    cfg,
		log:    o.log,
	}
}

// Pages exposes the underlying page analyzer.
func (d *DocumentAnalyzer) Pages() *PageAnalyzer {
	return d.pages
}

// Analyze processes pages in order. It returns an ExtractionError when no
// page carries text. If ctx is cancelled between pages, the result built so
// far is returned with Partial set, together with the context error.
func (d *DocumentAnalyzer) Analyze(ctx context.Context, pages []string, docType model.DocumentType) (*model.AnalysisResult, error) {
	if len(pages) == 0 {
		return nil, model.NewExtractionError(docType, "no pages supplied", nil)
	}
	if allBlank(pages) {
		return nil, model.NewExtractionError(docType, "every page is empty", nil)
	}

	log := d.log.With(zap.String("doc_type", string(docType)))
	result := &model.AnalysisResult{
		DocType:    docType,
		PageCount:  len(pages),
		Terms:      []*model.TermMatch{},
		Quantities: []*model.ExtractedQuantity{},
		Alerts:     []model.Alert{},
	}

	var cancelErr error
	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			cancelErr = eris.Wrapf(err, "analysis: %s cancelled after %d of %d pages", docType, i, len(pages))
			result.Partial = true
			log.Warn("analysis: document cancelled", zap.Int("pages_done", i), zap.Int("pages", len(pages)))
			break
		}

		sheet := d.pages.Analyze(text, i+1, docType)
		result.Sheets = append(result.Sheets, sheet)
		result.Terms = append(result.Terms, sheet.Terms...)
		result.Quantities = append(result.Quantities, sheet.Quantities...)
		result.Alerts = append(result.Alerts, sheet.Alerts...)
		if sheet.DroppedMatches > 0 {
			log.Debug("analysis: page had dropped matches", zap.Int("page", sheet.PageNumber), zap.Int("dropped", sheet.DroppedMatches))
		}
	}

	d.summarise(result, docType)

	log.Info("analysis: document analyzed",
		zap.Int("pages", len(result.Sheets)),
		zap.Int("terms", len(result.Terms)),
		zap.Int("quantities", result.QuantityCount),
		zap.Float64("confidence", result.ConfidenceScore),
	)
	return result, cancelErr
}

func (d *DocumentAnalyzer) summarise(result *model.AnalysisResult, docType model.DocumentType) {
	var qualities []float64
	for _, s := range result.Sheets {
		if !s.Blank {
			qualities = append(qualities, s.TextExtractionQuality)
		}
	}
	if len(qualities) > 0 {
		result.TextExtractionQuality = stat.Mean(qualities, nil)
	}

	for _, t := range result.Terms {
		if t.Priority.IsHigh() {
			result.HighPriorityTerms++
		}
	}
	result.QuantityCount = len(result.Quantities)
	result.CriticalAlerts = model.CountAlerts(result.Alerts, model.AlertCritical)

	result.ConfidenceScore = DocumentConfidence(
		result.TextExtractionQuality,
		result.HighPriorityTerms,
		result.QuantityCount,
		result.CriticalAlerts,
		d.cfg.Profile(docType).ConfidenceBoost,
	)
	result.LumberRequirements = d.lumber.Estimate(result.Quantities)
}

// DocumentConfidence combines text quality with the finding counts and the
// document-type boost. The result is clamped to [0, 1] before and after the
// boost.
func DocumentConfidence(quality float64, highTerms, quantities, critical int, boost float64) float64 {
	score := quality +
		math.Min(highTermBonus*float64(highTerms), highTermBonusCap) +
		math.Min(quantityBonus*float64(quantities), quantityBonusCap) -
		math.Min(criticalPenalty*float64(critical), criticalPenaltyCap)
	return clamp01(clamp01(score) * boost)
}

func allBlank(pages []string) bool {
	for _, p := range pages {
		if !isBlank(p) {
			return false
		}
	}
	return true
}
