// Package pipeline analyzes every document of a bid package and folds the
// results into one comprehensive analysis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/takeoff-cli/internal/analysis"
	"github.com/sells-group/takeoff-cli/internal/crossref"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
)

// Config tunes consolidated alerting and fan-out.
type Config struct {
	// LowConfidenceThreshold raises a warning when overall confidence falls
	// below it. A negative value turns the warning off.
	LowConfidenceThreshold float64
	MaxMissingTerms        int
	MaxHighPriorityTerms   int
	Concurrency            int
}

// DefaultConfig returns the stock aggregator settings.
func DefaultConfig() Config {
	return Config{
		LowConfidenceThreshold: 0.7,
		MaxMissingTerms:        3,
		MaxHighPriorityTerms:   5,
		Concurrency:            4,
	}
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// Aggregator runs a DocumentAnalyzer over each document of a bid package,
// one goroutine per document, then cross-references the results.
type Aggregator struct {
	analyzer *analysis.DocumentAnalyzer
	engine   *crossref.Engine
	cfg      Config
	log      *zap.Logger
}

// New creates an Aggregator. Zero config fields take their defaults.
func New(analyzer *analysis.DocumentAnalyzer, engine *crossref.Engine, cfg Config, opts ...Option) *Aggregator {
	def := DefaultConfig()
	if cfg.LowConfidenceThreshold == 0 {
		cfg.LowConfidenceThreshold = def.LowConfidenceThreshold
	}
	if cfg.MaxMissingTerms <= 0 {
		cfg.MaxMissingTerms = def.MaxMissingTerms
	}
	if cfg.MaxHighPriorityTerms <= 0 {
		cfg.MaxHighPriorityTerms = def.MaxHighPriorityTerms
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	a := &Aggregator{
		analyzer: analyzer,
		engine:   engine,
		cfg:      cfg,
		log:      zap.L(),
	}
	for _, fn := range opts {
		fn(a)
	}
	return a
}

type documentOutcome struct {
	pages  []string
	result *model.AnalysisResult
	err    error
}

// AnalyzeAll extracts and analyzes every source. A document that fails is
// reported as an error alert and left out of the result; the call fails only
// when no document could be analyzed. On cancellation the documents analyzed
// so far are returned with Partial set, together with the context error.
func (a *Aggregator) AnalyzeAll(ctx context.Context, sources map[model.DocumentType]ocr.Source) (*model.ComprehensiveAnalysisResult, error) {
	if len(sources) == 0 {
		return nil, model.NewExtractionError("", "no documents supplied", nil)
	}

	types := make([]model.DocumentType, 0, len(sources))
	for dt := range sources {
		types = append(types, dt)
	}
	types = model.SortByPriority(types)

	var mu sync.Mutex
	outcomes := make(map[model.DocumentType]documentOutcome, len(types))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for _, dt := range types {
		src := sources[dt]
		g.Go(func() error {
			out := a.analyzeOne(gCtx, dt, src)
			mu.Lock()
			outcomes[dt] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &model.ComprehensiveAnalysisResult{
		Documents:         make(map[model.DocumentType]*model.AnalysisResult),
		Terms:             []*model.TermMatch{},
		Quantities:        []*model.ExtractedQuantity{},
		BidLineItems:      []model.BidLineItem{},
		Alerts:            []model.Alert{},
		HighPriorityTerms: []string{},
	}

	var failures []error
	var cancelErr error
	for _, dt := range types {
		out := outcomes[dt]
		if out.err != nil && out.result == nil {
			if ctx.Err() != nil && errors.Is(out.err, ctx.Err()) {
				cancelErr = out.err
				result.Partial = true
				continue
			}
			failures = append(failures, out.err)
			result.Alerts = append(result.Alerts, model.Alert{
				Level:   model.AlertError,
				Message: fmt.Sprintf("%s could not be analyzed: %v", dt, out.err),
				DocType: dt,
			})
			a.log.Warn("pipeline: document failed", zap.String("doc_type", string(dt)), zap.Error(out.err))
			continue
		}
		if out.err != nil {
			cancelErr = out.err
			result.Partial = true
		}
		a.fold(result, dt, out)
	}

	if len(result.Documents) == 0 {
		if cancelErr != nil {
			return nil, eris.Wrap(cancelErr, "pipeline: cancelled before any document was analyzed")
		}
		return nil, model.NewExtractionError("", "no document could be analyzed", errors.Join(failures...))
	}
	if result.Partial {
		result.Alerts = append(result.Alerts, model.Alert{
			Level:   model.AlertWarning,
			Message: "analysis was cancelled; results are partial",
		})
	}

	if bf, ok := outcomes[model.DocBidForms]; ok && bf.result != nil {
		result.BidLineItems = analysis.ExtractBidLineItems(bf.pages, result.Terms, a.log)
	}

	result.CrossReference = a.engine.Reconcile(result.Documents)
	result.Alerts = append(result.Alerts, a.consolidatedAlerts(result)...)
	a.summarise(result)

	a.log.Info("pipeline: bid package analyzed",
		zap.Int("documents", len(result.Documents)),
		zap.Int("failed", len(failures)),
		zap.Int("pages", result.TotalPages),
		zap.Int("line_items", len(result.BidLineItems)),
		zap.Float64("confidence", result.OverallConfidence),
		zap.Bool("partial", result.Partial),
	)

	if cancelErr != nil {
		return result, eris.Wrap(cancelErr, "pipeline: analysis cancelled")
	}
	return result, nil
}

func (a *Aggregator) analyzeOne(ctx context.Context, dt model.DocumentType, src ocr.Source) documentOutcome {
	if src == nil {
		return documentOutcome{err: model.NewExtractionError(dt, "no source", nil)}
	}
	if err := ctx.Err(); err != nil {
		return documentOutcome{err: err}
	}

	pages, err := src.Pages(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return documentOutcome{err: ctx.Err()}
		}
		return documentOutcome{err: model.NewExtractionError(dt, "text extraction failed", err)}
	}

	res, err := a.analyzer.Analyze(ctx, pages, dt)
	if err != nil && res == nil {
		if ctx.Err() != nil && !model.IsExtractionError(err) {
			return documentOutcome{err: ctx.Err()}
		}
		return documentOutcome{err: err}
	}
	return documentOutcome{pages: pages, result: res, err: err}
}

func (a *Aggregator) fold(result *model.ComprehensiveAnalysisResult, dt model.DocumentType, out documentOutcome) {
	res := out.result
	for _, t := range res.Terms {
		if t.SourceDocument == "" {
			t.SourceDocument = dt
		}
	}
	for _, q := range res.Quantities {
		if q.SourceDocument == "" {
			q.SourceDocument = dt
		}
	}
	result.Documents[dt] = res
	result.Terms = append(result.Terms, res.Terms...)
	result.Quantities = append(result.Quantities, res.Quantities...)
}

func (a *Aggregator) consolidatedAlerts(result *model.ComprehensiveAnalysisResult) []model.Alert {
	var alerts []model.Alert

	for _, d := range result.CrossReference.QuantityDiscrepancies {
		label := string(d.Unit)
		if d.Term != "" {
			label = d.Term + " " + label
		}
		alerts = append(alerts, model.Alert{
			Level: model.AlertHigh,
			Message: fmt.Sprintf("quantity discrepancy for %s: bid forms %s vs %s %s (%.1f%%)",
				label, formatNumber(d.BidFormValue), d.OtherDocument, formatNumber(d.OtherValue), d.PercentDifference),
			PageNumber: d.BidFormPage,
			DocType:    model.DocBidForms,
			Details: map[string]any{
				"unit":               d.Unit,
				"bid_form_value":     d.BidFormValue,
				"other_value":        d.OtherValue,
				"other_document":     d.OtherDocument,
				"other_page":         d.OtherPage,
				"percent_difference": d.PercentDifference,
			},
		})
	}

	missing := make(map[model.DocumentType][]string)
	for _, m := range result.CrossReference.MissingRequirements {
		missing[m.MissingFrom] = appendUnique(missing[m.MissingFrom], m.Term)
	}
	targets := make([]model.DocumentType, 0, len(missing))
	for dt := range missing {
		targets = append(targets, dt)
	}
	for _, dt := range model.SortByPriority(targets) {
		terms := missing[dt]
		alerts = append(alerts, model.Alert{
			Level:   model.AlertWarning,
			Message: fmt.Sprintf("%d required term(s) missing from %s: %s", len(terms), dt, capList(terms, a.cfg.MaxMissingTerms)),
			DocType: dt,
			Details: map[string]any{"terms": terms},
		})
	}

	for _, dt := range result.DocumentTypes() {
		conf := result.Documents[dt].ConfidenceScore
		if conf < a.cfg.LowConfidenceThreshold {
			alerts = append(alerts, model.Alert{
				Level:   model.AlertWarning,
				Message: fmt.Sprintf("low analysis confidence for %s: %.2f", dt, conf),
				DocType: dt,
				Details: map[string]any{"confidence": conf},
			})
		}
	}

	if high := highPriorityTerms(result.Terms); len(high) > 0 {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertInfo,
			Message: "high-priority terms found: " + capList(high, a.cfg.MaxHighPriorityTerms),
			Details: map[string]any{"count": len(high)},
		})
	}
	return alerts
}

func (a *Aggregator) summarise(result *model.ComprehensiveAnalysisResult) {
	confidences := make([]float64, 0, len(result.Documents))
	for _, dt := range result.DocumentTypes() {
		res := result.Documents[dt]
		confidences = append(confidences, res.ConfidenceScore)
		result.TotalPages += res.PageCount
	}
	result.OverallConfidence = stat.Mean(confidences, nil)
	result.HighPriorityTerms = highPriorityTerms(result.Terms)
}

// highPriorityTerms returns the distinct critical and high priority terms,
// sorted.
func highPriorityTerms(terms []*model.TermMatch) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range terms {
		if t.Priority.IsHigh() && !seen[t.Term] {
			seen[t.Term] = true
			out = append(out, t.Term)
		}
	}
	sort.Strings(out)
	return out
}

// capList joins the first n items and notes how many were left out.
func capList(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:n], ", "), len(items)-n)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
