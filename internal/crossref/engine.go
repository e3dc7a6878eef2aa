// Package crossref reconciles the analysis results of several documents
// from the same bid package.
package crossref

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// Config holds the reconciliation thresholds.
type Config struct {
	// DiscrepancyThreshold is the relative difference above which two
	// quantities of the same unit are flagged. The comparison is strict.
	DiscrepancyThreshold float64 `yaml:"discrepancy_threshold" mapstructure:"discrepancy_threshold"`
	// MinConsistencyDocs is how many document types must mention a term for
	// it to count as consistent.
	MinConsistencyDocs int `yaml:"min_consistency_docs" mapstructure:"min_consistency_docs"`
}

// DefaultConfig returns the reconciliation defaults.
func DefaultConfig() Config {
	return Config{DiscrepancyThreshold: 0.10, MinConsistencyDocs: 2}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine compares documents against each other. It keeps no state between
// calls.
type Engine struct {
	cfg Config
	log *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, opts ...Option) *Engine {
	d := DefaultConfig()
	if cfg.DiscrepancyThreshold <= 0 {
		cfg.DiscrepancyThreshold = d.DiscrepancyThreshold
	}
	if cfg.MinConsistencyDocs <= 0 {
		cfg.MinConsistencyDocs = d.MinConsistencyDocs
	}
	e := &Engine{cfg: cfg, log: zap.L()}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// Reconcile computes term consistency, bid-form quantity discrepancies,
// requirements missing from other documents, and per-document coverage.
// Nil results are ignored.
func (e *Engine) Reconcile(results map[model.DocumentType]*model.AnalysisResult) model.CrossReferenceResult {
	types := make([]model.DocumentType, 0, len(results))
	for dt, r := range results {
		if r != nil {
			types = append(types, dt)
		}
	}
	types = model.SortByPriority(types)

	out := model.CrossReferenceResult{
		TermConsistency:       make(map[string][]model.DocumentType),
		ConsistentTerms:       []string{},
		QuantityDiscrepancies: []model.QuantityDiscrepancy{},
		MissingRequirements:   []model.MissingRequirement{},
		Coverage:              make(map[model.DocumentType]model.DocumentCoverage, len(types)),
	}

	e.termConsistency(results, types, &out)
	out.QuantityDiscrepancies = e.Discrepancies(results, types)
	out.MissingRequirements = MissingRequirements(results, types)
	for _, dt := range types {
		out.Coverage[dt] = Coverage(results[dt])
	}

	e.log.Info("crossref: reconciled documents",
		zap.Int("documents", len(types)),
		zap.Int("terms", len(out.TermConsistency)),
		zap.Int("consistent_terms", len(out.ConsistentTerms)),
		zap.Int("discrepancies", len(out.QuantityDiscrepancies)),
		zap.Int("missing_requirements", len(out.MissingRequirements)),
	)
	return out
}

func (e *Engine) termConsistency(results map[model.DocumentType]*model.AnalysisResult, types []model.DocumentType, out *model.CrossReferenceResult) {
	for _, dt := range types {
		for term := range results[dt].DistinctTerms() {
			out.TermConsistency[term] = append(out.TermConsistency[term], dt)
		}
	}
	for term, docs := range out.TermConsistency {
		if len(docs) >= e.cfg.MinConsistencyDocs {
			out.ConsistentTerms = append(out.ConsistentTerms, term)
		}
	}
	sort.Strings(out.ConsistentTerms)
}

// Discrepancies compares every bid-form quantity with every quantity of the
// same unit in the other documents. types fixes the document order.
func (e *Engine) Discrepancies(results map[model.DocumentType]*model.AnalysisResult, types []model.DocumentType) []model.QuantityDiscrepancy {
	out := []model.QuantityDiscrepancy{}
	bid := results[model.DocBidForms]
	if bid == nil {
		return out
	}
	labels := termLabels(bid)

	for _, a := range bid.Quantities {
		for _, dt := range types {
			if dt == model.DocBidForms {
				continue
			}
			for _, b := range results[dt].Quantities {
				if b.Unit != a.Unit {
					continue
				}
				diff := RelativeDifference(a.Value, b.Value)
				if diff <= e.cfg.DiscrepancyThreshold {
					continue
				}
				out = append(out, model.QuantityDiscrepancy{
					Term:              labels[a],
					Unit:              a.Unit,
					BidFormValue:      a.Value,
					OtherValue:        b.Value,
					OtherDocument:     dt,
					PercentDifference: diff * 100,
					BidFormContext:    a.Context,
					OtherContext:      b.Context,
					BidFormPage:       a.PageNumber,
					OtherPage:         b.PageNumber,
				})
			}
		}
	}
	if len(out) > 0 {
		e.log.Debug("crossref: quantity discrepancies", zap.Int("count", len(out)))
	}
	return out
}

// RelativeDifference is |a-b| / max(a, b). Two zero values differ by 0.
func RelativeDifference(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 0
	}
	return math.Abs(a-b) / m
}

// MissingRequirements lists every specification term absent from each
// other analyzed document type.
func MissingRequirements(results map[model.DocumentType]*model.AnalysisResult, types []model.DocumentType) []model.MissingRequirement {
	out := []model.MissingRequirement{}
	spec := results[model.DocSpecifications]
	if spec == nil {
		return out
	}

	required := make(map[string]*model.TermMatch)
	var names []string
	for _, t := range spec.Terms {
		if _, ok := required[t.Term]; !ok {
			required[t.Term] = t
			names = append(names, t.Term)
		}
	}
	sort.Strings(names)

	for _, dt := range types {
		if dt == model.DocSpecifications {
			continue
		}
		present := results[dt].DistinctTerms()
		for _, name := range names {
			if present[name] {
				continue
			}
			t := required[name]
			out = append(out, model.MissingRequirement{
				Term:        name,
				Category:    t.Category,
				Priority:    t.Priority,
				RequiredIn:  model.DocSpecifications,
				MissingFrom: dt,
			})
		}
	}
	return out
}

// Coverage summarises one document's findings.
func Coverage(r *model.AnalysisResult) model.DocumentCoverage {
	return model.DocumentCoverage{
		PageCount:   r.PageCount,
		TermCount:   len(r.DistinctTerms()),
		Quantities:  len(r.Quantities),
		Confidence:  r.ConfidenceScore,
		TextQuality: r.TextExtractionQuality,
	}
}

// termLabels maps each quantity to the first term it is associated with.
func termLabels(r *model.AnalysisResult) map[*model.ExtractedQuantity]string {
	labels := make(map[*model.ExtractedQuantity]string)
	for _, t := range r.Terms {
		for _, q := range t.AssociatedQuantities {
			if _, ok := labels[q]; !ok {
				labels[q] = t.Term
			}
		}
	}
	return labels
}
