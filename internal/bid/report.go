package bid

import (
	"fmt"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// mainDocuments are the document types a complete bid package should carry.
var mainDocuments = []model.DocumentType{
	model.DocSpecifications,
	model.DocBidForms,
	model.DocConstructionPlans,
}

// ConfidenceReport measures how well each document covers the combined term
// pool and lists what a person should check before the bid goes out.
func (e *Engine) ConfidenceReport(c *model.ComprehensiveAnalysisResult) model.ConfidenceReport {
	report := model.ConfidenceReport{
		OverallConfidence: c.OverallConfidence,
		Coverage:          make(map[model.DocumentType]model.CoverageReport, len(c.Documents)),
		Recommendations:   []string{},
		ReviewItems:       []model.ReviewItem{},
		ManualReview:      []model.ReviewItem{},
	}

	total := len(distinctTerms(c.Terms))
	for _, dt := range c.DocumentTypes() {
		doc := c.Documents[dt]
		found := len(doc.DistinctTerms())
		cov := model.CoverageReport{TermsFound: found, Confidence: doc.ConfidenceScore}
		if total > 0 {
			cov.Coverage = float64(found) / float64(total)
		}
		report.Coverage[dt] = cov
		if cov.Coverage < e.cfg.CoverageMinimum {
			report.Recommendations = append(report.Recommendations, fmt.Sprintf(
				"%s covers only %.0f%% of identified terms; consider supplying a more complete %s document",
				dt, cov.Coverage*100, dt))
		}
	}
	for _, dt := range mainDocuments {
		if _, ok := c.Documents[dt]; !ok {
			report.Recommendations = append(report.Recommendations, fmt.Sprintf(
				"no %s document analyzed; add one to improve cross-referencing", dt))
		}
	}

	seen := make(map[string]bool)
	for _, t := range c.Terms {
		if t.Confidence >= e.cfg.ReviewConfidence {
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", t.Term, t.SourceDocument, t.PageNumber)
		if seen[key] {
			continue
		}
		seen[key] = true
		report.ReviewItems = append(report.ReviewItems, model.ReviewItem{
			Reason:     fmt.Sprintf("low term confidence %.2f", t.Confidence),
			Term:       t.Term,
			DocType:    t.SourceDocument,
			PageNumber: t.PageNumber,
			Confidence: t.Confidence,
		})
	}
	for _, q := range c.Quantities {
		if q.Value <= e.cfg.HighValueThreshold {
			continue
		}
		report.ReviewItems = append(report.ReviewItems, model.ReviewItem{
			Reason:     fmt.Sprintf("high quantity %s %s", formatValue(q.Value), q.Unit),
			DocType:    q.SourceDocument,
			PageNumber: q.PageNumber,
			Value:      q.Value,
			Unit:       q.Unit,
			Confidence: q.Confidence,
		})
	}

	report.ManualReview = append(report.ManualReview, report.ReviewItems...)
	for _, a := range c.Alerts {
		if a.Level != model.AlertHigh && a.Level != model.AlertCritical {
			continue
		}
		item := model.ReviewItem{
			Reason:     a.Message,
			DocType:    a.DocType,
			PageNumber: a.PageNumber,
			Level:      a.Level,
		}
		if a.Term != nil {
			item.Term = a.Term.Term
		}
		report.ManualReview = append(report.ManualReview, item)
	}
	return report
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
