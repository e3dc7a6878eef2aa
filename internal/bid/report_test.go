package bid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/takeoff-cli/internal/model"
)

func TestConfidenceReport_Coverage(t *testing.T) {
	f := newFixture()
	report := newTestEngine(t, nil).ConfidenceReport(f.result)

	require.Len(t, report.Coverage, 2)
	spec := report.Coverage[model.DocSpecifications]
	assert.Equal(t, 3, spec.TermsFound)
	assert.InDelta(t, 1.0, spec.Coverage, 0.0001)
	assert.InDelta(t, 0.8, spec.Confidence, 0.0001)

	bidForm := report.Coverage[model.DocBidForms]
	assert.Equal(t, 1, bidForm.TermsFound)
	assert.InDelta(t, 1.0/3, bidForm.Coverage, 0.0001)

	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "no construction_plans document analyzed")
}

func TestConfidenceReport_ReviewItems(t *testing.T) {
	f := newFixture()
	report := newTestEngine(t, nil).ConfidenceReport(f.result)

	require.Len(t, report.ReviewItems, 1)
	assert.Equal(t, "FORMWORK", report.ReviewItems[0].Term)
	assert.Equal(t, model.DocSpecifications, report.ReviewItems[0].DocType)
	assert.Equal(t, 2, report.ReviewItems[0].PageNumber)

	// Review items plus the high discrepancy alert; the info alert is left out.
	require.Len(t, report.ManualReview, 2)
	assert.Equal(t, model.AlertHigh, report.ManualReview[1].Level)
	assert.Equal(t, "quantity discrepancy for BALUSTER LF", report.ManualReview[1].Reason)
}

func TestConfidenceReport_HighValueAndLowCoverage(t *testing.T) {
	f := newFixture()
	deck := &model.ExtractedQuantity{Value: 12500, Unit: model.UnitSQFT, Context: "BRIDGE DECK 12,500 SQFT", PageNumber: 4, Confidence: 0.7, SourceDocument: model.DocSupplemental}
	f.result.Documents[model.DocSupplemental] = &model.AnalysisResult{
		DocType:         model.DocSupplemental,
		PageCount:       4,
		Quantities:      []*model.ExtractedQuantity{deck},
		ConfidenceScore: 0.5,
	}
	f.result.Quantities = append(f.result.Quantities, deck)

	report := newTestEngine(t, nil).ConfidenceReport(f.result)

	assert.InDelta(t, 0, report.Coverage[model.DocSupplemental].Coverage, 0.0001)
	assert.Contains(t, report.Recommendations, "supplemental covers only 0% of identified terms; consider supplying a more complete supplemental document")

	var high []model.ReviewItem
	for _, r := range report.ReviewItems {
		if r.Value > 0 {
			high = append(high, r)
		}
	}
	require.Len(t, high, 1)
	assert.Equal(t, "high quantity 12500 SQFT", high[0].Reason)
	assert.Equal(t, model.DocSupplemental, high[0].DocType)
}

func TestConfidenceReport_NoTerms(t *testing.T) {
	c := &model.ComprehensiveAnalysisResult{
		Documents: map[model.DocumentType]*model.AnalysisResult{
			model.DocGeneral: {DocType: model.DocGeneral, ConfidenceScore: 0.4},
		},
	}
	report := newTestEngine(t, nil).ConfidenceReport(c)

	assert.Zero(t, report.Coverage[model.DocGeneral].Coverage)
	// general below minimum plus the three missing main documents
	assert.Len(t, report.Recommendations, 4)
	assert.Empty(t, report.ManualReview)
}
