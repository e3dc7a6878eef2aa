package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/takeoff-cli/internal/fetcher"
	"github.com/sells-group/takeoff-cli/internal/model"
)

func testPackage() *model.BidPackage {
	return &model.BidPackage{
		LineItems: []model.PricedLineItem{
			{
				ItemNumber: "1", Description: "BALUSTER", Quantity: 100, CalculatedQuantity: 106.67, Unit: model.UnitLF,
				UnitPrice: 45, WasteFactor: 0.08, TotalPrice: 4860, Confidence: 0.81, Origin: model.SourceBidForm,
				ProductID: "p-bal", ProductName: "Steel Baluster",
				SourceDocuments: []model.DocumentType{model.DocSpecifications, model.DocBidForms},
			},
			{
				ItemNumber: "D-001", Description: "FORMWORK, DECK", Quantity: 2500, CalculatedQuantity: 2500, Unit: model.UnitSQFT,
				UnitPrice: 2.5, PriceEstimated: true, WasteFactor: 0.1, TotalPrice: 6875, Confidence: 0.3, Origin: model.SourceDerived,
				SourceDocuments: []model.DocumentType{model.DocSpecifications},
				Notes:           []string{"derived from 1 document quantities"},
			},
		},
		Summary: model.PricingSummary{
			Subtotal: 10750, WasteAdjustment: 985, MarkupPct: 0.2, Markup: 2150, DeliveryFee: 322.5,
			TaxRate: 0.0825, Tax: 1155.27, Total: 15362.77, LineItemCount: 2, HighConfidenceItems: 1,
		},
		Confidence: model.ConfidenceReport{
			OverallConfidence: 0.85,
			Coverage: map[model.DocumentType]model.CoverageReport{
				model.DocBidForms:       {TermsFound: 1, Coverage: 0.25},
				model.DocSpecifications: {TermsFound: 4, Coverage: 1},
			},
			Recommendations: []string{"no construction_plans document analyzed; add one to improve cross-referencing"},
			ManualReview: []model.ReviewItem{
				{Reason: "low term confidence 0.60", Term: "FORMWORK", DocType: model.DocSpecifications, PageNumber: 2},
			},
		},
		Analysis: &model.ComprehensiveAnalysisResult{
			Alerts: []model.Alert{
				{Level: model.AlertHigh, Message: "quantity discrepancy for BALUSTER LF", DocType: model.DocBidForms, PageNumber: 1},
				{Level: model.AlertInfo, Message: "high-priority terms found: BALUSTER"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "json": FormatJSON, "CSV": FormatCSV, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testPackage()))

	var got model.BidPackage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got.LineItems, 2)
	assert.InDelta(t, 15362.77, got.Summary.Total, 0.001)
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  "))
}

func TestWriteCSV(t *testing.T) {
	pkg := testPackage()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, pkg.LineItems, pkg.Summary))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	// header + 2 items + 10 summary rows; the blank separator is skipped by the reader
	require.Len(t, records, 13)
	assert.Equal(t, lineItemHeader, records[0])

	first := records[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "BALUSTER", first[1])
	assert.Equal(t, "100", first[4])
	assert.Equal(t, "45.00", first[7])
	assert.Equal(t, "4860.00", first[10])
	assert.Equal(t, "specifications;bid_forms", first[14])

	second := records[2]
	assert.Equal(t, "FORMWORK, DECK", second[1])
	assert.Equal(t, "true", second[8])
	assert.Equal(t, "derived from 1 document quantities", second[15])

	assert.Equal(t, []string{"subtotal", "10750.00"}, records[3])
	assert.Equal(t, []string{"total", "15362.77"}, records[10])
	assert.Equal(t, []string{"high_confidence_items", "1"}, records[12])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bid.xlsx")
	require.NoError(t, WriteXLSX(path, testPackage()))

	sheets, err := fetcher.ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 4)
	assert.Equal(t, SheetLineItems, sheets[0].Name)
	assert.Equal(t, SheetSummary, sheets[1].Name)
	assert.Equal(t, SheetAlerts, sheets[2].Name)
	assert.Equal(t, SheetReview, sheets[3].Name)

	items := sheets[0].Rows
	require.Len(t, items, 3)
	assert.Equal(t, "item_number", items[0][0])
	assert.Equal(t, "BALUSTER", items[1][1])
	assert.Equal(t, "100", items[1][4])
	assert.Equal(t, "4860", items[1][10])

	summary := sheets[1].Rows
	assert.Equal(t, []string{"subtotal", "10750.00"}, summary[0])
	labels := make([]string, 0, len(summary))
	for _, row := range summary {
		if len(row) > 0 {
			labels = append(labels, row[0])
		}
	}
	assert.Contains(t, labels, "overall_confidence")
	assert.Contains(t, labels, "coverage_specifications")
	assert.Contains(t, labels, "recommendation")

	alerts := sheets[2].Rows
	require.Len(t, alerts, 3)
	assert.Equal(t, []string{"high", "bid_forms", "1", "quantity discrepancy for BALUSTER LF"}, alerts[1])

	review := sheets[3].Rows
	require.Len(t, review, 2)
	assert.Equal(t, "FORMWORK", review[1][1])
}

func TestWriteXLSXTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSXTo(&buf, testPackage()))
	// XLSX is a zip archive.
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))
}

func TestWorkbook_NilPackage(t *testing.T) {
	_, err := Workbook(nil)
	assert.Error(t, err)
}
