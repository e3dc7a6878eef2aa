// Package export renders a bid package as JSON, CSV or an XLSX workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// Format names an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", eris.Errorf("export: unknown format %q (want json, csv or xlsx)", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "export: encode json")
}

var lineItemHeader = []string{
	"item_number", "description", "caltrans_code", "origin", "quantity", "calculated_quantity",
	"unit", "unit_price", "price_estimated", "waste_factor", "total_price", "confidence",
	"product_id", "product_name", "source_documents", "notes",
}

func lineItemRecord(it model.PricedLineItem) []string {
	docs := make([]string, len(it.SourceDocuments))
	for i, d := range it.SourceDocuments {
		docs[i] = string(d)
	}
	return []string{
		it.ItemNumber,
		it.Description,
		it.CalTransCode,
		string(it.Origin),
		formatFloat(it.Quantity),
		formatFloat(it.CalculatedQuantity),
		string(it.Unit),
		formatMoney(it.UnitPrice),
		strconv.FormatBool(it.PriceEstimated),
		formatFloat(it.WasteFactor),
		formatMoney(it.TotalPrice),
		formatFloat(it.Confidence),
		it.ProductID,
		it.ProductName,
		strings.Join(docs, ";"),
		strings.Join(it.Notes, "; "),
	}
}

// summaryRows are the label/value pairs shown after the line items.
func summaryRows(s model.PricingSummary) [][2]string {
	return [][2]string{
		{"subtotal", formatMoney(s.Subtotal)},
		{"waste_adjustment", formatMoney(s.WasteAdjustment)},
		{"markup_pct", formatFloat(s.MarkupPct)},
		{"markup", formatMoney(s.Markup)},
		{"delivery_fee", formatMoney(s.DeliveryFee)},
		{"tax_rate", formatFloat(s.TaxRate)},
		{"tax", formatMoney(s.Tax)},
		{"total", formatMoney(s.Total)},
		{"line_item_count", strconv.Itoa(s.LineItemCount)},
		{"high_confidence_items", strconv.Itoa(s.HighConfidenceItems)},
	}
}

// WriteCSV writes one row per line item, a blank row, then the summary as
// label/value rows.
func WriteCSV(w io.Writer, items []model.PricedLineItem, summary model.PricingSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(lineItemHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, it := range items {
		if err := cw.Write(lineItemRecord(it)); err != nil {
			return eris.Wrapf(err, "export: write line item %s", it.ItemNumber)
		}
	}
	if err := cw.Write(nil); err != nil {
		return eris.Wrap(err, "export: write csv separator")
	}
	for _, kv := range summaryRows(summary) {
		if err := cw.Write(kv[:]); err != nil {
			return eris.Wrap(err, "export: write csv summary")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
