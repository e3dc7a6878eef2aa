package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// Sheet names of the bid workbook.
const (
	SheetLineItems = "Line Items"
	SheetSummary   = "Summary"
	SheetAlerts    = "Alerts"
	SheetReview    = "Manual Review"
)

// numericColumns are the line item columns written as numbers.
var numericColumns = map[string]bool{
	"quantity":            true,
	"calculated_quantity": true,
	"unit_price":          true,
	"waste_factor":        true,
	"total_price":         true,
	"confidence":          true,
}

// WriteXLSX saves the bid package as a workbook at path.
func WriteXLSX(path string, pkg *model.BidPackage) error {
	f, err := Workbook(pkg)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// WriteXLSXTo streams the workbook to w.
func WriteXLSXTo(w io.Writer, pkg *model.BidPackage) error {
	f, err := Workbook(pkg)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// Workbook builds the line item, summary, alert and manual review sheets.
func Workbook(pkg *model.BidPackage) (*xlsx.File, error) {
	if pkg == nil {
		return nil, eris.New("export: nil bid package")
	}
	f := xlsx.NewFile()

	items, err := f.AddSheet(SheetLineItems)
	if err != nil {
		return nil, eris.Wrap(err, "export: add line items sheet")
	}
	addStrings(items, lineItemHeader...)
	for _, it := range pkg.LineItems {
		row := items.AddRow()
		for i, v := range lineItemRecord(it) {
			if numericColumns[lineItemHeader[i]] {
				row.AddCell().SetFloat(lineItemNumber(it, lineItemHeader[i]))
				continue
			}
			row.AddCell().SetString(v)
		}
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range summaryRows(pkg.Summary) {
		addStrings(summary, kv[0], kv[1])
	}
	addStrings(summary)
	addStrings(summary, "overall_confidence", formatFloat(pkg.Confidence.OverallConfidence))
	for _, dt := range sortedCoverage(pkg.Confidence.Coverage) {
		c := pkg.Confidence.Coverage[dt]
		addStrings(summary, "coverage_"+string(dt), formatFloat(c.Coverage))
	}
	for _, rec := range pkg.Confidence.Recommendations {
		addStrings(summary, "recommendation", rec)
	}

	alerts, err := f.AddSheet(SheetAlerts)
	if err != nil {
		return nil, eris.Wrap(err, "export: add alerts sheet")
	}
	addStrings(alerts, "level", "doc_type", "page", "message")
	if pkg.Analysis != nil {
		for _, a := range pkg.Analysis.Alerts {
			addStrings(alerts, string(a.Level), string(a.DocType), pageLabel(a.PageNumber), a.Message)
		}
	}

	review, err := f.AddSheet(SheetReview)
	if err != nil {
		return nil, eris.Wrap(err, "export: add review sheet")
	}
	addStrings(review, "reason", "term", "doc_type", "page", "value", "unit")
	for _, r := range pkg.Confidence.ManualReview {
		value := ""
		if r.Value != 0 {
			value = formatFloat(r.Value)
		}
		addStrings(review, r.Reason, r.Term, string(r.DocType), pageLabel(r.PageNumber), value, string(r.Unit))
	}
	return f, nil
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func lineItemNumber(it model.PricedLineItem, col string) float64 {
	switch col {
	case "quantity":
		return it.Quantity
	case "calculated_quantity":
		return it.CalculatedQuantity
	case "unit_price":
		return it.UnitPrice
	case "waste_factor":
		return it.WasteFactor
	case "total_price":
		return it.TotalPrice
	case "confidence":
		return it.Confidence
	}
	return 0
}

func pageLabel(page int) string {
	if page <= 0 {
		return ""
	}
	return formatFloat(float64(page))
}

func sortedCoverage(cov map[model.DocumentType]model.CoverageReport) []model.DocumentType {
	types := make([]model.DocumentType, 0, len(cov))
	for dt := range cov {
		types = append(types, dt)
	}
	return model.SortByPriority(types)
}
