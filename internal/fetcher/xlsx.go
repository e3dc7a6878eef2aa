// Package fetcher reads spreadsheet bid forms and price sheets.
package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// Sheet is one worksheet's cell text.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadXLSX reads one sheet of an XLSX file and returns its rows as strings.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// ReadWorkbook reads every sheet of an XLSX file in workbook order.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		out := Sheet{Name: s.Name}
		for _, row := range s.Rows {
			out.Rows = append(out.Rows, rowToStrings(row))
		}
		sheets = append(sheets, out)
	}
	return sheets, nil
}

// ReadRecords reads a sheet whose first row is a header and returns one map
// per data row, keyed by lower-cased header text. Blank rows are skipped.
func ReadRecords(path string, opts XLSXOptions) ([]map[string]string, error) {
	opts.SkipRows = 0
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("xlsx: %s has no header row", path)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []map[string]string
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		blank := true
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				blank = false
			}
			rec[header[i]] = cell
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
