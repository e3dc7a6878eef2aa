package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func testProducts() []Product {
	return []Product{
		{ID: "p1", Name: "Plywood Form Panel 3/4in", Category: "formwork", Code: "510050", Unit: "SQFT", Price: 1.85},
		{ID: "p2", Name: "Form Tie Snap 8in", Category: "hardware", Unit: "EA", EstimatedPrice: 0.65},
		{ID: "p3", Name: "Douglas Fir 2x4 Stud", Category: "lumber", Unit: "LF", Price: 0.72},
		{ID: "p4", Name: "Baluster Form Liner", Category: "formwork", Unit: "EA", Price: 42},
	}
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"PLYWOOD", "FORM", "PANEL", "4IN"}, Keywords("Plywood Form Panel 3/4in"))
	assert.Equal(t, []string{"2X4", "STUD"}, Keywords("2x4 stud, a"))
	assert.Empty(t, Keywords(" - "))
}

func TestKeywords_DropsFiller(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"REMOVE CONCRETE OF DECK", []string{"REMOVE", "CONCRETE", "DECK"}},
		{"Box of Nails", []string{"BOX", "NAILS"}},
		{"Forms for and with the Deck", []string{"FORMS", "DECK"}},
		{"TO BE OF IN", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.text))
		})
	}
}

func TestProduct_UnitPrice(t *testing.T) {
	p, est := Product{Price: 2, EstimatedPrice: 3}.UnitPrice()
	assert.InDelta(t, 2, p, 0.001)
	assert.False(t, est)

	p, est = Product{EstimatedPrice: 3}.UnitPrice()
	assert.InDelta(t, 3, p, 0.001)
	assert.True(t, est)
}

func TestStatic_Match(t *testing.T) {
	s := NewStatic(testProducts(), 0)

	got, err := s.Match(context.Background(), []string{"plywood", "form"}, "")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "p1", got[0].ID)
	assert.InDelta(t, 1.0, got[0].MatchScore, 0.001)

	// Partial matches follow, best first.
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].MatchScore, got[i-1].MatchScore)
	}
}

func TestStatic_MinScore(t *testing.T) {
	products := []Product{
		{ID: "n1", Name: "Box of Nails", Category: "hardware", Price: 0.40},
		{ID: "d1", Name: "Concrete Deck Removal", Category: "demolition", Price: 17.5},
	}
	terms := Keywords("REMOVE CONCRETE OF DECK")

	tests := []struct {
		name     string
		minScore float64
		want     []string
	}{
		{"no minimum", 0, []string{"d1"}},
		{"met", 0.6, []string{"d1"}},
		{"above best score", 0.8, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStatic(products, 0, WithMinScore(tt.minScore)).Match(context.Background(), terms, "")
			require.NoError(t, err)
			var ids []string
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStatic_CodeHitScoresOne(t *testing.T) {
	s := NewStatic(testProducts(), 0)

	got, err := s.Match(context.Background(), []string{"510050", "unrelated"}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.InDelta(t, 1.0, got[0].MatchScore, 0.001)
}

func TestStatic_CategoryFilter(t *testing.T) {
	s := NewStatic(testProducts(), 0)

	got, err := s.Match(context.Background(), []string{"PLYWOOD"}, "Hardware")
	require.NoError(t, err)
	require.Len(t, got, 0)

	got, err = s.Match(context.Background(), []string{"TIE"}, "hardware")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)
}

func TestStatic_MaxCandidates(t *testing.T) {
	s := NewStatic(testProducts(), 1)

	got, err := s.Match(context.Background(), []string{"FORM"}, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStatic_NoTerms(t *testing.T) {
	got, err := NewStatic(testProducts(), 0).Match(context.Background(), []string{" ", ""}, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadStatic_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `[{"id":"p1","name":"Plywood Form Panel","category":"formwork","price":1.85}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadStatic(path, 10)
	require.NoError(t, err)
	got, err := s.Match(context.Background(), []string{"PLYWOOD"}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.85, got[0].Price, 0.001)
}

func TestLoadStatic_JSONErrors(t *testing.T) {
	_, err := LoadStatic("/nonexistent/catalog.json", 10)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadStatic(path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: parse")
}

func writePriceSheet(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Prices")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadStatic_XLSX(t *testing.T) {
	path := writePriceSheet(t, [][]string{
		{"ID", "Name", "Category", "CalTrans_Code", "Unit", "Price", "Estimated_Price"},
		{"", "Form Tie Snap", "hardware", "510100", "EA", "", "$0.65"},
		{"p9", "Plywood Form Panel", "formwork", "", "SQFT", "1,025.50", ""},
	})

	s, err := LoadStatic(path, 10)
	require.NoError(t, err)

	got, err := s.Match(context.Background(), []string{"510100"}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "510100", got[0].ID)
	price, est := got[0].UnitPrice()
	assert.InDelta(t, 0.65, price, 0.001)
	assert.True(t, est)

	got, err = s.Match(context.Background(), []string{"PLYWOOD"}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1025.5, got[0].Price, 0.001)
}

func TestLoadStatic_XLSXBadPrice(t *testing.T) {
	path := writePriceSheet(t, [][]string{
		{"id", "name", "price"},
		{"p1", "Plywood", "call for quote"},
	})

	_, err := LoadStatic(path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestStatic_ProductsIsCopy(t *testing.T) {
	s := NewStatic(testProducts(), 0)
	products := s.Products()
	require.Len(t, products, len(testProducts()))

	products[0].Name = "changed"
	assert.NotEqual(t, "changed", s.Products()[0].Name)
}
