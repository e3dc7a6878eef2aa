package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDocumentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want DocumentType
		ok   bool
	}{
		{"specifications", DocSpecifications, true},
		{" Specs ", DocSpecifications, true},
		{"bid", DocBidForms, true},
		{"bid-forms", DocBidForms, true},
		{"plans", DocConstructionPlans, true},
		{"addendum", DocSupplemental, true},
		{"", DocGeneral, true},
		{"blueprints", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDocumentType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDocumentType_IsValid(t *testing.T) {
	t.Parallel()

	for _, dt := range AllDocumentTypes() {
		assert.True(t, dt.IsValid(), dt)
	}
	assert.False(t, DocumentType("memo").IsValid())
}

func TestSortByPriority(t *testing.T) {
	t.Parallel()

	in := []DocumentType{DocGeneral, "zeta", DocConstructionPlans, "alpha", DocSpecifications, DocBidForms}
	got := SortByPriority(in)

	assert.Equal(t, []DocumentType{DocSpecifications, DocBidForms, DocConstructionPlans, DocGeneral, "alpha", "zeta"}, got)
	// The input is left alone.
	assert.Equal(t, DocGeneral, in[0])
}

func TestComprehensiveAnalysisResult_DocumentTypes(t *testing.T) {
	t.Parallel()

	c := &ComprehensiveAnalysisResult{Documents: map[DocumentType]*AnalysisResult{
		DocSupplemental:   {},
		DocBidForms:       {},
		DocSpecifications: {},
	}}
	assert.Equal(t, []DocumentType{DocSpecifications, DocBidForms, DocSupplemental}, c.DocumentTypes())
}

func TestAnalysisResult_DistinctTerms(t *testing.T) {
	t.Parallel()

	r := &AnalysisResult{Terms: []*TermMatch{{Term: "BALUSTER"}, {Term: "FORMWORK"}, {Term: "BALUSTER"}}}
	assert.Equal(t, map[string]bool{"BALUSTER": true, "FORMWORK": true}, r.DistinctTerms())
}
