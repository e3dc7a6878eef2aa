package model

import (
	"sort"
	"strings"
)

// DocumentType identifies the role a document plays in a bid package.
type DocumentType string

const (
	DocSpecifications    DocumentType = "specifications"
	DocBidForms          DocumentType = "bid_forms"
	DocConstructionPlans DocumentType = "construction_plans"
	DocSupplemental      DocumentType = "supplemental"
	DocGeneral           DocumentType = "general"
)

// AllDocumentTypes returns every known document type.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocSpecifications,
		DocBidForms,
		DocConstructionPlans,
		DocSupplemental,
		DocGeneral,
	}
}

// PriorityOrder is the order in which documents of a bid package are
// folded into a comprehensive analysis. General documents come last.
func PriorityOrder() []DocumentType {
	return []DocumentType{
		DocSpecifications,
		DocBidForms,
		DocConstructionPlans,
		DocSupplemental,
		DocGeneral,
	}
}

// IsValid returns true if the document type is one of the known types.
func (d DocumentType) IsValid() bool {
	switch d {
	case DocSpecifications, DocBidForms, DocConstructionPlans, DocSupplemental, DocGeneral:
		return true
	}
	return false
}

// ParseDocumentType converts a user-supplied tag into a DocumentType.
// Accepts the canonical tags plus a few common aliases ("plans", "bid", "specs").
func ParseDocumentType(s string) (DocumentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "specifications", "specification", "specs", "spec":
		return DocSpecifications, true
	case "bid_forms", "bid_form", "bid", "bidform", "bid-forms":
		return DocBidForms, true
	case "construction_plans", "plans", "plan", "construction-plans":
		return DocConstructionPlans, true
	case "supplemental", "supplement", "addendum", "notice":
		return DocSupplemental, true
	case "general", "":
		return DocGeneral, true
	}
	return "", false
}

// SortByPriority orders document types by PriorityOrder. Unknown types
// sort after known ones in lexical order.
func SortByPriority(types []DocumentType) []DocumentType {
	rank := make(map[DocumentType]int)
	for i, dt := range PriorityOrder() {
		rank[dt] = i
	}
	out := make([]DocumentType, len(types))
	copy(out, types)
	sort.SliceStable(out, func(i, j int) bool {
		return lessPriority(rank, out[i], out[j])
	})
	return out
}

func lessPriority(rank map[DocumentType]int, a, b DocumentType) bool {
	ra, okA := rank[a]
	rb, okB := rank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA:
		return true
	case okB:
		return false
	}
	return a < b
}
