package model

import "strings"

// Unit is a unit of measure from the closed set recognised in bid documents.
type Unit string

const (
	UnitSQFT Unit = "SQFT"
	UnitSY   Unit = "SY"
	UnitLF   Unit = "LF"
	UnitCY   Unit = "CY"
	UnitGAL  Unit = "GAL"
	UnitEA   Unit = "EA"
	UnitLS   Unit = "LS"
	UnitTON  Unit = "TON"
	UnitLB   Unit = "LB"
)

// UnitCategory groups units that measure the same dimension.
type UnitCategory string

const (
	CategoryArea   UnitCategory = "area"
	CategoryLength UnitCategory = "length"
	CategoryVolume UnitCategory = "volume"
	CategoryCount  UnitCategory = "count"
	CategoryWeight UnitCategory = "weight"
)

// AllUnits returns every unit in extraction order.
func AllUnits() []Unit {
	return []Unit{UnitSQFT, UnitSY, UnitLF, UnitCY, UnitGAL, UnitEA, UnitLS, UnitTON, UnitLB}
}

// AllUnitCategories returns every unit category.
func AllUnitCategories() []UnitCategory {
	return []UnitCategory{CategoryArea, CategoryLength, CategoryVolume, CategoryCount, CategoryWeight}
}

// IsValid returns true if u belongs to the closed unit set.
func (u Unit) IsValid() bool {
	switch u {
	case UnitSQFT, UnitSY, UnitLF, UnitCY, UnitGAL, UnitEA, UnitLS, UnitTON, UnitLB:
		return true
	}
	return false
}

// Category returns the dimension the unit measures.
func (u Unit) Category() UnitCategory {
	switch u {
	case UnitSQFT, UnitSY:
		return CategoryArea
	case UnitLF:
		return CategoryLength
	case UnitCY, UnitGAL:
		return CategoryVolume
	case UnitEA, UnitLS:
		return CategoryCount
	case UnitTON, UnitLB:
		return CategoryWeight
	}
	return ""
}

// ParseUnit normalises a unit label found in document text ("SF", "sq ft",
// "L.F.", "each") to a Unit.
func ParseUnit(s string) (Unit, bool) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.NewReplacer(".", "", " ", "").Replace(n)
	switch n {
	case "SQFT", "SF", "SQUAREFEET", "SQUAREFOOT":
		return UnitSQFT, true
	case "SY", "SQYD", "SQYDS", "SQUAREYARDS", "SQUAREYARD":
		return UnitSY, true
	case "LF", "LINFT", "LINEARFEET", "LINEARFOOT":
		return UnitLF, true
	case "CY", "CUYD", "CUYDS", "CUBICYARDS", "CUBICYARD":
		return UnitCY, true
	case "GAL", "GALS", "GALLON", "GALLONS":
		return UnitGAL, true
	case "EA", "EACH":
		return UnitEA, true
	case "LS", "LUMPSUM":
		return UnitLS, true
	case "TON", "TONS":
		return UnitTON, true
	case "LB", "LBS", "POUND", "POUNDS":
		return UnitLB, true
	}
	return "", false
}

// ExtractedQuantity is a numeric measurement found in page text. It is
// created once by the page analyzer and never mutated afterwards.
type ExtractedQuantity struct {
	Value          float64      `json:"value"`
	Unit           Unit         `json:"unit"`
	Context        string       `json:"context"`
	PageNumber     int          `json:"page_number"`
	LineNumber     int          `json:"line_number,omitempty"`
	Confidence     float64      `json:"confidence"`
	SourceDocument DocumentType `json:"source_document"`
}

// ContextContains reports whether the quantity's context mentions s,
// ignoring case.
func (q *ExtractedQuantity) ContextContains(s string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(strings.ToLower(q.Context), strings.ToLower(s))
}
