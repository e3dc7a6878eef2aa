package model

// SheetAnalysis holds the findings for one page of one document.
type SheetAnalysis struct {
	PageNumber            int                  `json:"page_number"`
	DocType               DocumentType         `json:"doc_type"`
	Blank                 bool                 `json:"blank,omitempty"`
	Terms                 []*TermMatch         `json:"terms"`
	Quantities            []*ExtractedQuantity `json:"quantities"`
	Alerts                []Alert              `json:"alerts,omitempty"`
	TextExtractionQuality float64              `json:"text_extraction_quality"`
	DroppedMatches        int                  `json:"dropped_matches,omitempty"`
	LineCount             int                  `json:"line_count"`
}

// LumberItem is the estimate for one dimensional-lumber size.
type LumberItem struct {
	Size        string  `json:"size"`
	RateBFPerLF float64 `json:"rate_bf_per_lf"`
	LinearFeet  float64 `json:"linear_feet"`
	BoardFeet   float64 `json:"board_feet"`
}

// LumberRequirements is the formwork material estimate derived from the
// SQFT formwork quantities of a document.
type LumberRequirements struct {
	FormworkArea   float64      `json:"formwork_area"`
	PlywoodSheets  float64      `json:"plywood_sheets"`
	Lumber         []LumberItem `json:"lumber"`
	TotalBoardFeet float64      `json:"total_board_feet"`
	EstimatedCost  float64      `json:"estimated_cost"`
	WasteFactor    float64      `json:"waste_factor"`
	ReuseFactor    float64      `json:"reuse_factor"`
}

// AnalysisResult is the output of analyzing every page of one document.
// Terms and Quantities share pointers with the per-page lists.
type AnalysisResult struct {
	DocType               DocumentType         `json:"doc_type"`
	PageCount             int                  `json:"page_count"`
	Sheets                []SheetAnalysis      `json:"sheets"`
	Terms                 []*TermMatch         `json:"terms"`
	Quantities            []*ExtractedQuantity `json:"quantities"`
	Alerts                []Alert              `json:"alerts"`
	LumberRequirements    LumberRequirements   `json:"lumber_requirements"`
	TextExtractionQuality float64              `json:"text_extraction_quality"`
	ConfidenceScore       float64              `json:"confidence_score"`
	HighPriorityTerms     int                  `json:"high_priority_terms"`
	QuantityCount         int                  `json:"quantity_count"`
	CriticalAlerts        int                  `json:"critical_alerts"`
	Partial               bool                 `json:"partial,omitempty"`
}

// DistinctTerms returns the set of terms found in the document.
func (r *AnalysisResult) DistinctTerms() map[string]bool {
	set := make(map[string]bool, len(r.Terms))
	for _, t := range r.Terms {
		set[t.Term] = true
	}
	return set
}

// QuantityDiscrepancy records a bid-form quantity that disagrees with a
// quantity of the same unit in another document.
type QuantityDiscrepancy struct {
	Term              string       `json:"term,omitempty"`
	Unit              Unit         `json:"unit"`
	BidFormValue      float64      `json:"bid_form_value"`
	OtherValue        float64      `json:"other_value"`
	OtherDocument     DocumentType `json:"other_document"`
	PercentDifference float64      `json:"percent_difference"`
	BidFormContext    string       `json:"bid_form_context,omitempty"`
	OtherContext      string       `json:"other_context,omitempty"`
	BidFormPage       int          `json:"bid_form_page"`
	OtherPage         int          `json:"other_page"`
}

// MissingRequirement records a term required by one document type but
// absent from another.
type MissingRequirement struct {
	Term        string       `json:"term"`
	Category    string       `json:"category,omitempty"`
	Priority    Priority     `json:"priority,omitempty"`
	RequiredIn  DocumentType `json:"required_in"`
	MissingFrom DocumentType `json:"missing_from"`
}

// DocumentCoverage summarises one document's contribution.
type DocumentCoverage struct {
	PageCount   int     `json:"page_count"`
	TermCount   int     `json:"term_count"`
	Quantities  int     `json:"quantity_count"`
	Confidence  float64 `json:"confidence"`
	TextQuality float64 `json:"text_quality"`
}

// CrossReferenceResult is the outcome of reconciling several documents.
type CrossReferenceResult struct {
	TermConsistency       map[string][]DocumentType         `json:"term_consistency"`
	ConsistentTerms       []string                          `json:"consistent_terms"`
	QuantityDiscrepancies []QuantityDiscrepancy             `json:"quantity_discrepancies"`
	MissingRequirements   []MissingRequirement              `json:"missing_requirements"`
	Coverage              map[DocumentType]DocumentCoverage `json:"coverage"`
}

// BidLineItem is one row parsed from the authoritative bid form.
type BidLineItem struct {
	ItemNumber   string   `json:"item_number"`
	Description  string   `json:"description"`
	CalTransCode string   `json:"caltrans_code,omitempty"`
	Quantity     float64  `json:"quantity"`
	Unit         Unit     `json:"unit"`
	UnitPrice    float64  `json:"unit_price,omitempty"`
	TotalPrice   float64  `json:"total_price,omitempty"`
	PageNumber   int      `json:"page_number"`
	LineNumber   int      `json:"line_number"`
	Terms        []string `json:"terms,omitempty"`
}

// ComprehensiveAnalysisResult is built once per bid request from every
// document in the package.
type ComprehensiveAnalysisResult struct {
	Documents         map[DocumentType]*AnalysisResult `json:"documents"`
	CrossReference    CrossReferenceResult             `json:"cross_reference"`
	Terms             []*TermMatch                     `json:"terms"`
	Quantities        []*ExtractedQuantity             `json:"quantities"`
	BidLineItems      []BidLineItem                    `json:"bid_line_items"`
	Alerts            []Alert                          `json:"alerts"`
	OverallConfidence float64                          `json:"overall_confidence"`
	TotalPages        int                              `json:"total_pages"`
	HighPriorityTerms []string                         `json:"high_priority_terms"`
	Partial           bool                             `json:"partial,omitempty"`
}

// DocumentTypes returns the analyzed document types in priority order.
func (c *ComprehensiveAnalysisResult) DocumentTypes() []DocumentType {
	types := make([]DocumentType, 0, len(c.Documents))
	for dt := range c.Documents {
		types = append(types, dt)
	}
	return SortByPriority(types)
}
