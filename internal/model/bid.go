package model

// LineItemSource tells whether a priced item came from the bid form or was
// derived from document terms.
type LineItemSource string

const (
	SourceBidForm LineItemSource = "bid_form"
	SourceDerived LineItemSource = "derived"
)

// PricedLineItem is a bid line with a unit price and waste factor applied.
type PricedLineItem struct {
	ItemNumber         string         `json:"item_number"`
	Description        string         `json:"description"`
	CalTransCode       string         `json:"caltrans_code,omitempty"`
	Quantity           float64        `json:"quantity"`
	CalculatedQuantity float64        `json:"calculated_quantity"`
	Unit               Unit           `json:"unit"`
	UnitPrice          float64        `json:"unit_price"`
	TotalPrice         float64        `json:"total_price"`
	WasteFactor        float64        `json:"waste_factor"`
	Confidence         float64        `json:"confidence"`
	Origin             LineItemSource `json:"origin"`
	ProductID          string         `json:"product_id,omitempty"`
	ProductName        string         `json:"product_name,omitempty"`
	PriceEstimated     bool           `json:"price_estimated,omitempty"`
	SourceDocuments    []DocumentType `json:"source_documents"`
	Notes              []string       `json:"cross_reference_notes,omitempty"`
}

// PricingSummary totals a set of priced line items.
type PricingSummary struct {
	Subtotal            float64 `json:"subtotal"`
	MarkupPct           float64 `json:"markup_pct"`
	Markup              float64 `json:"markup"`
	WasteAdjustment     float64 `json:"waste_adjustment"`
	DeliveryFee         float64 `json:"delivery_fee"`
	TaxRate             float64 `json:"tax_rate"`
	Tax                 float64 `json:"tax"`
	Total               float64 `json:"total"`
	LineItemCount       int     `json:"line_item_count"`
	HighConfidenceItems int     `json:"high_confidence_items"`
}

// ReviewItem is something a person should check before the bid goes out.
type ReviewItem struct {
	Reason     string       `json:"reason"`
	Term       string       `json:"term,omitempty"`
	DocType    DocumentType `json:"doc_type,omitempty"`
	PageNumber int          `json:"page_number,omitempty"`
	Value      float64      `json:"value,omitempty"`
	Unit       Unit         `json:"unit,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Level      AlertLevel   `json:"level,omitempty"`
}

// CoverageReport is one document type's share of the combined term pool.
type CoverageReport struct {
	TermsFound int     `json:"terms_found"`
	Coverage   float64 `json:"coverage"`
	Confidence float64 `json:"confidence"`
}

// ConfidenceReport explains how much to trust a generated bid.
type ConfidenceReport struct {
	OverallConfidence float64                         `json:"overall_confidence"`
	Coverage          map[DocumentType]CoverageReport `json:"coverage"`
	Recommendations   []string                        `json:"recommendations"`
	ReviewItems       []ReviewItem                    `json:"review_items"`
	ManualReview      []ReviewItem                    `json:"manual_review"`
}

// BidPackage is the full output of a bid generation request.
type BidPackage struct {
	LineItems  []PricedLineItem             `json:"line_items"`
	Summary    PricingSummary               `json:"summary"`
	Confidence ConfidenceReport             `json:"confidence"`
	Analysis   *ComprehensiveAnalysisResult `json:"analysis,omitempty"`
}
