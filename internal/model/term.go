package model

// Priority ranks how important a vocabulary term is to a bid.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid returns true for the four known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// IsHigh returns true for critical and high priority terms.
func (p Priority) IsHigh() bool {
	return p == PriorityCritical || p == PriorityHigh
}

// MatchKind records how a term was found on a page.
type MatchKind string

const (
	MatchDirect MatchKind = "direct"
	MatchFuzzy  MatchKind = "fuzzy"
)

// TermMatch is a vocabulary term found on a page. AssociatedQuantities
// points into the page's quantity list; the same quantity may be associated
// with several terms.
type TermMatch struct {
	Term                 string               `json:"term"`
	Category             string               `json:"category"`
	Priority             Priority             `json:"priority"`
	Context              string               `json:"context"`
	PageNumber           int                  `json:"page_number"`
	LineNumber           int                  `json:"line_number,omitempty"`
	Confidence           float64              `json:"confidence"`
	Match                MatchKind            `json:"match"`
	Similarity           float64              `json:"similarity,omitempty"`
	AssociatedQuantities []*ExtractedQuantity `json:"associated_quantities,omitempty"`
	SourceDocument       DocumentType         `json:"source_document"`
}
