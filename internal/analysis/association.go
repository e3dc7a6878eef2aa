package analysis

import "github.com/sells-group/takeoff-cli/internal/model"

// AssociationStrategy picks the quantities on a page that relate to a term.
// The returned slice shares pointers with quantities.
type AssociationStrategy func(term *model.TermMatch, quantities []*model.ExtractedQuantity) []*model.ExtractedQuantity

// ProximityAssociation links a quantity to a term when the quantity's
// context mentions the term or the quantity sits within window lines of it.
// A quantity can be linked to several terms.
func ProximityAssociation(window int) AssociationStrategy {
	return func(term *model.TermMatch, quantities []*model.ExtractedQuantity) []*model.ExtractedQuantity {
		var out []*model.ExtractedQuantity
		for _, q := range quantities {
			if q.ContextContains(term.Term) || withinLines(q.LineNumber, term.LineNumber, window) {
				out = append(out, q)
			}
		}
		return out
	}
}

func withinLines(a, b, window int) bool {
	if a == 0 || b == 0 {
		return false
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= window
}
