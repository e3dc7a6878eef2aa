// Package catalog looks up priced products for bid line items.
package catalog

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Product is a catalog entry a bid line can be priced against.
type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Code           string  `json:"caltrans_code,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Price          float64 `json:"price,omitempty"`
	EstimatedPrice float64 `json:"estimated_price,omitempty"`
	MatchScore     float64 `json:"match_score"`
}

// UnitPrice returns the list price, or the estimated price when no list
// price is known. estimated reports which one was used.
func (p Product) UnitPrice() (price float64, estimated bool) {
	if p.Price > 0 {
		return p.Price, false
	}
	return p.EstimatedPrice, true
}

// Matcher finds candidate products for a set of search terms. Results are
// ordered best match first. An empty category matches every category.
type Matcher interface {
	Match(ctx context.Context, terms []string, category string) ([]Product, error)
}

// minKeywordLen drops unit suffixes and filler such as "OF" or "TO".
const minKeywordLen = 3

// stopwords never identify a product on their own.
var stopwords = map[string]bool{
	"AND": true, "THE": true, "FOR": true, "WITH": true, "FROM": true,
	"INTO": true, "ALL": true, "PER": true, "EACH": true, "ANY": true,
	"NOT": true, "ARE": true, "THAT": true, "THIS": true, "INCL": true,
	"INCLUDING": true, "TYPE": true, "ITEM": true,
}

// Keywords splits text into upper-cased search keywords. Words shorter than
// three characters and stopwords are dropped.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minKeywordLen {
			continue
		}
		k := strings.ToUpper(f)
		if !stopwords[k] {
			out = append(out, k)
		}
	}
	return out
}

// sortProducts orders by score descending, then name.
func sortProducts(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].MatchScore != products[j].MatchScore {
			return products[i].MatchScore > products[j].MatchScore
		}
		return products[i].Name < products[j].Name
	})
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
