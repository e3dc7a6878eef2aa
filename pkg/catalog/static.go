package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/takeoff-cli/internal/fetcher"
)

// Static matches against an in-memory product list.
type Static struct {
	products      []Product
	keywords      []map[string]bool
	maxCandidates int
	minScore      float64
}

// StaticOption configures a Static.
type StaticOption func(*Static)

// WithMinScore drops candidates scoring below score. The default keeps every
// candidate with at least one hit.
func WithMinScore(score float64) StaticOption {
	return func(s *Static) { s.minScore = score }
}

// NewStatic indexes products for matching. maxCandidates <= 0 means no cap.
func NewStatic(products []Product, maxCandidates int, opts ...StaticOption) *Static {
	s := &Static{maxCandidates: maxCandidates}
	for _, o := range opts {
		o(s)
	}
	for _, p := range products {
		kw := make(map[string]bool)
		for _, k := range Keywords(p.Name + " " + p.Category) {
			kw[k] = true
		}
		s.products = append(s.products, p)
		s.keywords = append(s.keywords, kw)
	}
	return s
}

// LoadStatic reads a price list from a JSON array or an XLSX sheet whose
// header row names the columns id, name, category, caltrans_code, unit,
// price and estimated_price.
func LoadStatic(path string, maxCandidates int, opts ...StaticOption) (*Static, error) {
	var products []Product
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err := fetcher.ReadRecords(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read price sheet %s", path)
		}
		for i, rec := range records {
			p, err := productFromRecord(rec)
			if err != nil {
				return nil, eris.Wrapf(err, "catalog: %s row %d", path, i+2)
			}
			products = append(products, p)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, eris.Wrapf(err, "catalog: parse %s", path)
		}
	}
	return NewStatic(products, maxCandidates, opts...), nil
}

// Products returns a copy of the indexed product list.
func (s *Static) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

func productFromRecord(rec map[string]string) (Product, error) {
	p := Product{
		ID:       rec["id"],
		Name:     rec["name"],
		Category: rec["category"],
		Code:     rec["caltrans_code"],
		Unit:     rec["unit"],
	}
	if p.ID == "" {
		p.ID = p.Code
	}
	var err error
	if p.Price, err = parsePrice(rec["price"]); err != nil {
		return p, eris.Wrap(err, "price")
	}
	if p.EstimatedPrice, err = parsePrice(rec["estimated_price"]); err != nil {
		return p, eris.Wrap(err, "estimated_price")
	}
	return p, nil
}

func parsePrice(s string) (float64, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Match scores each product by the share of terms found among its name and
// category keywords. A term equal to the product's code scores 1. Products
// scoring below the minimum score are left out.
func (s *Static) Match(_ context.Context, terms []string, category string) ([]Product, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}

	var out []Product
	for i, p := range s.products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		hits := 0
		codeHit := false
		for _, t := range terms {
			switch {
			case p.Code != "" && t == strings.ToUpper(p.Code):
				codeHit = true
			case s.keywords[i][t]:
				hits++
			}
		}
		score := float64(hits) / float64(len(terms))
		if codeHit {
			score = 1
		}
		if score == 0 || score < s.minScore {
			continue
		}
		p.MatchScore = score
		out = append(out, p)
	}

	sortProducts(out)
	if s.maxCandidates > 0 && len(out) > s.maxCandidates {
		out = out[:s.maxCandidates]
	}
	return out, nil
}
