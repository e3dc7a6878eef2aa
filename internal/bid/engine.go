// Package bid turns a comprehensive analysis into priced line items.
package bid

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/takeoff-cli/internal/cost"
	"github.com/sells-group/takeoff-cli/internal/crossref"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/pkg/catalog"
)

// Config holds the reconciliation and review settings.
type Config struct {
	SourceWeights       map[model.DocumentType]float64
	DivergenceThreshold float64
	DefaultWaste        float64
	WasteFactors        map[model.UnitCategory]float64
	HighValueThreshold  float64
	ReviewConfidence    float64
	CoverageMinimum     float64
	// MinMatchScore is the lowest catalog match score a line is priced
	// from. Weaker matches are ignored in favour of the bid-form price.
	MinMatchScore       float64
}

// DefaultSourceWeights ranks documents by how much their quantities are
// trusted.
func DefaultSourceWeights() map[model.DocumentType]float64 {
	return map[model.DocumentType]float64{
		model.DocBidForms:          1.5,
		model.DocSpecifications:    1.2,
		model.DocConstructionPlans: 1.0,
		model.DocSupplemental:      0.8,
	}
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		SourceWeights:       DefaultSourceWeights(),
		DivergenceThreshold: 0.10,
		DefaultWaste:        0.08,
		HighValueThreshold:  10000,
		ReviewConfidence:    0.7,
		CoverageMinimum:     0.3,
		MinMatchScore:       0.5,
	}
}

// weight returns the source weight of dt. Unlisted document types weigh 1.
func (c Config) weight(dt model.DocumentType) float64 {
	if w, ok := c.SourceWeights[dt]; ok {
		return w
	}
	return 1
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine prices bid line items against a product catalog.
type Engine struct {
	catalog catalog.Matcher
	pricing *cost.Calculator
	cfg     Config
	log     *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(matcher catalog.Matcher, pricing *cost.Calculator, cfg Config, opts ...Option) *Engine {
	if cfg.SourceWeights == nil {
		cfg.SourceWeights = DefaultSourceWeights()
	}
	e := &Engine{
		catalog: matcher,
		pricing: pricing,
		cfg:     cfg,
		log:     zap.L(),
	}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// lineItems is the outcome of pricing before summarising.
type lineItems struct {
	items    []model.PricedLineItem
	unpriced []model.ReviewItem
}

// GenerateLineItems prices every bid-form line item and every term not
// covered by one, then totals them. It returns cost.ErrNoLineItems when
// nothing could be priced.
func (e *Engine) GenerateLineItems(ctx context.Context, c *model.ComprehensiveAnalysisResult) ([]model.PricedLineItem, model.PricingSummary, error) {
	li, err := e.lineItems(ctx, c)
	if err != nil {
		return nil, model.PricingSummary{}, err
	}
	summary, err := e.pricing.Summarize(li.items)
	if err != nil {
		return li.items, summary, err
	}
	return li.items, summary, nil
}

// Generate builds the full bid package, including the confidence report.
func (e *Engine) Generate(ctx context.Context, c *model.ComprehensiveAnalysisResult) (*model.BidPackage, error) {
	li, err := e.lineItems(ctx, c)
	if err != nil {
		return nil, err
	}
	summary, err := e.pricing.Summarize(li.items)
	if err != nil {
		return nil, err
	}

	report := e.ConfidenceReport(c)
	report.ManualReview = append(report.ManualReview, li.unpriced...)

	e.log.Info("bid: package generated",
		zap.Int("line_items", len(li.items)),
		zap.Int("unpriced", len(li.unpriced)),
		zap.Float64("total", summary.Total),
	)
	return &model.BidPackage{
		LineItems:  li.items,
		Summary:    summary,
		Confidence: report,
		Analysis:   c,
	}, nil
}

func (e *Engine) lineItems(ctx context.Context, c *model.ComprehensiveAnalysisResult) (lineItems, error) {
	var out lineItems
	if c == nil {
		return out, eris.New("bid: no analysis supplied")
	}

	covered := make(map[string]bool)
	for _, row := range c.BidLineItems {
		item, err := e.priceBidLine(ctx, c, row)
		if err != nil {
			return out, err
		}
		if item.UnitPrice == 0 {
			out.unpriced = append(out.unpriced, model.ReviewItem{
				Reason:     "no catalog match or bid-form price for line " + row.ItemNumber,
				Term:       row.Description,
				DocType:    model.DocBidForms,
				PageNumber: row.PageNumber,
				Value:      row.Quantity,
				Unit:       row.Unit,
			})
		}
		out.items = append(out.items, item)
		for _, t := range row.Terms {
			covered[t] = true
		}
	}

	seq := 0
	for _, term := range distinctTerms(c.Terms) {
		if covered[term] {
			continue
		}
		item, review, ok, err := e.deriveItem(ctx, c, term, seq+1)
		if err != nil {
			return out, err
		}
		if review != nil {
			out.unpriced = append(out.unpriced, *review)
		}
		if ok {
			seq++
			out.items = append(out.items, item)
		}
	}
	return out, nil
}

func (e *Engine) priceBidLine(ctx context.Context, c *model.ComprehensiveAnalysisResult, row model.BidLineItem) (model.PricedLineItem, error) {
	log := e.log.With(zap.String("item", row.ItemNumber))

	refs := append([]string{}, row.Terms...)
	if row.CalTransCode != "" {
		refs = append(refs, row.CalTransCode)
	}
	if len(refs) == 0 {
		refs = []string{row.Description}
	}
	supporting := supportingQuantities(c.Quantities, row.Unit, refs)

	item := model.PricedLineItem{
		ItemNumber:         row.ItemNumber,
		Description:        row.Description,
		CalTransCode:       row.CalTransCode,
		Quantity:           row.Quantity,
		CalculatedQuantity: row.Quantity,
		Unit:               row.Unit,
		Origin:             model.SourceBidForm,
		SourceDocuments:    sourceDocuments(supporting, model.DocBidForms),
	}

	if len(supporting) > 0 {
		item.CalculatedQuantity = e.weightedQuantity(supporting)
		if div := crossref.RelativeDifference(item.CalculatedQuantity, row.Quantity); div > e.cfg.DivergenceThreshold {
			log.Warn("bid: supporting quantities diverge from bid form",
				zap.Float64("official", row.Quantity),
				zap.Float64("weighted", item.CalculatedQuantity),
				zap.String("unit", string(row.Unit)),
			)
			item.Notes = append(item.Notes, fmt.Sprintf(
				"weighted quantity %.2f %s differs from bid form %.2f by %.1f%%; bid form quantity used",
				item.CalculatedQuantity, row.Unit, row.Quantity, div*100))
		}
	}

	search := catalog.Keywords(row.Description)
	if row.CalTransCode != "" {
		search = append([]string{row.CalTransCode}, search...)
	}
	product, err := e.bestMatch(ctx, search, log)
	if err != nil {
		return item, err
	}

	matchScore := 0.0
	switch {
	case product != nil:
		item.UnitPrice, item.PriceEstimated = product.UnitPrice()
		item.ProductID = product.ID
		item.ProductName = product.Name
		matchScore = product.MatchScore
	case row.UnitPrice > 0:
		item.UnitPrice = row.UnitPrice
		item.Notes = append(item.Notes, "priced from bid form")
		matchScore = 1
	}

	item.WasteFactor = e.wasteFactor(row.Unit, row.Description, item.ProductName)
	item.Confidence = clamp01(termConfidence(c.Terms, row.Terms, c.Documents[model.DocBidForms]) * matchScore)
	item.TotalPrice = e.pricing.LineTotal(item.Quantity, item.UnitPrice, item.WasteFactor)
	return item, nil
}

// deriveItem prices a term that no bid-form row covers. ok is false when
// the term has no usable quantity or no catalog match.
func (e *Engine) deriveItem(ctx context.Context, c *model.ComprehensiveAnalysisResult, term string, seq int) (model.PricedLineItem, *model.ReviewItem, bool, error) {
	log := e.log.With(zap.String("term", term))

	var matches []*model.TermMatch
	for _, t := range c.Terms {
		if t.Term == term {
			matches = append(matches, t)
		}
	}
	unit, quantities := e.dominantUnit(matches)
	if len(quantities) == 0 {
		return model.PricedLineItem{}, nil, false, nil
	}
	qty := e.weightedQuantity(quantities)
	if qty <= 0 {
		return model.PricedLineItem{}, nil, false, nil
	}

	product, err := e.bestMatch(ctx, catalog.Keywords(term), log)
	if err != nil {
		return model.PricedLineItem{}, nil, false, err
	}
	if product == nil {
		log.Debug("bid: no catalog match for derived term")
		return model.PricedLineItem{}, &model.ReviewItem{
			Reason:     "no catalog match for derived term",
			Term:       term,
			DocType:    matches[0].SourceDocument,
			PageNumber: matches[0].PageNumber,
			Value:      qty,
			Unit:       unit,
			Confidence: matches[0].Confidence,
		}, false, nil
	}

	item := model.PricedLineItem{
		ItemNumber:         fmt.Sprintf("D-%03d", seq),
		Description:        term,
		Quantity:           qty,
		CalculatedQuantity: qty,
		Unit:               unit,
		Origin:             model.SourceDerived,
		ProductID:          product.ID,
		ProductName:        product.Name,
		SourceDocuments:    sourceDocuments(quantities, ""),
		Notes:              []string{fmt.Sprintf("derived from %d document quantities", len(quantities))},
	}
	item.UnitPrice, item.PriceEstimated = product.UnitPrice()
	item.WasteFactor = e.wasteFactor(unit, term+" "+matches[0].Category, product.Name)
	item.Confidence = clamp01(termConfidence(c.Terms, []string{term}, nil) * product.MatchScore)
	item.TotalPrice = e.pricing.LineTotal(item.Quantity, item.UnitPrice, item.WasteFactor)
	return item, nil, true, nil
}

// bestMatch returns the top catalog candidate, or nil when there is none or
// it scores below MinMatchScore. Catalog failures other than cancellation
// are logged and treated as no match.
func (e *Engine) bestMatch(ctx context.Context, terms []string, log *zap.Logger) (*catalog.Product, error) {
	if e.catalog == nil || len(terms) == 0 {
		return nil, nil
	}
	products, err := e.catalog.Match(ctx, terms, "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "bid: catalog lookup")
		}
		log.Warn("bid: catalog lookup failed", zap.Strings("terms", terms), zap.Error(err))
		return nil, nil
	}
	if len(products) == 0 {
		return nil, nil
	}
	if best := products[0]; best.MatchScore < e.cfg.MinMatchScore {
		log.Debug("bid: catalog match below minimum score",
			zap.String("product", best.Name),
			zap.Float64("score", best.MatchScore),
			zap.Float64("min_score", e.cfg.MinMatchScore),
		)
		return nil, nil
	}
	return &products[0], nil
}

// dominantUnit collects the distinct quantities associated with matches and
// keeps those in the unit carrying the most source weight.
func (e *Engine) dominantUnit(matches []*model.TermMatch) (model.Unit, []*model.ExtractedQuantity) {
	seen := make(map[*model.ExtractedQuantity]bool)
	byUnit := make(map[model.Unit][]*model.ExtractedQuantity)
	weight := make(map[model.Unit]float64)
	for _, t := range matches {
		for _, q := range t.AssociatedQuantities {
			if seen[q] {
				continue
			}
			seen[q] = true
			byUnit[q.Unit] = append(byUnit[q.Unit], q)
			weight[q.Unit] += e.cfg.weight(q.SourceDocument)
		}
	}

	var best model.Unit
	for _, u := range model.AllUnits() {
		if len(byUnit[u]) > 0 && (best == "" || weight[u] > weight[best]) {
			best = u
		}
	}
	return best, byUnit[best]
}

// weightedQuantity is the source-weighted mean of the quantity values.
func (e *Engine) weightedQuantity(quantities []*model.ExtractedQuantity) float64 {
	values := make([]float64, len(quantities))
	weights := make([]float64, len(quantities))
	for i, q := range quantities {
		values[i] = q.Value
		weights[i] = e.cfg.weight(q.SourceDocument)
	}
	return stat.Mean(values, weights)
}

var (
	formworkRe = regexp.MustCompile(`\b(FORMS?|FORMWORK|FALSEWORK|PLYWOOD)\b`)
	lumberRe   = regexp.MustCompile(`\b(LUMBER|DIMENSION(AL)?|TIMBER|\d+X\d+)\b`)
	hardwareRe = regexp.MustCompile(`\b(HARDWARE|FASTENERS?|NAILS?|SCREWS?|BOLTS?|WASHERS?|TIES?)\b`)
	specialRe  = regexp.MustCompile(`\b(SPECIAL|CUSTOM)\b`)
)

// wasteFactor picks a waste allowance from keywords in the item text, then
// from the unit category, then the default.
func (e *Engine) wasteFactor(unit model.Unit, texts ...string) float64 {
	text := strings.ToUpper(strings.Join(texts, " "))
	switch {
	case formworkRe.MatchString(text):
		return 0.10
	case lumberRe.MatchString(text):
		return 0.10
	case hardwareRe.MatchString(text):
		return 0.05
	case specialRe.MatchString(text):
		return 0.15
	}
	if w, ok := e.cfg.WasteFactors[unit.Category()]; ok {
		return w
	}
	return e.cfg.DefaultWaste
}

// supportingQuantities returns the quantities in unit whose context
// mentions any of refs.
func supportingQuantities(pool []*model.ExtractedQuantity, unit model.Unit, refs []string) []*model.ExtractedQuantity {
	var out []*model.ExtractedQuantity
	for _, q := range pool {
		if q.Unit != unit {
			continue
		}
		for _, r := range refs {
			if q.ContextContains(r) {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// sourceDocuments lists the distinct documents of quantities plus extra, in
// priority order.
func sourceDocuments(quantities []*model.ExtractedQuantity, extra model.DocumentType) []model.DocumentType {
	seen := make(map[model.DocumentType]bool)
	var docs []model.DocumentType
	add := func(dt model.DocumentType) {
		if dt != "" && !seen[dt] {
			seen[dt] = true
			docs = append(docs, dt)
		}
	}
	add(extra)
	for _, q := range quantities {
		add(q.SourceDocument)
	}
	return model.SortByPriority(docs)
}

// termConfidence is the best confidence among matches of names. With no
// match it falls back to the document's confidence, then to 0.5.
func termConfidence(pool []*model.TermMatch, names []string, doc *model.AnalysisResult) float64 {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	best := -1.0
	for _, t := range pool {
		if want[t.Term] && t.Confidence > best {
			best = t.Confidence
		}
	}
	switch {
	case best >= 0:
		return best
	case doc != nil:
		return doc.ConfidenceScore
	}
	return 0.5
}

func distinctTerms(terms []*model.TermMatch) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range terms {
		if !seen[t.Term] {
			seen[t.Term] = true
			out = append(out, t.Term)
		}
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
