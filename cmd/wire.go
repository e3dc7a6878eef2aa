package main

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/analysis"
	"github.com/sells-group/takeoff-cli/internal/bid"
	"github.com/sells-group/takeoff-cli/internal/config"
	"github.com/sells-group/takeoff-cli/internal/cost"
	"github.com/sells-group/takeoff-cli/internal/crossref"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/pipeline"
	"github.com/sells-group/takeoff-cli/internal/registry"
	"github.com/sells-group/takeoff-cli/internal/resilience"
	"github.com/sells-group/takeoff-cli/internal/store"
	"github.com/sells-group/takeoff-cli/pkg/catalog"
)

// analysisConfig maps the analysis section onto analysis.Config. Profile
// and threshold keys must name a known document type or unit.
func analysisConfig(c config.AnalysisConfig) (analysis.Config, error) {
	ac := analysis.DefaultConfig()
	ac.QuantityContextChars = c.QuantityContextChars
	ac.TermContextChars = c.TermContextChars
	ac.FuzzyThreshold = c.FuzzyThreshold
	ac.AssociationLineWindow = c.AssociationLineWindow
	ac.QuantityBaseConfidence = c.QuantityBaseConfidence
	ac.TermBaseConfidence = c.TermBaseConfidence
	ac.FocusBoost = c.FocusBoost

	for key, p := range c.Profiles {
		dt, ok := model.ParseDocumentType(key)
		if !ok {
			return ac, eris.Errorf("config: unknown document type %q in analysis.profiles", key)
		}
		ac.Profiles[dt] = analysis.DocumentProfile{
			QuantityMultiplier: p.QuantityMultiplier,
			TermMultiplier:     p.TermMultiplier,
			ConfidenceBoost:    p.ConfidenceBoost,
			FocusTerms:         p.FocusTerms,
		}
	}
	for key, v := range c.QuantityThresholds {
		u, ok := model.ParseUnit(key)
		if !ok {
			return ac, eris.Errorf("config: unknown unit %q in analysis.quantity_thresholds", key)
		}
		ac.QuantityThresholds[u] = v
	}
	return ac, nil
}

// lumberConfig overlays the configured factors on the default size table
// and formwork keywords.
func lumberConfig(c config.LumberConfig) analysis.LumberConfig {
	lc := analysis.DefaultLumberConfig()
	lc.WasteFactor = c.WasteFactor
	lc.ReuseFactor = c.ReuseFactor
	lc.SheetsPerSqft = c.SheetsPerSqft
	lc.LinearFeetPerSqft = c.LinearFeetPerSqft
	lc.PlywoodSheetCost = c.PlywoodSheetCost
	lc.LumberCostPerBF = c.LumberCostPerBF
	lc.LaborRatePerSqft = c.LaborRatePerSqft
	return lc
}

// newAggregator loads the reference data and assembles the analysis stack.
func newAggregator(c *config.Config, log *zap.Logger) (*pipeline.Aggregator, error) {
	libs, err := registry.Load(c.Reference.TermsPath, c.Reference.PatternsPath)
	if err != nil {
		return nil, eris.Wrap(err, "load reference data")
	}
	ac, err := analysisConfig(c.Analysis)
	if err != nil {
		return nil, err
	}

	analyzer := analysis.NewDocumentAnalyzer(libs, ac, lumberConfig(c.Lumber), analysis.WithLogger(log))
	engine := crossref.NewEngine(crossref.Config{
		DiscrepancyThreshold: c.CrossRef.DiscrepancyThreshold,
		MinConsistencyDocs:   c.CrossRef.MinConsistencyDocs,
	}, crossref.WithLogger(log))

	return pipeline.New(analyzer, engine, pipeline.Config{
		LowConfidenceThreshold: c.Pipeline.LowConfidenceThreshold,
		Concurrency:            c.Pipeline.MaxConcurrentDocuments,
	}, pipeline.WithLogger(log)), nil
}

// pricingRates maps the pricing section onto cost.Rates.
func pricingRates(p config.PricingConfig) (cost.Rates, error) {
	rates := cost.Rates{
		MarkupPct:           p.MarkupPct,
		TaxRate:             p.TaxRate,
		DeliveryPct:         p.DeliveryPct,
		DeliveryMinimum:     p.DeliveryMinimum,
		TaxIncludesDelivery: p.TaxIncludesDelivery,
	}
	fee, auto, err := p.DeliveryFeeValue()
	if err != nil {
		return rates, err
	}
	if !auto {
		rates.FixedDelivery = &fee
	}
	return rates, nil
}

// bidConfig maps the pricing section onto bid.Config.
func bidConfig(p config.PricingConfig) (bid.Config, error) {
	bc := bid.DefaultConfig()
	bc.DivergenceThreshold = p.DivergenceThreshold
	bc.DefaultWaste = p.DefaultWaste
	bc.HighValueThreshold = p.HighValueThreshold
	bc.ReviewConfidence = p.ReviewConfidence
	bc.CoverageMinimum = p.CoverageMinimum
	bc.MinMatchScore = p.MinMatchScore

	waste, err := wasteFactors(p.WasteFactors)
	if err != nil {
		return bc, err
	}
	bc.WasteFactors = waste

	for key, w := range p.SourceWeights {
		dt, ok := model.ParseDocumentType(key)
		if !ok {
			return bc, eris.Errorf("config: unknown document type %q in pricing.source_weights", key)
		}
		bc.SourceWeights[dt] = w
	}
	return bc, nil
}

// wasteFactors converts category-keyed waste factors ("area", "length", ...).
func wasteFactors(raw map[string]float64) (map[model.UnitCategory]float64, error) {
	out := make(map[model.UnitCategory]float64, len(raw))
	for key, w := range raw {
		cat := model.UnitCategory(strings.ToLower(strings.TrimSpace(key)))
		if !slices.Contains(model.AllUnitCategories(), cat) {
			return nil, eris.Errorf("config: unknown unit category %q in waste_factors", key)
		}
		if w < 0 {
			return nil, eris.Errorf("config: waste factor for %s must be >= 0", key)
		}
		out[cat] = w
	}
	return out, nil
}

// initCatalog builds the configured product matcher. The returned func
// releases any connection it holds.
func initCatalog(ctx context.Context, c *config.Config, log *zap.Logger) (catalog.Matcher, func(), error) {
	cc := c.Catalog
	noop := func() {}

	switch cc.Provider {
	case "static", "":
		if cc.Path == "" {
			log.Warn("catalog: no price list configured, every line item will need manual pricing")
			return catalog.NewStatic(nil, cc.MaxCandidates), noop, nil
		}
		s, err := catalog.LoadStatic(cc.Path, cc.MaxCandidates, catalog.WithMinScore(cc.SimilarityThreshold))
		if err != nil {
			return nil, noop, err
		}
		log.Info("catalog: price list loaded", zap.String("path", cc.Path), zap.Int("products", len(s.Products())))
		return s, noop, nil

	case "postgres":
		pg, err := catalog.NewPostgres(ctx, catalog.PostgresConfig{
			URL:                 catalogURL(c),
			SimilarityThreshold: cc.SimilarityThreshold,
			MaxCandidates:       cc.MaxCandidates,
		})
		if err != nil {
			return nil, noop, err
		}
		return pg, pg.Close, nil

	case "http":
		timeout := time.Duration(cc.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		policy := resilience.DefaultPolicy()
		policy.Log = log
		hc := catalog.NewHTTPClient(cc.BaseURL,
			catalog.WithAPIKey(cc.APIKey),
			catalog.WithHTTPClient(&http.Client{Timeout: timeout}),
			catalog.WithRateLimit(cc.RateLimit),
			catalog.WithMaxCandidates(cc.MaxCandidates),
			catalog.WithRetryPolicy(policy),
			catalog.WithBreaker(resilience.NewBreaker(5, 30*time.Second)),
			catalog.WithLogger(log),
		)
		return hc, noop, nil
	}
	return nil, noop, eris.Errorf("catalog: unknown provider %q", cc.Provider)
}

// catalogURL falls back to the store database when the catalog has no
// database of its own.
func catalogURL(c *config.Config) string {
	if c.Catalog.DatabaseURL != "" {
		return c.Catalog.DatabaseURL
	}
	return c.Store.DatabaseURL
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}
