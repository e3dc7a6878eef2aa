package main

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/bid"
	"github.com/sells-group/takeoff-cli/internal/config"
	"github.com/sells-group/takeoff-cli/internal/cost"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
	"github.com/sells-group/takeoff-cli/internal/pipeline"
	"github.com/sells-group/takeoff-cli/internal/store"
	"github.com/sells-group/takeoff-cli/pkg/catalog"
)

// service holds everything the bid and serve commands share.
type service struct {
	aggregator *pipeline.Aggregator
	matcher    catalog.Matcher
	store      store.Store
	rates      cost.Rates
	bidCfg     bid.Config
	log        *zap.Logger
	closers    []func()
}

// newService builds the analysis stack, catalog matcher and run store from
// c. Callers should defer svc.Close().
func newService(ctx context.Context, c *config.Config) (*service, error) {
	log := zap.L()
	svc := &service{log: log}

	agg, err := newAggregator(c, log)
	if err != nil {
		return nil, err
	}
	svc.aggregator = agg

	if svc.rates, err = pricingRates(c.Pricing); err != nil {
		return nil, err
	}
	if svc.bidCfg, err = bidConfig(c.Pricing); err != nil {
		return nil, err
	}

	matcher, closeCatalog, err := initCatalog(ctx, c, log)
	if err != nil {
		return nil, eris.Wrap(err, "init catalog")
	}
	svc.matcher = matcher
	svc.closers = append(svc.closers, closeCatalog)

	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		svc.Close()
		return nil, eris.Wrap(err, "init store")
	}
	svc.store = st
	svc.closers = append(svc.closers, func() { _ = st.Close() })

	return svc, nil
}

// Close releases the catalog and store connections.
func (s *service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// bidOverrides adjusts the configured pricing for a single bid.
type bidOverrides struct {
	MarkupPct    *float64           `json:"markup_pct,omitempty"`
	TaxRate      *float64           `json:"tax_rate,omitempty"`
	DeliveryFee  *deliveryFee       `json:"delivery_fee,omitempty"`
	WasteFactors map[string]float64 `json:"waste_factors,omitempty"`
}

// deliveryFee accepts either a number or "auto".
type deliveryFee string

func (d *deliveryFee) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = deliveryFee(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return eris.New(`delivery_fee must be a number or "auto"`)
	}
	*d = deliveryFee(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// apply returns copies of rates and bc with the overrides set.
func (o bidOverrides) apply(rates cost.Rates, bc bid.Config) (cost.Rates, bid.Config, error) {
	if o.MarkupPct != nil {
		if *o.MarkupPct < 0 {
			return rates, bc, eris.New("markup_pct must be >= 0")
		}
		rates.MarkupPct = *o.MarkupPct
	}
	if o.TaxRate != nil {
		if *o.TaxRate < 0 || *o.TaxRate > 1 {
			return rates, bc, eris.New("tax_rate must be between 0 and 1")
		}
		rates.TaxRate = *o.TaxRate
	}
	if o.DeliveryFee != nil {
		fee, auto, err := config.PricingConfig{DeliveryFee: string(*o.DeliveryFee)}.DeliveryFeeValue()
		if err != nil {
			return rates, bc, err
		}
		rates.FixedDelivery = nil
		if !auto {
			rates.FixedDelivery = &fee
		}
	}
	if len(o.WasteFactors) > 0 {
		extra, err := wasteFactors(o.WasteFactors)
		if err != nil {
			return rates, bc, err
		}
		merged := make(map[model.UnitCategory]float64, len(bc.WasteFactors)+len(extra))
		for k, v := range bc.WasteFactors {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		bc.WasteFactors = merged
	}
	return rates, bc, nil
}

// generate prices an analysis.
func (s *service) generate(ctx context.Context, c *model.ComprehensiveAnalysisResult, o bidOverrides) (*model.BidPackage, error) {
	rates, bc, err := o.apply(s.rates, s.bidCfg)
	if err != nil {
		return nil, eris.Wrap(err, "bid overrides")
	}
	engine := bid.NewEngine(s.matcher, cost.NewCalculator(rates), bc, bid.WithLogger(s.log))
	return engine.Generate(ctx, c)
}

// runBid records a run, analyzes the sources, prices the result and stores
// the bid package. A failed run is marked failed before the error returns.
func (s *service) runBid(ctx context.Context, input model.RunInput, sources map[model.DocumentType]ocr.Source, o bidOverrides) (*model.Run, error) {
	run, err := s.store.CreateRun(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "create run")
	}
	log := s.log.With(zap.String("run_id", run.ID))

	pkg, err := s.priceRun(ctx, run.ID, sources, o)
	if err != nil {
		if ferr := s.store.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
			log.Error("record failed run", zap.Error(ferr))
		}
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		return run, err
	}

	if err := s.store.CompleteRun(ctx, run.ID, pkg); err != nil {
		return run, eris.Wrap(err, "complete run")
	}
	run.Status = model.RunStatusComplete
	run.Result = pkg

	log.Info("bid run complete",
		zap.Int("line_items", len(pkg.LineItems)),
		zap.Float64("total", pkg.Summary.Total),
		zap.Int("manual_review", len(pkg.Confidence.ManualReview)),
	)
	return run, nil
}

func (s *service) priceRun(ctx context.Context, runID string, sources map[model.DocumentType]ocr.Source, o bidOverrides) (*model.BidPackage, error) {
	if err := s.store.UpdateRunStatus(ctx, runID, model.RunStatusAnalyzing); err != nil {
		return nil, eris.Wrap(err, "update run status")
	}
	c, err := s.aggregator.AnalyzeAll(ctx, sources)
	if err != nil {
		return nil, eris.Wrap(err, "analyze documents")
	}
	if err := s.store.UpdateRunStatus(ctx, runID, model.RunStatusPricing); err != nil {
		return nil, eris.Wrap(err, "update run status")
	}
	return s.generate(ctx, c, o)
}
