// Package cost totals priced bid line items into a pricing summary.
package cost

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// ErrNoLineItems is returned when there is nothing to price.
var ErrNoLineItems = eris.New("cost: no line items to price")

// highConfidence is the item confidence counted in HighConfidenceItems.
const highConfidence = 0.8

// Rates holds the bid-level pricing parameters.
type Rates struct {
	MarkupPct       float64 `yaml:"markup_pct" mapstructure:"markup_pct"`
	TaxRate         float64 `yaml:"tax_rate" mapstructure:"tax_rate"`
	DeliveryPct     float64 `yaml:"delivery_pct" mapstructure:"delivery_pct"`
	DeliveryMinimum float64 `yaml:"delivery_minimum" mapstructure:"delivery_minimum"`
	// FixedDelivery replaces the computed delivery fee when set.
	FixedDelivery       *float64 `yaml:"-" mapstructure:"-"`
	TaxIncludesDelivery bool     `yaml:"tax_includes_delivery" mapstructure:"tax_includes_delivery"`
}

// DefaultRates returns the stock rates: 20% markup, 8.25% tax, delivery at
// 3% of subtotal with a $150 minimum, taxed.
func DefaultRates() Rates {
	return Rates{
		MarkupPct:           0.20,
		TaxRate:             0.0825,
		DeliveryPct:         0.03,
		DeliveryMinimum:     150,
		TaxIncludesDelivery: true,
	}
}

// Calculator computes line totals and the bid summary.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the calculator's rates.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// LineTotal is quantity × unit price × (1 + waste), rounded to cents.
func (c *Calculator) LineTotal(quantity, unitPrice, waste float64) float64 {
	return roundCents(quantity * unitPrice * (1 + waste))
}

// Delivery returns the fixed fee if one is set, otherwise the larger of the
// minimum and DeliveryPct of the subtotal.
func (c *Calculator) Delivery(subtotal float64) float64 {
	if c.rates.FixedDelivery != nil {
		return *c.rates.FixedDelivery
	}
	return math.Max(c.rates.DeliveryMinimum, subtotal*c.rates.DeliveryPct)
}

// Summarize totals items:
//
//	subtotal = Σ quantity × unit price
//	waste    = Σ quantity × unit price × waste factor
//	markup   = subtotal × markup
//	tax      = (subtotal + markup + waste [+ delivery]) × tax rate
//	total    = subtotal + markup + waste + delivery + tax
//
// Markup and the auto delivery fee are taken on the subtotal before waste,
// so they come out lower than a markup on a waste-inclusive subtotal would.
// Line totals do include waste.
func (c *Calculator) Summarize(items []model.PricedLineItem) (model.PricingSummary, error) {
	if len(items) == 0 {
		return model.PricingSummary{}, ErrNoLineItems
	}

	extended := make([]float64, len(items))
	waste := make([]float64, len(items))
	high := 0
	for i, it := range items {
		extended[i] = it.Quantity * it.UnitPrice
		waste[i] = it.WasteFactor
		if it.Confidence >= highConfidence {
			high++
		}
	}

	subtotal := floats.Sum(extended)
	wasteAdj := floats.Dot(extended, waste)
	markup := subtotal * c.rates.MarkupPct
	delivery := c.Delivery(subtotal)

	taxBase := subtotal + markup + wasteAdj
	if c.rates.TaxIncludesDelivery {
		taxBase += delivery
	}
	tax := taxBase * c.rates.TaxRate

	return model.PricingSummary{
		Subtotal:            roundCents(subtotal),
		MarkupPct:           c.rates.MarkupPct,
		Markup:              roundCents(markup),
		WasteAdjustment:     roundCents(wasteAdj),
		DeliveryFee:         roundCents(delivery),
		TaxRate:             c.rates.TaxRate,
		Tax:                 roundCents(tax),
		Total:               roundCents(subtotal + markup + wasteAdj + delivery + tax),
		LineItemCount:       len(items),
		HighConfidenceItems: high,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
