package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/takeoff-cli/internal/bid"
	"github.com/sells-group/takeoff-cli/internal/cost"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
)

func TestDeliveryFee_Unmarshal(t *testing.T) {
	var o bidOverrides
	require.NoError(t, json.Unmarshal([]byte(`{"delivery_fee": 250.5}`), &o))
	require.NotNil(t, o.DeliveryFee)
	assert.Equal(t, deliveryFee("250.5"), *o.DeliveryFee)

	o = bidOverrides{}
	require.NoError(t, json.Unmarshal([]byte(`{"delivery_fee": "auto"}`), &o))
	assert.Equal(t, deliveryFee("auto"), *o.DeliveryFee)

	o = bidOverrides{}
	assert.Error(t, json.Unmarshal([]byte(`{"delivery_fee": true}`), &o))
}

func TestBidOverrides_Apply(t *testing.T) {
	markup, tax := 0.15, 0.07
	fee := deliveryFee("300")
	o := bidOverrides{
		MarkupPct:    &markup,
		TaxRate:      &tax,
		DeliveryFee:  &fee,
		WasteFactors: map[string]float64{"volume": 0.03},
	}
	base := bid.DefaultConfig()
	base.WasteFactors = map[model.UnitCategory]float64{model.CategoryArea: 0.1}

	rates, bc, err := o.apply(cost.DefaultRates(), base)
	require.NoError(t, err)

	assert.InDelta(t, 0.15, rates.MarkupPct, 0.001)
	assert.InDelta(t, 0.07, rates.TaxRate, 0.001)
	require.NotNil(t, rates.FixedDelivery)
	assert.InDelta(t, 300, *rates.FixedDelivery, 0.001)
	assert.InDelta(t, 0.1, bc.WasteFactors[model.CategoryArea], 0.001)
	assert.InDelta(t, 0.03, bc.WasteFactors[model.CategoryVolume], 0.001)

	// The shared config is not modified.
	assert.NotContains(t, base.WasteFactors, model.CategoryVolume)
}

func TestBidOverrides_AutoClearsFixedFee(t *testing.T) {
	fixed := 99.0
	rates := cost.DefaultRates()
	rates.FixedDelivery = &fixed

	auto := deliveryFee("auto")
	got, _, err := bidOverrides{DeliveryFee: &auto}.apply(rates, bid.DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, got.FixedDelivery)
}

func TestBidOverrides_Invalid(t *testing.T) {
	neg, high := -0.1, 1.5
	bad := deliveryFee("lots")

	cases := []bidOverrides{
		{MarkupPct: &neg},
		{TaxRate: &high},
		{DeliveryFee: &bad},
		{WasteFactors: map[string]float64{"time": 0.1}},
	}
	for _, o := range cases {
		_, _, err := o.apply(cost.DefaultRates(), bid.DefaultConfig())
		assert.Error(t, err)
	}
}

func TestRunBid_Complete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	input := model.RunInput{Name: "Bridge 51-0042", Documents: map[model.DocumentType]string{
		model.DocSpecifications: "spec.txt",
		model.DocBidForms:       "bid.xlsx",
	}}
	run, err := svc.runBid(ctx, input, testSources(), bidOverrides{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)

	item := findItem(run.Result.LineItems, "1")
	require.NotNil(t, item)
	assert.Equal(t, "p-bal", item.ProductID)
	assert.InDelta(t, 45, item.UnitPrice, 0.001)
	assert.InDelta(t, 100, item.Quantity, 0.001)
	assert.Positive(t, run.Result.Summary.Total)

	stored, err := svc.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)
	assert.Equal(t, "Bridge 51-0042", stored.Input.Name)
	require.NotNil(t, stored.Result)
	assert.InDelta(t, run.Result.Summary.Total, stored.Result.Summary.Total, 0.001)
}

func TestRunBid_AppliesOverrides(t *testing.T) {
	svc := newTestService(t)
	zero := 0.0

	run, err := svc.runBid(context.Background(), model.RunInput{}, testSources(), bidOverrides{MarkupPct: &zero, TaxRate: &zero})
	require.NoError(t, err)
	assert.Zero(t, run.Result.Summary.Markup)
	assert.Zero(t, run.Result.Summary.Tax)
}

func TestRunBid_ExtractionFailureMarksRunFailed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sources := map[model.DocumentType]ocr.Source{model.DocSpecifications: ocr.Static{"", "  "}}
	run, err := svc.runBid(ctx, model.RunInput{}, sources, bidOverrides{})
	require.Error(t, err)
	assert.True(t, model.IsExtractionError(err))
	require.NotNil(t, run)

	stored, err := svc.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestService_CloseRunsClosersInReverse(t *testing.T) {
	var order []int
	svc := &service{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	svc.Close()
	svc.Close()
	assert.Equal(t, []int{2, 1}, order)
}
