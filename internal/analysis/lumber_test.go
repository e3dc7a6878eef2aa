package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/takeoff-cli/internal/model"
)

func TestLumberForArea(t *testing.T) {
	t.Parallel()
	e := NewLumberEstimator(DefaultLumberConfig())

	req := e.ForArea(1000)

	assert.InDelta(t, 1000, req.FormworkArea, 1e-9)
	// 1000 * 0.032 * 1.15 / 3
	assert.InDelta(t, 12.266666667, req.PlywoodSheets, 1e-6)
	require.Len(t, req.Lumber, 6)
	assert.Equal(t, "2x4", req.Lumber[0].Size)
	assert.InDelta(t, 100, req.Lumber[0].LinearFeet, 1e-9)
	assert.InDelta(t, 57.5, req.Lumber[0].BoardFeet, 1e-9)
	// 100 LF * 1.15 * (0.5+0.75+1+1.25+1.5+1.33)
	assert.InDelta(t, 727.95, req.TotalBoardFeet, 1e-6)
	// sheets*45 + bf*0.85 + area*2.50
	assert.InDelta(t, 552+618.7575+2500, req.EstimatedCost, 1e-6)
	assert.Equal(t, 0.15, req.WasteFactor)
	assert.Equal(t, 3.0, req.ReuseFactor)
}

func TestLumberScalesLinearly(t *testing.T) {
	t.Parallel()
	e := NewLumberEstimator(DefaultLumberConfig())

	for _, area := range []float64{120, 2500, 48000} {
		one := e.ForArea(area)
		two := e.ForArea(2 * area)
		assert.InDelta(t, 2*one.PlywoodSheets, two.PlywoodSheets, 1e-6)
		assert.InDelta(t, 2*one.TotalBoardFeet, two.TotalBoardFeet, 1e-6)
		assert.InDelta(t, 2*one.EstimatedCost, two.EstimatedCost, 1e-6)
	}
}

func TestLumberEstimate_SelectsFormworkArea(t *testing.T) {
	t.Parallel()
	e := NewLumberEstimator(DefaultLumberConfig())

	quantities := []*model.ExtractedQuantity{
		{Value: 2500, Unit: model.UnitSQFT, Context: "deck formwork 2,500 SQFT"},
		{Value: 400, Unit: model.UnitSQFT, Context: "abutment FORMS 400 SF"},
		{Value: 500, Unit: model.UnitSQFT, Context: "asphalt paving 500 SQFT"},
		{Value: 300, Unit: model.UnitSQFT, Context: "formed surfaces 300 SQFT"},
		{Value: 300, Unit: model.UnitLF, Context: "formwork edge 300 LF"},
	}
	req := e.Estimate(quantities)
	assert.InDelta(t, 2900, req.FormworkArea, 1e-9)
}

func TestLumberEstimate_NoFormwork(t *testing.T) {
	t.Parallel()
	e := NewLumberEstimator(DefaultLumberConfig())

	req := e.Estimate(nil)
	assert.Zero(t, req.FormworkArea)
	assert.Zero(t, req.PlywoodSheets)
	assert.Zero(t, req.TotalBoardFeet)
	assert.Zero(t, req.EstimatedCost)
}

func TestLumberNonPositiveReuse(t *testing.T) {
	t.Parallel()
	for _, reuse := range []float64{0, -2} {
		cfg := DefaultLumberConfig()
		cfg.ReuseFactor = reuse
		e := NewLumberEstimator(cfg)

		req := e.ForArea(100)
		assert.Equal(t, 3.0, req.ReuseFactor)
		assert.InDelta(t, 100*0.032*1.15/3, req.PlywoodSheets, 1e-9)
	}
}

func TestNewLumberEstimator_FillsDefaults(t *testing.T) {
	t.Parallel()
	want := NewLumberEstimator(DefaultLumberConfig()).ForArea(1000)

	tests := []struct {
		name string
		cfg  LumberConfig
	}{
		{"zero config", LumberConfig{}},
		{"negative factors", LumberConfig{WasteFactor: -1, ReuseFactor: -1, PlywoodSheetCost: -45, LumberCostPerBF: -1, LaborRatePerSqft: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLumberEstimator(tt.cfg).ForArea(1000)
			assert.Equal(t, 0.15, got.WasteFactor)
			assert.Equal(t, 3.0, got.ReuseFactor)
			assert.InDelta(t, want.PlywoodSheets, got.PlywoodSheets, 1e-9)
			assert.InDelta(t, want.TotalBoardFeet, got.TotalBoardFeet, 1e-9)
			assert.InDelta(t, want.EstimatedCost, got.EstimatedCost, 1e-6)
			assert.Greater(t, got.EstimatedCost, 0.0)
		})
	}
}
