package analysis

import (
	"regexp"
	"strings"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// LumberSize is one dimensional-lumber size and its board-foot rate.
type LumberSize struct {
	Size        string  `yaml:"size" mapstructure:"size"`
	RateBFPerLF float64 `yaml:"rate_bf_per_lf" mapstructure:"rate_bf_per_lf"`
}

// LumberConfig holds the formwork material factors and unit costs.
type LumberConfig struct {
	WasteFactor       float64      `yaml:"waste_factor" mapstructure:"waste_factor"`
	ReuseFactor       float64      `yaml:"reuse_factor" mapstructure:"reuse_factor"`
	SheetsPerSqft     float64      `yaml:"sheets_per_sqft" mapstructure:"sheets_per_sqft"`
	LinearFeetPerSqft float64      `yaml:"linear_feet_per_sqft" mapstructure:"linear_feet_per_sqft"`
	PlywoodSheetCost  float64      `yaml:"plywood_sheet_cost" mapstructure:"plywood_sheet_cost"`
	LumberCostPerBF   float64      `yaml:"lumber_cost_per_bf" mapstructure:"lumber_cost_per_bf"`
	LaborRatePerSqft  float64      `yaml:"labor_rate_per_sqft" mapstructure:"labor_rate_per_sqft"`
	FormworkKeywords  []string     `yaml:"formwork_keywords" mapstructure:"formwork_keywords"`
	Sizes             []LumberSize `yaml:"sizes" mapstructure:"sizes"`
}

// DefaultLumberSizes is the board-foot rate table.
func DefaultLumberSizes() []LumberSize {
	return []LumberSize{
		{Size: "2x4", RateBFPerLF: 0.5},
		{Size: "2x6", RateBFPerLF: 0.75},
		{Size: "2x8", RateBFPerLF: 1.0},
		{Size: "2x10", RateBFPerLF: 1.25},
		{Size: "2x12", RateBFPerLF: 1.5},
		{Size: "4x4", RateBFPerLF: 1.33},
	}
}

// DefaultLumberConfig returns the estimation defaults.
func DefaultLumberConfig() LumberConfig {
	return LumberConfig{
		WasteFactor:       0.15,
		ReuseFactor:       3.0,
		SheetsPerSqft:     0.032,
		LinearFeetPerSqft: 0.10,
		PlywoodSheetCost:  45.0,
		LumberCostPerBF:   0.85,
		LaborRatePerSqft:  2.50,
		FormworkKeywords:  []string{"form", "forms", "formwork", "falsework", "blockout", "blockouts"},
		Sizes:             DefaultLumberSizes(),
	}
}

// LumberEstimator turns SQFT formwork quantities into plywood, lumber and
// cost estimates.
type LumberEstimator struct {
	cfg      LumberConfig
	formwork *regexp.Regexp
}

// NewLumberEstimator fills unset factors from DefaultLumberConfig. Zero and
// negative values count as unset.
func NewLumberEstimator(cfg LumberConfig) *LumberEstimator {
	d := DefaultLumberConfig()
	if cfg.WasteFactor <= 0 {
		cfg.WasteFactor = d.WasteFactor
	}
	if cfg.ReuseFactor <= 0 {
		cfg.ReuseFactor = d.ReuseFactor
	}
	if cfg.PlywoodSheetCost <= 0 {
		cfg.PlywoodSheetCost = d.PlywoodSheetCost
	}
	if cfg.LumberCostPerBF <= 0 {
		cfg.LumberCostPerBF = d.LumberCostPerBF
	}
	if cfg.LaborRatePerSqft <= 0 {
		cfg.LaborRatePerSqft = d.LaborRatePerSqft
	}
	if cfg.SheetsPerSqft <= 0 {
		cfg.SheetsPerSqft = d.SheetsPerSqft
	}
	if cfg.LinearFeetPerSqft <= 0 {
		cfg.LinearFeetPerSqft = d.LinearFeetPerSqft
	}
	if len(cfg.FormworkKeywords) == 0 {
		cfg.FormworkKeywords = d.FormworkKeywords
	}
	if len(cfg.Sizes) == 0 {
		cfg.Sizes = d.Sizes
	}

	words := make([]string, len(cfg.FormworkKeywords))
	for i, k := range cfg.FormworkKeywords {
		words[i] = regexp.QuoteMeta(strings.TrimSpace(k))
	}
	return &LumberEstimator{
		cfg:      cfg,
		formwork: regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`),
	}
}

// IsFormwork reports whether a quantity's context describes formwork.
func (e *LumberEstimator) IsFormwork(q *model.ExtractedQuantity) bool {
	return q.Unit == model.UnitSQFT && e.formwork.MatchString(q.Context)
}

// Estimate sums the SQFT formwork area of quantities and derives the
// material requirements. The outputs are linear in the area.
func (e *LumberEstimator) Estimate(quantities []*model.ExtractedQuantity) model.LumberRequirements {
	area := 0.0
	for _, q := range quantities {
		if e.IsFormwork(q) {
			area += q.Value
		}
	}
	return e.ForArea(area)
}

// ForArea computes the requirements for a known formwork area.
func (e *LumberEstimator) ForArea(area float64) model.LumberRequirements {
	c := e.cfg
	waste := 1 + c.WasteFactor
	req := model.LumberRequirements{
		FormworkArea:  area,
		PlywoodSheets: area * c.SheetsPerSqft * waste / c.ReuseFactor,
		Lumber:        make([]model.LumberItem, 0, len(c.Sizes)),
		WasteFactor:   c.WasteFactor,
		ReuseFactor:   c.ReuseFactor,
	}

	linearFeet := area * c.LinearFeetPerSqft
	for _, s := range c.Sizes {
		bf := linearFeet * s.RateBFPerLF * waste
		req.Lumber = append(req.Lumber, model.LumberItem{
			Size:        s.Size,
			RateBFPerLF: s.RateBFPerLF,
			LinearFeet:  linearFeet,
			BoardFeet:   bf,
		})
		req.TotalBoardFeet += bf
	}

	req.EstimatedCost = req.PlywoodSheets*c.PlywoodSheetCost +
		req.TotalBoardFeet*c.LumberCostPerBF +
		area*c.LaborRatePerSqft
	return req
}
