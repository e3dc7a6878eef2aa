package analysis

import (
	"math"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// DocumentProfile is the per-document-type extraction strategy.
type DocumentProfile struct {
	// QuantityMultiplier scales the base confidence of extracted quantities.
	QuantityMultiplier float64 `yaml:"quantity_multiplier" mapstructure:"quantity_multiplier"`
	// TermMultiplier scales the base confidence of detected terms.
	TermMultiplier float64 `yaml:"term_multiplier" mapstructure:"term_multiplier"`
	// ConfidenceBoost scales the final document confidence score.
	ConfidenceBoost float64 `yaml:"confidence_boost" mapstructure:"confidence_boost"`
	// FocusTerms are keywords this document type is expected to carry.
	FocusTerms []string `yaml:"focus_terms" mapstructure:"focus_terms"`
}

// Config holds the tunable constants of page and document analysis.
type Config struct {
	QuantityContextChars   int                                    `yaml:"quantity_context_chars" mapstructure:"quantity_context_chars"`
	TermContextChars       int                                    `yaml:"term_context_chars" mapstructure:"term_context_chars"`
	FuzzyThreshold         float64                                `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	AssociationLineWindow  int                                    `yaml:"association_line_window" mapstructure:"association_line_window"`
	QuantityBaseConfidence float64                                `yaml:"quantity_base_confidence" mapstructure:"quantity_base_confidence"`
	TermBaseConfidence     float64                                `yaml:"term_base_confidence" mapstructure:"term_base_confidence"`
	FocusBoost             float64                                `yaml:"focus_boost" mapstructure:"focus_boost"`
	Profiles               map[model.DocumentType]DocumentProfile `yaml:"profiles" mapstructure:"profiles"`
	QuantityThresholds     map[model.Unit]float64                 `yaml:"quantity_thresholds" mapstructure:"quantity_thresholds"`
}

// DefaultProfiles returns the built-in document-type strategies.
func DefaultProfiles() map[model.DocumentType]DocumentProfile {
	return map[model.DocumentType]DocumentProfile{
		model.DocBidForms: {
			QuantityMultiplier: 1.2, TermMultiplier: 1.15, ConfidenceBoost: 1.1,
			FocusTerms: []string{"bid", "bond", "wage", "lumber", "plywood", "formwork"},
		},
		model.DocSpecifications: {
			QuantityMultiplier: 1.1, TermMultiplier: 1.1, ConfidenceBoost: 1.05,
			FocusTerms: []string{"concrete", "steel", "formwork", "falsework", "submittal", "warranty"},
		},
		model.DocConstructionPlans: {
			QuantityMultiplier: 0.9, TermMultiplier: 0.95, ConfidenceBoost: 1.0,
			FocusTerms: []string{"deck", "abutment", "bent", "rail", "baluster", "wingwall", "slab"},
		},
		model.DocSupplemental: {
			QuantityMultiplier: 0.8, TermMultiplier: 0.85, ConfidenceBoost: 0.95,
			FocusTerms: []string{"addendum", "wage", "submittal"},
		},
		model.DocGeneral: {
			QuantityMultiplier: 1.0, TermMultiplier: 1.0, ConfidenceBoost: 1.0,
		},
	}
}

// DefaultQuantityThresholds are the per-unit values above which a quantity
// raises a warning. A zero threshold disables the alert for that unit.
func DefaultQuantityThresholds() map[model.Unit]float64 {
	return map[model.Unit]float64{
		model.UnitSQFT: 10000,
		model.UnitSY:   1200,
		model.UnitLF:   5000,
		model.UnitCY:   1000,
		model.UnitGAL:  5000,
		model.UnitEA:   500,
		model.UnitLS:   0,
		model.UnitTON:  100,
		model.UnitLB:   50000,
	}
}

// DefaultConfig returns the analysis defaults.
func DefaultConfig() Config {
	return Config{
		QuantityContextChars:   50,
		TermContextChars:       100,
		FuzzyThreshold:         0.85,
		AssociationLineWindow:  2,
		QuantityBaseConfidence: 0.8,
		TermBaseConfidence:     0.75,
		FocusBoost:             1.1,
		Profiles:               DefaultProfiles(),
		QuantityThresholds:     DefaultQuantityThresholds(),
	}
}

// Profile returns the strategy for docType, falling back to the general
// profile and then to neutral multipliers.
func (c Config) Profile(docType model.DocumentType) DocumentProfile {
	if p, ok := c.Profiles[docType]; ok {
		return p
	}
	if p, ok := c.Profiles[model.DocGeneral]; ok {
		return p
	}
	return DocumentProfile{QuantityMultiplier: 1, TermMultiplier: 1, ConfidenceBoost: 1}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QuantityContextChars <= 0 {
		c.QuantityContextChars = d.QuantityContextChars
	}
	if c.TermContextChars <= 0 {
		c.TermContextChars = d.TermContextChars
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = d.FuzzyThreshold
	}
	if c.AssociationLineWindow < 0 {
		c.AssociationLineWindow = d.AssociationLineWindow
	}
	if c.QuantityBaseConfidence <= 0 {
		c.QuantityBaseConfidence = d.QuantityBaseConfidence
	}
	if c.TermBaseConfidence <= 0 {
		c.TermBaseConfidence = d.TermBaseConfidence
	}
	if c.FocusBoost <= 0 {
		c.FocusBoost = d.FocusBoost
	}
	if len(c.Profiles) == 0 {
		c.Profiles = d.Profiles
	}
	if c.QuantityThresholds == nil {
		c.QuantityThresholds = d.QuantityThresholds
	}
	return c
}

// clamp01 bounds a confidence value to [0, 1].
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
