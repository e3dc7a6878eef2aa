package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Lumber    LumberConfig    `yaml:"lumber" mapstructure:"lumber"`
	CrossRef  CrossRefConfig  `yaml:"crossref" mapstructure:"crossref"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// ReferenceConfig points at the vocabulary and unit-pattern files. Empty
// paths use the built-in reference data.
type ReferenceConfig struct {
	TermsPath    string `yaml:"terms_path" mapstructure:"terms_path"`
	PatternsPath string `yaml:"patterns_path" mapstructure:"patterns_path"`
}

// ProfileConfig overrides one document type's extraction strategy.
type ProfileConfig struct {
	QuantityMultiplier float64  `yaml:"quantity_multiplier" mapstructure:"quantity_multiplier"`
	TermMultiplier     float64  `yaml:"term_multiplier" mapstructure:"term_multiplier"`
	ConfidenceBoost    float64  `yaml:"confidence_boost" mapstructure:"confidence_boost"`
	FocusTerms         []string `yaml:"focus_terms" mapstructure:"focus_terms"`
}

// AnalysisConfig tunes page and document analysis. Map keys are document
// types and unit names; viper lower-cases them.
type AnalysisConfig struct {
	QuantityContextChars   int                      `yaml:"quantity_context_chars" mapstructure:"quantity_context_chars"`
	TermContextChars       int                      `yaml:"term_context_chars" mapstructure:"term_context_chars"`
	FuzzyThreshold         float64                  `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	AssociationLineWindow  int                      `yaml:"association_line_window" mapstructure:"association_line_window"`
	QuantityBaseConfidence float64                  `yaml:"quantity_base_confidence" mapstructure:"quantity_base_confidence"`
	TermBaseConfidence     float64                  `yaml:"term_base_confidence" mapstructure:"term_base_confidence"`
	FocusBoost             float64                  `yaml:"focus_boost" mapstructure:"focus_boost"`
	Profiles               map[string]ProfileConfig `yaml:"profiles" mapstructure:"profiles"`
	QuantityThresholds     map[string]float64       `yaml:"quantity_thresholds" mapstructure:"quantity_thresholds"`
}

// LumberConfig holds the formwork material factors.
type LumberConfig struct {
	WasteFactor       float64 `yaml:"waste_factor" mapstructure:"waste_factor"`
	ReuseFactor       float64 `yaml:"reuse_factor" mapstructure:"reuse_factor"`
	SheetsPerSqft     float64 `yaml:"sheets_per_sqft" mapstructure:"sheets_per_sqft"`
	LinearFeetPerSqft float64 `yaml:"linear_feet_per_sqft" mapstructure:"linear_feet_per_sqft"`
	PlywoodSheetCost  float64 `yaml:"plywood_sheet_cost" mapstructure:"plywood_sheet_cost"`
	LumberCostPerBF   float64 `yaml:"lumber_cost_per_bf" mapstructure:"lumber_cost_per_bf"`
	LaborRatePerSqft  float64 `yaml:"labor_rate_per_sqft" mapstructure:"labor_rate_per_sqft"`
}

// CrossRefConfig configures document reconciliation.
type CrossRefConfig struct {
	DiscrepancyThreshold float64 `yaml:"discrepancy_threshold" mapstructure:"discrepancy_threshold"`
	MinConsistencyDocs   int     `yaml:"min_consistency_docs" mapstructure:"min_consistency_docs"`
}

// PipelineConfig configures the multi-document run.
type PipelineConfig struct {
	MaxConcurrentDocuments int     `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
}

// PricingConfig holds bid pricing parameters. DeliveryFee is "auto" or a
// fixed dollar amount.
type PricingConfig struct {
	MarkupPct           float64            `yaml:"markup_pct" mapstructure:"markup_pct"`
	TaxRate             float64            `yaml:"tax_rate" mapstructure:"tax_rate"`
	DeliveryFee         string             `yaml:"delivery_fee" mapstructure:"delivery_fee"`
	DeliveryPct         float64            `yaml:"delivery_pct" mapstructure:"delivery_pct"`
	DeliveryMinimum     float64            `yaml:"delivery_minimum" mapstructure:"delivery_minimum"`
	TaxIncludesDelivery bool               `yaml:"tax_includes_delivery" mapstructure:"tax_includes_delivery"`
	DefaultWaste        float64            `yaml:"default_waste" mapstructure:"default_waste"`
	WasteFactors        map[string]float64 `yaml:"waste_factors" mapstructure:"waste_factors"`
	SourceWeights       map[string]float64 `yaml:"source_weights" mapstructure:"source_weights"`
	HighValueThreshold  float64            `yaml:"high_value_threshold" mapstructure:"high_value_threshold"`
	ReviewConfidence    float64            `yaml:"review_confidence" mapstructure:"review_confidence"`
	CoverageMinimum     float64            `yaml:"coverage_minimum" mapstructure:"coverage_minimum"`
	DivergenceThreshold float64            `yaml:"divergence_threshold" mapstructure:"divergence_threshold"`
	MinMatchScore       float64            `yaml:"min_match_score" mapstructure:"min_match_score"`
}

// DeliveryFeeValue parses DeliveryFee. auto is true when the fee should be
// computed from the subtotal.
func (p PricingConfig) DeliveryFeeValue() (fee float64, auto bool, err error) {
	s := strings.TrimSpace(p.DeliveryFee)
	if s == "" || strings.EqualFold(s, "auto") {
		return 0, true, nil
	}
	fee, err = strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil {
		return 0, false, eris.Wrapf(err, "config: parse delivery_fee %q", p.DeliveryFee)
	}
	if fee < 0 {
		return 0, false, eris.Errorf("config: delivery_fee must be >= 0, got %v", fee)
	}
	return fee, false, nil
}

// CatalogConfig selects and configures the product catalog.
type CatalogConfig struct {
	Provider            string  `yaml:"provider" mapstructure:"provider"`
	Path                string  `yaml:"path" mapstructure:"path"`
	DatabaseURL         string  `yaml:"database_url" mapstructure:"database_url"`
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey              string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxCandidates       int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Unlike the default
// ./config.yaml, an explicit file that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TAKEOFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "takeoff.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("analysis.quantity_context_chars", 50)
	v.SetDefault("analysis.term_context_chars", 100)
	v.SetDefault("analysis.fuzzy_threshold", 0.85)
	v.SetDefault("analysis.association_line_window", 2)
	v.SetDefault("analysis.quantity_base_confidence", 0.8)
	v.SetDefault("analysis.term_base_confidence", 0.75)
	v.SetDefault("analysis.focus_boost", 1.1)
	v.SetDefault("lumber.waste_factor", 0.15)
	v.SetDefault("lumber.reuse_factor", 3.0)
	v.SetDefault("lumber.sheets_per_sqft", 0.032)
	v.SetDefault("lumber.linear_feet_per_sqft", 0.10)
	v.SetDefault("lumber.plywood_sheet_cost", 45.0)
	v.SetDefault("lumber.lumber_cost_per_bf", 0.85)
	v.SetDefault("lumber.labor_rate_per_sqft", 2.50)
	v.SetDefault("crossref.discrepancy_threshold", 0.10)
	v.SetDefault("crossref.min_consistency_docs", 2)
	v.SetDefault("pipeline.max_concurrent_documents", 4)
	v.SetDefault("pipeline.low_confidence_threshold", 0.7)
	v.SetDefault("pricing.markup_pct", 0.20)
	v.SetDefault("pricing.tax_rate", 0.0825)
	v.SetDefault("pricing.delivery_fee", "auto")
	v.SetDefault("pricing.delivery_pct", 0.03)
	v.SetDefault("pricing.delivery_minimum", 150.0)
	v.SetDefault("pricing.tax_includes_delivery", true)
	v.SetDefault("pricing.default_waste", 0.08)
	v.SetDefault("pricing.high_value_threshold", 10000.0)
	v.SetDefault("pricing.review_confidence", 0.7)
	v.SetDefault("pricing.coverage_minimum", 0.3)
	v.SetDefault("pricing.divergence_threshold", 0.10)
	v.SetDefault("pricing.min_match_score", 0.5)
	v.SetDefault("catalog.provider", "static")
	v.SetDefault("catalog.rate_limit", 5.0)
	v.SetDefault("catalog.timeout_secs", 30)
	v.SetDefault("catalog.max_candidates", 10)
	v.SetDefault("catalog.similarity_threshold", 0.3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of analyze,
// bid or serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "analyze":
	case "bid":
		errs = append(errs, c.validatePricing()...)
		errs = append(errs, c.validateCatalog()...)
		errs = append(errs, c.validateStore()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validatePricing()...)
		errs = append(errs, c.validateCatalog()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	errs = append(errs, c.validateAnalysis()...)

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	if !unit(c.Analysis.FuzzyThreshold) {
		errs = append(errs, "analysis.fuzzy_threshold must be between 0 and 1")
	}
	if !unit(c.CrossRef.DiscrepancyThreshold) {
		errs = append(errs, "crossref.discrepancy_threshold must be between 0 and 1")
	}
	if !unit(c.Pipeline.LowConfidenceThreshold) {
		errs = append(errs, "pipeline.low_confidence_threshold must be between 0 and 1")
	}
	if c.Pipeline.MaxConcurrentDocuments < 0 {
		errs = append(errs, "pipeline.max_concurrent_documents must be >= 0")
	}
	if c.Lumber.WasteFactor < 0 {
		errs = append(errs, "lumber.waste_factor must be >= 0")
	}
	return errs
}

func (c *Config) validatePricing() []string {
	var errs []string
	p := c.Pricing
	if p.MarkupPct < 0 {
		errs = append(errs, "pricing.markup_pct must be >= 0")
	}
	if !unit(p.TaxRate) {
		errs = append(errs, "pricing.tax_rate must be between 0 and 1")
	}
	if _, _, err := p.DeliveryFeeValue(); err != nil {
		errs = append(errs, "pricing.delivery_fee must be \"auto\" or a non-negative number")
	}
	for k, w := range p.WasteFactors {
		if w < 0 {
			errs = append(errs, "pricing.waste_factors."+k+" must be >= 0")
		}
	}
	if !unit(p.ReviewConfidence) {
		errs = append(errs, "pricing.review_confidence must be between 0 and 1")
	}
	if !unit(p.MinMatchScore) {
		errs = append(errs, "pricing.min_match_score must be between 0 and 1")
	}
	return errs
}

func (c *Config) validateCatalog() []string {
	switch c.Catalog.Provider {
	case "static", "":
	case "postgres":
		if c.Catalog.DatabaseURL == "" && c.Store.DatabaseURL == "" {
			return []string{"catalog.database_url is required for the postgres catalog"}
		}
	case "http":
		if c.Catalog.BaseURL == "" {
			return []string{"catalog.base_url is required for the http catalog"}
		}
	default:
		return []string{"catalog.provider must be static, postgres or http"}
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
