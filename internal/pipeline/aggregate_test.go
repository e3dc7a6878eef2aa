package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sells-group/takeoff-cli/internal/analysis"
	"github.com/sells-group/takeoff-cli/internal/crossref"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
	"github.com/sells-group/takeoff-cli/internal/registry"
)

type sourceFunc func(ctx context.Context) ([]string, error)

func (f sourceFunc) Pages(ctx context.Context) ([]string, error) { return f(ctx) }

func newTestAggregator(t *testing.T, cfg Config) *Aggregator {
	t.Helper()
	log := zaptest.NewLogger(t)
	analyzer := analysis.NewDocumentAnalyzer(registry.Defaults(), analysis.DefaultConfig(), analysis.DefaultLumberConfig(), analysis.WithLogger(log))
	return New(analyzer, crossref.NewEngine(crossref.DefaultConfig(), crossref.WithLogger(log)), cfg, WithLogger(log))
}

// noLowConfidence disables the low-confidence alert so tests can count the
// others exactly.
func noLowConfidence() Config {
	cfg := DefaultConfig()
	cfg.LowConfidenceThreshold = -1
	return cfg
}

func packageSources() map[model.DocumentType]ocr.Source {
	return map[model.DocumentType]ocr.Source{
		model.DocSpecifications:    ocr.Static{"SECTION 51 BALUSTER 115 LF\nBID BOND REQUIRED"},
		model.DocBidForms:          ocr.Static{"1  BALUSTER  100 LF"},
		model.DocConstructionPlans: ocr.Static{"GENERAL LAYOUT SHEET"},
	}
}

func alertsAt(alerts []model.Alert, level model.AlertLevel) []model.Alert {
	var out []model.Alert
	for _, a := range alerts {
		if a.Level == level {
			out = append(out, a)
		}
	}
	return out
}

func TestAnalyzeAll_FullPackage(t *testing.T) {
	a := newTestAggregator(t, noLowConfidence())

	res, err := a.AnalyzeAll(context.Background(), packageSources())
	require.NoError(t, err)

	assert.Len(t, res.Documents, 3)
	assert.False(t, res.Partial)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []model.DocumentType{model.DocSpecifications, model.DocBidForms, model.DocConstructionPlans}, res.DocumentTypes())

	// Combined pools are the union of the per-document pools, all tagged.
	var terms, quantities int
	for _, doc := range res.Documents {
		terms += len(doc.Terms)
		quantities += len(doc.Quantities)
	}
	assert.Len(t, res.Terms, terms)
	assert.Len(t, res.Quantities, quantities)
	for _, tm := range res.Terms {
		assert.NotEmpty(t, tm.SourceDocument)
	}
	for _, q := range res.Quantities {
		assert.NotEmpty(t, q.SourceDocument)
	}

	require.Len(t, res.BidLineItems, 1)
	assert.Equal(t, "BALUSTER", res.BidLineItems[0].Description)
	assert.InDelta(t, 100, res.BidLineItems[0].Quantity, 0.001)
	assert.Equal(t, []string{"BALUSTER"}, res.BidLineItems[0].Terms)

	assert.Equal(t, []string{"BALUSTER", "BID BOND"}, res.HighPriorityTerms)
	assert.Empty(t, alertsAt(res.Alerts, model.AlertError))

	high := alertsAt(res.Alerts, model.AlertHigh)
	require.Len(t, high, 1)
	assert.Contains(t, high[0].Message, "BALUSTER")
	assert.Contains(t, high[0].Message, "specifications")

	warnings := alertsAt(res.Alerts, model.AlertWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, model.DocBidForms, warnings[0].DocType)
	assert.Contains(t, warnings[0].Message, "BID BOND")
	assert.Equal(t, model.DocConstructionPlans, warnings[1].DocType)
	assert.Contains(t, warnings[1].Message, "2 required term(s)")

	info := alertsAt(res.Alerts, model.AlertInfo)
	require.Len(t, info, 1)
	assert.Equal(t, "high-priority terms found: BALUSTER, BID BOND", info[0].Message)
}

func TestAnalyzeAll_OverallConfidenceIsMean(t *testing.T) {
	a := newTestAggregator(t, noLowConfidence())

	res, err := a.AnalyzeAll(context.Background(), packageSources())
	require.NoError(t, err)

	var sum float64
	for _, doc := range res.Documents {
		sum += doc.ConfidenceScore
	}
	assert.InDelta(t, sum/3, res.OverallConfidence, 1e-9)
}

func TestAnalyzeAll_PartialFailure(t *testing.T) {
	a := newTestAggregator(t, noLowConfidence())

	sources := packageSources()
	sources[model.DocSupplemental] = ocr.Static{"", "   "}

	res, err := a.AnalyzeAll(context.Background(), sources)
	require.NoError(t, err)

	assert.Len(t, res.Documents, 3)
	assert.NotContains(t, res.Documents, model.DocSupplemental)

	errs := alertsAt(res.Alerts, model.AlertError)
	require.Len(t, errs, 1)
	assert.Equal(t, model.DocSupplemental, errs[0].DocType)
	assert.Contains(t, errs[0].Message, "supplemental")
}

func TestAnalyzeAll_SourceError(t *testing.T) {
	a := newTestAggregator(t, noLowConfidence())

	sources := map[model.DocumentType]ocr.Source{
		model.DocSpecifications: ocr.Static{"FORMWORK 2,500 SQFT"},
		model.DocBidForms: sourceFunc(func(context.Context) ([]string, error) {
			return nil, eris.New("pdf is encrypted")
		}),
	}

	res, err := a.AnalyzeAll(context.Background(), sources)
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
	assert.Empty(t, res.BidLineItems)

	errs := alertsAt(res.Alerts, model.AlertError)
	require.Len(t, errs, 1)
	assert.Equal(t, model.DocBidForms, errs[0].DocType)
	assert.Contains(t, errs[0].Message, "pdf is encrypted")
}

func TestAnalyzeAll_AllFail(t *testing.T) {
	a := newTestAggregator(t, DefaultConfig())

	_, err := a.AnalyzeAll(context.Background(), map[model.DocumentType]ocr.Source{
		model.DocSpecifications: ocr.Static{""},
		model.DocBidForms:       nil,
	})
	require.Error(t, err)
	assert.True(t, model.IsExtractionError(err))
}

func TestAnalyzeAll_NoSources(t *testing.T) {
	a := newTestAggregator(t, DefaultConfig())

	_, err := a.AnalyzeAll(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, model.IsExtractionError(err))
}

func TestAnalyzeAll_LowConfidenceAlert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowConfidenceThreshold = 1.01
	a := newTestAggregator(t, cfg)

	res, err := a.AnalyzeAll(context.Background(), map[model.DocumentType]ocr.Source{
		model.DocGeneral: ocr.Static{"FORMWORK 2,500 SQFT"},
	})
	require.NoError(t, err)

	warnings := alertsAt(res.Alerts, model.AlertWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.DocGeneral, warnings[0].DocType)
	assert.Contains(t, warnings[0].Message, "low analysis confidence")
}

func TestAnalyzeAll_CancelledKeepsFinishedDocuments(t *testing.T) {
	cfg := noLowConfidence()
	cfg.Concurrency = 1
	a := newTestAggregator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources := map[model.DocumentType]ocr.Source{
		model.DocSpecifications: ocr.Static{"FORMWORK 2,500 SQFT"},
		model.DocBidForms: sourceFunc(func(ctx context.Context) ([]string, error) {
			cancel()
			return nil, ctx.Err()
		}),
		model.DocConstructionPlans: ocr.Static{"PLYWOOD"},
	}

	res, err := a.AnalyzeAll(ctx, sources)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Len(t, res.Documents, 1)
	assert.Contains(t, res.Documents, model.DocSpecifications)
	assert.Empty(t, alertsAt(res.Alerts, model.AlertError))
	assert.NotEmpty(t, alertsAt(res.Alerts, model.AlertWarning))
}

func TestAnalyzeAll_CancelledBeforeStart(t *testing.T) {
	a := newTestAggregator(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := a.AnalyzeAll(ctx, packageSources())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCapList(t *testing.T) {
	assert.Equal(t, "A, B", capList([]string{"A", "B"}, 3))
	assert.Equal(t, "A, B, C", capList([]string{"A", "B", "C"}, 3))
	assert.Equal(t, "A, B, C and 2 more", capList([]string{"A", "B", "C", "D", "E"}, 3))
}

func TestNew_FillsDefaults(t *testing.T) {
	a := New(nil, nil, Config{LowConfidenceThreshold: 0.5})
	assert.Equal(t, 3, a.cfg.MaxMissingTerms)
	assert.Equal(t, 5, a.cfg.MaxHighPriorityTerms)
	assert.Equal(t, 4, a.cfg.Concurrency)
	assert.InDelta(t, 0.5, a.cfg.LowConfidenceThreshold, 0.001)

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"unset", 0, 0.7},
		{"explicit", 0.4, 0.4},
		{"disabled", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(nil, nil, Config{LowConfidenceThreshold: tt.in})
			assert.InDelta(t, tt.want, a.cfg.LowConfidenceThreshold, 0.001)
		})
	}
}

func TestConsolidatedAlerts_ZeroConfigWarnsOnLowConfidence(t *testing.T) {
	a := New(nil, nil, Config{}, WithLogger(zaptest.NewLogger(t)))

	alerts := a.consolidatedAlerts(&model.ComprehensiveAnalysisResult{
		Documents: map[model.DocumentType]*model.AnalysisResult{
			model.DocSpecifications: {DocType: model.DocSpecifications, ConfidenceScore: 0.65},
			model.DocBidForms:       {DocType: model.DocBidForms, ConfidenceScore: 0.9},
		},
	})

	warnings := alertsAt(alerts, model.AlertWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.DocSpecifications, warnings[0].DocType)
	assert.Contains(t, warnings[0].Message, "low analysis confidence")
}
