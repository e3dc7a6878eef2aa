package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sells-group/takeoff-cli/internal/analysis"
	"github.com/sells-group/takeoff-cli/internal/bid"
	"github.com/sells-group/takeoff-cli/internal/cost"
	"github.com/sells-group/takeoff-cli/internal/crossref"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
	"github.com/sells-group/takeoff-cli/internal/pipeline"
	"github.com/sells-group/takeoff-cli/internal/registry"
	"github.com/sells-group/takeoff-cli/internal/store"
	"github.com/sells-group/takeoff-cli/pkg/catalog"
)

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "p-bal", Name: "Precast Concrete Baluster", Category: "structures", Unit: "LF", Price: 45},
		{ID: "p-ply", Name: "Plywood Form Panel", Category: "lumber", Unit: "SQFT", EstimatedPrice: 2.5},
	}
}

// newTestService wires the real analysis stack to a static catalog and a
// SQLite store in a temp dir.
func newTestService(t *testing.T) *service {
	t.Helper()
	log := zaptest.NewLogger(t)

	analyzer := analysis.NewDocumentAnalyzer(registry.Defaults(), analysis.DefaultConfig(), analysis.DefaultLumberConfig(), analysis.WithLogger(log))
	agg := pipeline.New(analyzer, crossref.NewEngine(crossref.DefaultConfig(), crossref.WithLogger(log)), pipeline.DefaultConfig(), pipeline.WithLogger(log))

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	return &service{
		aggregator: agg,
		matcher:    catalog.NewStatic(testProducts(), 0),
		store:      st,
		rates:      cost.DefaultRates(),
		bidCfg:     bid.DefaultConfig(),
		log:        log,
	}
}

func testSources() map[model.DocumentType]ocr.Source {
	return map[model.DocumentType]ocr.Source{
		model.DocSpecifications: ocr.Static{"SECTION 51 BALUSTER 115 LF\nBID BOND REQUIRED"},
		model.DocBidForms:       ocr.Static{"1  BALUSTER  100 LF"},
	}
}

func findItem(items []model.PricedLineItem, number string) *model.PricedLineItem {
	for i := range items {
		if items[i].ItemNumber == number {
			return &items[i]
		}
	}
	return nil
}
