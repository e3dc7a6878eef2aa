package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/takeoff-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testInput() model.RunInput {
	return model.RunInput{
		Name: "Route 1 bridge rail",
		Documents: map[model.DocumentType]string{
			model.DocSpecifications: "specs.pdf",
			model.DocBidForms:       "bid.xlsx",
		},
	}
}

func testPackage() *model.BidPackage {
	return &model.BidPackage{
		LineItems: []model.PricedLineItem{
			{ItemNumber: "1", Description: "BALUSTER", Quantity: 100, Unit: model.UnitLF, UnitPrice: 45, WasteFactor: 0.08, TotalPrice: 4860, Confidence: 0.81, Origin: model.SourceBidForm},
		},
		Summary: model.PricingSummary{Subtotal: 4500, Total: 6103.55, LineItemCount: 1},
		Confidence: model.ConfidenceReport{
			OverallConfidence: 0.85,
			Recommendations:   []string{"no construction_plans document analyzed; add one to improve cross-referencing"},
		},
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInput())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.Equal(t, testInput(), got.Input)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInput())
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusAnalyzing))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusAnalyzing, got.Status)

	require.NoError(t, st.CompleteRun(ctx, run.ID, testPackage()))
	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	require.Len(t, got.Result.LineItems, 1)
	assert.Equal(t, "BALUSTER", got.Result.LineItems[0].Description)
	assert.InDelta(t, 6103.55, got.Result.Summary.Total, 0.001)
	assert.Equal(t, testPackage().Confidence.Recommendations, got.Result.Confidence.Recommendations)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInput())
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "no document could be analyzed"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "no document could be analyzed", got.Error)
}

func TestSQLite_MissingRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, st.UpdateRunStatus(ctx, "nonexistent", model.RunStatusPricing), ErrRunNotFound)
	assert.ErrorIs(t, st.CompleteRun(ctx, "nonexistent", testPackage()), ErrRunNotFound)
	assert.ErrorIs(t, st.FailRun(ctx, "nonexistent", "boom"), ErrRunNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		run, err := st.CreateRun(ctx, testInput())
		require.NoError(t, err)
		ids = append(ids, run.ID)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, st.FailRun(ctx, ids[1], "cancelled"))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ids[1], failed[0].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestSQLite_ListRunsEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	runs, err := st.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}
