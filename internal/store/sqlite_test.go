package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/allocate"
	"github.com/sells-group/siteselect/internal/pipeline"
	"github.com/sells-group/siteselect/internal/site"
)

func testCandidate(id string, score float64) *site.Candidate {
	c := &site.Candidate{
		ID:             id,
		Name:           "Site " + id,
		Lat:            50.1,
		Lng:            8.6,
		Population:     42_000,
		SettlementType: site.SettlementTown,
		RegionCode:     "HE",
		Source:         site.SourceSettlement,
	}
	c.Score.Total = score
	c.Score.Confidence = 0.8
	return c
}

func testResult(runID string) *pipeline.Result {
	return &pipeline.Result{
		RunID:      runID,
		Selected:   []*site.Candidate{testCandidate("a", 0.9), testCandidate("b", 0.8)},
		Suppressed: []*site.Candidate{testCandidate("c", 0.7)},
		Capped:     []*site.Candidate{testCandidate("d", 0.85)},
		RegionDistribution: map[string]int{"HE": 2},
		FairnessLedger: map[string]allocate.RegionLedger{
			"HE": {Base: 2, Allocated: 2, Available: 4},
		},
		TargetCount: 2,
		Available:   4,
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteSaveAndGetRun(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testResult("run-1"), 42))

	run, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, int64(42), run.Seed)
	assert.Equal(t, 2, run.TargetCount)
	assert.Equal(t, 4, run.Available)
	assert.Equal(t, 2, run.SelectedCount)
	assert.Equal(t, 1, run.SuppressedCount)
	assert.Equal(t, 1, run.CappedCount)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	st := newTestSQLite(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteGetResultRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testResult("run-1"), 42))

	got, err := st.GetResult(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got.Selected, 2)
	assert.Equal(t, "a", got.Selected[0].ID)
	assert.Equal(t, 0.9, got.Selected[0].Score.Total)
	assert.Equal(t, map[string]int{"HE": 2}, got.RegionDistribution)
	assert.Equal(t, 2, got.FairnessLedger["HE"].Allocated)
}

func TestSQLiteListRuns(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testResult("run-1"), 1))
	require.NoError(t, st.SaveRun(ctx, testResult("run-2"), 2))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteListSites(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, testResult("run-1"), 42))

	all, err := st.ListSites(ctx, "run-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	selected, err := st.ListSites(ctx, "run-1", SiteStatusSelected)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "a", selected[0].SiteID)
	assert.Equal(t, 1, selected[0].Rank)
	assert.Equal(t, "b", selected[1].SiteID)
	assert.Equal(t, 2, selected[1].Rank)

	suppressed, err := st.ListSites(ctx, "run-1", SiteStatusSuppressed)
	require.NoError(t, err)
	require.Len(t, suppressed, 1)
	assert.Equal(t, "c", suppressed[0].SiteID)
}
