package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresSaveRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	result := testResult("run-1")

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", int64(42), 2, 4, 2, 1, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"run_sites"}, runSiteColumns).
		WillReturnResult(4)

	err := st.SaveRun(context.Background(), result, 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, seed, target_count`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "seed", "target_count", "available",
			"selected_count", "suppressed_count", "capped_count", "created_at",
		}).AddRow("run-1", int64(42), 2, 4, 2, 1, 1, now))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, int64(42), run.Seed)
	assert.Equal(t, 2, run.SelectedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, seed, target_count`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetResult(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	payload := []byte(`{"run_id":"run-1","selected":[{"id":"a"}],"target_count":2,"available":4}`)
	mock.ExpectQuery(`SELECT result FROM runs`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(payload))

	got, err := st.GetResult(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Selected, 1)
	assert.Equal(t, "a", got.Selected[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListSites(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT run_id, rank, site_id`).
		WithArgs("run-1", SiteStatusSelected).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "rank", "site_id", "name", "lat", "lng",
			"region_code", "settlement_type", "source", "population",
			"score", "confidence", "status",
		}).AddRow("run-1", 1, "a", "Site a", 50.1, 8.6, "HE", "town", "settlement", 42_000, 0.9, 0.8, "selected"))

	sites, err := st.ListSites(context.Background(), "run-1", SiteStatusSelected)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "a", sites[0].SiteID)
	assert.Equal(t, 0.9, sites[0].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}
