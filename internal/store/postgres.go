package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siteselect/internal/db"
	"github.com/sells-group/siteselect/internal/pipeline"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// runSiteColumns is the COPY column order for run_sites.
var runSiteColumns = []string{
	"run_id", "rank", "site_id", "name", "lat", "lng",
	"region_code", "settlement_type", "source", "population",
	"score", "confidence", "status",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	seed             BIGINT NOT NULL,
	target_count     INTEGER NOT NULL,
	available        INTEGER NOT NULL,
	selected_count   INTEGER NOT NULL,
	suppressed_count INTEGER NOT NULL,
	capped_count     INTEGER NOT NULL,
	result           JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_sites (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	rank            INTEGER NOT NULL,
	site_id         TEXT NOT NULL,
	name            TEXT NOT NULL,
	lat             DOUBLE PRECISION NOT NULL,
	lng             DOUBLE PRECISION NOT NULL,
	region_code     TEXT NOT NULL,
	settlement_type TEXT NOT NULL,
	source          TEXT NOT NULL,
	population      INTEGER NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	status          TEXT NOT NULL,
	PRIMARY KEY (run_id, status, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_sites_region ON run_sites(run_id, region_code);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, result *pipeline.Result, seed int64) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, seed, target_count, available, selected_count, suppressed_count, capped_count, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		result.RunID, seed, result.TargetCount, result.Available,
		len(result.Selected), len(result.Suppressed), len(result.Capped),
		resultJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", result.RunID)
	}

	siteRowsData := siteRows(result)
	copyRows := make([][]any, 0, len(siteRowsData))
	for _, r := range siteRowsData {
		copyRows = append(copyRows, []any{
			r.RunID, r.Rank, r.SiteID, r.Name, r.Lat, r.Lng,
			r.RegionCode, r.SettlementType, r.Source, r.Population,
			r.Score, r.Confidence, r.Status,
		})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "run_sites", runSiteColumns, copyRows); err != nil {
		return eris.Wrapf(err, "postgres: copy sites for run %s", result.RunID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	var r RunSummary
	err := s.pool.QueryRow(ctx,
		`SELECT id, seed, target_count, available, selected_count, suppressed_count, capped_count, created_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Seed, &r.TargetCount, &r.Available,
		&r.SelectedCount, &r.SuppressedCount, &r.CappedCount, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) GetResult(ctx context.Context, runID string) (*pipeline.Result, error) {
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM runs WHERE id = $1`,
		runID,
	).Scan(&resultJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get result %s", runID)
	}

	var result pipeline.Result
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &result, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id, seed, target_count, available, selected_count, suppressed_count, capped_count, created_at
	          FROM runs ORDER BY created_at DESC LIMIT $1`
	args := []any{100}
	if filter.Limit > 0 {
		args[0] = filter.Limit
	}
	if filter.Offset > 0 {
		query += ` OFFSET $2`
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Seed, &r.TargetCount, &r.Available,
			&r.SelectedCount, &r.SuppressedCount, &r.CappedCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListSites(ctx context.Context, runID, status string) ([]SiteRow, error) {
	query := `SELECT run_id, rank, site_id, name, lat, lng, region_code, settlement_type, source, population, score, confidence, status
	          FROM run_sites WHERE run_id = $1`
	args := []any{runID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY status, rank`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list sites for run %s", runID)
	}
	defer rows.Close()

	var sites []SiteRow
	for rows.Next() {
		var r SiteRow
		if err := rows.Scan(&r.RunID, &r.Rank, &r.SiteID, &r.Name, &r.Lat, &r.Lng,
			&r.RegionCode, &r.SettlementType, &r.Source, &r.Population,
			&r.Score, &r.Confidence, &r.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan site")
		}
		sites = append(sites, r)
	}
	return sites, eris.Wrap(rows.Err(), "postgres: list sites iterate")
}
