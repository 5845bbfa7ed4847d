package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/siteselect/internal/pipeline"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	seed             INTEGER NOT NULL,
	target_count     INTEGER NOT NULL,
	available        INTEGER NOT NULL,
	selected_count   INTEGER NOT NULL,
	suppressed_count INTEGER NOT NULL,
	capped_count     INTEGER NOT NULL,
	result           TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_sites (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	rank            INTEGER NOT NULL,
	site_id         TEXT NOT NULL,
	name            TEXT NOT NULL,
	lat             REAL NOT NULL,
	lng             REAL NOT NULL,
	region_code     TEXT NOT NULL,
	settlement_type TEXT NOT NULL,
	source          TEXT NOT NULL,
	population      INTEGER NOT NULL,
	score           REAL NOT NULL,
	confidence      REAL NOT NULL,
	status          TEXT NOT NULL,
	PRIMARY KEY (run_id, status, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_sites_region ON run_sites(run_id, region_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, result *pipeline.Result, seed int64) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, seed, target_count, available, selected_count, suppressed_count, capped_count, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, seed, result.TargetCount, result.Available,
		len(result.Selected), len(result.Suppressed), len(result.Capped),
		string(resultJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", result.RunID)
	}

	for _, row := range siteRows(result) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_sites (run_id, rank, site_id, name, lat, lng, region_code, settlement_type, source, population, score, confidence, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.RunID, row.Rank, row.SiteID, row.Name, row.Lat, row.Lng,
			row.RegionCode, row.SettlementType, row.Source, row.Population,
			row.Score, row.Confidence, row.Status,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert site %s", row.SiteID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed, target_count, available, selected_count, suppressed_count, capped_count, created_at
		 FROM runs WHERE id = ?`,
		runID,
	)

	var r RunSummary
	err := row.Scan(&r.ID, &r.Seed, &r.TargetCount, &r.Available,
		&r.SelectedCount, &r.SuppressedCount, &r.CappedCount, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return &r, nil
}

func (s *SQLiteStore) GetResult(ctx context.Context, runID string) (*pipeline.Result, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM runs WHERE id = ?`,
		runID,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", runID)
	}

	var result pipeline.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &result, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id, seed, target_count, available, selected_count, suppressed_count, capped_count, created_at
	          FROM runs ORDER BY created_at DESC`
	var args []any

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Seed, &r.TargetCount, &r.Available,
			&r.SelectedCount, &r.SuppressedCount, &r.CappedCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListSites(ctx context.Context, runID, status string) ([]SiteRow, error) {
	query := `SELECT run_id, rank, site_id, name, lat, lng, region_code, settlement_type, source, population, score, confidence, status
	          FROM run_sites WHERE run_id = ?`
	args := []any{runID}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY status, rank`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list sites for run %s", runID)
	}
	defer rows.Close()

	var sites []SiteRow
	for rows.Next() {
		var r SiteRow
		if err := rows.Scan(&r.RunID, &r.Rank, &r.SiteID, &r.Name, &r.Lat, &r.Lng,
			&r.RegionCode, &r.SettlementType, &r.Source, &r.Population,
			&r.Score, &r.Confidence, &r.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site")
		}
		sites = append(sites, r)
	}
	return sites, eris.Wrap(rows.Err(), "sqlite: list sites iterate")
}
