// Package store persists selection runs so that past selections can be
// listed, exported, and served after the fact.
package store

import (
	"context"
	"time"

	"github.com/sells-group/siteselect/internal/pipeline"
	"github.com/sells-group/siteselect/internal/site"
)

// Site status values in the run_sites table.
const (
	SiteStatusSelected   = "selected"
	SiteStatusSuppressed = "suppressed"
	SiteStatusCapped     = "capped"
)

// RunSummary is the run-level row without the full result payload.
type RunSummary struct {
	ID              string    `json:"id"`
	Seed            int64     `json:"seed"`
	TargetCount     int       `json:"target_count"`
	Available       int       `json:"available"`
	SelectedCount   int       `json:"selected_count"`
	SuppressedCount int       `json:"suppressed_count"`
	CappedCount     int       `json:"capped_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// SiteRow is one flattened site of a run, as stored for SQL-level queries.
type SiteRow struct {
	RunID          string  `json:"run_id"`
	Rank           int     `json:"rank"`
	SiteID         string  `json:"site_id"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	RegionCode     string  `json:"region_code"`
	SettlementType string  `json:"settlement_type"`
	Source         string  `json:"source"`
	Population     int     `json:"population"`
	Score          float64 `json:"score"`
	Confidence     float64 `json:"confidence"`
	Status         string  `json:"status"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for selection runs.
type Store interface {
	SaveRun(ctx context.Context, result *pipeline.Result, seed int64) error
	GetRun(ctx context.Context, runID string) (*RunSummary, error)
	GetResult(ctx context.Context, runID string) (*pipeline.Result, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)
	ListSites(ctx context.Context, runID, status string) ([]SiteRow, error)

	Migrate(ctx context.Context) error
	Close() error
}

// siteRows flattens a result into run_sites rows: selected sites ranked in
// output order, then suppressed and capped sites.
func siteRows(result *pipeline.Result) []SiteRow {
	rows := make([]SiteRow, 0, len(result.Selected)+len(result.Suppressed)+len(result.Capped))
	appendGroup := func(status string, cands []*site.Candidate) {
		for i, c := range cands {
			rows = append(rows, SiteRow{
				RunID:          result.RunID,
				Rank:           i + 1,
				SiteID:         c.ID,
				Name:           c.Name,
				Lat:            c.Lat,
				Lng:            c.Lng,
				RegionCode:     c.RegionCode,
				SettlementType: string(c.SettlementType),
				Source:         string(c.Source),
				Population:     c.Population,
				Score:          c.Score.Total,
				Confidence:     c.Score.Confidence,
				Status:         status,
			})
		}
	}
	appendGroup(SiteStatusSelected, result.Selected)
	appendGroup(SiteStatusSuppressed, result.Suppressed)
	appendGroup(SiteStatusCapped, result.Capped)
	return rows
}
