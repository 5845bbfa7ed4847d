// Package ingest parses raw proposal and store records into pipeline model
// types, validating coordinates and normalizing names up front so the
// algorithms never see malformed input.
package ingest

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/site"
)

// staleAfter is the age beyond which a candidate's source data counts as
// stale in its quality profile.
const staleAfter = 180 * 24 * time.Hour

// CandidateRecord is the wire shape of one raw proposal. Lat/lng are
// pointers so that missing or non-numeric values surface as nil rather than
// zero, letting validation drop the record instead of placing it off the
// coast of Africa.
type CandidateRecord struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Lat                 *float64       `json:"lat"`
	Lng                 *float64       `json:"lng"`
	Population          *int           `json:"population,omitempty"`
	EstimatedPopulation *int           `json:"estimatedPopulation,omitempty"`
	SettlementType      string         `json:"settlementType,omitempty"`
	RegionCode          string         `json:"regionCode"`
	RawAnchorCounts     map[string]int `json:"rawAnchorCountsByType,omitempty"`
	AnchorsEstimated    bool           `json:"anchorsEstimated,omitempty"`
	MedianIncome        *float64       `json:"medianIncome,omitempty"`
	UpdatedAt           *time.Time     `json:"updatedAt,omitempty"`
	Source              string         `json:"source,omitempty"`
}

// Pools holds the ingested candidates split by generation source.
type Pools struct {
	Settlement []*site.Candidate
	Grid       []*site.Candidate

	// Skipped counts records dropped for malformed coordinates or the
	// population floor.
	Skipped int
}

// ReadCandidates loads a JSON array of candidate records from a file.
func ReadCandidates(path string, popMin int, now time.Time) (*Pools, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open candidates %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseCandidates(f, popMin, now)
}

// ParseCandidates decodes candidate records and converts them into pipeline
// candidates. Records with missing or out-of-range coordinates are skipped
// with a logged warning; records below popMin are filtered before scoring.
func ParseCandidates(r io.Reader, popMin int, now time.Time) (*Pools, error) {
	var records []CandidateRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "ingest: decode candidate records")
	}

	pools := &Pools{}
	for _, rec := range records {
		c, ok := convertCandidate(rec, popMin, now)
		if !ok {
			pools.Skipped++
			continue
		}
		if c.Source == site.SourceGrid {
			pools.Grid = append(pools.Grid, c)
		} else {
			pools.Settlement = append(pools.Settlement, c)
		}
	}

	zap.L().Info("candidates ingested",
		zap.Int("settlement", len(pools.Settlement)),
		zap.Int("grid", len(pools.Grid)),
		zap.Int("skipped", pools.Skipped),
	)
	return pools, nil
}

// convertCandidate validates and converts one record. The second return is
// false when the record must be skipped.
func convertCandidate(rec CandidateRecord, popMin int, now time.Time) (*site.Candidate, bool) {
	if !validCoords(rec.Lat, rec.Lng) {
		zap.L().Warn("ingest: skipping candidate with unresolvable coordinates",
			zap.String("id", rec.ID),
			zap.String("name", rec.Name),
		)
		return nil, false
	}

	population := 0
	estimated := false
	switch {
	case rec.Population != nil && *rec.Population > 0:
		population = *rec.Population
	case rec.EstimatedPopulation != nil && *rec.EstimatedPopulation > 0:
		population = *rec.EstimatedPopulation
		estimated = true
	}
	if popMin > 0 && population < popMin {
		return nil, false
	}

	settlement := site.SettlementType(rec.SettlementType)
	switch settlement {
	case site.SettlementCity, site.SettlementTown, site.SettlementVillage:
	default:
		settlement = site.ClassifySettlement(population)
	}

	anchors := make(map[site.AnchorType]int, len(rec.RawAnchorCounts))
	for t, n := range rec.RawAnchorCounts {
		if n > 0 {
			anchors[site.AnchorType(t)] = n
		}
	}

	stale := rec.UpdatedAt == nil || now.Sub(*rec.UpdatedAt) > staleAfter

	source := site.SourceSettlement
	if site.SourceKind(rec.Source) == site.SourceGrid {
		source = site.SourceGrid
	}

	return &site.Candidate{
		ID:                  rec.ID,
		Name:                NormalizeName(rec.Name),
		Lat:                 *rec.Lat,
		Lng:                 *rec.Lng,
		Population:          population,
		PopulationEstimated: estimated,
		SettlementType:      settlement,
		RegionCode:          NormalizeRegionCode(rec.RegionCode),
		Source:              source,
		RawAnchors:          anchors,
		AnchorsEstimated:    rec.AnchorsEstimated || len(anchors) == 0,
		DataStale:           stale,
		IncomeProxyPresent:  rec.MedianIncome != nil,
	}, true
}

// validCoords rejects nil, NaN/Inf, and out-of-range coordinates.
func validCoords(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	if *lat != *lat || *lng != *lng { // NaN
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lng >= -180 && *lng <= 180
}
