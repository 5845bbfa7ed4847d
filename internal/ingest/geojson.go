package ingest

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/siteselect/internal/site"
)

// ReadCandidatesGeoJSON loads candidates from a GeoJSON FeatureCollection of
// Point features. Geometry supplies the coordinates; all other candidate
// attributes come from feature properties using the same keys as the JSON
// record format.
func ReadCandidatesGeoJSON(path string, popMin int, now time.Time) (*Pools, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read geojson %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "ingest: decode feature collection")
	}

	pools := &Pools{}
	for _, feat := range fc.Features {
		rec, ok := featureToRecord(feat)
		if !ok {
			pools.Skipped++
			continue
		}
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
	return pools, nil
}

// featureToRecord maps a GeoJSON feature onto a CandidateRecord. Only Point
// geometries are accepted.
func featureToRecord(feat *geojson.Feature) (CandidateRecord, bool) {
	pt, ok := feat.Geometry.(*geom.Point)
	if !ok {
		return CandidateRecord{}, false
	}
	lng, lat := pt.X(), pt.Y()

	rec := CandidateRecord{
		ID:   feat.ID,
		Lat:  &lat,
		Lng:  &lng,
	}

	props := feat.Properties
	rec.Name, _ = props["name"].(string)
	rec.RegionCode, _ = props["regionCode"].(string)
	rec.SettlementType, _ = props["settlementType"].(string)
	rec.Source, _ = props["source"].(string)

	if v, ok := toInt(props["population"]); ok {
		rec.Population = &v
	}
	if v, ok := toInt(props["estimatedPopulation"]); ok {
		rec.EstimatedPopulation = &v
	}
	if v, ok := props["medianIncome"].(float64); ok {
		rec.MedianIncome = &v
	}
	if v, ok := props["anchorsEstimated"].(bool); ok {
		rec.AnchorsEstimated = v
	}
	if ts, ok := props["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.UpdatedAt = &t
		}
	}
	if raw, ok := props["rawAnchorCountsByType"].(map[string]any); ok {
		rec.RawAnchorCounts = make(map[string]int, len(raw))
		for k, v := range raw {
			if n, ok := toInt(v); ok {
				rec.RawAnchorCounts[k] = n
			}
		}
	}
	return rec, true
}

// toInt accepts the float64 that encoding/json produces for numbers.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
