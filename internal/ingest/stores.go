package ingest

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/site"
)

// ReadStores loads existing stores from a JSON array file.
func ReadStores(path string) ([]site.ExistingStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open stores %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseStores(f)
}

// ParseStores decodes existing store records, dropping entries with invalid
// coordinates.
func ParseStores(r io.Reader) ([]site.ExistingStore, error) {
	var records []struct {
		ID         string   `json:"id"`
		Lat        *float64 `json:"lat"`
		Lng        *float64 `json:"lng"`
		RegionCode string   `json:"regionCode"`
		Turnover   *float64 `json:"turnover,omitempty"`
	}
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "ingest: decode store records")
	}

	stores := make([]site.ExistingStore, 0, len(records))
	for _, rec := range records {
		if !validCoords(rec.Lat, rec.Lng) {
			zap.L().Warn("ingest: skipping store with unresolvable coordinates", zap.String("id", rec.ID))
			continue
		}
		stores = append(stores, site.ExistingStore{
			ID:         rec.ID,
			Lat:        *rec.Lat,
			Lng:        *rec.Lng,
			RegionCode: NormalizeRegionCode(rec.RegionCode),
			Turnover:   rec.Turnover,
		})
	}
	return stores, nil
}

// ReadStoresShapefile loads existing stores from a point shapefile. Expected
// attribute fields: ID, REGION, and optionally TURNOVER.
func ReadStoresShapefile(path string) ([]site.ExistingStore, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, "ID")
	regionIdx := fieldIndex(reader, "REGION")
	turnoverIdx := fieldIndex(reader, "TURNOVER")
	if idIdx < 0 || regionIdx < 0 {
		return nil, eris.New("ingest: required shapefile fields (ID, REGION) not found")
	}

	var stores []site.ExistingStore
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		store := site.ExistingStore{
			ID:         strings.TrimSpace(reader.Attribute(idIdx)),
			Lat:        pt.Y,
			Lng:        pt.X,
			RegionCode: NormalizeRegionCode(reader.Attribute(regionIdx)),
		}
		if !validCoords(&store.Lat, &store.Lng) || store.ID == "" {
			zap.L().Warn("ingest: skipping shapefile store record", zap.String("id", store.ID))
			skipped++
			continue
		}
		if turnoverIdx >= 0 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(reader.Attribute(turnoverIdx)), 64); err == nil && v > 0 {
				store.Turnover = &v
			}
		}
		stores = append(stores, store)
	}

	zap.L().Info("store shapefile loaded",
		zap.String("path", path),
		zap.Int("stores", len(stores)),
		zap.Int("skipped", skipped),
	)
	return stores, nil
}

// fieldIndex returns the index of a named attribute field, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
