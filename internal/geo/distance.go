// Package geo provides great-circle distance math and store-proximity
// aggregation for candidate scoring.
package geo

import (
	"math"
	"sort"

	"github.com/sells-group/siteselect/internal/site"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance in meters between two
// lat/lng points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// DriveTimeMinutes converts a straight-line distance to an approximate drive
// time at a fixed speed. This is a distance-based approximation, not a routed
// calculation.
func DriveTimeMinutes(meters, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return math.Inf(1)
	}
	return (meters / 1000) / speedKmh * 60
}

// DriveTimeDistanceMeters returns the straight-line distance covered in the
// given minutes at a fixed speed.
func DriveTimeDistanceMeters(minutes, speedKmh float64) float64 {
	return speedKmh * (minutes / 60) * 1000
}

// NearestStoreDistances returns the distances in meters from a point to its n
// nearest stores, ascending. Returns fewer than n when the store list is
// shorter.
func NearestStoreDistances(lat, lng float64, stores []site.ExistingStore, n int) []float64 {
	if n <= 0 || len(stores) == 0 {
		return nil
	}
	dists := make([]float64, len(stores))
	for i, s := range stores {
		dists[i] = Haversine(lat, lng, s.Lat, s.Lng)
	}
	sort.Float64s(dists)
	if len(dists) > n {
		dists = dists[:n]
	}
	return dists
}

// RingCounts counts stores within 5, 10, and 15 km of a point.
func RingCounts(lat, lng float64, stores []site.ExistingStore) (within5, within10, within15 int) {
	for _, s := range stores {
		d := Haversine(lat, lng, s.Lat, s.Lng)
		if d <= 5_000 {
			within5++
		}
		if d <= 10_000 {
			within10++
		}
		if d <= 15_000 {
			within15++
		}
	}
	return within5, within10, within15
}

// MeanTurnoverWithin returns the mean turnover of stores within radiusMeters
// of a point and the number of stores that contributed. Stores without a
// turnover figure are excluded from the sample.
func MeanTurnoverWithin(lat, lng, radiusMeters float64, stores []site.ExistingStore) (mean float64, sample int) {
	var sum float64
	for _, s := range stores {
		if s.Turnover == nil {
			continue
		}
		if Haversine(lat, lng, s.Lat, s.Lng) <= radiusMeters {
			sum += *s.Turnover
			sample++
		}
	}
	if sample == 0 {
		return 0, 0
	}
	return sum / float64(sample), sample
}
