// Package suppress removes near-duplicate candidates from the merged pool
// with non-maximum suppression over an approximate drive-time radius.
package suppress

import (
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/site"
)

// Defaults for the drive-time neighborhood.
const (
	DefaultSpeedKmh         = 50.0
	DefaultThresholdMinutes = 10.0
)

// SuppressedMember records one candidate suppressed in favor of a cluster
// center, with its approximate drive time from that center.
type SuppressedMember struct {
	Candidate        *site.Candidate `json:"candidate"`
	DriveTimeMinutes float64         `json:"drive_time_minutes"`
}

// ClusterAudit documents one suppression neighborhood: the kept center and
// the members discarded because they sit within the drive-time threshold.
type ClusterAudit struct {
	Center     *site.Candidate    `json:"center"`
	Suppressed []SuppressedMember `json:"suppressed"`
}

// Result is the outcome of a suppression pass.
type Result struct {
	Selected   []*site.Candidate `json:"selected"`
	Suppressed []*site.Candidate `json:"suppressed"`
	Clusters   []ClusterAudit    `json:"clusters"`
}

// ByDriveTime runs non-maximum suppression over the candidate pool. The pool
// is processed in descending score order (ties on ID); for each unprocessed
// candidate, every other unprocessed candidate whose approximate drive time
// is within thresholdMinutes is suppressed in its favor. The kept candidate
// of each neighborhood is always its highest-scored member, so the
// suppression invariant holds by construction.
func ByDriveTime(cands []*site.Candidate, speedKmh, thresholdMinutes float64) Result {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	if thresholdMinutes <= 0 {
		thresholdMinutes = DefaultThresholdMinutes
	}
	maxDistM := geo.DriveTimeDistanceMeters(thresholdMinutes, speedKmh)

	ordered := make([]*site.Candidate, len(cands))
	copy(ordered, cands)
	site.SortByScore(ordered)

	var res Result
	processed := make([]bool, len(ordered))

	for i, c := range ordered {
		if processed[i] {
			continue
		}
		processed[i] = true

		var members []SuppressedMember
		for j := i + 1; j < len(ordered); j++ {
			if processed[j] {
				continue
			}
			d := geo.Haversine(c.Lat, c.Lng, ordered[j].Lat, ordered[j].Lng)
			if d <= maxDistM {
				processed[j] = true
				members = append(members, SuppressedMember{
					Candidate:        ordered[j],
					DriveTimeMinutes: geo.DriveTimeMinutes(d, speedKmh),
				})
				res.Suppressed = append(res.Suppressed, ordered[j])
			}
		}

		res.Selected = append(res.Selected, c)
		if len(members) > 0 {
			res.Clusters = append(res.Clusters, ClusterAudit{Center: c, Suppressed: members})
		}
	}

	if len(res.Suppressed) > 0 {
		zap.L().Info("drive-time suppression complete",
			zap.Int("input", len(cands)),
			zap.Int("selected", len(res.Selected)),
			zap.Int("suppressed", len(res.Suppressed)),
			zap.Float64("speed_kmh", speedKmh),
			zap.Float64("threshold_minutes", thresholdMinutes),
		)
	}
	return res
}

// MinSpacing enforces a raw distance floor independent of any speed
// assumption. Candidates are processed in descending score order; a
// candidate too close to any already-kept candidate is dropped.
func MinSpacing(cands []*site.Candidate, minMeters float64) (kept, dropped []*site.Candidate) {
	if minMeters <= 0 {
		return cands, nil
	}

	ordered := make([]*site.Candidate, len(cands))
	copy(ordered, cands)
	site.SortByScore(ordered)

	for _, c := range ordered {
		tooClose := false
		for _, k := range kept {
			if geo.Haversine(c.Lat, c.Lng, k.Lat, k.Lng) < minMeters {
				tooClose = true
				break
			}
		}
		if tooClose {
			dropped = append(dropped, c)
		} else {
			kept = append(kept, c)
		}
	}
	return kept, dropped
}
