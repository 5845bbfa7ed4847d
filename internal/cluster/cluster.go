// Package cluster consolidates scored candidates that sit within a fixed
// radius of each other, keeping one representative per group.
package cluster

import (
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/site"
)

// DefaultRadiusMeters is the default clustering radius.
const DefaultRadiusMeters = 5_000.0

// Consolidate greedily groups candidates within radiusMeters (great-circle)
// and keeps the highest-scoring member of each group as its representative,
// annotated with cluster size and member names. Single-pass and intentionally
// greedy: groups are fixed in input order and never re-clustered, which keeps
// the result deterministic for identical input ordering.
func Consolidate(cands []*site.Candidate, radiusMeters float64) []*site.Candidate {
	if len(cands) == 0 {
		return nil
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}

	processed := make([]bool, len(cands))
	reps := make([]*site.Candidate, 0, len(cands))
	var merged int

	for i, c := range cands {
		if processed[i] {
			continue
		}
		processed[i] = true

		members := []*site.Candidate{c}
		for j := i + 1; j < len(cands); j++ {
			if processed[j] {
				continue
			}
			if geo.Haversine(c.Lat, c.Lng, cands[j].Lat, cands[j].Lng) <= radiusMeters {
				processed[j] = true
				members = append(members, cands[j])
			}
		}

		rep := representative(members)
		rep.ClusterSize = len(members)
		if len(members) > 1 {
			names := make([]string, 0, len(members)-1)
			for _, m := range members {
				if m != rep {
					names = append(names, m.Name)
				}
			}
			rep.ClusterMembers = names
			merged += len(members) - 1
		}
		reps = append(reps, rep)
	}

	if merged > 0 {
		zap.L().Debug("consolidated candidate clusters",
			zap.Int("input", len(cands)),
			zap.Int("representatives", len(reps)),
			zap.Int("merged", merged),
			zap.Float64("radius_m", radiusMeters),
		)
	}
	return reps
}

// representative picks the member with the highest total score, breaking ties
// on candidate ID.
func representative(members []*site.Candidate) *site.Candidate {
	best := members[0]
	for _, m := range members[1:] {
		if site.Less(m, best) {
			best = m
		}
	}
	return best
}
