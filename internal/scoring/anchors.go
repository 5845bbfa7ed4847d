package scoring

import (
	"math"

	"github.com/sells-group/siteselect/internal/site"
)

// Merge ratios and audit radii for anchor deduplication. The pipeline works
// on aggregate counts per type, so overlap is approximated with fixed ratios
// rather than per-POI geometry. Ratios are hand-tuned defaults, not proven
// constants.
const (
	mallTenantMergeRatio   = 0.30
	stationShopMergeRatio  = 0.40
	grocerClusterMergeRatio = 0.15
	retailClusterMergeRatio = 0.10

	mallTenantRadiusM    = 150.0
	stationShopRadiusM   = 100.0
	grocerClusterRadiusM = 300.0
	retailClusterRadiusM = 200.0
)

// MergeRecord documents one deduplication merge for the audit trail.
type MergeRecord struct {
	Type1   string  `json:"type1"`
	Type2   string  `json:"type2"`
	RadiusM float64 `json:"radius_m"`
	Merged  int     `json:"merged_count"`
}

// AnchorResolution is the result of deduplicating and scoring a candidate's
// raw anchor counts.
type AnchorResolution struct {
	Counts map[site.AnchorType]int `json:"counts"`
	Total  int                     `json:"total"`
	Capped int                     `json:"capped"` // count removed by the per-site cap
	Merges []MergeRecord           `json:"merges,omitempty"`
	Score  float64                 `json:"score"`
}

// ResolveAnchors deduplicates raw per-type anchor counts with fixed merge
// ratios, caps the total at maxPerSite, and converts the capped count to a
// diminishing-returns score. When diminishing returns is disabled the score
// equals the capped count.
func ResolveAnchors(raw map[site.AnchorType]int, maxPerSite int, diminishing bool) AnchorResolution {
	counts := make(map[site.AnchorType]int, len(site.AnchorTypes))
	for _, t := range site.AnchorTypes {
		if n := raw[t]; n > 0 {
			counts[t] = n
		}
	}

	res := AnchorResolution{Counts: counts}

	// Mall<->tenant: shops inside malls are the double-counted side, so the
	// merged count comes out of the tenant pool (retail first, then grocers).
	tenantPool := counts[site.AnchorGrocer] + counts[site.AnchorRetail]
	if merged := int(math.Floor(mallTenantMergeRatio * float64(min(counts[site.AnchorMall], tenantPool)))); merged > 0 {
		res.Merges = append(res.Merges, MergeRecord{
			Type1: string(site.AnchorMall), Type2: "tenant", RadiusM: mallTenantRadiusM, Merged: merged,
		})
		fromRetail := min(merged, counts[site.AnchorRetail])
		counts[site.AnchorRetail] -= fromRetail
		counts[site.AnchorGrocer] -= merged - fromRetail
	}

	// Station<->shop: retail clustered around transit entrances.
	if counts[site.AnchorStation] > 0 {
		if merged := int(math.Floor(stationShopMergeRatio * float64(counts[site.AnchorRetail]))); merged > 0 {
			res.Merges = append(res.Merges, MergeRecord{
				Type1: string(site.AnchorStation), Type2: string(site.AnchorRetail), RadiusM: stationShopRadiusM, Merged: merged,
			})
			counts[site.AnchorRetail] -= merged
		}
	}

	// Same-type clustering.
	if merged := int(math.Floor(grocerClusterMergeRatio * float64(counts[site.AnchorGrocer]))); merged > 0 {
		res.Merges = append(res.Merges, MergeRecord{
			Type1: string(site.AnchorGrocer), Type2: string(site.AnchorGrocer), RadiusM: grocerClusterRadiusM, Merged: merged,
		})
		counts[site.AnchorGrocer] -= merged
	}
	if merged := int(math.Floor(retailClusterMergeRatio * float64(counts[site.AnchorRetail]))); merged > 0 {
		res.Merges = append(res.Merges, MergeRecord{
			Type1: string(site.AnchorRetail), Type2: string(site.AnchorRetail), RadiusM: retailClusterRadiusM, Merged: merged,
		})
		counts[site.AnchorRetail] -= merged
	}

	for _, t := range site.AnchorTypes {
		if counts[t] < 0 {
			counts[t] = 0
		}
		res.Total += counts[t]
	}

	if maxPerSite > 0 && res.Total > maxPerSite {
		res.Capped = res.Total - maxPerSite
		res.Total = maxPerSite
	}

	if diminishing {
		res.Score = harmonicRootScore(res.Total)
	} else {
		res.Score = float64(res.Total)
	}
	return res
}

// harmonicRootScore sums 1/sqrt(rank) for ranks 1..n: the first anchor
// contributes 1.0, the second ~0.71, and each additional anchor adds strictly
// less marginal pull.
func harmonicRootScore(n int) float64 {
	var s float64
	for rank := 1; rank <= n; rank++ {
		s += 1 / math.Sqrt(float64(rank))
	}
	return s
}
