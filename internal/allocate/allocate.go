// Package allocate distributes the final selection across regions with
// population-weighted quotas, performance bonuses, manual caps, and a
// concentration guard.
package allocate

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/site"
)

// Defaults for regional allocation.
const (
	DefaultMaxPerRegionPct = 0.40
	DefaultBonusSlots      = 2

	// Share of the target reserved for performance bonuses.
	bonusReserveShare = 0.2
)

// Config configures the allocator.
type Config struct {
	// Target is the total number of sites to select.
	Target int

	// BonusSlotsPerRegion is the bonus allotment granted to each
	// top-performing region.
	BonusSlotsPerRegion int

	// MaxPerRegionPct caps any single region's share of the final selection.
	MaxPerRegionPct float64

	// ManualCaps overrides a region's quota outright. A manual cap takes
	// precedence over base+bonus and over the concentration cap.
	ManualCaps map[string]int
}

// RegionLedger is the per-region audit record.
type RegionLedger struct {
	Base      int  `json:"base"`
	Bonus     int  `json:"bonus"`
	Manual    *int `json:"manual,omitempty"`
	Allocated int  `json:"allocated"`
	Available int  `json:"available"`
}

// Result is the allocator output.
type Result struct {
	Selected []*site.Candidate `json:"selected"`

	// Capped holds candidates that rank inside the top target slots by raw
	// score but were excluded by the concentration cap.
	Capped []*site.Candidate `json:"capped"`

	Distribution map[string]int          `json:"distribution"`
	Ledger       map[string]RegionLedger `json:"ledger"`

	// Flagged lists regions that exceeded the concentration threshold before
	// rebalancing.
	Flagged    []string `json:"flagged,omitempty"`
	Rebalanced bool     `json:"rebalanced"`
}

// regionStats aggregates per-region inputs.
type regionStats struct {
	code        string
	pool        []*site.Candidate
	popEstimate int64
	popWeight   float64
	meanPerf    float64
	storeCount  int
}

// Allocate selects up to cfg.Target candidates, balanced across regions.
// Quotas are population-weighted with a performance bonus pool; manual caps
// override both. After selection, any region holding more than
// MaxPerRegionPct of the result is flagged and the selection is rebalanced
// under the cap.
func Allocate(cands []*site.Candidate, stores []site.ExistingStore, cfg Config) Result {
	res := Result{
		Distribution: map[string]int{},
		Ledger:       map[string]RegionLedger{},
	}
	if cfg.Target <= 0 || len(cands) == 0 {
		return res
	}
	if cfg.MaxPerRegionPct <= 0 || cfg.MaxPerRegionPct > 1 {
		cfg.MaxPerRegionPct = DefaultMaxPerRegionPct
	}

	regions := buildRegionStats(cands, stores)

	// Bonus pool is reserved off the top; the rest is allocated by
	// log-dampened population weight.
	bonusPool := 0
	if cfg.BonusSlotsPerRegion > 0 {
		bonusPool = min(cfg.BonusSlotsPerRegion*len(regions), int(math.Floor(float64(cfg.Target)*bonusReserveShare)))
	}
	basePool := cfg.Target - bonusPool

	var weightSum float64
	for _, r := range regions {
		weightSum += r.popWeight
	}

	base := map[string]int{}
	for _, r := range regions {
		if weightSum > 0 {
			base[r.code] = int(math.Floor(float64(basePool) * r.popWeight / weightSum))
		} else {
			base[r.code] = basePool / len(regions)
		}
	}

	bonus := map[string]int{}
	if cfg.BonusSlotsPerRegion > 0 && bonusPool > 0 {
		winners := bonusPool / cfg.BonusSlotsPerRegion
		ranked := make([]*regionStats, len(regions))
		copy(ranked, regions)
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].meanPerf != ranked[j].meanPerf {
				return ranked[i].meanPerf > ranked[j].meanPerf
			}
			return ranked[i].code < ranked[j].code
		})
		for i := 0; i < winners && i < len(ranked); i++ {
			bonus[ranked[i].code] = cfg.BonusSlotsPerRegion
		}
	}

	// Resolve final quotas and record the ledger.
	quota := map[string]int{}
	for _, r := range regions {
		led := RegionLedger{
			Base:      base[r.code],
			Bonus:     bonus[r.code],
			Available: len(r.pool),
		}
		q := led.Base + led.Bonus
		if cap, ok := cfg.ManualCaps[r.code]; ok {
			capVal := cap
			led.Manual = &capVal
			led.Bonus = 0
			if q > cap {
				q = cap
			}
		}
		quota[r.code] = q
		res.Ledger[r.code] = led
	}

	// Quota-limited selection per region, then global score-ordered backfill
	// of any unfilled slots (manual caps still respected).
	selected, counts := selectByQuota(regions, quota)
	selected, counts = backfill(selected, counts, regions, cfg, cfg.Target, math.MaxInt)

	// Concentration guard.
	concCap := int(math.Ceil(cfg.MaxPerRegionPct * float64(len(selected))))
	for _, r := range regions {
		if counts[r.code] > concCap && !manualAbove(cfg, r.code, concCap) {
			res.Flagged = append(res.Flagged, r.code)
		}
	}
	sort.Strings(res.Flagged)

	if len(res.Flagged) > 0 {
		zap.L().Warn("region concentration threshold exceeded, rebalancing",
			zap.Strings("regions", res.Flagged),
			zap.Int("cap", concCap),
			zap.Float64("max_per_region_pct", cfg.MaxPerRegionPct),
		)
		selected, counts = rebalance(regions, quota, cfg, concCap)
		res.Rebalanced = true
	}

	site.SortByScore(selected)
	res.Selected = selected
	for code, n := range counts {
		if n > 0 {
			res.Distribution[code] = n
		}
	}
	for code, n := range counts {
		led := res.Ledger[code]
		led.Allocated = n
		res.Ledger[code] = led
	}

	res.Capped = cappedCandidates(cands, selected, cfg.Target)
	return res
}

// buildRegionStats groups candidates by region and derives the population
// weight and peer-performance metric for each. Regions are returned in code
// order so every downstream loop is deterministic.
func buildRegionStats(cands []*site.Candidate, stores []site.ExistingStore) []*regionStats {
	byCode := map[string]*regionStats{}
	for _, c := range cands {
		r := byCode[c.RegionCode]
		if r == nil {
			r = &regionStats{code: c.RegionCode}
			byCode[c.RegionCode] = r
		}
		r.pool = append(r.pool, c)
		r.popEstimate += int64(c.Population)
	}

	perfSum := map[string]float64{}
	perfN := map[string]int{}
	for _, s := range stores {
		r := byCode[s.RegionCode]
		if r == nil {
			continue
		}
		r.storeCount++
		if s.Turnover != nil {
			perfSum[s.RegionCode] += *s.Turnover
			perfN[s.RegionCode]++
		}
	}

	regions := make([]*regionStats, 0, len(byCode))
	for _, r := range byCode {
		site.SortByScore(r.pool)
		if r.popEstimate > 0 {
			r.popWeight = math.Max(math.Log10(float64(r.popEstimate)), 0)
		}
		if n := perfN[r.code]; n > 0 {
			r.meanPerf = perfSum[r.code] / float64(n)
		}
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].code < regions[j].code })
	return regions
}

// selectByQuota takes each region's top-scored candidates up to its quota.
func selectByQuota(regions []*regionStats, quota map[string]int) ([]*site.Candidate, map[string]int) {
	var selected []*site.Candidate
	counts := map[string]int{}
	for _, r := range regions {
		n := min(quota[r.code], len(r.pool))
		for _, c := range r.pool[:n] {
			selected = append(selected, c)
		}
		counts[r.code] = n
	}
	return selected, counts
}

// backfill fills remaining slots up to target from the best unselected
// candidates of any region, respecting manual caps and the given per-region
// ceiling.
func backfill(selected []*site.Candidate, counts map[string]int, regions []*regionStats, cfg Config, target, regionCeiling int) ([]*site.Candidate, map[string]int) {
	if len(selected) >= target {
		return selected, counts
	}
	chosen := map[*site.Candidate]bool{}
	for _, c := range selected {
		chosen[c] = true
	}

	var rest []*site.Candidate
	for _, r := range regions {
		for _, c := range r.pool {
			if !chosen[c] {
				rest = append(rest, c)
			}
		}
	}
	site.SortByScore(rest)

	for _, c := range rest {
		if len(selected) >= target {
			break
		}
		ceiling := regionCeiling
		if cap, ok := cfg.ManualCaps[c.RegionCode]; ok {
			ceiling = cap
		}
		if counts[c.RegionCode] >= ceiling {
			continue
		}
		selected = append(selected, c)
		counts[c.RegionCode]++
	}
	return selected, counts
}

// rebalance re-runs quota-limited selection with the concentration cap
// enforced: the first pass fills each region under the cap, the second fills
// remaining slots from any region by score while still respecting it. A
// manual cap configured above the concentration bound keeps precedence.
func rebalance(regions []*regionStats, quota map[string]int, cfg Config, concCap int) ([]*site.Candidate, map[string]int) {
	var selected []*site.Candidate
	counts := map[string]int{}

	for _, r := range regions {
		ceiling := regionCap(cfg, r.code, concCap)
		n := min(min(quota[r.code], ceiling), len(r.pool))
		for _, c := range r.pool[:n] {
			selected = append(selected, c)
		}
		counts[r.code] = n
	}

	// Second pass ignores quotas but never the cap.
	chosen := map[*site.Candidate]bool{}
	for _, c := range selected {
		chosen[c] = true
	}
	var rest []*site.Candidate
	for _, r := range regions {
		for _, c := range r.pool {
			if !chosen[c] {
				rest = append(rest, c)
			}
		}
	}
	site.SortByScore(rest)

	for _, c := range rest {
		if len(selected) >= cfg.Target {
			break
		}
		if counts[c.RegionCode] >= regionCap(cfg, c.RegionCode, concCap) {
			continue
		}
		selected = append(selected, c)
		counts[c.RegionCode]++
	}
	return selected, counts
}

// regionCap resolves a region's effective ceiling: the manual cap when one is
// configured (it may exceed the concentration bound), otherwise the
// concentration cap.
func regionCap(cfg Config, code string, concCap int) int {
	if cap, ok := cfg.ManualCaps[code]; ok {
		return cap
	}
	return concCap
}

// manualAbove reports whether a manual override explicitly allows the region
// to exceed the concentration bound.
func manualAbove(cfg Config, code string, concCap int) bool {
	cap, ok := cfg.ManualCaps[code]
	return ok && cap > concCap
}

// cappedCandidates returns candidates inside the top target slots by raw
// score that did not make the final selection.
func cappedCandidates(cands, selected []*site.Candidate, target int) []*site.Candidate {
	ranked := make([]*site.Candidate, len(cands))
	copy(ranked, cands)
	site.SortByScore(ranked)
	if len(ranked) > target {
		ranked = ranked[:target]
	}

	chosen := map[*site.Candidate]bool{}
	for _, c := range selected {
		chosen[c] = true
	}
	var capped []*site.Candidate
	for _, c := range ranked {
		if !chosen[c] {
			capped = append(capped, c)
		}
	}
	return capped
}
