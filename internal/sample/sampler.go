// Package sample down-samples clustered candidates with deterministic
// weighted draws and re-balances the result across settlement categories.
package sample

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/site"
)

// Weight parameters: larger settlements are favored without letting
// mega-cities dominate the draw.
const (
	cityTypeMultiplier    = 1.2
	townTypeMultiplier    = 1.0
	villageTypeMultiplier = 0.8

	// Weight floor so no candidate is excluded with probability zero.
	minimumWeight = 0.1

	// Draw attempts are bounded at this multiple of the target before the
	// sampler falls back to highest-weight fill.
	maxAttemptFactor = 10
)

// Weight computes the sampling weight for a candidate:
// log10(population/1000) x settlement-type multiplier x score multiplier,
// floored at 0.1. The score multiplier maps the total score linearly into
// [0.5, 1.0].
func Weight(c *site.Candidate) float64 {
	base := 0.0
	if c.Population >= 1 {
		base = math.Log10(float64(c.Population) / 1000)
	}

	var typeMult float64
	switch c.SettlementType {
	case site.SettlementCity:
		typeMult = cityTypeMultiplier
	case site.SettlementVillage:
		typeMult = villageTypeMultiplier
	default:
		typeMult = townTypeMultiplier
	}

	total := c.Score.Total
	if total < 0 {
		total = 0
	} else if total > 1 {
		total = 1
	}
	scoreMult := 0.5 + 0.5*total

	w := base * typeMult * scoreMult
	if w < minimumWeight {
		w = minimumWeight
	}
	return w
}

// Draw selects min(target, len(cands)) candidates by seeded weighted sampling
// without replacement. Identical input set and seed produce the identical
// output set and order. Each selected candidate carries its sampling weight.
func Draw(cands []*site.Candidate, target int, seed int64) []*site.Candidate {
	if target <= 0 || len(cands) == 0 {
		return nil
	}
	if target >= len(cands) {
		out := make([]*site.Candidate, len(cands))
		copy(out, cands)
		for _, c := range out {
			c.SamplingWeight = Weight(c)
		}
		return out
	}

	weights := make([]float64, len(cands))
	cumulative := make([]float64, len(cands))
	var sum float64
	for i, c := range cands {
		weights[i] = Weight(c)
		c.SamplingWeight = weights[i]
		sum += weights[i]
		cumulative[i] = sum
	}

	rng := NewLCG(seed)
	selected := make([]*site.Candidate, 0, target)
	taken := make([]bool, len(cands))

	attempts := 0
	for len(selected) < target && attempts < target*maxAttemptFactor {
		attempts++
		u := rng.Next() * sum
		idx := sort.SearchFloat64s(cumulative, u)
		if idx >= len(cands) {
			idx = len(cands) - 1
		}
		if taken[idx] {
			continue
		}
		taken[idx] = true
		selected = append(selected, cands[idx])
	}

	// Attempts exhausted: fill remaining slots with the highest-weight
	// unselected candidates.
	if len(selected) < target {
		rest := make([]int, 0, len(cands))
		for i := range cands {
			if !taken[i] {
				rest = append(rest, i)
			}
		}
		sort.SliceStable(rest, func(a, b int) bool {
			if weights[rest[a]] != weights[rest[b]] {
				return weights[rest[a]] > weights[rest[b]]
			}
			return cands[rest[a]].ID < cands[rest[b]].ID
		})
		for _, idx := range rest {
			if len(selected) == target {
				break
			}
			taken[idx] = true
			selected = append(selected, cands[idx])
		}
		zap.L().Debug("sampler attempts exhausted, filled by weight",
			zap.Int("target", target),
			zap.Int("attempts", attempts),
		)
	}

	return selected
}
