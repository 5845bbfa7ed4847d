package sample

import (
	"math"

	"github.com/sells-group/siteselect/internal/site"
)

// DiversityWeights holds the target share of each settlement category in the
// diversified pool.
type DiversityWeights struct {
	Cities   float64 `yaml:"cities" mapstructure:"cities"`
	Towns    float64 `yaml:"towns" mapstructure:"towns"`
	Villages float64 `yaml:"villages" mapstructure:"villages"`
}

// DefaultDiversityWeights returns the default 40/40/20 mix.
func DefaultDiversityWeights() DiversityWeights {
	return DiversityWeights{Cities: 0.4, Towns: 0.4, Villages: 0.2}
}

// Diversify selects exactly min(target, len(cands)) candidates with
// settlement-type proportions approximating the given weights. Per-type
// quotas are floor(target x weight); the rounding remainder goes to the type
// with the most available candidates. Types short of their quota are
// backfilled with the highest-scoring remaining candidates regardless of
// type.
func Diversify(cands []*site.Candidate, target int, weights DiversityWeights) []*site.Candidate {
	if target <= 0 || len(cands) == 0 {
		return nil
	}
	if target > len(cands) {
		target = len(cands)
	}

	byType := map[site.SettlementType][]*site.Candidate{}
	for _, c := range cands {
		byType[c.SettlementType] = append(byType[c.SettlementType], c)
	}
	for _, pool := range byType {
		site.SortByScore(pool)
	}

	quotas := map[site.SettlementType]int{
		site.SettlementCity:    int(math.Floor(float64(target) * weights.Cities)),
		site.SettlementTown:    int(math.Floor(float64(target) * weights.Towns)),
		site.SettlementVillage: int(math.Floor(float64(target) * weights.Villages)),
	}

	// Rounding remainder goes to the type with the deepest pool.
	assigned := quotas[site.SettlementCity] + quotas[site.SettlementTown] + quotas[site.SettlementVillage]
	if remainder := target - assigned; remainder > 0 {
		quotas[largestPool(byType)] += remainder
	}

	selected := make([]*site.Candidate, 0, target)
	picked := map[*site.Candidate]bool{}
	for _, t := range []site.SettlementType{site.SettlementCity, site.SettlementTown, site.SettlementVillage} {
		pool := byType[t]
		n := quotas[t]
		if n > len(pool) {
			n = len(pool)
		}
		for _, c := range pool[:n] {
			picked[c] = true
			selected = append(selected, c)
		}
	}

	// Backfill any shortfall with the best remaining candidates.
	if len(selected) < target {
		rest := make([]*site.Candidate, 0, len(cands)-len(selected))
		for _, c := range cands {
			if !picked[c] {
				rest = append(rest, c)
			}
		}
		site.SortByScore(rest)
		for _, c := range rest {
			if len(selected) == target {
				break
			}
			selected = append(selected, c)
		}
	}

	site.SortByScore(selected)
	return selected
}

// largestPool returns the settlement type with the most available
// candidates, breaking ties in city > town > village order.
func largestPool(byType map[site.SettlementType][]*site.Candidate) site.SettlementType {
	order := []site.SettlementType{site.SettlementCity, site.SettlementTown, site.SettlementVillage}
	best := order[0]
	for _, t := range order[1:] {
		if len(byType[t]) > len(byType[best]) {
			best = t
		}
	}
	return best
}
