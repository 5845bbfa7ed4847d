package sample

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/site"
)

func pool(n int, prefix string, st site.SettlementType, base float64) []*site.Candidate {
	out := make([]*site.Candidate, n)
	for i := range out {
		out[i] = cand(fmt.Sprintf("%s%02d", prefix, i), 50_000, st, base-float64(i)*0.01)
	}
	return out
}

func countByType(cands []*site.Candidate) map[site.SettlementType]int {
	counts := map[site.SettlementType]int{}
	for _, c := range cands {
		counts[c.SettlementType]++
	}
	return counts
}

func TestDiversifyQuotas(t *testing.T) {
	var cands []*site.Candidate
	cands = append(cands, pool(5, "c", site.SettlementCity, 0.9)...)
	cands = append(cands, pool(5, "t", site.SettlementTown, 0.8)...)
	cands = append(cands, pool(5, "v", site.SettlementVillage, 0.7)...)

	got := Diversify(cands, 5, DefaultDiversityWeights())
	require.Len(t, got, 5)

	counts := countByType(got)
	assert.Equal(t, 2, counts[site.SettlementCity])
	assert.Equal(t, 2, counts[site.SettlementTown])
	assert.Equal(t, 1, counts[site.SettlementVillage])
}

func TestDiversifyRemainderToLargestPool(t *testing.T) {
	// Quotas for target 3 are floor(1.2)/floor(1.2)/floor(0.6) = 1/1/0; the
	// remaining slot goes to the deepest pool (towns).
	var cands []*site.Candidate
	cands = append(cands, pool(2, "c", site.SettlementCity, 0.9)...)
	cands = append(cands, pool(6, "t", site.SettlementTown, 0.8)...)
	cands = append(cands, pool(2, "v", site.SettlementVillage, 0.7)...)

	got := Diversify(cands, 3, DefaultDiversityWeights())
	require.Len(t, got, 3)

	counts := countByType(got)
	assert.Equal(t, 1, counts[site.SettlementCity])
	assert.Equal(t, 2, counts[site.SettlementTown])
	assert.Equal(t, 0, counts[site.SettlementVillage])
}

func TestDiversifyBackfillsMissingType(t *testing.T) {
	// No villages available: the village slot falls to the best remaining
	// candidate of any type.
	var cands []*site.Candidate
	cands = append(cands, pool(5, "c", site.SettlementCity, 0.9)...)
	cands = append(cands, pool(5, "t", site.SettlementTown, 0.8)...)

	got := Diversify(cands, 5, DefaultDiversityWeights())
	require.Len(t, got, 5)

	counts := countByType(got)
	assert.Equal(t, 3, counts[site.SettlementCity], "backfill takes the top remaining city")
	assert.Equal(t, 2, counts[site.SettlementTown])
}

func TestDiversifyOrderedByScore(t *testing.T) {
	var cands []*site.Candidate
	cands = append(cands, pool(4, "c", site.SettlementCity, 0.9)...)
	cands = append(cands, pool(4, "t", site.SettlementTown, 0.95)...)
	cands = append(cands, pool(4, "v", site.SettlementVillage, 0.7)...)

	got := Diversify(cands, 6, DefaultDiversityWeights())
	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score.Total, got[i].Score.Total)
	}
}

func TestDiversifyEmpty(t *testing.T) {
	assert.Nil(t, Diversify(nil, 5, DefaultDiversityWeights()))
	assert.Nil(t, Diversify(pool(3, "c", site.SettlementCity, 0.5), 0, DefaultDiversityWeights()))
}
