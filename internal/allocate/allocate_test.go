package allocate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/site"
)

func fp(v float64) *float64 { return &v }

func regionPool(region string, n int, base float64) []*site.Candidate {
	out := make([]*site.Candidate, n)
	for i := range out {
		c := &site.Candidate{
			ID:         fmt.Sprintf("%s-%02d", region, i),
			RegionCode: region,
			Population: 100_000,
		}
		c.Score.Total = base - float64(i)*0.01
		out[i] = c
	}
	return out
}

func TestAllocateEmpty(t *testing.T) {
	res := Allocate(nil, nil, Config{Target: 10})
	assert.Empty(t, res.Selected)

	res = Allocate(regionPool("A", 3, 0.5), nil, Config{Target: 0})
	assert.Empty(t, res.Selected)
}

func TestAllocateBalancedQuotas(t *testing.T) {
	cands := append(regionPool("NORD", 3, 0.9), regionPool("SUED", 3, 0.8)...)

	res := Allocate(cands, nil, Config{Target: 4, MaxPerRegionPct: 0.5})

	require.Len(t, res.Selected, 4)
	assert.Equal(t, 2, res.Distribution["NORD"])
	assert.Equal(t, 2, res.Distribution["SUED"])
	assert.False(t, res.Rebalanced)
	assert.Empty(t, res.Flagged)

	// Output is score-ordered.
	for i := 1; i < len(res.Selected); i++ {
		assert.GreaterOrEqual(t, res.Selected[i-1].Score.Total, res.Selected[i].Score.Total)
	}
}

func TestAllocateConcentrationGuard(t *testing.T) {
	// One region holds 8 of the top 10 scores. With a 40% ceiling it may keep
	// at most ceil(0.4*10) = 4 of the final selection.
	cands := append(regionPool("BY", 8, 0.9), regionPool("BW", 6, 0.5)...)

	res := Allocate(cands, nil, Config{Target: 10, MaxPerRegionPct: 0.4})

	assert.Equal(t, []string{"BY"}, res.Flagged)
	assert.True(t, res.Rebalanced)

	// Both regions saturate at the cap; the target is transparently
	// under-filled rather than over-concentrated.
	assert.Equal(t, 4, res.Distribution["BY"])
	assert.Equal(t, 4, res.Distribution["BW"])
	assert.Len(t, res.Selected, 8)

	// The displaced top-10 candidates surface in the capped list.
	require.Len(t, res.Capped, 4)
	for _, c := range res.Capped {
		assert.Equal(t, "BY", c.RegionCode)
	}
}

func TestAllocateManualCap(t *testing.T) {
	cands := append(regionPool("BY", 8, 0.9), regionPool("BW", 8, 0.5)...)

	res := Allocate(cands, nil, Config{
		Target:          10,
		MaxPerRegionPct: 0.4,
		ManualCaps:      map[string]int{"BY": 2},
	})

	assert.Equal(t, 2, res.Distribution["BY"], "manual cap overrides the quota")
	led := res.Ledger["BY"]
	require.NotNil(t, led.Manual)
	assert.Equal(t, 2, *led.Manual)
	assert.Zero(t, led.Bonus, "manual caps forfeit bonus slots")
}

func TestAllocatePerformanceBonus(t *testing.T) {
	cands := append(regionPool("A", 5, 0.9),
		append(regionPool("B", 5, 0.8), regionPool("C", 5, 0.7)...)...)

	stores := []site.ExistingStore{
		{ID: "s1", RegionCode: "B", Turnover: fp(900_000)},
		{ID: "s2", RegionCode: "A", Turnover: fp(400_000)},
		{ID: "s3", RegionCode: "C", Turnover: fp(100_000)},
	}

	res := Allocate(cands, stores, Config{
		Target:              10,
		BonusSlotsPerRegion: 2,
		MaxPerRegionPct:     0.4,
	})

	// Bonus pool = min(2*3, floor(10*0.2)) = 2 → one winning region, ranked
	// by mean store turnover.
	assert.Equal(t, 2, res.Ledger["B"].Bonus)
	assert.Zero(t, res.Ledger["A"].Bonus)
	assert.Zero(t, res.Ledger["C"].Bonus)
}

func TestAllocateLedgerConsistency(t *testing.T) {
	cands := append(regionPool("X", 4, 0.9), regionPool("Y", 4, 0.7)...)

	res := Allocate(cands, nil, Config{Target: 6, MaxPerRegionPct: 0.5})

	var total int
	for code, led := range res.Ledger {
		assert.Equal(t, res.Distribution[code], led.Allocated)
		assert.Equal(t, 4, led.Available)
		total += led.Allocated
	}
	assert.Equal(t, len(res.Selected), total)
}
