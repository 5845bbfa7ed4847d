package suppress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/site"
)

func cand(id string, lat, lng, score float64) *site.Candidate {
	c := &site.Candidate{ID: id, Name: id, Lat: lat, Lng: lng}
	c.Score.Total = score
	return c
}

func TestByDriveTimeSuppressesLowerScore(t *testing.T) {
	// At 50 km/h the 10-minute radius is ~8.3 km. A and B sit ~5 km apart;
	// C is ~22 km from both.
	a := cand("a", 0, 0, 0.9)
	b := cand("b", 0.045, 0, 0.8)
	c := cand("c", 0.2, 0, 0.7)

	res := ByDriveTime([]*site.Candidate{c, b, a}, 50, 10)

	require.Len(t, res.Selected, 2)
	assert.Equal(t, "a", res.Selected[0].ID)
	assert.Equal(t, "c", res.Selected[1].ID)

	require.Len(t, res.Suppressed, 1)
	assert.Equal(t, "b", res.Suppressed[0].ID)

	require.Len(t, res.Clusters, 1)
	assert.Equal(t, "a", res.Clusters[0].Center.ID)
	require.Len(t, res.Clusters[0].Suppressed, 1)
	assert.InDelta(t, 6.0, res.Clusters[0].Suppressed[0].DriveTimeMinutes, 0.1)
}

func TestByDriveTimeInvariant(t *testing.T) {
	// A dense line of candidates; after suppression no two survivors may sit
	// within the drive-time radius of each other.
	var cands []*site.Candidate
	for i := 0; i < 12; i++ {
		cands = append(cands, cand(string(rune('a'+i)), float64(i)*0.03, 0, float64(i)/12))
	}

	res := ByDriveTime(cands, 50, 10)
	maxDist := geo.DriveTimeDistanceMeters(10, 50)

	for i, x := range res.Selected {
		for _, y := range res.Selected[i+1:] {
			d := geo.Haversine(x.Lat, x.Lng, y.Lat, y.Lng)
			assert.Greater(t, d, maxDist, "%s and %s too close", x.ID, y.ID)
		}
	}
	assert.Equal(t, len(cands), len(res.Selected)+len(res.Suppressed))
}

func TestByDriveTimeKeepsIsolated(t *testing.T) {
	cands := []*site.Candidate{
		cand("a", 0, 0, 0.5),
		cand("b", 1, 1, 0.4),
	}

	res := ByDriveTime(cands, 50, 10)
	assert.Len(t, res.Selected, 2)
	assert.Empty(t, res.Suppressed)
	assert.Empty(t, res.Clusters)
}

func TestMinSpacing(t *testing.T) {
	a := cand("a", 0, 0, 0.9)
	b := cand("b", 0.02, 0, 0.8) // ~2.2 km from a
	c := cand("c", 0.1, 0, 0.7)  // ~11 km from a

	kept, dropped := MinSpacing([]*site.Candidate{a, b, c}, 5_000)

	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "c", kept[1].ID)
	require.Len(t, dropped, 1)
	assert.Equal(t, "b", dropped[0].ID)
}

func TestMinSpacingDisabled(t *testing.T) {
	cands := []*site.Candidate{cand("a", 0, 0, 0.9), cand("b", 0.001, 0, 0.8)}
	kept, dropped := MinSpacing(cands, 0)
	assert.Len(t, kept, 2)
	assert.Nil(t, dropped)
}
