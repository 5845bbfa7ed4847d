package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/site"
)

func cand(id, name string, lat, lng, score float64) *site.Candidate {
	c := &site.Candidate{ID: id, Name: name, Lat: lat, Lng: lng}
	c.Score.Total = score
	return c
}

func TestConsolidateEmpty(t *testing.T) {
	assert.Nil(t, Consolidate(nil, 5_000))
}

func TestConsolidateKeepsBestOfGroup(t *testing.T) {
	// Two proposals ~1.2 km apart in Berlin, one standalone in Munich.
	cands := []*site.Candidate{
		cand("b1", "Berlin Mitte", 52.52, 13.405, 0.7),
		cand("b2", "Berlin Wedding", 52.53, 13.41, 0.9),
		cand("m1", "Munich", 48.1374, 11.5755, 0.8),
	}

	reps := Consolidate(cands, 5_000)
	require.Len(t, reps, 2)

	assert.Equal(t, "b2", reps[0].ID, "highest score of the pair represents the cluster")
	assert.Equal(t, 2, reps[0].ClusterSize)
	assert.Equal(t, []string{"Berlin Mitte"}, reps[0].ClusterMembers)

	assert.Equal(t, "m1", reps[1].ID)
	assert.Equal(t, 1, reps[1].ClusterSize)
	assert.Empty(t, reps[1].ClusterMembers)
}

func TestConsolidateTieBreaksOnID(t *testing.T) {
	cands := []*site.Candidate{
		cand("z", "Z", 0, 0, 0.5),
		cand("a", "A", 0.001, 0, 0.5),
	}

	reps := Consolidate(cands, 5_000)
	require.Len(t, reps, 1)
	assert.Equal(t, "a", reps[0].ID)
}

func TestConsolidateOutsideRadius(t *testing.T) {
	cands := []*site.Candidate{
		cand("a", "A", 0, 0, 0.5),
		cand("b", "B", 0.1, 0, 0.6), // ~11 km away
	}

	reps := Consolidate(cands, 5_000)
	assert.Len(t, reps, 2)
}
