// Package site defines the candidate, store, and score model shared by all
// pipeline stages.
package site

import "sort"

// SourceKind tags which generation source produced a candidate. The tag is
// resolved once at ingestion; downstream stages never inspect raw records.
type SourceKind string

// Generation sources.
const (
	SourceSettlement SourceKind = "settlement"
	SourceGrid       SourceKind = "grid"
)

// SettlementType categorizes a candidate's settlement by size.
type SettlementType string

// Settlement categories.
const (
	SettlementCity    SettlementType = "city"
	SettlementTown    SettlementType = "town"
	SettlementVillage SettlementType = "village"
)

// Population thresholds for settlement classification.
const (
	cityPopulationThreshold = 100_000
	townPopulationThreshold = 20_000
)

// ClassifySettlement returns the settlement category for a population count.
// Rules:
//   - city: population >= 100,000
//   - town: population >= 20,000
//   - village: everything below
func ClassifySettlement(population int) SettlementType {
	switch {
	case population >= cityPopulationThreshold:
		return SettlementCity
	case population >= townPopulationThreshold:
		return SettlementTown
	default:
		return SettlementVillage
	}
}

// AnchorType identifies a category of foot-traffic anchor POI.
type AnchorType string

// Anchor categories.
const (
	AnchorMall       AnchorType = "mall"
	AnchorGrocer     AnchorType = "grocer"
	AnchorStation    AnchorType = "station"
	AnchorRetail     AnchorType = "retail"
	AnchorRestaurant AnchorType = "restaurant"
)

// AnchorTypes lists all anchor categories in stable order.
var AnchorTypes = []AnchorType{AnchorMall, AnchorGrocer, AnchorStation, AnchorRetail, AnchorRestaurant}

// ExistingStore is a currently operating outlet. Read-only input: the
// pipeline computes distances and performance against it but never mutates it.
type ExistingStore struct {
	ID         string   `json:"id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	RegionCode string   `json:"region_code"`
	Turnover   *float64 `json:"turnover,omitempty"`
}

// Score holds the multi-factor score for a candidate. All sub-scores are in
// [0,1]; Total is the capped-weight linear combination minus the saturation
// penalty.
type Score struct {
	Population        float64 `json:"population"`
	Gap               float64 `json:"gap"`
	Anchor            float64 `json:"anchor"`
	Performance       float64 `json:"performance"`
	SaturationPenalty float64 `json:"saturation_penalty"`
	Total             float64 `json:"total"`
	Confidence        float64 `json:"confidence"`

	// UncertaintyWeight is the weight mass removed by data-quality capping
	// that was not redistributed to the gap factor. Diagnostic only.
	UncertaintyWeight float64 `json:"uncertainty_weight"`
}

// DataQuality records which scoring inputs were estimated rather than
// directly sourced, plus a weighted completeness score.
type DataQuality struct {
	PopulationEstimated           bool    `json:"population_estimated"`
	PerformanceSampleInsufficient bool    `json:"performance_sample_insufficient"`
	AnchorsEstimated              bool    `json:"anchors_estimated"`
	DataStale                     bool    `json:"data_stale"`
	IncomeProxyPresent            bool    `json:"income_proxy_present"`
	CompletenessScore             float64 `json:"completeness_score"`
}

// Candidate is a proposed new site location. Created once per raw proposal;
// pipeline stages attach derived fields, and nothing mutates a candidate
// after it enters the suppression stage.
type Candidate struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Lat            float64        `json:"lat"`
	Lng            float64        `json:"lng"`
	Population     int            `json:"population"`
	SettlementType SettlementType `json:"settlement_type"`
	RegionCode     string         `json:"region_code"`
	Source         SourceKind     `json:"source"`

	// Raw per-type anchor counts as supplied by the generation source.
	RawAnchors map[AnchorType]int `json:"raw_anchors,omitempty"`

	// Quality input flags, set at ingestion.
	PopulationEstimated bool `json:"population_estimated"`
	AnchorsEstimated    bool `json:"anchors_estimated"`
	DataStale           bool `json:"data_stale"`
	IncomeProxyPresent  bool `json:"income_proxy_present"`

	// Derived proximity stats, attached by the scoring stage.
	NearestStoreDistances []float64 `json:"nearest_store_distances,omitempty"` // meters, up to 3
	StoresWithin5KM       int       `json:"stores_within_5km"`
	StoresWithin10KM      int       `json:"stores_within_10km"`
	StoresWithin15KM      int       `json:"stores_within_15km"`
	MeanNearbyTurnover    float64   `json:"mean_nearby_turnover"`
	PerformanceSampleSize int       `json:"performance_sample_size"`

	// Deduplicated anchor stats, attached by the scoring stage.
	AnchorCount   int                `json:"anchor_count"`
	AnchorsByType map[AnchorType]int `json:"anchors_by_type,omitempty"`

	Score   Score       `json:"score"`
	Quality DataQuality `json:"quality"`

	// Cluster annotation, attached by the clustering stage to representatives.
	ClusterSize    int      `json:"cluster_size,omitempty"`
	ClusterMembers []string `json:"cluster_members,omitempty"`

	// Sampling weight, attached by the sampling stage.
	SamplingWeight float64 `json:"sampling_weight,omitempty"`
}

// Coordinates returns the candidate position as (lat, lng).
func (c *Candidate) Coordinates() (float64, float64) { return c.Lat, c.Lng }

// ScoreTotal returns the weighted total score.
func (c *Candidate) ScoreTotal() float64 { return c.Score.Total }

// Region returns the candidate's region code.
func (c *Candidate) Region() string { return c.RegionCode }

// Less orders candidates by total score descending, candidate ID ascending on
// ties. Every sort in the pipeline uses this key so output ordering is
// reproducible.
func Less(a, b *Candidate) bool {
	if a.Score.Total != b.Score.Total {
		return a.Score.Total > b.Score.Total
	}
	return a.ID < b.ID
}

// SortByScore sorts candidates in place by score descending, ID ascending.
func SortByScore(cands []*Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return Less(cands[i], cands[j]) })
}
