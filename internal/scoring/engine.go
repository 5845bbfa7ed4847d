// Package scoring computes normalized multi-factor scores and data-quality
// profiles for site candidates.
package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/site"
)

// Weights holds the relative importance of each scoring factor. All weights
// must be positive; the defaults sum to 1.0 but that is not enforced.
type Weights struct {
	Population  float64 `yaml:"population" mapstructure:"population"`
	Gap         float64 `yaml:"gap" mapstructure:"gap"`
	Anchor      float64 `yaml:"anchor" mapstructure:"anchor"`
	Performance float64 `yaml:"performance" mapstructure:"performance"`
	Saturation  float64 `yaml:"saturation" mapstructure:"saturation"`
}

// DefaultWeights returns the hand-tuned default weight distribution.
func DefaultWeights() Weights {
	return Weights{
		Population:  0.30,
		Gap:         0.25,
		Anchor:      0.15,
		Performance: 0.20,
		Saturation:  0.10,
	}
}

// Validate rejects non-positive weights. A bad weight corrupts every
// downstream score, so this fails before any candidate is processed.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"population", w.Population},
		{"gap", w.Gap},
		{"anchor", w.Anchor},
		{"performance", w.Performance},
		{"saturation", w.Saturation},
	} {
		if f.v <= 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return eris.Errorf("scoring: weight %q must be a positive real, got %v", f.name, f.v)
		}
	}
	return nil
}

// Scoring curve constants.
const (
	// Population score saturates near 1,000,000 inhabitants.
	populationLogDivisor = 3.0

	// Gap sigmoid: centered at 10 km from existing stores, 3 km scale.
	gapSigmoidCenterM = 10_000.0
	gapSigmoidScaleM  = 3_000.0

	// Anchor score saturates at 20 deduplicated anchors.
	anchorSaturationCount = 20.0

	// Performance normalizes mean turnover against 1M.
	performanceTurnoverNorm = 1_000_000.0
	neutralPerformance      = 0.5

	// Saturation penalty maxes out at 10 stores within 10 km.
	saturationStoreNorm = 10.0

	// Anchor counts are always derived, never authoritative.
	anchorWeightCap = 0.8

	// Share of capped weight mass redistributed to the gap factor; the rest
	// is reported as uncertainty.
	cappedWeightToGapShare = 0.8
)

// Config configures the scoring engine.
type Config struct {
	Weights Weights

	// SparseDataCapFactor multiplies the weight of a factor whose input is
	// estimated or under-sampled.
	SparseDataCapFactor float64

	MaxAnchorsPerSite  int
	DiminishingReturns bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		SparseDataCapFactor: 0.5,
		MaxAnchorsPerSite:   25,
		DiminishingReturns:  true,
	}
}

// Engine scores candidates against the existing store network. Stateless and
// safe for concurrent use across candidates.
type Engine struct {
	cfg Config
}

// NewEngine creates a scoring engine. Weights are validated up front.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.SparseDataCapFactor <= 0 || cfg.SparseDataCapFactor > 1 {
		return nil, eris.Errorf("scoring: sparse data cap factor must be in (0,1], got %v", cfg.SparseDataCapFactor)
	}
	return &Engine{cfg: cfg}, nil
}

// Score populates the candidate's proximity stats, anchor resolution,
// DataQuality profile, and Score. The candidate is mutated in place; the
// store list is read-only.
func (e *Engine) Score(c *site.Candidate, stores []site.ExistingStore) {
	// Proximity stats.
	c.NearestStoreDistances = geo.NearestStoreDistances(c.Lat, c.Lng, stores, 3)
	c.StoresWithin5KM, c.StoresWithin10KM, c.StoresWithin15KM = geo.RingCounts(c.Lat, c.Lng, stores)
	c.MeanNearbyTurnover, c.PerformanceSampleSize = geo.MeanTurnoverWithin(c.Lat, c.Lng, 10_000, stores)

	// Anchor dedupe.
	anchors := ResolveAnchors(c.RawAnchors, e.cfg.MaxAnchorsPerSite, e.cfg.DiminishingReturns)
	c.AnchorCount = anchors.Total
	c.AnchorsByType = anchors.Counts

	c.Quality = assessQuality(c)

	s := site.Score{
		Population:        populationScore(c.Population),
		Gap:               gapScore(c.NearestStoreDistances),
		Anchor:            clamp01(float64(anchors.Total) / anchorSaturationCount),
		Performance:       performanceScore(c.MeanNearbyTurnover, c.PerformanceSampleSize),
		SaturationPenalty: clamp01(float64(c.StoresWithin10KM) / saturationStoreNorm),
	}

	// Weight capping: reduce weights backed by estimated or thin data, then
	// move 80% of the removed mass onto the gap factor (the most trustworthy
	// signal) and report the remainder as uncertainty.
	w := e.cfg.Weights
	var removed float64
	if c.Quality.PopulationEstimated {
		removed += w.Population * (1 - e.cfg.SparseDataCapFactor)
		w.Population *= e.cfg.SparseDataCapFactor
	}
	if c.Quality.PerformanceSampleInsufficient {
		removed += w.Performance * (1 - e.cfg.SparseDataCapFactor)
		w.Performance *= e.cfg.SparseDataCapFactor
	}
	removed += w.Anchor * (1 - anchorWeightCap)
	w.Anchor *= anchorWeightCap

	w.Gap += removed * cappedWeightToGapShare
	s.UncertaintyWeight = removed * (1 - cappedWeightToGapShare)

	s.Total = w.Population*s.Population +
		w.Gap*s.Gap +
		w.Anchor*s.Anchor +
		w.Performance*s.Performance -
		w.Saturation*s.SaturationPenalty

	s.Confidence = confidence(c, c.Quality)
	c.Score = s
}

// populationScore maps population onto [0,1] with a log curve that saturates
// near 1,000,000.
func populationScore(population int) float64 {
	if population < 1 {
		return 0
	}
	return clamp01(math.Log10(float64(population)/1000) / populationLogDivisor)
}

// gapScore is a sigmoid of the mean distance to the three nearest stores,
// monotonically increasing with distance. With no existing stores at all the
// opportunity is maximal.
func gapScore(nearest []float64) float64 {
	if len(nearest) == 0 {
		return 1
	}
	var sum float64
	for _, d := range nearest {
		sum += d
	}
	avg := sum / float64(len(nearest))
	return 1 / (1 + math.Exp(-(avg-gapSigmoidCenterM)/gapSigmoidScaleM))
}

// performanceScore normalizes the mean turnover of nearby stores. A candidate
// with no nearby stores is neutral, not penalized.
func performanceScore(meanTurnover float64, sample int) float64 {
	if sample == 0 {
		return neutralPerformance
	}
	return clamp01(meanTurnover / performanceTurnoverNorm)
}

// confidence combines fixed bonuses with the completeness score.
func confidence(c *site.Candidate, q site.DataQuality) float64 {
	conf := 0.5
	if q.PopulationEstimated {
		conf += 0.1
	} else {
		conf += 0.2
	}
	if !q.PerformanceSampleInsufficient {
		conf += 0.2
	}
	if c.SettlementType == site.SettlementCity {
		conf += 0.1
	}
	return clamp01(conf * q.CompletenessScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
