// Package pipeline runs the site-selection stages in order: scoring,
// per-source consolidation, weighted sampling, type diversification, source
// merge, drive-time suppression, and regional fair allocation.
package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siteselect/internal/allocate"
	"github.com/sells-group/siteselect/internal/cluster"
	"github.com/sells-group/siteselect/internal/sample"
	"github.com/sells-group/siteselect/internal/scoring"
	"github.com/sells-group/siteselect/internal/site"
	"github.com/sells-group/siteselect/internal/suppress"
)

// Config holds every pipeline tunable. Values come pre-validated from the
// application config.
type Config struct {
	Scoring scoring.Config

	ClusterRadiusMeters float64

	// TargetCount is the final selection size; OversampleFactor controls how
	// many candidates survive sampling into the suppression stage.
	TargetCount      int
	OversampleFactor float64

	// Mix ratio between the settlement-derived and grid-derived pools.
	MixSettlement float64
	MixExplore    float64

	DiversityWeights sample.DiversityWeights

	DriveTimeMinutes float64
	DriveSpeedKmh    float64

	// MinSpacingMeters enables the distance-only suppression pass when > 0.
	MinSpacingMeters float64

	Allocation allocate.Config

	// Seed drives the weighted sampler. Required; there is no fallback seed.
	Seed int64

	// Parallelism bounds concurrent candidate scoring. <= 1 scores serially.
	Parallelism int
}

// Result is the structured pipeline output.
type Result struct {
	RunID string `json:"run_id"`

	Selected   []*site.Candidate `json:"selected"`
	Suppressed []*site.Candidate `json:"suppressed"`
	Capped     []*site.Candidate `json:"capped"`

	Clusters []suppress.ClusterAudit `json:"clusters,omitempty"`

	RegionDistribution map[string]int                   `json:"region_distribution"`
	FairnessLedger     map[string]allocate.RegionLedger `json:"fairness_ledger"`

	// TargetCount and Available make an under-filled selection transparent:
	// Available is the number of candidates that survived into allocation.
	TargetCount int `json:"target_count"`
	Available   int `json:"available"`
}

// Run executes the pipeline over the two ingestion pools. All stages are
// synchronous and pure functions of their inputs; identical inputs,
// configuration, and seed reproduce an identical Result ordering.
func Run(ctx context.Context, settlement, grid []*site.Candidate, stores []site.ExistingStore, cfg Config, sink MetricsSink) (*Result, error) {
	if sink == nil {
		sink = NopMetrics{}
	}
	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, err
	}
	if cfg.TargetCount <= 0 {
		return nil, eris.Errorf("pipeline: target count must be positive, got %d", cfg.TargetCount)
	}

	// Stage 1+2: score every candidate in both pools.
	all := make([]*site.Candidate, 0, len(settlement)+len(grid))
	all = append(all, settlement...)
	all = append(all, grid...)

	start := time.Now()
	if err := scoreAll(ctx, engine, all, stores, cfg.Parallelism); err != nil {
		return nil, err
	}
	sink.StageCompleted("scoring", len(all), len(all), time.Since(start))

	// Stage 3: consolidate within each generation source.
	start = time.Now()
	settlementReps := cluster.Consolidate(settlement, cfg.ClusterRadiusMeters)
	gridReps := cluster.Consolidate(grid, cfg.ClusterRadiusMeters)
	sink.StageCompleted("clustering", len(all), len(settlementReps)+len(gridReps), time.Since(start))

	// Stage 4+5: weighted down-sampling and type diversification apply to
	// the settlement pool; the grid pool contributes its top scorers up to
	// its mix share.
	oversample := cfg.OversampleFactor
	if oversample < 1 {
		oversample = 1
	}
	poolTarget := int(math.Ceil(float64(cfg.TargetCount) * oversample))
	settlementTarget := int(math.Round(float64(poolTarget) * cfg.MixSettlement))
	exploreTarget := int(math.Round(float64(poolTarget) * cfg.MixExplore))

	start = time.Now()
	sampled := sample.Draw(settlementReps, settlementTarget, cfg.Seed)
	sink.StageCompleted("sampling", len(settlementReps), len(sampled), time.Since(start))

	start = time.Now()
	diversified := sample.Diversify(sampled, settlementTarget, cfg.DiversityWeights)
	sink.StageCompleted("diversification", len(sampled), len(diversified), time.Since(start))

	merged := append([]*site.Candidate{}, diversified...)
	merged = append(merged, topScored(gridReps, exploreTarget)...)

	// Stage 6: drive-time non-maximum suppression over the merged pool.
	start = time.Now()
	sup := suppress.ByDriveTime(merged, cfg.DriveSpeedKmh, cfg.DriveTimeMinutes)
	surviving := sup.Selected
	suppressed := sup.Suppressed
	if cfg.MinSpacingMeters > 0 {
		kept, dropped := suppress.MinSpacing(surviving, cfg.MinSpacingMeters)
		surviving = kept
		suppressed = append(suppressed, dropped...)
	}
	sink.StageCompleted("suppression", len(merged), len(surviving), time.Since(start))

	// Stage 7: regional fairness allocation.
	allocCfg := cfg.Allocation
	allocCfg.Target = cfg.TargetCount
	start = time.Now()
	alloc := allocate.Allocate(surviving, stores, allocCfg)
	sink.StageCompleted("allocation", len(surviving), len(alloc.Selected), time.Since(start))

	return &Result{
		RunID:              uuid.New().String(),
		Selected:           alloc.Selected,
		Suppressed:         suppressed,
		Capped:             alloc.Capped,
		Clusters:           sup.Clusters,
		RegionDistribution: alloc.Distribution,
		FairnessLedger:     alloc.Ledger,
		TargetCount:        cfg.TargetCount,
		Available:          len(surviving),
	}, nil
}

// scoreAll scores candidates, fanning out across a bounded errgroup when
// parallelism allows. Candidates are mutated in place, so result ordering
// never depends on completion order.
func scoreAll(ctx context.Context, engine *scoring.Engine, cands []*site.Candidate, stores []site.ExistingStore, parallelism int) error {
	if parallelism <= 1 {
		for _, c := range cands {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "pipeline: scoring cancelled")
			}
			engine.Score(c, stores)
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			engine.Score(c, stores)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "pipeline: scoring cancelled")
	}
	return nil
}

// topScored returns the n highest-scored candidates without mutating the
// input order.
func topScored(cands []*site.Candidate, n int) []*site.Candidate {
	if n <= 0 || len(cands) == 0 {
		return nil
	}
	out := make([]*site.Candidate, len(cands))
	copy(out, cands)
	site.SortByScore(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
