package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/allocate"
	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/ingest"
	"github.com/sells-group/siteselect/internal/pipeline"
	"github.com/sells-group/siteselect/internal/scoring"
	"github.com/sells-group/siteselect/internal/site"
	"github.com/sells-group/siteselect/pkg/enrich"
)

var (
	runCandidates string
	runGeoJSON    string
	runStores     string
	runStoresShp  string
	runScenario   string
	runTarget     int
	runSeed       int64
	runEnrich     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full site selection over a candidate file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runScenario != "" {
			if err := config.ApplyScenario(&cfg.Selection, runScenario); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("seed") {
			cfg.Selection.SetSeed(runSeed)
		}
		if runTarget > 0 {
			cfg.Selection.TargetCount = runTarget
		}
		if err := cfg.Selection.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Ingest candidates and the existing store network.
		now := time.Now().UTC()
		var pools *ingest.Pools
		switch {
		case runCandidates != "":
			pools, err = ingest.ReadCandidates(runCandidates, cfg.Selection.PopMin, now)
		case runGeoJSON != "":
			pools, err = ingest.ReadCandidatesGeoJSON(runGeoJSON, cfg.Selection.PopMin, now)
		default:
			return eris.New("run: one of --candidates or --candidates-geojson is required")
		}
		if err != nil {
			return err
		}

		var stores []site.ExistingStore
		switch {
		case runStores != "":
			stores, err = ingest.ReadStores(runStores)
		case runStoresShp != "":
			stores, err = ingest.ReadStoresShapefile(runStoresShp)
		}
		if err != nil {
			return err
		}

		result, err := pipeline.Run(ctx, pools.Settlement, pools.Grid, stores, buildPipelineConfig(cfg.Selection), pipeline.ZapMetrics{})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if err := st.SaveRun(ctx, result, cfg.Selection.RandomSeed); err != nil {
			return eris.Wrap(err, "save run")
		}

		zap.L().Info("selection complete",
			zap.String("run_id", result.RunID),
			zap.Int("selected", len(result.Selected)),
			zap.Int("suppressed", len(result.Suppressed)),
			zap.Int("capped", len(result.Capped)),
			zap.Int("target", result.TargetCount),
			zap.Int("available", result.Available),
		)

		var rationales map[string]string
		if runEnrich {
			if cfg.Enrich.Key == "" {
				return eris.New("run: --enrich requires enrich.key to be configured")
			}
			client := enrich.NewClient(cfg.Enrich.Key,
				enrich.WithModel(cfg.Enrich.Model),
				enrich.WithRateLimit(cfg.Enrich.RateLimit),
			)
			rationales = enrich.Selection(ctx, client, result.Selected, cfg.Enrich.MaxSites)
		}

		out := struct {
			*pipeline.Result
			Rationales map[string]string `json:"rationales,omitempty"`
		}{result, rationales}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// buildPipelineConfig maps the validated application config onto the
// pipeline's stage configuration.
func buildPipelineConfig(sel config.SelectionConfig) pipeline.Config {
	return pipeline.Config{
		Scoring: scoring.Config{
			Weights:             sel.Weights,
			SparseDataCapFactor: sel.SparseDataCapFactor,
			MaxAnchorsPerSite:   sel.MaxAnchorsPerSite,
			DiminishingReturns:  sel.DiminishingReturns,
		},
		ClusterRadiusMeters: sel.ClusteringDistanceMeters,
		TargetCount:         sel.TargetCount,
		OversampleFactor:    sel.OversampleFactor,
		MixSettlement:       sel.MixRatio.Settlement,
		MixExplore:          sel.MixRatio.H3Explore,
		DiversityWeights:    sel.DiversityWeights,
		DriveTimeMinutes:    sel.DriveTimeMinutes,
		DriveSpeedKmh:       sel.DriveSpeedKmh,
		MinSpacingMeters:    sel.MinSpacingMeters,
		Allocation: allocate.Config{
			BonusSlotsPerRegion: sel.RegionPerfBonusSlots,
			MaxPerRegionPct:     sel.MaxPerRegionPercentage,
			ManualCaps:          sel.ManualRegionCaps,
		},
		Seed:        sel.RandomSeed,
		Parallelism: sel.Parallelism,
	}
}

func init() {
	runCmd.Flags().StringVar(&runCandidates, "candidates", "", "candidate JSON file")
	runCmd.Flags().StringVar(&runGeoJSON, "candidates-geojson", "", "candidate GeoJSON FeatureCollection file")
	runCmd.Flags().StringVar(&runStores, "stores", "", "existing store JSON file")
	runCmd.Flags().StringVar(&runStoresShp, "stores-shp", "", "existing store point shapefile")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "scenario YAML overlay (weights, caps, target)")
	runCmd.Flags().IntVar(&runTarget, "target", 0, "override target selection size")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "sampling seed (overrides config)")
	runCmd.Flags().BoolVar(&runEnrich, "enrich", false, "generate siting rationales for the selection")
	rootCmd.AddCommand(runCmd)
}
