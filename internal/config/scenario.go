package config

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Scenario is a YAML overlay that tweaks one planning run without touching
// the base configuration. Only set fields override; absent fields keep the
// configured values.
type Scenario struct {
	Name        string `yaml:"name"`
	TargetCount *int   `yaml:"target_count"`

	Weights struct {
		Population  *float64 `yaml:"population"`
		Gap         *float64 `yaml:"gap"`
		Anchor      *float64 `yaml:"anchor"`
		Performance *float64 `yaml:"performance"`
		Saturation  *float64 `yaml:"saturation"`
	} `yaml:"weights"`

	ManualRegionCaps       map[string]int `yaml:"manual_region_caps"`
	RegionPerfBonusSlots   *int           `yaml:"region_perf_bonus_slots"`
	MaxPerRegionPercentage *float64       `yaml:"max_per_region_percentage"`
	DriveTimeMinutes       *float64       `yaml:"drive_time_minutes"`
	MinSpacingMeters       *float64       `yaml:"min_spacing_meters"`
}

// ApplyScenario loads a scenario file and overlays it onto the selection
// config in place.
func ApplyScenario(sel *SelectionConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "config: read scenario %s", path)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return eris.Wrapf(err, "config: parse scenario %s", path)
	}

	if sc.TargetCount != nil {
		sel.TargetCount = *sc.TargetCount
	}
	if sc.Weights.Population != nil {
		sel.Weights.Population = *sc.Weights.Population
	}
	if sc.Weights.Gap != nil {
		sel.Weights.Gap = *sc.Weights.Gap
	}
	if sc.Weights.Anchor != nil {
		sel.Weights.Anchor = *sc.Weights.Anchor
	}
	if sc.Weights.Performance != nil {
		sel.Weights.Performance = *sc.Weights.Performance
	}
	if sc.Weights.Saturation != nil {
		sel.Weights.Saturation = *sc.Weights.Saturation
	}
	if len(sc.ManualRegionCaps) > 0 {
		if sel.ManualRegionCaps == nil {
			sel.ManualRegionCaps = make(map[string]int, len(sc.ManualRegionCaps))
		}
		for region, cap := range sc.ManualRegionCaps {
			sel.ManualRegionCaps[region] = cap
		}
	}
	if sc.RegionPerfBonusSlots != nil {
		sel.RegionPerfBonusSlots = *sc.RegionPerfBonusSlots
	}
	if sc.MaxPerRegionPercentage != nil {
		sel.MaxPerRegionPercentage = *sc.MaxPerRegionPercentage
	}
	if sc.DriveTimeMinutes != nil {
		sel.DriveTimeMinutes = *sc.DriveTimeMinutes
	}
	if sc.MinSpacingMeters != nil {
		sel.MinSpacingMeters = *sc.MinSpacingMeters
	}

	zap.L().Info("scenario applied", zap.String("name", sc.Name), zap.String("path", path))
	return nil
}
