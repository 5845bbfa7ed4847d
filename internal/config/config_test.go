package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Selection.TargetCount)
	assert.Equal(t, 3.0, cfg.Selection.OversampleFactor)
	w := cfg.Selection.Weights
	assert.InDelta(t, 1.0, w.Population+w.Gap+w.Anchor+w.Performance+w.Saturation, 1e-9)
	assert.Equal(t, 0.7, cfg.Selection.MixRatio.Settlement)
	assert.Equal(t, 25, cfg.Selection.MaxAnchorsPerSite)
	assert.True(t, cfg.Selection.DiminishingReturns)
	assert.False(t, cfg.Selection.SeedConfigured(), "no implicit seed default")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("selection:\n  target_count: 12\n  random_seed: 99\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Selection.TargetCount)
	assert.Equal(t, int64(99), cfg.Selection.RandomSeed)
	assert.True(t, cfg.Selection.SeedConfigured())
	assert.Equal(t, 3.0, cfg.Selection.OversampleFactor, "unset keys keep defaults")
}

func TestValidateRequiresSeed(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Selection.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "random_seed")

	cfg.Selection.SetSeed(42)
	assert.NoError(t, cfg.Selection.Validate())
}

func TestValidateRejectsBadRanges(t *testing.T) {
	t.Chdir(t.TempDir())

	base := func() *SelectionConfig {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.Selection.SetSeed(1)
		return &cfg.Selection
	}

	tests := []struct {
		name   string
		mutate func(s *SelectionConfig)
	}{
		{"negative weight", func(s *SelectionConfig) { s.Weights.Gap = -0.1 }},
		{"zero target", func(s *SelectionConfig) { s.TargetCount = 0 }},
		{"cap factor above one", func(s *SelectionConfig) { s.SparseDataCapFactor = 1.5 }},
		{"region pct zero", func(s *SelectionConfig) { s.MaxPerRegionPercentage = 0 }},
		{"mix all zero", func(s *SelectionConfig) { s.MixRatio.Settlement = 0; s.MixRatio.H3Explore = 0 }},
		{"negative manual cap", func(s *SelectionConfig) { s.ManualRegionCaps = map[string]int{"BY": -1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestApplyScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	content := []byte(`name: conservative
target_count: 20
weights:
  gap: 0.35
manual_region_caps:
  BY: 3
drive_time_minutes: 15
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sel := SelectionConfig{
		TargetCount:      50,
		DriveTimeMinutes: 10,
		DriveSpeedKmh:    50,
	}
	sel.Weights.Population = 0.30
	sel.Weights.Gap = 0.25

	require.NoError(t, ApplyScenario(&sel, path))

	assert.Equal(t, 20, sel.TargetCount)
	assert.Equal(t, 0.35, sel.Weights.Gap)
	assert.Equal(t, 0.30, sel.Weights.Population, "unset weight untouched")
	assert.Equal(t, 15.0, sel.DriveTimeMinutes)
	assert.Equal(t, 50.0, sel.DriveSpeedKmh, "fields outside the overlay untouched")
	assert.Equal(t, map[string]int{"BY": 3}, sel.ManualRegionCaps)
}

func TestApplyScenarioMissingFile(t *testing.T) {
	var sel SelectionConfig
	assert.Error(t, ApplyScenario(&sel, filepath.Join(t.TempDir(), "absent.yaml")))
}
