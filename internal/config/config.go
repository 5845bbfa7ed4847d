// Package config loads application configuration from file and environment
// and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/siteselect/internal/sample"
	"github.com/sells-group/siteselect/internal/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// EnrichConfig configures optional rationale generation for selected sites.
type EnrichConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxSites  int     `yaml:"max_sites" mapstructure:"max_sites"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// ServerConfig configures the results API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MixRatio splits the sampled pool between generation sources.
type MixRatio struct {
	Settlement float64 `yaml:"settlement" mapstructure:"settlement"`
	H3Explore  float64 `yaml:"h3_explore" mapstructure:"h3_explore"`
}

// SelectionConfig holds every pipeline tunable. The defaults are the
// hand-tuned values the selection was calibrated with; none of them is
// asserted optimal.
type SelectionConfig struct {
	PopMin                   int                     `yaml:"pop_min" mapstructure:"pop_min"`
	TargetCount              int                     `yaml:"target_count" mapstructure:"target_count"`
	OversampleFactor         float64                 `yaml:"oversample_factor" mapstructure:"oversample_factor"`
	Weights                  scoring.Weights         `yaml:"weights" mapstructure:"weights"`
	MixRatio                 MixRatio                `yaml:"mix_ratio" mapstructure:"mix_ratio"`
	ClusteringDistanceMeters float64                 `yaml:"clustering_distance_meters" mapstructure:"clustering_distance_meters"`
	DiversityWeights         sample.DiversityWeights `yaml:"diversity_weights" mapstructure:"diversity_weights"`
	DriveTimeMinutes         float64                 `yaml:"drive_time_minutes" mapstructure:"drive_time_minutes"`
	DriveSpeedKmh            float64                 `yaml:"drive_speed_kmh" mapstructure:"drive_speed_kmh"`
	MinSpacingMeters         float64                 `yaml:"min_spacing_meters" mapstructure:"min_spacing_meters"`
	MaxAnchorsPerSite        int                     `yaml:"max_anchors_per_site" mapstructure:"max_anchors_per_site"`
	DiminishingReturns       bool                    `yaml:"diminishing_returns_enabled" mapstructure:"diminishing_returns_enabled"`
	SparseDataCapFactor      float64                 `yaml:"sparse_data_cap_factor" mapstructure:"sparse_data_cap_factor"`
	MaxPerRegionPercentage   float64                 `yaml:"max_per_region_percentage" mapstructure:"max_per_region_percentage"`
	RegionPerfBonusSlots     int                     `yaml:"region_perf_bonus_slots" mapstructure:"region_perf_bonus_slots"`
	ManualRegionCaps         map[string]int          `yaml:"manual_region_caps" mapstructure:"manual_region_caps"`
	RandomSeed               int64                   `yaml:"random_seed" mapstructure:"random_seed"`
	Parallelism              int                     `yaml:"parallelism" mapstructure:"parallelism"`

	// seedSet records whether random_seed was explicitly configured. The
	// sampler must never fall back to an implicit seed.
	seedSet bool
}

// SeedConfigured reports whether a random seed was explicitly supplied.
func (s *SelectionConfig) SeedConfigured() bool { return s.seedSet }

// SetSeed sets the sampling seed explicitly (e.g. from a CLI flag).
func (s *SelectionConfig) SetSeed(seed int64) {
	s.RandomSeed = seed
	s.seedSet = true
}

// Load reads configuration from config.yaml and SITESELECT_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITESELECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "siteselect.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("enrich.model", "claude-haiku-4-5-20251001")
	v.SetDefault("enrich.max_sites", 10)
	v.SetDefault("enrich.rate_limit", 2.0)

	v.SetDefault("selection.pop_min", 0)
	v.SetDefault("selection.target_count", 50)
	v.SetDefault("selection.oversample_factor", 3.0)
	v.SetDefault("selection.weights.population", 0.30)
	v.SetDefault("selection.weights.gap", 0.25)
	v.SetDefault("selection.weights.anchor", 0.15)
	v.SetDefault("selection.weights.performance", 0.20)
	v.SetDefault("selection.weights.saturation", 0.10)
	v.SetDefault("selection.mix_ratio.settlement", 0.7)
	v.SetDefault("selection.mix_ratio.h3_explore", 0.3)
	v.SetDefault("selection.clustering_distance_meters", 5000)
	v.SetDefault("selection.diversity_weights.cities", 0.4)
	v.SetDefault("selection.diversity_weights.towns", 0.4)
	v.SetDefault("selection.diversity_weights.villages", 0.2)
	v.SetDefault("selection.drive_time_minutes", 10)
	v.SetDefault("selection.drive_speed_kmh", 50)
	v.SetDefault("selection.min_spacing_meters", 0)
	v.SetDefault("selection.max_anchors_per_site", 25)
	v.SetDefault("selection.diminishing_returns_enabled", true)
	v.SetDefault("selection.sparse_data_cap_factor", 0.5)
	v.SetDefault("selection.max_per_region_percentage", 0.40)
	v.SetDefault("selection.region_perf_bonus_slots", 2)
	v.SetDefault("selection.parallelism", 1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Selection.seedSet = v.IsSet("selection.random_seed")

	return &cfg, nil
}

// Validate rejects configuration that would corrupt every downstream score.
// This is the only input category that fails fast; bad data degrades
// gracefully instead.
func (s *SelectionConfig) Validate() error {
	if err := s.Weights.Validate(); err != nil {
		return err
	}
	if !s.seedSet {
		return eris.New("config: selection.random_seed is required; sampling must not fall back to an implicit seed")
	}
	if s.TargetCount <= 0 {
		return eris.Errorf("config: target_count must be positive, got %d", s.TargetCount)
	}
	if s.SparseDataCapFactor <= 0 || s.SparseDataCapFactor > 1 {
		return eris.Errorf("config: sparse_data_cap_factor must be in (0,1], got %v", s.SparseDataCapFactor)
	}
	if s.MaxPerRegionPercentage <= 0 || s.MaxPerRegionPercentage > 1 {
		return eris.Errorf("config: max_per_region_percentage must be in (0,1], got %v", s.MaxPerRegionPercentage)
	}
	if s.MixRatio.Settlement < 0 || s.MixRatio.H3Explore < 0 || s.MixRatio.Settlement+s.MixRatio.H3Explore <= 0 {
		return eris.New("config: mix_ratio shares must be non-negative and sum above zero")
	}
	dw := s.DiversityWeights
	if dw.Cities < 0 || dw.Towns < 0 || dw.Villages < 0 || dw.Cities+dw.Towns+dw.Villages <= 0 {
		return eris.New("config: diversity_weights must be non-negative and sum above zero")
	}
	for region, cap := range s.ManualRegionCaps {
		if cap < 0 {
			return eris.Errorf("config: manual cap for region %s must be non-negative, got %d", region, cap)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
