// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cgrafmuller/triphappy-clustering/internal/cluster"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig `yaml:"store" mapstructure:"store"`
	Venues PassConfig  `yaml:"venues" mapstructure:"venues"`
	Refine PassConfig  `yaml:"refine" mapstructure:"refine"`
	Merge  MergeConfig `yaml:"merge" mapstructure:"merge"`
	Log    LogConfig   `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the cluster store backend.
type StoreConfig struct {
	Driver      string              `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string              `yaml:"database_url" mapstructure:"database_url"`
	Pool        *cluster.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PassConfig holds the tunables of one clustering pass. Epsilon is the
// neighborhood threshold in kilometers; MinPoints is the minimum neighbor
// count (exclusive of the point itself) needed to seed a group.
type PassConfig struct {
	Epsilon   float64 `yaml:"epsilon" mapstructure:"epsilon"`
	MinPoints int     `yaml:"min_points" mapstructure:"min_points"`
	Recursion bool    `yaml:"recursion" mapstructure:"recursion"`
}

// MergeConfig holds the merge pass tunables.
type MergeConfig struct {
	Epsilon   float64 `yaml:"epsilon" mapstructure:"epsilon"`
	MinPoints int     `yaml:"min_points" mapstructure:"min_points"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRIPHAPPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("venues.epsilon", cluster.DefaultVenueEpsilon)
	v.SetDefault("venues.min_points", cluster.DefaultVenueMinPoints)
	v.SetDefault("venues.recursion", true)
	v.SetDefault("refine.epsilon", cluster.DefaultRefineEpsilon)
	v.SetDefault("refine.min_points", cluster.DefaultRefineMinPoints)
	v.SetDefault("refine.recursion", true)
	v.SetDefault("merge.epsilon", cluster.DefaultMergeEpsilon)
	v.SetDefault("merge.min_points", cluster.DefaultMergeMinPoints)

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

	return &cfg, nil
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

// Validate checks that the configuration is usable before a run starts.
func (c *Config) Validate() error {
	var missing []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		// Empty DatabaseURL falls back to a local file.
	default:
		missing = append(missing, "store.driver must be postgres or sqlite")
	}

	for name, pass := range map[string]PassConfig{"venues": c.Venues, "refine": c.Refine} {
		if pass.Epsilon < 0 {
			missing = append(missing, name+".epsilon must be >= 0")
		}
		if pass.MinPoints < 0 {
			missing = append(missing, name+".min_points must be >= 0")
		}
	}
	if c.Merge.Epsilon < 0 {
		missing = append(missing, "merge.epsilon must be >= 0")
	}
	if c.Merge.MinPoints < 0 {
		missing = append(missing, "merge.min_points must be >= 0")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}
