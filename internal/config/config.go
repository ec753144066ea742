// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	ScrapeJob ScrapeJobConfig `yaml:"scrapejob" mapstructure:"scrapejob"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Seed      SeedConfig      `yaml:"seed" mapstructure:"seed"`
	Link      LinkConfig      `yaml:"link" mapstructure:"link"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CatalogConfig holds OpenDataSoft catalog API settings.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// RatePerSecond caps request rate against the catalog host.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ScrapeJobConfig holds the asynchronous scrape executor settings.
type ScrapeJobConfig struct {
	Token           string `yaml:"token" mapstructure:"token"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Country         string `yaml:"country" mapstructure:"country"`
	MaxItems        int    `yaml:"max_items" mapstructure:"max_items"`
	PollIntervalSec int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSec  int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// PollInterval returns the configured poll interval as a duration.
func (c ScrapeJobConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// PollTimeout returns the configured poll deadline as a duration.
func (c ScrapeJobConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSec) * time.Second
}

// FetchConfig configures archive downloads.
type FetchConfig struct {
	Retries     int `yaml:"retries" mapstructure:"retries"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SeedConfig configures the persistence coordinator.
type SeedConfig struct {
	FlushEvery int `yaml:"flush_every" mapstructure:"flush_every"`
}

// LinkConfig configures the proximity linking pass.
type LinkConfig struct {
	Threshold   float64 `yaml:"threshold" mapstructure:"threshold"`
	Parallelism int     `yaml:"parallelism" mapstructure:"parallelism"`
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
	v.SetEnvPrefix("GEOSEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geoseed.db")
	v.SetDefault("catalog.base_url", "https://public.opendatasoft.com/api/explore/v2.1")
	v.SetDefault("catalog.rate_per_second", 5)
	v.SetDefault("scrapejob.base_url", "https://api.apify.com/v2")
	v.SetDefault("scrapejob.country", "es")
	v.SetDefault("scrapejob.max_items", 1000)
	v.SetDefault("scrapejob.poll_interval_secs", 5)
	v.SetDefault("scrapejob.poll_timeout_secs", 600)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("seed.flush_every", 50)
	v.SetDefault("link.threshold", 0.005)
	v.SetDefault("link.parallelism", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
