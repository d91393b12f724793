// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all harvester knobs loaded via Viper. Start links come
// from the CLI and are merged in before validation.
type Config struct {
	Links    []string       `mapstructure:"links"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Loader   LoaderConfig   `mapstructure:"loader"`
	Download DownloadConfig `mapstructure:"download"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HarvestConfig sets the run goal and output locations.
type HarvestConfig struct {
	Count     int    `mapstructure:"count"`
	MinWidth  int    `mapstructure:"min_width"`
	MinHeight int    `mapstructure:"min_height"`
	OutputDir string `mapstructure:"output_dir"`
	PrevDir   string `mapstructure:"prev_dir"`
}

// CrawlerConfig governs the browser navigation workers.
type CrawlerConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	OpTimeoutSeconds  int     `mapstructure:"op_timeout_seconds"`
	ErrorPauseSeconds int     `mapstructure:"error_pause_seconds"`
	NavQPS            float64 `mapstructure:"nav_qps"`
}

// LoaderConfig governs the download worker fan-out and batching.
type LoaderConfig struct {
	ConsumersPerSource int `mapstructure:"consumers_per_source"`
	ChunkSize          int `mapstructure:"chunk_size"`
	PollIntervalMs     int `mapstructure:"poll_interval_ms"`
}

// DownloadConfig configures the per-item fetch pipeline.
type DownloadConfig struct {
	Workers        int    `mapstructure:"workers"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MinWaitMs      int    `mapstructure:"min_wait_ms"`
	MaxWaitMs      int    `mapstructure:"max_wait_ms"`
	Referer        string `mapstructure:"referer"`
}

// StorageConfig controls image persistence.
type StorageConfig struct {
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Validation is deferred until
// CLI-provided links are merged in.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.count", 0)
	v.SetDefault("harvest.output_dir", "gallery-images")
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; rv:91.0) Gecko/20100101 Firefox/91.0")
	v.SetDefault("crawler.op_timeout_seconds", 20)
	v.SetDefault("crawler.error_pause_seconds", 2)
	v.SetDefault("crawler.nav_qps", 4)
	v.SetDefault("loader.consumers_per_source", 2)
	v.SetDefault("loader.chunk_size", 1)
	v.SetDefault("loader.poll_interval_ms", 100)
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.timeout_seconds", 15)
	v.SetDefault("download.min_wait_ms", 100)
	v.SetDefault("download.max_wait_ms", 500)
	v.SetDefault("storage.jpeg_quality", 92)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Links) == 0 {
		return fmt.Errorf("at least one start link is required")
	}
	if strings.TrimSpace(c.Harvest.OutputDir) == "" {
		return fmt.Errorf("harvest.output_dir must be set")
	}
	if c.Harvest.Count < 0 {
		return fmt.Errorf("harvest.count must be >= 0")
	}
	if c.Loader.ConsumersPerSource <= 0 {
		return fmt.Errorf("loader.consumers_per_source must be > 0")
	}
	if c.Download.Workers <= 0 {
		return fmt.Errorf("download.workers must be > 0")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download.timeout_seconds must be > 0")
	}
	if c.Download.MaxWaitMs < c.Download.MinWaitMs {
		return fmt.Errorf("download.max_wait_ms must be >= download.min_wait_ms")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// OpTimeout converts the navigation timeout to a duration.
func (c CrawlerConfig) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutSeconds) * time.Second
}

// ErrorPause converts the navigation backoff to a duration.
func (c CrawlerConfig) ErrorPause() time.Duration {
	return time.Duration(c.ErrorPauseSeconds) * time.Second
}

// PollInterval converts the loader poll period to a duration.
func (c LoaderConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Timeout converts the fetch timeout to a duration.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MinWait converts the lower jitter bound to a duration.
func (c DownloadConfig) MinWait() time.Duration {
	return time.Duration(c.MinWaitMs) * time.Millisecond
}

// MaxWait converts the upper jitter bound to a duration.
func (c DownloadConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}
