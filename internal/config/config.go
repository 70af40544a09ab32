// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Store     StoreConfig     `mapstructure:"store"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BrowserConfig governs the headless browser session pool.
type BrowserConfig struct {
	MaxSessions       int    `mapstructure:"max_sessions"`
	AcquireTimeoutSec int    `mapstructure:"acquire_timeout_seconds"`
	IdleTimeoutSec    int    `mapstructure:"idle_timeout_seconds"`
	SweepIntervalSec  int    `mapstructure:"sweep_interval_seconds"`
	NavTimeoutSec     int    `mapstructure:"nav_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
}

// DiscoveryConfig governs the channel discovery crawler.
type DiscoveryConfig struct {
	MaxContinuations int `mapstructure:"max_continuations"`
	FilterMultiplier int `mapstructure:"filter_multiplier"`
	BatchSize        int `mapstructure:"batch_size"`
	FilterRetries    int `mapstructure:"filter_retries"`
	DefaultLimit     int `mapstructure:"default_limit"`
	MaxLimit         int `mapstructure:"max_limit"`
}

// EnrichConfig governs the multi-source enrichment orchestrator.
type EnrichConfig struct {
	MaxRecentItems  int `mapstructure:"max_recent_items"`
	MaxContactPages int `mapstructure:"max_contact_pages"`
	NavTimeoutSec   int `mapstructure:"nav_timeout_seconds"`
	PaceMinMs       int `mapstructure:"pace_min_ms"`
	PaceMaxMs       int `mapstructure:"pace_max_ms"`
}

// QueueConfig controls the enrichment job queue worker.
type QueueConfig struct {
	DrainBatch      int  `mapstructure:"drain_batch"`
	InterJobPauseMs int  `mapstructure:"inter_job_pause_ms"`
	PollIntervalSec int  `mapstructure:"poll_interval_seconds"`
	WorkerEnabled   bool `mapstructure:"worker_enabled"`
}

// StoreConfig selects and configures the persistence provider.
type StoreConfig struct {
	Provider     string `mapstructure:"provider"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SnapshotConfig controls optional raw-page archival.
type SnapshotConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.max_sessions", 3)
	v.SetDefault("browser.acquire_timeout_seconds", 30)
	v.SetDefault("browser.idle_timeout_seconds", 300)
	v.SetDefault("browser.sweep_interval_seconds", 60)
	v.SetDefault("browser.nav_timeout_seconds", 20)
	v.SetDefault("browser.user_agent", "creatorscout/1.0")
	v.SetDefault("discovery.max_continuations", 20)
	v.SetDefault("discovery.filter_multiplier", 5)
	v.SetDefault("discovery.batch_size", 10)
	v.SetDefault("discovery.filter_retries", 2)
	v.SetDefault("discovery.default_limit", 20)
	v.SetDefault("discovery.max_limit", 200)
	v.SetDefault("enrich.max_recent_items", 3)
	v.SetDefault("enrich.max_contact_pages", 3)
	v.SetDefault("enrich.nav_timeout_seconds", 15)
	v.SetDefault("enrich.pace_min_ms", 1000)
	v.SetDefault("enrich.pace_max_ms", 3000)
	v.SetDefault("queue.drain_batch", 5)
	v.SetDefault("queue.inter_job_pause_ms", 1000)
	v.SetDefault("queue.poll_interval_seconds", 10)
	v.SetDefault("queue.worker_enabled", true)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.max_open_conns", 8)
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.provider", "memory")
	v.SetDefault("snapshot.prefix", "pages")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be > 0")
	}
	if c.Discovery.BatchSize <= 0 {
		return fmt.Errorf("discovery.batch_size must be > 0")
	}
	if c.Enrich.PaceMinMs > c.Enrich.PaceMaxMs {
		return fmt.Errorf("enrich.pace_min_ms must be <= enrich.pace_max_ms")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Store.Provider == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn must be set when store.provider is postgres")
	}
	if c.Snapshot.Enabled {
		switch c.Snapshot.Provider {
		case "gcs":
			if c.Snapshot.GCSBucket == "" {
				return fmt.Errorf("snapshot.gcs_bucket must be set for gcs snapshots")
			}
		case "local":
			if c.Snapshot.BaseDir == "" {
				return fmt.Errorf("snapshot.base_dir must be set for local snapshots")
			}
		case "memory":
		default:
			return fmt.Errorf("unknown snapshot provider: %s", c.Snapshot.Provider)
		}
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// NavTimeout converts the browser navigation budget into a duration.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// AcquireTimeout converts the pool acquisition ceiling into a duration.
func (c BrowserConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSec) * time.Second
}

// IdleTimeout converts the idle eviction threshold into a duration.
func (c BrowserConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// SweepInterval converts the eviction sweep cadence into a duration.
func (c BrowserConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// NavTimeout converts the per-surface navigation budget into a duration.
func (c EnrichConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// InterJobPause converts the drain pacing knob into a duration.
func (c QueueConfig) InterJobPause() time.Duration {
	return time.Duration(c.InterJobPauseMs) * time.Millisecond
}

// PollInterval converts the worker poll cadence into a duration.
func (c QueueConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}
