package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main recall configuration
type Config struct {
	// Storage
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Relevance / discovery
	Relevance RelevanceConfig `json:"relevance" mapstructure:"relevance"`

	// Automation
	Automation AutomationConfig `json:"automation" mapstructure:"automation"`

	// Deduplication
	Dedup DedupConfig `json:"dedup" mapstructure:"dedup"`

	// Watcher
	Watcher WatcherConfig `json:"watcher" mapstructure:"watcher"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// StorageConfig holds document store settings
type StorageConfig struct {
	BaseDir string `json:"base_dir" mapstructure:"base_dir"`
}

// RelevanceConfig holds discovery and ranking settings
type RelevanceConfig struct {
	Threshold    float64 `json:"threshold" mapstructure:"threshold"`
	Limit        int     `json:"limit" mapstructure:"limit"`
	PatternsFile string  `json:"patterns_file" mapstructure:"patterns_file"` // empty uses the embedded tables
}

// AutomationConfig holds automation engine settings
type AutomationConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Interval  time.Duration `json:"interval" mapstructure:"interval"`
	BatchSize int           `json:"batch_size" mapstructure:"batch_size"`
}

// DedupConfig holds deduplication settings
type DedupConfig struct {
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
}

// WatcherConfig holds filesystem watcher settings
type WatcherConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			BaseDir: "",
		},
		Relevance: RelevanceConfig{
			Threshold: 0.3,
			Limit:     5,
		},
		Automation: AutomationConfig{
			Enabled:   true,
			Interval:  60 * time.Second,
			BatchSize: 10,
		},
		Dedup: DedupConfig{
			Threshold: 0.85,
		},
		Watcher: WatcherConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Relevance.Threshold < 0 || c.Relevance.Threshold > 1 {
		return fmt.Errorf("relevance threshold must be in [0,1], got %v", c.Relevance.Threshold)
	}
	if c.Relevance.Limit < 0 {
		return fmt.Errorf("relevance limit must not be negative, got %d", c.Relevance.Limit)
	}
	if c.Dedup.Threshold < 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup threshold must be in [0,1], got %v", c.Dedup.Threshold)
	}
	if c.Automation.Interval < 0 {
		return fmt.Errorf("automation interval must not be negative, got %v", c.Automation.Interval)
	}
	if c.Automation.BatchSize < 0 {
		return fmt.Errorf("automation batch size must not be negative, got %d", c.Automation.BatchSize)
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr is required when metrics are enabled")
	}
	return nil
}
