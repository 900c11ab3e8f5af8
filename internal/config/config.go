// Package config handles pipeline configuration loading and validation.
//
// # Configuration Sources
//
// Configuration is loaded from (in order of precedence):
//  1. Command-line flags
//  2. Environment variables (SIGNALPIPE_*)
//  3. Config file (YAML)
//  4. Defaults
//
// The admin UI that edits this file and the process that writes it are
// external collaborators outside this package's scope — this package only
// loads and validates the shapes they produce.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete pipeline configuration.
type Config struct {
	System    SystemConfig             `yaml:"system"`
	Monitor   MonitorConfig            `yaml:"monitor"`
	Adapters  map[string]AdapterConfig `yaml:"adapters"`
	CachePath string                   `yaml:"cache_path"`
	LogDir    string                   `yaml:"log_dir"`
}

// SystemConfig controls queue sizing and adapter-wide retry defaults.
type SystemConfig struct {
	QueueSize         int           `yaml:"queue_size"`
	BatchSize         int           `yaml:"batch_size"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
}

// MonitorConfig controls the tailer, the trading-hours gate and parser
// bounds.
type MonitorConfig struct {
	LogPath          string `yaml:"log_path"`
	TargetFilename   string `yaml:"target_filename"`
	AllowedWeekdays  []int  `yaml:"allowed_weekdays"` // 0=Monday .. 6=Sunday

	TradingStart string `yaml:"trading_start"` // "HH:MM"
	TradingEnd   string `yaml:"trading_end"`

	EnablePremarket bool   `yaml:"enable_premarket"`
	PremarketStart  string `yaml:"premarket_start"`

	EnablePostmarket bool   `yaml:"enable_postmarket"`
	PostmarketEnd    string `yaml:"postmarket_end"`

	MinQty int `yaml:"min_qty"`
	MaxQty int `yaml:"max_qty"`
}

// AdapterConfig describes one webhook provider adapter.
type AdapterConfig struct {
	BaseURL string        `yaml:"base_url"`
	Method  string        `yaml:"method"` // GET or POST
	Timeout time.Duration `yaml:"timeout"`

	RateLimit       int           `yaml:"rate_limit"`
	RateLimitPeriod time.Duration `yaml:"rate_limit_period"`
	RateLimitActive bool          `yaml:"rate_limiter_active"`

	OrderDelaySeconds *float64 `yaml:"order_delay_seconds"` // nil == disabled

	GroupingEnabled bool `yaml:"grouping_enabled"`
	GroupLimit      int  `yaml:"group_limit"`
	CounterSize     int  `yaml:"counter_size"`
}

// OrderDelay returns the configured per-order delay, normalizing a literal
// zero to "disabled" per spec.
func (a AdapterConfig) OrderDelay() (time.Duration, bool) {
	if a.OrderDelaySeconds == nil || *a.OrderDelaySeconds == 0 {
		return 0, false
	}
	return time.Duration(*a.OrderDelaySeconds * float64(time.Second)), true
}

// DefaultConfig returns a config with sensible defaults, mirroring the
// teacher's DefaultConfig shape.
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			QueueSize:         10_000,
			BatchSize:         100,
			RetryAttempts:     1,
			RetryDelay:        time.Second,
			ProcessingTimeout: 30 * time.Second,
		},
		Monitor: MonitorConfig{
			TargetFilename:  "GridLog.csv",
			AllowedWeekdays: []int{0, 1, 2, 3, 4},
			MinQty:          1,
			MaxQty:          10_000,
		},
		Adapters: make(map[string]AdapterConfig),
		LogDir:   "logs",
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and internally
// consistent. Any invalid configuration is a startup error — the source
// this was ported from sometimes raised and sometimes silently disabled a
// misconfigured rate limiter; this standardizes on "fail fast".
func (c *Config) Validate() error {
	if c.Monitor.LogPath == "" {
		return fmt.Errorf("monitor.log_path is required")
	}
	if c.Monitor.TargetFilename == "" {
		return fmt.Errorf("monitor.target_filename is required")
	}
	if c.Monitor.MinQty <= 0 || c.Monitor.MaxQty < c.Monitor.MinQty {
		return fmt.Errorf("monitor.min_qty/max_qty are invalid: min=%d max=%d", c.Monitor.MinQty, c.Monitor.MaxQty)
	}
	if c.System.QueueSize <= 0 {
		return fmt.Errorf("system.queue_size must be positive")
	}
	for name, a := range c.Adapters {
		if a.RateLimitActive {
			if a.RateLimit <= 0 || a.RateLimitPeriod <= 0 {
				return fmt.Errorf("adapter %s: rate_limit and rate_limit_period must be positive when the limiter is active", name)
			}
		}
		if a.GroupingEnabled && a.GroupLimit <= 0 {
			return fmt.Errorf("adapter %s: group_limit must be positive when grouping is enabled", name)
		}
		if a.BaseURL == "" {
			return fmt.Errorf("adapter %s: base_url is required", name)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides using the
// SIGNALPIPE_ prefix, mirroring the teacher's ICMPMON_ convention.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SIGNALPIPE_LOG_PATH"); v != "" {
		c.Monitor.LogPath = v
	}
	if v := os.Getenv("SIGNALPIPE_CACHE_PATH"); v != "" {
		c.CachePath = v
	}
}
