package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete bridge configuration.
type Config struct {
	Bridge    BridgeConfig               `json:"bridge" yaml:"bridge"`
	Retention RetentionConfig            `json:"retention" yaml:"retention"`
	Journal   JournalConfig              `json:"journal" yaml:"journal"`
	Log       LogConfig                  `json:"log" yaml:"log"`
	Overrides map[string]InstrumentLimit `json:"instruments,omitempty" yaml:"instruments,omitempty"`
}

// BridgeConfig covers the shared directory and the request timing knobs.
type BridgeConfig struct {
	Dir          string `json:"dir" yaml:"dir"`
	PollInterval string `json:"poll_interval" yaml:"poll_interval"` // e.g. "100ms"
	Timeout      string `json:"timeout" yaml:"timeout"`             // per-request deadline
	MaxRetries   int    `json:"max_retries" yaml:"max_retries"`
	RetryBackoff string `json:"retry_backoff" yaml:"retry_backoff"` // fixed interval between attempts
	Notify       bool   `json:"notify" yaml:"notify"`               // use directory-change notifications when available
}

// RetentionConfig controls the stale-file sweep.
type RetentionConfig struct {
	MaxAge        string `json:"max_age" yaml:"max_age"`
	SweepInterval string `json:"sweep_interval" yaml:"sweep_interval"`
	Archive       bool   `json:"archive" yaml:"archive"`
}

// JournalConfig selects where request/order records go.
type JournalConfig struct {
	Type         string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	RequestsFile string `json:"requests_file,omitempty" yaml:"requests_file,omitempty"`
	OrdersFile   string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	DBPath       string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// InstrumentLimit overrides broker constants for one symbol.
type InstrumentLimit struct {
	PipSize   float64 `json:"pip_size,omitempty" yaml:"pip_size,omitempty"`
	PipValue  float64 `json:"pip_value,omitempty" yaml:"pip_value,omitempty"`
	LotStep   float64 `json:"lot_step,omitempty" yaml:"lot_step,omitempty"`
	MinVolume float64 `json:"min_volume,omitempty" yaml:"min_volume,omitempty"`
	MaxVolume float64 `json:"max_volume,omitempty" yaml:"max_volume,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Durations returns the parsed timing values.
func (c *Config) Durations() (poll, timeout, backoff, maxAge, sweep time.Duration, err error) {
	if poll, err = time.ParseDuration(c.Bridge.PollInterval); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("bridge.poll_interval: %w", err)
	}
	if timeout, err = time.ParseDuration(c.Bridge.Timeout); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("bridge.timeout: %w", err)
	}
	if backoff, err = time.ParseDuration(c.Bridge.RetryBackoff); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("bridge.retry_backoff: %w", err)
	}
	if maxAge, err = time.ParseDuration(c.Retention.MaxAge); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("retention.max_age: %w", err)
	}
	if sweep, err = time.ParseDuration(c.Retention.SweepInterval); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("retention.sweep_interval: %w", err)
	}
	return poll, timeout, backoff, maxAge, sweep, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Bridge.Dir == "" {
		return fmt.Errorf("bridge.dir is required")
	}
	poll, timeout, backoff, maxAge, _, err := c.Durations()
	if err != nil {
		return err
	}
	if poll <= 0 {
		return fmt.Errorf("bridge.poll_interval must be positive")
	}
	if timeout <= poll {
		return fmt.Errorf("bridge.timeout must exceed bridge.poll_interval")
	}
	if c.Bridge.MaxRetries < 0 {
		return fmt.Errorf("bridge.max_retries must not be negative")
	}
	if backoff < 0 {
		return fmt.Errorf("bridge.retry_backoff must not be negative")
	}
	if maxAge <= timeout {
		return fmt.Errorf("retention.max_age must exceed bridge.timeout")
	}
	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.RequestsFile == "" || c.Journal.OrdersFile == "" {
			return fmt.Errorf("journal requests_file and orders_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	for sym, lim := range c.Overrides {
		if lim.LotStep < 0 || lim.MinVolume < 0 || lim.MaxVolume < 0 || lim.PipValue < 0 || lim.PipSize < 0 {
			return fmt.Errorf("instruments.%s: limits must not be negative", sym)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Dir:          os.ExpandEnv("$HOME/.wine64/drive_c/Program Files/MetaTrader 5/MQL5/Files/bridge"),
			PollInterval: "100ms",
			Timeout:      "10s",
			MaxRetries:   3,
			RetryBackoff: "500ms",
			Notify:       true,
		},
		Retention: RetentionConfig{
			MaxAge:        "5m",
			SweepInterval: "1m",
			Archive:       false,
		},
		Journal: JournalConfig{
			Type:   "none",
			DBPath: "./bridge.db",
		},
		Log: LogConfig{Level: "info"},
	}
}
