package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

type (
	Config struct {
		Server  ServerConfig  `yaml:"server" json:"server"`
		Logging LoggingConfig `yaml:"logging" json:"logging"`
		Runner  RunnerConfig  `yaml:"runner" json:"runner"`
	}

	ServerConfig struct {
		Bind           string `yaml:"bind" json:"bind"`
		RequestTimeout int    `yaml:"request_timeout" json:"request_timeout"` // seconds
		Workspace      string `yaml:"workspace" json:"workspace"`
		APIKey         string `yaml:"api_key" json:"api_key"`
		MetricsBind    string `yaml:"metrics_bind" json:"metrics_bind"`
		MetricsPath    string `yaml:"metrics_path" json:"metrics_path"`
		MaxConcurrent  int    `yaml:"max_concurrent" json:"max_concurrent"`
	}

	LoggingConfig struct {
		Level      string `yaml:"level" json:"level"`   // silly/trace, debug, verbose, info, warn, error
		Format     string `yaml:"format" json:"format"` // json, text
		Output     string `yaml:"output" json:"output"` // stdout, stderr, file, both
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"` // days
	}

	RunnerConfig struct {
		Directory   string `yaml:"directory" json:"directory"`
		TimeoutMS   int    `yaml:"timeout_ms" json:"timeout_ms"`
		Shell       string `yaml:"shell" json:"shell"`
		HideWindow  *bool  `yaml:"hide_window" json:"hide_window"`
		WaitDelayMS int    `yaml:"wait_delay_ms" json:"wait_delay_ms"`
	}
)

func (r RunnerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

func (r RunnerConfig) WaitDelay() time.Duration {
	return time.Duration(r.WaitDelayMS) * time.Millisecond
}

func (r RunnerConfig) HideWindowEnabled() bool {
	return r.HideWindow == nil || *r.HideWindow
}

func (s ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// UpdateByName replaces one top-level section.
func (c *Config) UpdateByName(name string, value any) error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	normalizedName := strings.ToLower(strings.TrimSpace(name))
	if normalizedName == "" {
		return fmt.Errorf("name is required")
	}

	switch normalizedName {
	case "config":
		typed, ok := value.(*Config)
		if !ok || typed == nil {
			return fmt.Errorf("name 'config' requires *Config")
		}
		*c = *typed
	case "server":
		typed, ok := value.(*ServerConfig)
		if !ok || typed == nil {
			return fmt.Errorf("name 'server' requires *ServerConfig")
		}
		c.Server = *typed
	case "logging":
		typed, ok := value.(*LoggingConfig)
		if !ok || typed == nil {
			return fmt.Errorf("name 'logging' requires *LoggingConfig")
		}
		c.Logging = *typed
	case "runner":
		typed, ok := value.(*RunnerConfig)
		if !ok || typed == nil {
			return fmt.Errorf("name 'runner' requires *RunnerConfig")
		}
		c.Runner = *typed
	default:
		return fmt.Errorf("unsupported config name: %s", name)
	}

	return nil
}

// Clone .
func (c *Config) Clone() (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	raw, err := sonic.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var cloned Config
	if err := sonic.Unmarshal(raw, &cloned); err != nil {
		return nil, fmt.Errorf("unmarshal config clone: %w", err)
	}

	return &cloned, nil
}

// Hash .
func (c *Config) Hash() string {
	json := sonic.Config{SortMapKeys: true, UseNumber: true}.Froze()
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
