package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tgifai/runbox/internal/consts"
)

const (
	defaultBind            = "127.0.0.1:8080"
	defaultRequestTimeout  = 60
	defaultMetricsBind     = "127.0.0.1:9091"
	defaultMetricsPath     = "/metrics"
	defaultMaxConcurrent   = 16
	defaultRunnerTimeoutMS = 10_000
	defaultWaitDelayMS     = 500

	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultLogOutput     = "stdout"
	defaultLogMaxSize    = 50
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 7
)

// Default returns a validated config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Validate()
	return cfg
}

// Validate fills defaults and rejects invalid values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := c.Server.validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Runner.validate(); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	return nil
}

func (s *ServerConfig) validate() error {
	s.Bind = strings.TrimSpace(s.Bind)
	if s.Bind == "" {
		s.Bind = defaultBind
	}
	if s.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = defaultRequestTimeout
	}

	s.Workspace = strings.TrimSpace(s.Workspace)
	if s.Workspace == "" {
		s.Workspace = consts.DefaultWorkspaceDir()
	}
	s.Workspace = filepath.Clean(s.Workspace)

	s.APIKey = strings.TrimSpace(s.APIKey)

	s.MetricsBind = strings.TrimSpace(s.MetricsBind)
	if s.MetricsBind == "" {
		s.MetricsBind = defaultMetricsBind
	}
	s.MetricsPath = strings.TrimSpace(s.MetricsPath)
	if s.MetricsPath == "" {
		s.MetricsPath = defaultMetricsPath
	}
	if !strings.HasPrefix(s.MetricsPath, "/") {
		return fmt.Errorf("metrics_path must start with '/', got %s", s.MetricsPath)
	}

	if s.MaxConcurrent < 0 {
		return errors.New("max_concurrent must not be negative")
	}
	if s.MaxConcurrent == 0 {
		s.MaxConcurrent = defaultMaxConcurrent
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	switch l.Level {
	case "silly", "trace", "debug", "verbose", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("invalid level: %s", l.Level)
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format: %s", l.Format)
	}

	l.Output = strings.ToLower(strings.TrimSpace(l.Output))
	if l.Output == "" {
		l.Output = defaultLogOutput
	}
	switch l.Output {
	case "stdout", "stderr", "file", "both":
	default:
		return fmt.Errorf("invalid output: %s", l.Output)
	}

	l.File = strings.TrimSpace(l.File)
	if l.File == "" && (l.Output == "file" || l.Output == "both") {
		l.File = consts.DefaultLogFile()
	}
	if l.MaxSize <= 0 {
		l.MaxSize = defaultLogMaxSize
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = defaultLogMaxBackups
	}
	if l.MaxAge <= 0 {
		l.MaxAge = defaultLogMaxAge
	}
	return nil
}

func (r *RunnerConfig) validate() error {
	r.Directory = strings.TrimSpace(r.Directory)
	if r.Directory == "" {
		r.Directory = "."
	}
	if r.TimeoutMS < 0 {
		return errors.New("timeout_ms must not be negative")
	}
	if r.TimeoutMS == 0 {
		r.TimeoutMS = defaultRunnerTimeoutMS
	}
	r.Shell = strings.TrimSpace(r.Shell)
	if r.HideWindow == nil {
		hide := true
		r.HideWindow = &hide
	}
	if r.WaitDelayMS < 0 {
		return errors.New("wait_delay_ms must not be negative")
	}
	if r.WaitDelayMS == 0 {
		r.WaitDelayMS = defaultWaitDelayMS
	}
	return nil
}
