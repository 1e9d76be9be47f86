package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, defaultBind, cfg.Server.Bind)
	require.Equal(t, defaultRequestTimeout, cfg.Server.RequestTimeout)
	require.Equal(t, defaultMetricsPath, cfg.Server.MetricsPath)
	require.Equal(t, defaultMaxConcurrent, cfg.Server.MaxConcurrent)
	require.NotEmpty(t, cfg.Server.Workspace)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "stdout", cfg.Logging.Output)
	require.Empty(t, cfg.Logging.File)
	require.Equal(t, ".", cfg.Runner.Directory)
	require.Equal(t, defaultRunnerTimeoutMS, cfg.Runner.TimeoutMS)
	require.True(t, cfg.Runner.HideWindowEnabled())
	require.Equal(t, int64(defaultWaitDelayMS), cfg.Runner.WaitDelay().Milliseconds())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"negative request timeout": func(c *Config) { c.Server.RequestTimeout = -1 },
		"relative metrics path":    func(c *Config) { c.Server.MetricsPath = "metrics" },
		"negative concurrency":     func(c *Config) { c.Server.MaxConcurrent = -2 },
		"unknown level":            func(c *Config) { c.Logging.Level = "loud" },
		"unknown format":           func(c *Config) { c.Logging.Format = "xml" },
		"unknown output":           func(c *Config) { c.Logging.Output = "syslog" },
		"negative runner timeout":  func(c *Config) { c.Runner.TimeoutMS = -5 },
		"negative wait delay":      func(c *Config) { c.Runner.WaitDelayMS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{}
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestValidate_FileOutputGetsDefaultPath(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Output: "BOTH", Level: " Silly "}}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "both", cfg.Logging.Output)
	require.Equal(t, "silly", cfg.Logging.Level)
	require.NotEmpty(t, cfg.Logging.File)
}

func TestLoad(t *testing.T) {
	ins := &InstanceManager{}
	path := writeConfig(t, `
server:
  bind: 0.0.0.0:9000
  api_key: " secret "
  max_concurrent: 2
runner:
  timeout_ms: 2500
  shell: /bin/bash
  hide_window: false
logging:
  level: debug
`)

	cfg, err := ins.Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.Bind)
	require.Equal(t, "secret", cfg.Server.APIKey)
	require.Equal(t, 2, cfg.Server.MaxConcurrent)
	require.Equal(t, int64(2500), cfg.Runner.Timeout().Milliseconds())
	require.Equal(t, "/bin/bash", cfg.Runner.Shell)
	require.False(t, cfg.Runner.HideWindowEnabled())
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, path, ins.Path())

	got, err := ins.Get()
	require.NoError(t, err)
	require.Equal(t, cfg.Hash(), got.Hash())
}

func TestLoad_Errors(t *testing.T) {
	ins := &InstanceManager{}

	_, err := ins.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = ins.Load(writeConfig(t, "server: [unterminated"))
	require.ErrorContains(t, err, "parse config yaml")

	_, err = ins.Load(writeConfig(t, "logging:\n  format: xml\n"))
	require.ErrorContains(t, err, "config validation failed")

	_, err = ins.Get()
	require.Error(t, err)
}

func TestLoadOrDefault_SaveRoundTrip(t *testing.T) {
	ins := &InstanceManager{}
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := ins.LoadOrDefault(path)
	require.NoError(t, err)
	require.Equal(t, Default().Hash(), cfg.Hash())

	server := cfg.Server
	server.Bind = "127.0.0.1:7000"
	require.NoError(t, ins.Apply("server", &server))
	require.NoError(t, ins.Save())

	reloaded, err := (&InstanceManager{}).Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", reloaded.Server.Bind)

	hash, err := ins.Hash()
	require.NoError(t, err)
	require.Equal(t, reloaded.Hash(), hash)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		require.Equal(t, configFileMode, info.Mode().Perm())
	}

	server.Bind = "127.0.0.1:7001"
	require.NoError(t, ins.Apply("server", &server))
	require.NoError(t, ins.Save())

	backup, err := (&InstanceManager{}).Load(path + backupSuffix)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", backup.Server.Bind)
}

func TestApplyWithCAS(t *testing.T) {
	ins := &InstanceManager{}
	_, err := ins.LoadOrDefault(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	hash, err := ins.Hash()
	require.NoError(t, err)

	runner := RunnerConfig{TimeoutMS: 100}
	require.NoError(t, ins.ApplyWithCAS("runner", &runner, hash))

	err = ins.ApplyWithCAS("runner", &runner, hash)
	require.ErrorIs(t, err, ErrConfigConflict)

	bad := LoggingConfig{Level: "nope"}
	require.Error(t, ins.Apply("logging", &bad))
	require.Error(t, ins.Apply("unknown", &bad))
	require.Error(t, ins.Apply("server", &bad))

	cfg, err := ins.Get()
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Runner.TimeoutMS)
	require.Equal(t, defaultWaitDelayMS, cfg.Runner.WaitDelayMS)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cloned, err := cfg.Clone()
	require.NoError(t, err)

	*cloned.Runner.HideWindow = false
	require.True(t, cfg.Runner.HideWindowEnabled())
	require.NotEqual(t, cfg.Hash(), cloned.Hash())
}
