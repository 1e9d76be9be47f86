package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tgifai/runbox/internal/consts"
)

const (
	backupSuffix   = ".bak"
	configFileMode = os.FileMode(0o600)
)

var defaultManager = &InstanceManager{}

var ErrConfigConflict = errors.New("config conflict")

type InstanceManager struct {
	path string
	// loaded indicates whether Load has been called successfully.
	loaded bool
	cfg    *Config
	// hash tracks the current in-memory config snapshot hash.
	hash string

	mu sync.RWMutex
}

func (ins *InstanceManager) Get() (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.RLock()
	defer ins.mu.RUnlock()

	if !ins.loaded || ins.cfg == nil {
		return nil, fmt.Errorf("config is not loaded")
	}

	return ins.cfg.Clone()
}

func (ins *InstanceManager) Load(path string) (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()

	path = ins.resolvePath(path)
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	return ins.install(path, cfg)
}

// LoadOrDefault behaves like Load but falls back to Default when the file does
// not exist. Save then writes the defaults to that path.
func (ins *InstanceManager) LoadOrDefault(path string) (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()

	path = ins.resolvePath(path)
	cfg, err := loadConfigFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return ins.install(path, cfg)
}

func (ins *InstanceManager) resolvePath(path string) string {
	path = strings.TrimSpace(path)
	if path != "" {
		return path
	}
	if strings.TrimSpace(ins.path) != "" {
		return ins.path
	}
	return consts.DefaultConfigPath()
}

func (ins *InstanceManager) install(path string, cfg *Config) (*Config, error) {
	ins.path = path
	ins.cfg = cfg
	ins.hash = cfg.Hash()
	ins.loaded = true
	return cfg.Clone()
}

// Path returns the file backing the loaded config.
func (ins *InstanceManager) Path() string {
	if ins == nil {
		return ""
	}
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	return ins.path
}

func (ins *InstanceManager) Apply(name string, value any) error {
	return ins.ApplyWithCAS(name, value, "")
}

func (ins *InstanceManager) ApplyWithCAS(name string, value any, expectedHash string) error {
	if ins == nil {
		return fmt.Errorf("instance manager is nil")
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()

	if !ins.loaded || ins.cfg == nil {
		return fmt.Errorf("config is not loaded")
	}

	expectedHash = strings.TrimSpace(expectedHash)
	if expectedHash != "" && expectedHash != ins.hash {
		return fmt.Errorf("%w: expected %s, got %s", ErrConfigConflict, expectedHash, ins.hash)
	}

	draft, err := ins.cfg.Clone()
	if err != nil {
		return err
	}

	if err := draft.UpdateByName(name, value); err != nil {
		return err
	}

	if err := draft.Validate(); err != nil {
		return err
	}

	ins.cfg = draft
	ins.hash = draft.Hash()
	return nil
}

func (ins *InstanceManager) Hash() (string, error) {
	if ins == nil {
		return "", fmt.Errorf("instance manager is nil")
	}

	ins.mu.RLock()
	defer ins.mu.RUnlock()

	if !ins.loaded || ins.cfg == nil {
		return "", fmt.Errorf("config is not loaded")
	}

	return ins.hash, nil
}

// Save writes the in-memory config back to its file. The previous file is
// kept next to it with a ".bak" suffix.
func (ins *InstanceManager) Save() error {
	if ins == nil {
		return fmt.Errorf("instance manager is nil")
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()

	if !ins.loaded || ins.cfg == nil {
		return fmt.Errorf("config is not loaded")
	}

	raw, err := marshalConfigYAML(ins.cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err = replaceFile(ins.path, raw); err != nil {
		return err
	}
	ins.hash = ins.cfg.Hash()
	return nil
}

func loadConfigFile(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func Load(path string) (*Config, error) {
	return defaultManager.Load(path)
}

func LoadOrDefault(path string) (*Config, error) {
	return defaultManager.LoadOrDefault(path)
}

func Path() string {
	return defaultManager.Path()
}

func Get() (*Config, error) {
	return defaultManager.Get()
}

func Apply(name string, value any) error {
	return defaultManager.Apply(name, value)
}

func ApplyWithCAS(name string, value any, expectedHash string) error {
	return defaultManager.ApplyWithCAS(name, value, expectedHash)
}

func Save() error {
	return defaultManager.Save()
}

func Hash() (string, error) {
	return defaultManager.Hash()
}

// replaceFile swaps path for raw through a temp file and rename. The file
// holds the API key, so it is written owner-only.
func replaceFile(path string, raw []byte) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err = os.WriteFile(path+backupSuffix, prev, configFileMode); err != nil {
			return fmt.Errorf("write config backup: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err = tmp.Chmod(configFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

func marshalConfigYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
