// Package config layers YAML configuration (project, user, local) over
// defaults and exposes the merged result through an atomically swapped
// pointer so readers never block a reload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embermind/aura/core/storage"
	"gopkg.in/yaml.v3"
)

type Manager struct {
	configPtr   atomic.Pointer[Config]
	dirs        *storage.Dirs
	projectRoot string
	watchers    []func(*Config)
	watcherMu   sync.RWMutex
	stopWatch   chan struct{}
	watchOnce   sync.Once
}

type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Session    SessionConfig    `yaml:"session"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Memory     MemoryConfig     `yaml:"memory"`
	Contextual ContextualConfig `yaml:"contextual"`
}

type ProviderConfig struct {
	Default     string        `yaml:"default"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	DefaultMode     string `yaml:"default_mode"`
	SuggestionLimit int    `yaml:"suggestion_limit"`
	IdleTimeout     string `yaml:"idle_timeout"`
}

type SchedulerConfig struct {
	Workers       int    `yaml:"workers"`
	UrgentWorkers int    `yaml:"urgent_workers"`
	QueueSize     int    `yaml:"queue_size"`
	RetryInitial  string `yaml:"retry_initial"`
	RetryMax      string `yaml:"retry_max"`
	ArchiveTTL    string `yaml:"archive_ttl"`
}

type MemoryConfig struct {
	IndexPath string `yaml:"index_path"`
	CacheSize int    `yaml:"cache_size"`
}

type ContextualConfig struct {
	Shards int `yaml:"shards"`
}

func NewManager(dirs *storage.Dirs) *Manager {
	m := &Manager{
		dirs:        dirs,
		projectRoot: ".",
		stopWatch:   make(chan struct{}),
	}
	m.configPtr.Store(DefaultConfig())
	return m
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Default:     "anthropic",
			Model:       "claude-sonnet-4-5-20250901",
			MaxTokens:   8192,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		},
		Session: SessionConfig{
			DefaultMode:     "reactive",
			SuggestionLimit: 5,
			IdleTimeout:     "30m",
		},
		Scheduler: SchedulerConfig{
			Workers:       4,
			UrgentWorkers: 1,
			QueueSize:     1000,
			RetryInitial:  "1s",
			RetryMax:      "5m",
			ArchiveTTL:    "168h",
		},
		Memory: MemoryConfig{
			CacheSize: 10000,
		},
		Contextual: ContextualConfig{
			Shards: 16,
		},
	}
}

func (m *Manager) Get() *Config {
	return m.configPtr.Load()
}

// Load rebuilds the config from defaults plus the project, user, and local
// YAML files, applies environment overrides, and publishes the result.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if err := m.loadProjectConfig(cfg); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := m.loadUserConfig(cfg); err != nil {
		return fmt.Errorf("user config: %w", err)
	}

	if err := m.loadLocalConfig(cfg); err != nil {
		return fmt.Errorf("local config: %w", err)
	}

	m.applyEnvironment(cfg)

	m.configPtr.Store(cfg)
	m.notifyWatchers(cfg)

	return nil
}

func (m *Manager) loadProjectConfig(cfg *Config) error {
	projectDirs := storage.ResolveProjectDirs(m.projectRoot)
	return m.loadYAMLFile(projectDirs.Config, cfg)
}

func (m *Manager) loadUserConfig(cfg *Config) error {
	if m.dirs == nil {
		return nil
	}
	return m.loadYAMLFile(m.dirs.ConfigDir("config.yaml"), cfg)
}

func (m *Manager) loadLocalConfig(cfg *Config) error {
	projectDirs := storage.ResolveProjectDirs(m.projectRoot)
	return m.loadYAMLFile(filepath.Join(projectDirs.Local, "config.yaml"), cfg)
}

func (m *Manager) loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := os.Getenv("AURA_PROVIDER"); v != "" {
		cfg.Provider.Default = v
	}
	if v := os.Getenv("AURA_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("AURA_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.Timeout = d
		}
	}
	if v := os.Getenv("AURA_SESSION_MODE"); v != "" {
		cfg.Session.DefaultMode = strings.ToLower(v)
	}
	if v := os.Getenv("AURA_SUGGESTION_LIMIT"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Session.SuggestionLimit = n
		}
	}
	if v := os.Getenv("AURA_SCHEDULER_WORKERS"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Scheduler.Workers = n
		}
	}
	if v := os.Getenv("AURA_MEMORY_INDEX"); v != "" {
		cfg.Memory.IndexPath = v
	}
}

// OnChange registers a callback invoked after every successful Load.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
