package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default().With("component", "config"),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v, DefaultConfig())

	// Environment variables with LIBRARY_ prefix, e.g. LIBRARY_CACHE_MAX_HOT_ENTRIES
	cm.v.SetEnvPrefix("LIBRARY")
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.library")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf key so environment overrides apply to
// nested fields.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.swagger_path", d.Server.SwaggerPath)

	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.max_hot_entries", d.Cache.MaxHotEntries)
	v.SetDefault("cache.max_warm_entries", d.Cache.MaxWarmEntries)
	v.SetDefault("cache.max_disk_entries", d.Cache.MaxDiskEntries)
	v.SetDefault("cache.max_hot_memory_mb", d.Cache.MaxHotMemoryMB)
	v.SetDefault("cache.hot_ttl", d.Cache.HotTTL)
	v.SetDefault("cache.warm_ttl", d.Cache.WarmTTL)
	v.SetDefault("cache.disk_ttl", d.Cache.DiskTTL)
	v.SetDefault("cache.hot_evict_batch", d.Cache.HotEvictBatch)
	v.SetDefault("cache.warm_evict_batch", d.Cache.WarmEvictBatch)
	v.SetDefault("cache.disk_evict_fraction", d.Cache.DiskEvictFraction)
	v.SetDefault("cache.default_words_per_page", d.Cache.DefaultWordsPerPage)
	v.SetDefault("cache.sweep_interval", d.Cache.SweepInterval)

	v.SetDefault("extraction.service_url", d.Extraction.ServiceURL)
	v.SetDefault("extraction.api_key", d.Extraction.APIKey)
	v.SetDefault("extraction.timeout", d.Extraction.Timeout)
	v.SetDefault("extraction.attempts", d.Extraction.Attempts)
	v.SetDefault("extraction.retry_delay", d.Extraction.RetryDelay)
	v.SetDefault("extraction.requests_per_second", d.Extraction.RequestsPerSecond)
	v.SetDefault("extraction.burst", d.Extraction.Burst)

	v.SetDefault("catalog.path", d.Catalog.Path)

	v.SetDefault("preload.workers", d.Preload.Workers)
	v.SetDefault("preload.queue_size", d.Preload.QueueSize)
	v.SetDefault("preload.on_startup", d.Preload.OnStartup)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// load parses the current viper state into a validated Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the config file path, or "" when running on defaults.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An invalid file keeps
// the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolvedAPIKey returns the extraction service API key with ${ENV_VAR}
// references expanded.
func (c ExtractionConfig) ResolvedAPIKey() string {
	return ResolveEnvVars(c.APIKey)
}

// TimeoutDuration returns the per-request timeout.
func (c ExtractionConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(c.Timeout)
	return d
}

// RetryDelayDuration returns the delay between attempts.
func (c ExtractionConfig) RetryDelayDuration() time.Duration {
	d, _ := parseDuration(c.RetryDelay)
	return d
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Library configuration
# Every key can be overridden with LIBRARY_<SECTION>_<KEY>, e.g. LIBRARY_CACHE_MAX_HOT_ENTRIES=100
# extraction.api_key uses ${ENV_VAR} syntax to reference environment variables

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
