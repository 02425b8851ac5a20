package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
)

// Config holds library configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Catalog    CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Preload    PreloadConfig    `mapstructure:"preload" yaml:"preload"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	// SwaggerPath points at a generated swagger.json; default: {home}/swagger.json
	SwaggerPath string `mapstructure:"swagger_path" yaml:"swagger_path"`
}

// CacheConfig configures the tiers. Durations use Go syntax ("90m", "168h").
type CacheConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`         // default: {home}/cache
	Backend string `mapstructure:"backend" yaml:"backend"` // "file" or "bolt"

	MaxHotEntries  int     `mapstructure:"max_hot_entries" yaml:"max_hot_entries"`
	MaxWarmEntries int     `mapstructure:"max_warm_entries" yaml:"max_warm_entries"`
	MaxDiskEntries int     `mapstructure:"max_disk_entries" yaml:"max_disk_entries"`
	MaxHotMemoryMB float64 `mapstructure:"max_hot_memory_mb" yaml:"max_hot_memory_mb"`

	HotTTL  string `mapstructure:"hot_ttl" yaml:"hot_ttl"`
	WarmTTL string `mapstructure:"warm_ttl" yaml:"warm_ttl"`
	DiskTTL string `mapstructure:"disk_ttl" yaml:"disk_ttl"`

	HotEvictBatch     int     `mapstructure:"hot_evict_batch" yaml:"hot_evict_batch"`
	WarmEvictBatch    int     `mapstructure:"warm_evict_batch" yaml:"warm_evict_batch"`
	DiskEvictFraction float64 `mapstructure:"disk_evict_fraction" yaml:"disk_evict_fraction"`

	DefaultWordsPerPage int    `mapstructure:"default_words_per_page" yaml:"default_words_per_page"`
	SweepInterval       string `mapstructure:"sweep_interval" yaml:"sweep_interval"` // "0" disables
}

// ExtractionConfig selects local extractors or a remote extraction service.
type ExtractionConfig struct {
	ServiceURL        string  `mapstructure:"service_url" yaml:"service_url"` // empty: extract locally
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`         // supports ${ENV_VAR} syntax
	Timeout           string  `mapstructure:"timeout" yaml:"timeout"`
	Attempts          int     `mapstructure:"attempts" yaml:"attempts"`
	RetryDelay        string  `mapstructure:"retry_delay" yaml:"retry_delay"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"` // 0: unlimited
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// CatalogConfig locates the book catalog database.
type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // default: {home}/catalog.db
}

// PreloadConfig configures background preloading.
type PreloadConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// OnStartup preloads this many popular books when the server starts.
	OnStartup int `mapstructure:"on_startup" yaml:"on_startup"`
}

// LogConfig configures the server logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	l := cache.DefaultLimits()
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Cache: CacheConfig{
			Backend:             "file",
			MaxHotEntries:       l.MaxHotEntries,
			MaxWarmEntries:      l.MaxWarmEntries,
			MaxDiskEntries:      l.MaxDiskEntries,
			MaxHotMemoryMB:      l.MaxHotMemoryMB,
			HotTTL:              l.HotTTL.String(),
			WarmTTL:             l.WarmTTL.String(),
			DiskTTL:             l.DiskTTL.String(),
			HotEvictBatch:       l.HotEvictBatch,
			WarmEvictBatch:      l.WarmEvictBatch,
			DiskEvictFraction:   l.DiskEvictFraction,
			DefaultWordsPerPage: l.DefaultWordsPerPage,
			SweepInterval:       "10m",
		},
		Extraction: ExtractionConfig{
			Timeout:    "2m",
			Attempts:   3,
			RetryDelay: "1s",
			Burst:      1,
		},
		Preload: PreloadConfig{
			Workers:   2,
			QueueSize: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Limits converts the cache section into cache limits.
func (c *Config) Limits() (cache.Limits, error) {
	var errs []error
	dur := func(name, v string) time.Duration {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("cache.%s: %w", name, err))
		}
		return d
	}
	l := cache.Limits{
		MaxHotEntries:       c.Cache.MaxHotEntries,
		MaxWarmEntries:      c.Cache.MaxWarmEntries,
		MaxDiskEntries:      c.Cache.MaxDiskEntries,
		MaxHotMemoryMB:      c.Cache.MaxHotMemoryMB,
		HotTTL:              dur("hot_ttl", c.Cache.HotTTL),
		WarmTTL:             dur("warm_ttl", c.Cache.WarmTTL),
		DiskTTL:             dur("disk_ttl", c.Cache.DiskTTL),
		HotEvictBatch:       c.Cache.HotEvictBatch,
		WarmEvictBatch:      c.Cache.WarmEvictBatch,
		DiskEvictFraction:   c.Cache.DiskEvictFraction,
		DefaultWordsPerPage: c.Cache.DefaultWordsPerPage,
	}
	if err := errors.Join(errs...); err != nil {
		return cache.Limits{}, err
	}
	return l, nil
}

// SweepInterval returns the background sweep period; 0 disables it.
func (c *Config) SweepInterval() time.Duration {
	d, _ := parseDuration(c.Cache.SweepInterval)
	return d
}

// Validate checks the configuration without applying defaults to it.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case "", "file", "bolt":
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be file or bolt, got %q", c.Cache.Backend))
	}

	l, err := c.Limits()
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, v := range []struct {
			name string
			n    int
		}{
			{"max_hot_entries", l.MaxHotEntries},
			{"max_warm_entries", l.MaxWarmEntries},
			{"max_disk_entries", l.MaxDiskEntries},
		} {
			if v.n < 0 {
				errs = append(errs, fmt.Errorf("cache.%s must not be negative", v.name))
			}
		}
		if l.MaxHotEntries > 0 && l.MaxWarmEntries > 0 && l.MaxWarmEntries < l.MaxHotEntries {
			errs = append(errs, fmt.Errorf("cache.max_warm_entries (%d) must be at least cache.max_hot_entries (%d)", l.MaxWarmEntries, l.MaxHotEntries))
		}
	}
	if _, err := parseDuration(c.Cache.SweepInterval); err != nil {
		errs = append(errs, fmt.Errorf("cache.sweep_interval: %w", err))
	}

	if c.Extraction.ServiceURL != "" {
		u, err := url.Parse(ResolveEnvVars(c.Extraction.ServiceURL))
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("extraction.service_url is not an absolute url: %q", c.Extraction.ServiceURL))
		}
	}
	for name, v := range map[string]string{"timeout": c.Extraction.Timeout, "retry_delay": c.Extraction.RetryDelay} {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("extraction.%s: %w", name, err))
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// parseDuration treats "" and "0" as zero.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}
