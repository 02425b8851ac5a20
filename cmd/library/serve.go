package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/catalog"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/config"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/diskstore"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/extract"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/home"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/library"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/server"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/svcctx"
)

var (
	serveHost string
	servePort string
	logLevel  string
	logFormat string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the library server",
	Long: `Start the library HTTP server.

On startup the disk cache index is rebuilt from the cache directory and
expired blobs are removed. The config file is watched; cache limits are
applied to the running server when it changes.

The server provides:
  - /health            - Basic server health check
  - /ready             - Readiness check (catalog and cache)
  - /api/books/...     - Catalog, paginated content and search
  - /api/cache/...     - Cache statistics, preload and clearing

Examples:
  library serve                    # Start on default port 8080
  library serve --port 3000        # Start on custom port
  library serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		level := cfg.Log.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		format := cfg.Log.Format
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		logger, err := newLogger(level, format)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		if path := cfgMgr.ConfigFileUsed(); path != "" {
			logger.Info("loaded config", "path", path)
			cfgMgr.WatchConfig()
		}

		services, err := buildServices(cfg, h, logger)
		if err != nil {
			return err
		}
		services.Config = cfgMgr

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		specPath := cfg.Server.SwaggerPath
		if specPath == "" {
			specPath = h.SwaggerPath()
		}

		srv, err := server.New(server.Config{
			Host:             host,
			Port:             port,
			Services:         services,
			PreloadOnStartup: cfg.Preload.OnStartup,
			SwaggerSpecPath:  specPath,
		})
		if err != nil {
			services.Cache.Close()
			services.Catalog.Close()
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(serveCmd)
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

// buildServices wires the disk store, extractors, catalog, cache manager
// and library service from cfg. The cache is returned unopened.
func buildServices(cfg *config.Config, h *home.Dir, logger *slog.Logger) (*svcctx.Services, error) {
	limits, err := cfg.Limits()
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = h.CachePath()
	}
	var store diskstore.Store
	switch cfg.Cache.Backend {
	case "bolt":
		store, err = diskstore.OpenBoltStore(filepath.Join(cacheDir, home.BoltFileName), logger)
	default:
		store, err = diskstore.NewFileStore(diskstore.FileStoreConfig{Dir: cacheDir, Logger: logger})
	}
	if err != nil {
		return nil, err
	}

	extractor, err := buildExtractor(cfg.Extraction, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	mgr, err := cache.New(cache.Config{
		Limits:           limits,
		Store:            store,
		Extractor:        extractor,
		Logger:           logger,
		PreloadWorkers:   cfg.Preload.Workers,
		PreloadQueueSize: cfg.Preload.QueueSize,
		SweepInterval:    cfg.SweepInterval(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	catalogPath := cfg.Catalog.Path
	if catalogPath == "" {
		catalogPath = h.CatalogPath()
	}
	cat, err := catalog.Open(catalogPath, logger)
	if err != nil {
		mgr.Close()
		return nil, err
	}

	lib, err := library.New(library.Config{Cache: mgr, Catalog: cat, Logger: logger})
	if err != nil {
		mgr.Close()
		cat.Close()
		return nil, err
	}

	return &svcctx.Services{
		Cache:   mgr,
		Catalog: cat,
		Library: lib,
		Logger:  logger,
		Home:    h,
	}, nil
}

// buildExtractor returns the built-in extractors. With an extraction
// service configured, PDF and DOCX documents are sent to it instead.
func buildExtractor(cfg config.ExtractionConfig, logger *slog.Logger) (*extract.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := extract.NewDefaultRegistry(logger)
	if cfg.ServiceURL == "" {
		return reg, nil
	}

	remote, err := extract.NewRemote(extract.RemoteConfig{
		URL:            cfg.ServiceURL,
		APIKey:         cfg.ResolvedAPIKey(),
		Timeout:        cfg.TimeoutDuration(),
		Attempts:       uint(cfg.Attempts),
		RetryDelay:     cfg.RetryDelayDuration(),
		RequestsPerSec: cfg.RequestsPerSecond,
		Burst:          cfg.Burst,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	reg.Register(extract.FormatPDF, remote.For(extract.FormatPDF))
	reg.Register(extract.FormatDOCX, remote.For(extract.FormatDOCX))
	logger.Info("using extraction service", "url", cfg.ServiceURL, "formats", []extract.Format{extract.FormatPDF, extract.FormatDOCX})
	return reg, nil
}
