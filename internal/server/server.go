package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/config"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/server/endpoints"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/svcctx"
)

// Server is the library HTTP server. It owns the lifecycle of the cache and
// the catalog: the cache index is rebuilt on Start and both are closed on
// shutdown.
type Server struct {
	httpServer *http.Server
	services   *svcctx.Services
	logger     *slog.Logger
	preload    int

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
	ready   bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Services must carry an unopened cache manager, the catalog and the
	// library service.
	Services *svcctx.Services
	// PreloadOnStartup queues this many popular books once the cache is
	// open. Zero disables startup preloading.
	PreloadOnStartup int
	// SwaggerSpecPath is checked before the default swagger.json locations.
	SwaggerSpecPath string
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Services == nil || cfg.Services.Cache == nil || cfg.Services.Library == nil {
		return nil, errors.New("cache and library services are required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Services.Logger == nil {
		cfg.Services.Logger = slog.Default()
	}

	s := &Server{
		services: cfg.Services,
		logger:   cfg.Services.Logger,
		preload:  cfg.PreloadOnStartup,
	}

	if mgr := cfg.Services.Config; mgr != nil {
		mgr.OnChange(s.applyConfig)
	}

	s.endpointRegistry = endpoints.NewRegistry(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath})
	s.logger.Debug("registered routes", "count", len(s.endpointRegistry.Routes()))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // first reads of large books extract synchronously
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler with services attached to every
// request context.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)
	return s.withServices(mux)
}

// Init opens the cache and queues the startup preload. Start calls it;
// tests driving Handler directly call it themselves.
func (s *Server) Init(ctx context.Context) error {
	s.logger.Info("opening content cache")
	if err := s.services.Cache.Open(ctx); err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	if s.preload > 0 {
		batch, err := s.services.Library.Preload(ctx, nil, s.preload)
		if err != nil {
			s.logger.Warn("startup preload failed", "error", err)
		} else {
			s.logger.Info("startup preload queued", "batch_id", batch.ID, "queued", len(batch.Queued))
		}
	}
	return nil
}

// Start opens the cache and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Init(ctx); err != nil {
		_ = s.shutdown()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server, then the cache and the catalog.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()

	if err := s.services.Cache.Close(); err != nil {
		s.logger.Error("cache close error", "error", err)
	}
	if s.services.Catalog != nil {
		if err := s.services.Catalog.Close(); err != nil {
			s.logger.Error("catalog close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// applyConfig pushes reloaded cache limits into the running manager.
func (s *Server) applyConfig(cfg *config.Config) {
	limits, err := cfg.Limits()
	if err != nil {
		s.logger.Error("ignoring reloaded cache limits", "error", err)
		return
	}
	if err := s.services.Cache.SetLimits(context.Background(), limits); err != nil {
		s.logger.Error("failed to apply cache limits", "error", err)
		return
	}
	s.logger.Info("cache limits reloaded from config")
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the cache index has been rebuilt.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isReady() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
