// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/catalog"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/config"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/home"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/library"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Cache   *cache.Manager
	Catalog *catalog.SQLiteCatalog
	Library *library.Service
	Config  *config.Manager
	Logger  *slog.Logger
	Home    *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// CacheFrom extracts the cache manager from context.
func CacheFrom(ctx context.Context) *cache.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cache
	}
	return nil
}

// CatalogFrom extracts the book catalog from context.
func CatalogFrom(ctx context.Context) *catalog.SQLiteCatalog {
	if s := ServicesFrom(ctx); s != nil {
		return s.Catalog
	}
	return nil
}

// LibraryFrom extracts the reader service from context.
func LibraryFrom(ctx context.Context) *library.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Library
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
