package endpoints

import (
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// SwaggerSpecPath is tried before the default swagger.json locations.
	SwaggerSpecPath string
}

// NewRegistry registers every library endpoint. Catalog and cache commands
// are grouped under "books" and "cache"; the rest sit directly under "api".
func NewRegistry(cfg Config) *api.Registry {
	r := api.NewRegistry()
	r.Register(
		&HealthEndpoint{},
		&ReadyEndpoint{},
	)
	r.RegisterGroup("books", "Catalog commands",
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&AddBookEndpoint{},
		&DeleteBookEndpoint{},
	)
	r.Register(
		&ContentEndpoint{},
		&SearchEndpoint{},
	)
	r.RegisterGroup("cache", "Content cache commands",
		&CacheBookEndpoint{},
		&RefreshBookEndpoint{},
		&ClearBookCacheEndpoint{},
		&ClearAllCachesEndpoint{},
		&CacheStatsEndpoint{},
		&PreloadEndpoint{},
	)
	r.Register(
		&SwaggerEndpoint{SpecPaths: swaggerSpecPaths(cfg.SwaggerSpecPath), Routes: r.Routes},
		&SwaggerUIEndpoint{},
	)
	return r
}
