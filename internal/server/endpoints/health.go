package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/catalog"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/extract"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Catalog string `json:"catalog,omitempty"`
	Cache   string `json:"cache,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Reports whether the catalog database and the cache are usable
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Catalog: "ok", Cache: "ok"}
	status := http.StatusOK

	if cat := svcctx.CatalogFrom(r.Context()); cat == nil {
		resp.Catalog = "not_initialized"
	} else if err := cat.Ping(r.Context()); err != nil {
		resp.Catalog = "unhealthy"
	}
	if svcctx.CacheFrom(r.Context()) == nil {
		resp.Cache = "not_initialized"
	}

	if resp.Catalog != "ok" || resp.Cache != "ok" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (catalog and cache)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			fmt.Printf("Catalog: %s\n", resp.Catalog)
			fmt.Printf("Cache:   %s\n", resp.Cache)
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps errors from the library services to a status code.
// Extraction details are logged, not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, catalog.ErrBookNotFound):
		status, msg = http.StatusNotFound, "book not found"
	case errors.Is(err, cache.ErrNotFound):
		status, msg = http.StatusNotFound, "content not cached"
	case errors.Is(err, extract.ErrUnsupportedFormat):
		status, msg = http.StatusUnsupportedMediaType, "unsupported document format"
	case errors.Is(err, cache.ErrExtractionFailed):
		status, msg = http.StatusBadGateway, "failed to extract book content"
	case errors.Is(err, cache.ErrClosed):
		status, msg = http.StatusServiceUnavailable, "cache is shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "request timed out"
	}

	if status >= 500 {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		}
	}
	writeError(w, status, msg)
}
