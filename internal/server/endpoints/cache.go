package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/library"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/svcctx"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

func bookCachePath(id string) string {
	return "/api/books/" + url.PathEscape(id) + "/cache"
}

// CacheBookRequest is the body for POST /api/books/{book_id}/cache.
type CacheBookRequest struct {
	Priority string `json:"priority,omitempty"`
}

// CacheBookEndpoint handles POST /api/books/{book_id}/cache.
type CacheBookEndpoint struct{}

var _ api.Endpoint = (*CacheBookEndpoint)(nil)

func (e *CacheBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/cache", e.handler
}

func (e *CacheBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cache a book
//	@Description	Extracts the book if needed and places it in the cache. High priority always lands in the hot tier.
//	@Tags			cache
//	@Accept			json
//	@Produce		json
//	@Param			book_id		path		string				true	"Book ID"
//	@Param			request		body		CacheBookRequest	false	"Placement priority"
//	@Success		200			{object}	cache.Content
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		502			{object}	ErrorResponse
//	@Router			/api/books/{book_id}/cache [post]
func (e *CacheBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var req CacheBookRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Priority != "" && req.Priority != string(types.PriorityHigh) && req.Priority != string(types.PriorityLow) {
		writeError(w, http.StatusBadRequest, "priority must be high or low")
		return
	}

	c, err := lib.Cache(r.Context(), r.PathValue("book_id"), types.ParsePriority(req.Priority))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *CacheBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var high bool
	cmd := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Extract a book into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := CacheBookRequest{Priority: string(types.PriorityLow)}
			if high {
				req.Priority = string(types.PriorityHigh)
			}
			var resp cache.Content
			if err := client.Post(cmd.Context(), bookCachePath(args[0]), req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&high, "high", false, "Place the book in the hot tier")
	return cmd
}

// RefreshBookEndpoint handles POST /api/books/{book_id}/cache/refresh.
type RefreshBookEndpoint struct{}

var _ api.Endpoint = (*RefreshBookEndpoint)(nil)

func (e *RefreshBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/cache/refresh", e.handler
}

func (e *RefreshBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Refresh a cached book
//	@Description	Compares the source file fingerprint with the cached one and re-extracts when they differ
//	@Tags			cache
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	library.RefreshResult
//	@Failure		404		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/cache/refresh [post]
func (e *RefreshBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	res, err := lib.Refresh(r.Context(), r.PathValue("book_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *RefreshBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <book-id>",
		Short: "Re-extract a book if its source file changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp library.RefreshResult
			if err := client.Post(cmd.Context(), bookCachePath(args[0])+"/refresh", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ClearBookResponse is the response for DELETE /api/books/{book_id}/cache.
type ClearBookResponse struct {
	BookID  string `json:"book_id"`
	Cleared bool   `json:"cleared"`
}

// ClearBookCacheEndpoint handles DELETE /api/books/{book_id}/cache.
type ClearBookCacheEndpoint struct{}

var _ api.Endpoint = (*ClearBookCacheEndpoint)(nil)

func (e *ClearBookCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}/cache", e.handler
}

func (e *ClearBookCacheEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Evict a book from every tier
//	@Tags			cache
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	ClearBookResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/cache [delete]
func (e *ClearBookCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := svcctx.CacheFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not initialized")
		return
	}

	id := r.PathValue("book_id")
	cleared, err := c.ClearBookCache(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearBookResponse{BookID: id, Cleared: cleared})
}

func (e *ClearBookCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <book-id>",
		Short: "Evict one book from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ClearBookResponse
			if err := client.Delete(cmd.Context(), bookCachePath(args[0]), &resp); err != nil {
				return err
			}
			if resp.Cleared {
				fmt.Printf("Cleared %s\n", resp.BookID)
			} else {
				fmt.Printf("%s was not cached\n", resp.BookID)
			}
			return nil
		},
	}
}

// ClearAllResponse is the response for DELETE /api/cache.
type ClearAllResponse struct {
	Cleared bool        `json:"cleared"`
	Stats   cache.Stats `json:"stats"`
}

// ClearAllCachesEndpoint handles DELETE /api/cache.
type ClearAllCachesEndpoint struct{}

var _ api.Endpoint = (*ClearAllCachesEndpoint)(nil)

func (e *ClearAllCachesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/cache", e.handler
}

func (e *ClearAllCachesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Empty every tier
//	@Description	Removes all cached content including orphaned blobs. Statistics counters are kept.
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	ClearAllResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/cache [delete]
func (e *ClearAllCachesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := svcctx.CacheFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not initialized")
		return
	}

	if err := c.ClearAllCaches(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearAllResponse{Cleared: true, Stats: c.Stats()})
}

func (e *ClearAllCachesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Empty every cache tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ClearAllResponse
			if err := client.Delete(cmd.Context(), "/api/cache", &resp); err != nil {
				return err
			}
			fmt.Println("Cache cleared")
			return nil
		},
	}
}

// CacheStatsEndpoint handles GET /api/cache/stats.
type CacheStatsEndpoint struct{}

var _ api.Endpoint = (*CacheStatsEndpoint)(nil)

func (e *CacheStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cache/stats", e.handler
}

func (e *CacheStatsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Cache statistics
//	@Tags		cache
//	@Produce	json
//	@Success	200	{object}	cache.Stats
//	@Router		/api/cache/stats [get]
func (e *CacheStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := svcctx.CacheFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not initialized")
		return
	}
	writeJSON(w, http.StatusOK, c.Stats())
}

func (e *CacheStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp cache.Stats
			if err := client.Get(cmd.Context(), "/api/cache/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PreloadRequest is the body for POST /api/cache/preload.
type PreloadRequest struct {
	BookIDs  []string `json:"book_ids,omitempty"`
	MaxCount int      `json:"max_count,omitempty"`
}

// PreloadEndpoint handles POST /api/cache/preload.
type PreloadEndpoint struct{}

var _ api.Endpoint = (*PreloadEndpoint)(nil)

func (e *PreloadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cache/preload", e.handler
}

func (e *PreloadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Preload books in the background
//	@Description	Queues low-priority extraction and returns immediately. Without book_ids the most popular catalog books are used.
//	@Tags			cache
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PreloadRequest	false	"Books to preload"
//	@Success		202		{object}	cache.PreloadBatch
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/cache/preload [post]
func (e *PreloadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var req PreloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.MaxCount < 0 {
		writeError(w, http.StatusBadRequest, "max_count must not be negative")
		return
	}

	batch, err := lib.Preload(r.Context(), req.BookIDs, req.MaxCount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batch)
}

func (e *PreloadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var maxCount int
	cmd := &cobra.Command{
		Use:   "preload [book-id...]",
		Short: "Queue background extraction of popular or named books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp cache.PreloadBatch
			req := PreloadRequest{BookIDs: args, MaxCount: maxCount}
			if err := client.Post(cmd.Context(), "/api/cache/preload", req, &resp); err != nil {
				return err
			}
			fmt.Printf("Batch %s: %d queued, %d skipped\n", resp.ID, len(resp.Queued), len(resp.Skipped))
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxCount, "max", "n", 10, "Maximum number of books to preload")
	return cmd
}
