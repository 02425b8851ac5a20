// Package library is the reader-facing facade. It resolves books through the
// catalog, fills the cache on a miss and serves pages and search results.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/catalog"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/pagination"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/search"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

// Catalog is the subset of the document catalog the service needs.
type Catalog interface {
	Get(ctx context.Context, id string) (*types.Book, error)
	Popular(ctx context.Context, n int) ([]types.Book, error)
	Touch(ctx context.Context, id string) error
}

// Config configures a Service.
type Config struct {
	Cache   *cache.Manager
	Catalog Catalog
	Logger  *slog.Logger
}

// Service serves book content, extracting and caching it on demand.
type Service struct {
	cache   *cache.Manager
	catalog Catalog
	search  *search.Engine
	logger  *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cache:   cfg.Cache,
		catalog: cfg.Catalog,
		logger:  logger.With("component", "library"),
	}
	s.search = search.New(s, logger)
	return s, nil
}

// Page returns one page of the book, extracting it at high priority when no
// tier has it.
func (s *Service) Page(ctx context.Context, bookID string, page, wordsPerPage int, format pagination.Format) (*cache.Page, error) {
	c, err := s.content(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Touch(ctx, bookID); err != nil && !errors.Is(err, catalog.ErrBookNotFound) {
		s.logger.Warn("failed to record read", "book_id", bookID, "error", err)
	}
	return s.cache.Paginate(c, page, wordsPerPage, format), nil
}

// HTML returns the full HTML of the book. It lets the search engine reuse
// the cache.
func (s *Service) HTML(ctx context.Context, bookID string) (string, error) {
	c, err := s.content(ctx, bookID)
	if err != nil {
		return "", err
	}
	return c.HTML, nil
}

// Search finds query in the book. Page numbers match Page with the same
// words per page in HTML format.
func (s *Service) Search(ctx context.Context, bookID, query string, opts search.Options) (*search.Result, error) {
	if opts.WordsPerPage <= 0 {
		opts.WordsPerPage = s.cache.Limits().DefaultWordsPerPage
	}
	return s.search.Search(ctx, bookID, query, opts)
}

// Cache extracts and caches the book regardless of what is already cached.
func (s *Service) Cache(ctx context.Context, bookID string, priority types.Priority) (*cache.Content, error) {
	book, err := s.catalog.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.cache.CacheBookContent(ctx, *book, priority)
}

// RefreshResult reports what Refresh did.
type RefreshResult struct {
	BookID  string         `json:"book_id"`
	Stale   bool           `json:"stale"`
	Content *cache.Content `json:"content"`
}

// Refresh re-fingerprints the source file and re-extracts when it changed
// or when nothing is cached.
func (s *Service) Refresh(ctx context.Context, bookID string) (*RefreshResult, error) {
	book, err := s.catalog.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	stale, err := s.cache.Validate(ctx, *book)
	if err != nil {
		return nil, &cache.ExtractionError{BookID: bookID, Path: book.FilePath, Err: err}
	}

	res := &RefreshResult{BookID: bookID, Stale: stale}
	if !stale && s.cache.IsCached(bookID) {
		if res.Content, err = s.cache.GetContent(ctx, bookID); err == nil {
			return res, nil
		}
	}
	res.Content, err = s.cache.CacheBookContent(ctx, *book, types.PriorityHigh)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Preload queues background extraction. With no ids the most popular
// catalog books are used. Unknown ids are reported as skipped.
func (s *Service) Preload(ctx context.Context, bookIDs []string, maxCount int) (*cache.PreloadBatch, error) {
	var (
		books   []types.Book
		unknown []string
	)
	if len(bookIDs) == 0 {
		popular, err := s.catalog.Popular(ctx, maxCount)
		if err != nil {
			return nil, err
		}
		books = popular
	} else {
		for _, id := range bookIDs {
			b, err := s.catalog.Get(ctx, id)
			if errors.Is(err, catalog.ErrBookNotFound) {
				unknown = append(unknown, id)
				continue
			}
			if err != nil {
				return nil, err
			}
			books = append(books, *b)
		}
	}

	batch, err := s.cache.PreloadPopularBooks(books, maxCount)
	if err != nil {
		return nil, err
	}
	batch.Skipped = append(batch.Skipped, unknown...)
	return batch, nil
}

// content returns cached content or extracts it at high priority.
func (s *Service) content(ctx context.Context, bookID string) (*cache.Content, error) {
	c, err := s.cache.GetContent(ctx, bookID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return nil, err
	}

	book, err := s.catalog.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cache miss, extracting", "book_id", bookID)
	return s.cache.CacheBookContent(ctx, *book, types.PriorityHigh)
}
