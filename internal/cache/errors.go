package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no tier holds valid content for a book.
	ErrNotFound = errors.New("content not cached")
	// ErrExtractionFailed matches every *ExtractionError.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrClosed is returned by operations on a closed manager.
	ErrClosed = errors.New("cache manager closed")
)

// ExtractionError reports a failed extraction. Nothing is cached when it is
// returned.
type ExtractionError struct {
	BookID string
	Path   string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s): %v", e.BookID, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the cause, so callers can match
// ErrExtractionFailed as well as the underlying error (for example
// extract.ErrUnsupportedFormat).
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailed, e.Err}
}

// DiskIOError reports a failed disk store operation.
type DiskIOError struct {
	Op     string
	BookID string
	Err    error
}

func (e *DiskIOError) Error() string {
	return fmt.Sprintf("disk %s failed for %s: %v", e.Op, e.BookID, e.Err)
}

func (e *DiskIOError) Unwrap() error {
	return e.Err
}
