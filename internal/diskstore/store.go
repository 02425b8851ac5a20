// Package diskstore persists extracted book content, one JSON document per
// book, so it survives restarts and hot-tier eviction.
package diskstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

// SchemaVersion is written into every blob.
const SchemaVersion = 1

var (
	// ErrNotFound is returned by Load when no blob exists for the book.
	ErrNotFound = errors.New("cached content not found")
	// ErrCorrupt is returned by Load when a blob exists but cannot be decoded
	// or does not match the blob schema.
	ErrCorrupt = errors.New("cached content is corrupt")
)

// Entry is the persisted form of a book's extracted content.
type Entry struct {
	SchemaVersion int            `json:"schemaVersion"`
	BookID        string         `json:"bookId,omitempty"`
	Content       string         `json:"content"`
	HTMLContent   string         `json:"htmlContent"`
	CachedAt      time.Time      `json:"cachedAt"`
	FileHash      string         `json:"fileHash"`
	Metadata      types.Metadata `json:"metadata"`
}

// Record describes a stored blob without its content. List returns these so
// callers can rebuild an index cheaply.
type Record struct {
	BookID   string
	Location string
	CachedAt time.Time
	FileHash string
	Metadata types.Metadata
}

// Store is a durable key/value store of book content.
type Store interface {
	// Save writes entry for bookID and returns the location it was written to.
	Save(ctx context.Context, bookID string, entry *Entry) (string, error)
	// Load reads the entry for bookID. Missing blobs return ErrNotFound.
	Load(ctx context.Context, bookID string) (*Entry, error)
	// Delete removes the blob for bookID. Deleting a missing blob is not an error.
	Delete(ctx context.Context, bookID string) error
	// List returns a record for every readable blob.
	List(ctx context.Context) ([]Record, error)
	// Close releases resources held by the store.
	Close() error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeID maps a book id onto a safe file name stem.
func SanitizeID(bookID string) string {
	s := unsafeChars.ReplaceAllString(bookID, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}
