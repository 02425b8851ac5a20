package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the library home directory.
	DefaultDirName = ".library"

	// CacheDirName is the subdirectory for cached content blobs.
	CacheDirName = "cache"

	// BooksDirName is the subdirectory for uploaded source documents.
	BooksDirName = "books"

	// CatalogFileName is the SQLite catalog database.
	CatalogFileName = "catalog.db"

	// BoltFileName is the content database used by the bolt cache backend.
	BoltFileName = "content.db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// SwaggerFileName is the generated OpenAPI document served by the API.
	SwaggerFileName = "swagger.json"
)

// Dir represents the library home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.library).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// CachePath returns the default disk cache directory.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, CacheDirName)
}

// BooksPath returns the directory uploaded books are stored in.
func (d *Dir) BooksPath() string {
	return filepath.Join(d.path, BooksDirName)
}

// BookPath returns where an uploaded source file is stored.
func (d *Dir) BookPath(bookID, ext string) string {
	return filepath.Join(d.BooksPath(), bookID+ext)
}

// CatalogPath returns the default catalog database path.
func (d *Dir) CatalogPath() string {
	return filepath.Join(d.path, CatalogFileName)
}

// BoltPath returns the default bolt content database path.
func (d *Dir) BoltPath() string {
	return filepath.Join(d.CachePath(), BoltFileName)
}

// SwaggerPath returns where a generated swagger.json is looked for first.
func (d *Dir) SwaggerPath() string {
	return filepath.Join(d.path, SwaggerFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.CachePath(), d.BooksPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
