package diskstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const blobExt = ".json"

// FileStore keeps one JSON file per book in a directory.
type FileStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	Fs     afero.Fs // defaults to the OS filesystem
	Dir    string
	Logger *slog.Logger
}

// NewFileStore creates the cache directory if needed and returns a store
// rooted there.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := fsys.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileStore{
		fs:     fsys,
		dir:    cfg.Dir,
		logger: logger.With("component", "diskstore", "backend", "file"),
	}, nil
}

// Dir returns the directory blobs are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(bookID string) string {
	return filepath.Join(s.dir, SanitizeID(bookID)+blobExt)
}

// Save writes the blob to a temp file and renames it into place so readers
// never observe a partial document.
func (s *FileStore) Save(ctx context.Context, bookID string, entry *Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry.BookID = bookID
	data, err := encodeEntry(entry)
	if err != nil {
		return "", err
	}

	target := s.path(bookID)
	tmp := filepath.Join(s.dir, "."+SanitizeID(bookID)+"-"+uuid.New().String()+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("failed to move blob into place: %w", err)
	}

	s.logger.Debug("saved blob", "book_id", bookID, "path", target, "bytes", len(data))
	return target, nil
}

// Load reads and validates the blob for bookID.
func (s *FileStore) Load(ctx context.Context, bookID string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(bookID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob for %s: %w", bookID, err)
	}
	return decodeEntry(data)
}

// Delete removes the blob for bookID.
func (s *FileStore) Delete(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(s.path(bookID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob for %s: %w", bookID, err)
	}
	return nil
}

// List decodes every blob in the directory. Unreadable blobs are skipped and
// logged; the book id is recovered from the file name.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	var records []Record
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, blobExt) || strings.HasPrefix(name, ".") {
			continue
		}
		bookID := strings.TrimSuffix(name, blobExt)
		path := filepath.Join(s.dir, name)

		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			s.logger.Warn("skipping unreadable blob", "path", path, "error", err)
			continue
		}
		entry, err := decodeEntry(data)
		if err != nil {
			s.logger.Warn("skipping corrupt blob", "path", path, "error", err)
			continue
		}
		if entry.BookID != "" {
			bookID = entry.BookID
		}
		records = append(records, recordFor(bookID, path, entry))
	}
	return records, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
