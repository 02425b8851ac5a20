package diskstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var contentBucket = []byte("content")

// BoltStore keeps every blob as a value in a single bbolt database. Useful
// when the cache holds many books and one file per book is unwieldy.
type BoltStore struct {
	path   string
	db     *bolt.DB
	logger *slog.Logger
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for bolt store: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(contentBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{
		path:   path,
		db:     db,
		logger: logger.With("component", "diskstore", "backend", "bolt"),
	}, nil
}

func (s *BoltStore) location(bookID string) string {
	return s.path + "#" + bookID
}

// Save implements Store.
func (s *BoltStore) Save(ctx context.Context, bookID string, entry *Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry.BookID = bookID
	data, err := encodeEntry(entry)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(contentBucket).Put([]byte(bookID), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", bookID, err)
	}
	return s.location(bookID), nil
}

// Load implements Store.
func (s *BoltStore) Load(ctx context.Context, bookID string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(contentBucket).Get([]byte(bookID)); v != nil {
			// Values are only valid inside the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", bookID, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return decodeEntry(data)
}

// Delete implements Store.
func (s *BoltStore) Delete(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(contentBucket).Delete([]byte(bookID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", bookID, err)
	}
	return nil
}

// List implements Store.
func (s *BoltStore) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(contentBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := decodeEntry(v)
			if err != nil {
				s.logger.Warn("skipping corrupt blob", "book_id", string(k), "error", err)
				return nil
			}
			records = append(records, recordFor(string(k), s.location(string(k)), entry))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bolt store: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*BoltStore)(nil)
