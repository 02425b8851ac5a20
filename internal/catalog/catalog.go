// Package catalog stores book identity and source file locations in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

// ErrBookNotFound is returned when no book has the requested id.
var ErrBookNotFound = errors.New("book not found")

const createBooksTable = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	popularity INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS books_popularity ON books (popularity DESC, created_at ASC);
`

const selectBook = `SELECT id, title, author, file_path, mime_type, popularity, created_at FROM books`

// SQLiteCatalog is the document catalog backed by a SQLite database file.
type SQLiteCatalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string, logger *slog.Logger) (*SQLiteCatalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if _, err := db.Exec(createBooksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}
	return &SQLiteCatalog{db: db, logger: logger.With("component", "catalog")}, nil
}

// Close closes the database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// Ping reports whether the database is reachable.
func (c *SQLiteCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Add inserts or replaces a book. A missing id is generated and a zero
// CreatedAt is set to now. The stored book is returned.
func (c *SQLiteCatalog) Add(ctx context.Context, book types.Book) (*types.Book, error) {
	if strings.TrimSpace(book.FilePath) == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if book.Title == "" {
		book.Title = book.ID
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO books (id, title, author, file_path, mime_type, popularity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title, book.Author, book.FilePath, book.MimeType, book.Popularity, book.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog add %s: %w", book.ID, err)
	}
	c.logger.Debug("book added", "book_id", book.ID, "path", book.FilePath)
	return &book, nil
}

// Get returns the book with id, or ErrBookNotFound.
func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*types.Book, error) {
	row := c.db.QueryRowContext(ctx, selectBook+` WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog get %s: %w", id, err)
	}
	return b, nil
}

// List returns every book ordered by title.
func (c *SQLiteCatalog) List(ctx context.Context) ([]types.Book, error) {
	return c.query(ctx, selectBook+` ORDER BY title COLLATE NOCASE, id`)
}

// Popular returns up to n books, most popular first. n <= 0 returns all.
func (c *SQLiteCatalog) Popular(ctx context.Context, n int) ([]types.Book, error) {
	if n <= 0 {
		n = -1
	}
	return c.query(ctx, selectBook+` ORDER BY popularity DESC, created_at ASC, id LIMIT ?`, n)
}

// Touch increments the popularity of a book.
func (c *SQLiteCatalog) Touch(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE books SET popularity = popularity + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog touch %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// Delete removes a book. It returns ErrBookNotFound when nothing was deleted.
func (c *SQLiteCatalog) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}
	c.logger.Debug("book deleted", "book_id", id)
	return nil
}

func (c *SQLiteCatalog) query(ctx context.Context, q string, args ...any) ([]types.Book, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer rows.Close()

	books := []types.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog scan: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (*types.Book, error) {
	var b types.Book
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.FilePath, &b.MimeType, &b.Popularity, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
