package epub

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/epub/epubtest"
)

func TestOpen(t *testing.T) {
	p := epubtest.Write(t, "Bhagavad Gita", "Vyasa",
		epubtest.Chapter{ID: "ch_001", Body: "<p>Chapter one</p>"},
		epubtest.Chapter{ID: "ch_002", Body: "<p>Chapter two</p>"},
	)

	book, err := Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if book.Title != "Bhagavad Gita" || book.Author != "Vyasa" || book.Language != "en" {
		t.Errorf("metadata = %q / %q / %q", book.Title, book.Author, book.Language)
	}
	if len(book.Chapters) != 2 {
		t.Fatalf("len(Chapters) = %d, want 2", len(book.Chapters))
	}
	if book.Chapters[0].ID != "ch_001" || !strings.Contains(string(book.Chapters[0].XHTML), "Chapter one") {
		t.Errorf("first chapter = %+v", book.Chapters[0])
	}
	if book.Chapters[1].Href != "OEBPS/text/ch_002.xhtml" {
		t.Errorf("Href = %q", book.Chapters[1].Href)
	}
}

func TestOpenInvalid(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "x.epub")
		os.WriteFile(p, []byte("plain text"), 0o644)
		if _, err := Open(p); !errors.Is(err, ErrInvalid) {
			t.Errorf("Open() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("empty spine", func(t *testing.T) {
		p := epubtest.Write(t, "Empty", "Nobody")
		if _, err := Open(p); !errors.Is(err, ErrInvalid) {
			t.Errorf("Open() error = %v, want ErrInvalid", err)
		}
	})
}
