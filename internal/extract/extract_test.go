package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/epub/epubtest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func writeDOCX(t *testing.T, paragraphs ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.docx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)

	var body strings.Builder
	for i, text := range paragraphs {
		style := ""
		if i == 0 {
			style = `<w:pPr><w:pStyle w:val="Heading1"/></w:pPr>`
		}
		fmt.Fprintf(&body, `<w:p>%s<w:r><w:t>%s</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">tail</w:t></w:r></w:p>`, style, text)
	}
	w, _ := zw.Create("word/document.xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s</w:body></w:document>`, body.String())

	w, _ = zw.Create("docProps/core.xml")
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Upanishads</dc:title><dc:creator>Rishis</dc:creator></cp:coreProperties>`))

	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path, mime string
		want       Format
		ok         bool
	}{
		{"a.pdf", "", FormatPDF, true},
		{"a.bin", "application/pdf", FormatPDF, true},
		{"a.DOCX", "", FormatDOCX, true},
		{"a", "application/epub+zip", FormatEPUB, true},
		{"a.txt", "text/plain; charset=utf-8", FormatText, true},
		{"a.doc", "application/msword", "", false},
		{"noext", "", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectFormat(tt.path, tt.mime)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DetectFormat(%q, %q) = %q, %v", tt.path, tt.mime, got, ok)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil)
	ctx := context.Background()

	t.Run("unsupported", func(t *testing.T) {
		_, err := r.Extract(ctx, writeFile(t, "a.doc", "x"), "")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
		}
		var ufe *UnsupportedFormatError
		if !errors.As(err, &ufe) || !strings.Contains(ufe.Error(), ".doc") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("text", func(t *testing.T) {
		res, err := r.Extract(ctx, writeFile(t, "a.txt", "# Title\r\n\r\nfirst line\r\nsecond <line>\r\n\r\nnext"), "")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		want := "<h1>Title</h1>\n<p>first line second &lt;line&gt;</p>\n<p>next</p>\n"
		if res.HTML != want {
			t.Errorf("HTML = %q, want %q", res.HTML, want)
		}
		if res.Format != FormatText {
			t.Errorf("Format = %q", res.Format)
		}
	})

	t.Run("html", func(t *testing.T) {
		doc := `<html><head><title>Vedas</title><meta name="author" content="Veda Vyasa"><style>p{}</style></head>
<body><nav>skip</nav><h2>Rig</h2><div><p>Agni  mile</p><ul><li>one <b>bold</b></li><li><p>nested</p></li></ul></div></body></html>`
		res, err := r.Extract(ctx, writeFile(t, "a.html", doc), "")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if res.Title != "Vedas" || res.Author != "Veda Vyasa" {
			t.Errorf("meta = %q / %q", res.Title, res.Author)
		}
		want := "<h2>Rig</h2>\n<p>Agni mile</p>\n<p>one bold</p>\n<p>nested</p>\n"
		if res.HTML != want {
			t.Errorf("HTML = %q, want %q", res.HTML, want)
		}
		if strings.Contains(res.Text, "skip") {
			t.Errorf("Text contains nav: %q", res.Text)
		}
	})

	t.Run("docx", func(t *testing.T) {
		res, err := r.Extract(ctx, writeDOCX(t, "Isha", "All this is pervaded"), "")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if res.Title != "Upanishads" || res.Author != "Rishis" {
			t.Errorf("meta = %q / %q", res.Title, res.Author)
		}
		if !strings.HasPrefix(res.HTML, "<h1>Isha\ttail</h1>\n<p>All this is pervaded\ttail</p>") {
			t.Errorf("HTML = %q", res.HTML)
		}
		if res.Text != "Isha\ttail\n\nAll this is pervaded\ttail" {
			t.Errorf("Text = %q", res.Text)
		}
	})

	t.Run("epub", func(t *testing.T) {
		p := epubtest.Write(t, "Gita", "Vyasa",
			epubtest.Chapter{ID: "c1", Body: "<h1>Chapter 1</h1><p>Dhritarashtra said</p>"},
			epubtest.Chapter{ID: "c2", Body: "<p>Sanjaya said</p>"},
		)
		res, err := r.Extract(ctx, p, "")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if res.Title != "Gita" || res.Pages != 2 {
			t.Errorf("Title=%q Pages=%d", res.Title, res.Pages)
		}
		want := "<h1>Chapter 1</h1>\n<p>Dhritarashtra said</p>\n<p>Sanjaya said</p>\n"
		if res.HTML != want {
			t.Errorf("HTML = %q, want %q", res.HTML, want)
		}
	})

	t.Run("broken pdf", func(t *testing.T) {
		if _, err := r.Extract(ctx, writeFile(t, "a.pdf", "not a pdf"), ""); err == nil {
			t.Error("expected error for invalid pdf")
		}
	})
}

func TestRemote(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/extract" || r.Header.Get("Content-Type") != "application/pdf" {
				t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Content-Type"))
			}
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`{"error":"busy"}`))
				return
			}
			w.Write([]byte(`{"text":"hello world","title":"T"}`))
		}))
		defer srv.Close()

		remote, err := NewRemote(RemoteConfig{URL: srv.URL, RetryDelay: time.Millisecond, RequestsPerSec: 100})
		if err != nil {
			t.Fatal(err)
		}
		r := NewRegistry(nil)
		r.Register(FormatPDF, remote.For(FormatPDF))

		res, err := r.Extract(context.Background(), writeFile(t, "a.pdf", "%PDF"), "")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("calls = %d, want 2", calls.Load())
		}
		if res.Text != "hello world" || res.HTML != "<p>hello world</p>\n" || res.Format != FormatPDF {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("unsupported is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnsupportedMediaType)
		}))
		defer srv.Close()

		remote, _ := NewRemote(RemoteConfig{URL: srv.URL, RetryDelay: time.Millisecond})
		_, err := remote.For(FormatDOCX).Extract(context.Background(), writeFile(t, "a.docx", "x"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}
