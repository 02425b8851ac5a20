// Package extract turns source documents into plain text and paragraph HTML.
//
// Extractors are registered per format; the Registry picks one from the MIME
// type or, failing that, the file extension.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Format is a normalized document format name.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatEPUB Format = "epub"
	FormatText Format = "txt"
	FormatHTML Format = "html"
)

// ErrUnsupportedFormat matches every *UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedFormatError reports a document no registered extractor handles.
type UnsupportedFormatError struct {
	Path     string
	MimeType string
}

func (e *UnsupportedFormatError) Error() string {
	kind := e.MimeType
	if kind == "" {
		kind = filepath.Ext(e.Path)
	}
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf("unsupported format %s for %s", kind, filepath.Base(e.Path))
}

// Is lets errors.Is(err, ErrUnsupportedFormat) match.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Result is the output of a single extraction.
type Result struct {
	Text   string
	HTML   string
	Title  string
	Author string
	Pages  int
	Format Format
}

// Extractor extracts one document.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (*Result, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) (*Result, error) {
	return f(ctx, path)
}

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/epub+zip":  FormatEPUB,
	"text/plain":            FormatText,
	"text/html":             FormatHTML,
	"application/xhtml+xml": FormatHTML,
}

var extFormats = map[string]Format{
	".pdf":   FormatPDF,
	".docx":  FormatDOCX,
	".epub":  FormatEPUB,
	".txt":   FormatText,
	".text":  FormatText,
	".md":    FormatText,
	".html":  FormatHTML,
	".htm":   FormatHTML,
	".xhtml": FormatHTML,
}

// DetectFormat resolves the document format from a MIME type (parameters are
// ignored) or the file extension. ok is false for unknown formats.
func DetectFormat(path, mimeType string) (Format, bool) {
	if mimeType != "" {
		mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
		if f, ok := mimeFormats[mt]; ok {
			return f, true
		}
	}
	f, ok := extFormats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// MimeTypeFor returns the canonical MIME type of a format.
func MimeTypeFor(f Format) string {
	for mt, format := range mimeFormats {
		if format == f && mt != "application/xhtml+xml" {
			return mt
		}
	}
	return "application/octet-stream"
}

// Registry dispatches extraction by format.
type Registry struct {
	mu         sync.RWMutex
	extractors map[Format]Extractor
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		extractors: make(map[Format]Extractor),
		logger:     logger.With("component", "extract"),
	}
}

// NewDefaultRegistry returns a registry with every built-in extractor.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(FormatPDF, NewPDFExtractor(r.logger))
	r.Register(FormatDOCX, ExtractorFunc(ExtractDOCX))
	r.Register(FormatEPUB, ExtractorFunc(ExtractEPUB))
	r.Register(FormatText, ExtractorFunc(ExtractText))
	r.Register(FormatHTML, ExtractorFunc(ExtractHTML))
	return r
}

// Register sets the extractor for a format, replacing any existing one.
func (r *Registry) Register(f Format, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[f] = e
}

// Formats lists the registered formats.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.extractors))
	for f := range r.extractors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Extract resolves the format of path and runs the matching extractor.
func (r *Registry) Extract(ctx context.Context, path, mimeType string) (*Result, error) {
	format, ok := DetectFormat(path, mimeType)
	if !ok {
		return nil, &UnsupportedFormatError{Path: path, MimeType: mimeType}
	}

	r.mu.RLock()
	e, ok := r.extractors[format]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedFormatError{Path: path, MimeType: mimeType}
	}

	res, err := e.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	if res.Format == "" {
		res.Format = format
	}
	if res.HTML == "" && res.Text != "" {
		res.HTML = TextToHTML(res.Text)
	}
	r.logger.Debug("extracted document",
		"path", path,
		"format", format,
		"chars", len(res.Text),
		"html_chars", len(res.HTML))
	return res, nil
}
