package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFExtractor reads the text layer of a PDF page by page. pdfcpu is used to
// validate the file and count pages; ledongthuc/pdf reads the text.
type PDFExtractor struct {
	logger *slog.Logger
}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger.With("extractor", "pdf")}
}

// Extract implements Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	pageCount := e.pageCount(path)

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if pageCount > 0 && pageCount != numPages {
		e.logger.Warn("page count mismatch", "path", path, "pdfcpu", pageCount, "reader", numPages)
	}

	var hb, tb strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			e.logger.Warn("failed to read page text", "path", path, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		hb.WriteString(TextToHTML(text))
		if tb.Len() > 0 {
			tb.WriteString("\n\n")
		}
		tb.WriteString(text)
	}

	if tb.Len() == 0 {
		return nil, fmt.Errorf("pdf has no extractable text layer (%d pages)", numPages)
	}

	return &Result{
		Text:   tb.String(),
		HTML:   hb.String(),
		Pages:  numPages,
		Format: FormatPDF,
	}, nil
}

func (e *PDFExtractor) pageCount(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		e.logger.Debug("pdfcpu could not count pages", "path", path, "error", err)
		return 0
	}
	return n
}
