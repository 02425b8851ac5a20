package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/epub"
)

// ExtractEPUB reads chapters in spine order.
func ExtractEPUB(ctx context.Context, path string) (*Result, error) {
	book, err := epub.Open(path)
	if err != nil {
		return nil, err
	}

	var hb, tb strings.Builder
	for _, ch := range book.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(ch.XHTML))
		if err != nil {
			return nil, fmt.Errorf("failed to parse chapter %s: %w", ch.ID, err)
		}
		h, text := blocks(doc)
		if text == "" {
			continue
		}
		hb.WriteString(h)
		if tb.Len() > 0 {
			tb.WriteString("\n\n")
		}
		tb.WriteString(text)
	}

	return &Result{
		Text:   tb.String(),
		HTML:   hb.String(),
		Title:  book.Title,
		Author: book.Author,
		Pages:  len(book.Chapters),
		Format: FormatEPUB,
	}, nil
}
