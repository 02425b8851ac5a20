package extract

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var spaces = regexp.MustCompile(`\s+`)

// TextToHTML converts plain text to paragraph HTML. Blank lines separate
// paragraphs; lines within a paragraph are joined with a space. Lines that
// start with "# ", "## " or "### " become headings.
func TextToHTML(text string) string {
	var (
		out  strings.Builder
		para []string
	)
	flush := func() {
		if len(para) == 0 {
			return
		}
		out.WriteString("<p>")
		out.WriteString(html.EscapeString(strings.Join(para, " ")))
		out.WriteString("</p>\n")
		para = para[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "### "):
			flush()
			writeHeading(&out, 3, strings.TrimPrefix(trimmed, "### "))
		case strings.HasPrefix(trimmed, "## "):
			flush()
			writeHeading(&out, 2, strings.TrimPrefix(trimmed, "## "))
		case strings.HasPrefix(trimmed, "# "):
			flush()
			writeHeading(&out, 1, strings.TrimPrefix(trimmed, "# "))
		default:
			para = append(para, trimmed)
		}
	}
	flush()
	return out.String()
}

func writeHeading(out *strings.Builder, level int, text string) {
	fmt.Fprintf(out, "<h%d>%s</h%d>\n", level, html.EscapeString(text), level)
}

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, dt, dd"

// blocks converts an HTML document into normalized paragraph HTML and plain
// text. Nested blocks are folded into their outermost block. Documents
// without any block elements fall back to the body text.
func blocks(doc *goquery.Document) (htmlOut, textOut string) {
	doc.Find("script, style, head, nav").Remove()

	var hb, tb strings.Builder
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		text := strings.TrimSpace(spaces.ReplaceAllString(s.Text(), " "))
		if text == "" {
			return
		}
		tag := goquery.NodeName(s)
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			fmt.Fprintf(&hb, "<%s>%s</%s>\n", tag, html.EscapeString(text), tag)
		default:
			fmt.Fprintf(&hb, "<p>%s</p>\n", html.EscapeString(text))
		}
		tb.WriteString(text)
		tb.WriteString("\n\n")
	})

	if hb.Len() == 0 {
		text := strings.TrimSpace(doc.Find("body").Text())
		if text == "" {
			text = strings.TrimSpace(doc.Text())
		}
		return TextToHTML(text), text
	}
	return hb.String(), strings.TrimSpace(tb.String())
}

// ExtractHTML reads an HTML document.
func ExtractHTML(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	author, _ := doc.Find(`meta[name="author"]`).Attr("content")

	h, text := blocks(doc)
	return &Result{
		Text:   text,
		HTML:   h,
		Title:  title,
		Author: strings.TrimSpace(author),
		Format: FormatHTML,
	}, nil
}

// ExtractText reads a plain text document.
func ExtractText(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &Result{
		Text:   text,
		HTML:   TextToHTML(text),
		Format: FormatText,
	}, nil
}
