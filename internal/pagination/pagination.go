// Package pagination slices extracted book content into stable pages.
//
// Plain text is paged by words. HTML is paged by paragraph blocks, and the
// same block boundaries are used by the search package so that page numbers
// reported by search always match the pages a reader is served.
package pagination

import (
	"regexp"
	"strings"
)

// DefaultWordsPerPage is used when a caller passes a non-positive page size.
const DefaultWordsPerPage = 500

// WordsPerParagraph converts a words-per-page budget into paragraphs per page
// for HTML content.
const WordsPerParagraph = 50

// Format selects which representation of a book is paginated.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// ParseFormat maps a request value to a Format. Anything other than "html"
// is treated as text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatHTML)) {
		return FormatHTML
	}
	return FormatText
}

// Page is one slice of a book.
type Page struct {
	Content     string `json:"content"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	HasNextPage bool   `json:"has_next_page"`
	HasPrevPage bool   `json:"has_prev_page"`
}

// blockBoundary matches the seam between two adjacent paragraph-like blocks:
// a closing tag, optional whitespace, then an opening tag of the same kind.
var blockBoundary = regexp.MustCompile(`(?i)</p>\s*<p(?:\s[^>]*)?>|</div>\s*<div(?:\s[^>]*)?>|</li>\s*<li(?:\s[^>]*)?>`)

// ParagraphsPerPage returns the number of HTML blocks shown per page.
func ParagraphsPerPage(wordsPerPage int) int {
	wordsPerPage = normalize(wordsPerPage)
	if n := wordsPerPage / WordsPerParagraph; n > 1 {
		return n
	}
	return 1
}

// Paragraphs splits HTML into paragraph blocks. Whitespace-only fragments are
// dropped.
func Paragraphs(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	parts := blockBoundary.Split(html, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// HTMLPages returns every rendered HTML page for the given page size. It is
// the single source of HTML page boundaries.
func HTMLPages(html string, wordsPerPage int) []string {
	paragraphs := Paragraphs(html)
	if len(paragraphs) == 0 {
		return nil
	}
	per := ParagraphsPerPage(wordsPerPage)
	pages := make([]string, 0, (len(paragraphs)+per-1)/per)
	for start := 0; start < len(paragraphs); start += per {
		end := min(start+per, len(paragraphs))
		pages = append(pages, renderHTMLPage(paragraphs[start:end]))
	}
	return pages
}

func renderHTMLPage(paragraphs []string) string {
	content := strings.Join(paragraphs, "</p><p>")
	if !strings.HasPrefix(strings.TrimSpace(content), "<") {
		content = "<p>" + content + "</p>"
	}
	return content
}

// HTML returns page number page of html.
func HTML(html string, page, wordsPerPage int) Page {
	pages := HTMLPages(html, wordsPerPage)
	page = max(page, 1)

	result := newPage(page, len(pages))
	if page <= len(pages) {
		result.Content = pages[page-1]
	}
	return result
}

// Text returns page number page of text, splitting on runs of whitespace.
func Text(text string, page, wordsPerPage int) Page {
	wordsPerPage = normalize(wordsPerPage)
	words := strings.Fields(text)
	total := 0
	if len(words) > 0 {
		total = (len(words)-1)/wordsPerPage + 1
	}
	page = max(page, 1)

	result := newPage(page, total)
	if page > total {
		return result
	}
	start := (page - 1) * wordsPerPage
	end := min(start+wordsPerPage, len(words))
	result.Content = strings.Join(words[start:end], " ")
	return result
}

// Paginate dispatches on format.
func Paginate(content string, format Format, page, wordsPerPage int) Page {
	if format == FormatHTML {
		return HTML(content, page, wordsPerPage)
	}
	return Text(content, page, wordsPerPage)
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func newPage(page, total int) Page {
	return Page{
		CurrentPage: page,
		TotalPages:  total,
		HasNextPage: page < total,
		HasPrevPage: page > 1,
	}
}

func normalize(wordsPerPage int) int {
	if wordsPerPage <= 0 {
		return DefaultWordsPerPage
	}
	return wordsPerPage
}
