// Package search finds case-insensitive substring matches in a book's HTML
// content and reports them with the page numbers the reader is served.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/pagination"
)

const (
	// ContextChars is the number of characters of page text kept on each
	// side of a match.
	ContextChars = 150
	// DefaultLimit applies when a caller passes a non-positive limit.
	DefaultLimit = 50
	// MaxLimit caps the number of results returned by a single search.
	MaxLimit = 500

	ellipsis = "..."
)

// HTMLSource resolves the full HTML of a book.
type HTMLSource interface {
	HTML(ctx context.Context, bookID string) (string, error)
}

// Options tune a single search.
type Options struct {
	Limit        int
	WordsPerPage int
}

// Match is a single hit.
type Match struct {
	PageNumber    int    `json:"page_number"`
	Match         string `json:"match"`
	BeforeContext string `json:"before_context"`
	AfterContext  string `json:"after_context"`
	Context       string `json:"context"`
	FullContext   string `json:"full_context"`
}

// Result is the outcome of a search. Results are ordered by page, then by
// position within the page.
type Result struct {
	Query        string  `json:"query"`
	Results      []Match `json:"results"`
	TotalMatches int     `json:"total_matches"`
	HasMore      bool    `json:"has_more"`
	AppliedLimit int     `json:"applied_limit"`
	WordsPerPage int     `json:"words_per_page"`
}

// Engine runs searches against an HTMLSource.
type Engine struct {
	source HTMLSource
	logger *slog.Logger
}

// New creates a search engine.
func New(source HTMLSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		logger: logger.With("component", "search"),
	}
}

// Search looks for query in the book. A blank query yields an empty result
// without touching the content.
func (e *Engine) Search(ctx context.Context, bookID, query string, opts Options) (*Result, error) {
	limit := AppliedLimit(opts.Limit)
	wpp := opts.WordsPerPage
	if wpp <= 0 {
		wpp = pagination.DefaultWordsPerPage
	}

	result := &Result{
		Query:        query,
		Results:      []Match{},
		AppliedLimit: limit,
		WordsPerPage: wpp,
	}
	if strings.TrimSpace(query) == "" {
		return result, nil
	}
	needle := strings.ToLower(query)

	html, err := e.source.HTML(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content for %s: %w", bookID, err)
	}

	pages := pagination.HTMLPages(html, wpp)
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range scanPage(page, needle) {
			result.TotalMatches++
			if len(result.Results) < limit {
				m.PageNumber = i + 1
				result.Results = append(result.Results, m)
			}
		}
	}
	result.HasMore = result.TotalMatches > limit

	e.logger.Debug("search complete",
		"book_id", bookID,
		"pages", len(pages),
		"matches", result.TotalMatches,
		"returned", len(result.Results))
	return result, nil
}

// AppliedLimit clamps a requested limit into [1, MaxLimit].
func AppliedLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// scanPage returns every occurrence of needle (already lower-cased) in page.
// Scanning restarts one byte past each match start, so overlapping
// occurrences are reported.
func scanPage(page, needle string) []Match {
	lower := strings.ToLower(page)
	// Lower-casing can change byte lengths for some scripts; offsets into the
	// original are only valid when it does not.
	source := page
	if len(lower) != len(page) {
		source = lower
	}

	var matches []Match
	for pos := 0; pos <= len(lower)-len(needle); {
		idx := strings.Index(lower[pos:], needle)
		if idx < 0 {
			break
		}
		start := pos + idx
		end := start + len(needle)
		matches = append(matches, buildMatch(source, start, end))
		pos = start + 1
	}
	return matches
}

func buildMatch(source string, start, end int) Match {
	winStart := runesBack(source, start, ContextChars)
	winEnd := runesForward(source, end, ContextChars)

	before := Clean(trimPartialTags(source[winStart:start]))
	after := Clean(trimPartialTags(source[end:winEnd]))
	match := source[start:end]

	return Match{
		Match:         match,
		BeforeContext: before,
		AfterContext:  after,
		Context:       snippet(before, match, after, winStart > 0, winEnd < len(source)),
		FullContext:   Clean(trimPartialTags(source[winStart:winEnd])),
	}
}

// snippet keeps at most ContextChars characters of context split around the
// match and marks cut text with an ellipsis.
func snippet(before, match, after string, cutBefore, cutAfter bool) string {
	half := ContextChars / 2
	if n := utf8.RuneCountInString(before); n > half {
		before = string([]rune(before)[n-half:])
		cutBefore = true
	}
	if n := utf8.RuneCountInString(after); n > half {
		after = string([]rune(after)[:half])
		cutAfter = true
	}

	var b strings.Builder
	if cutBefore {
		b.WriteString(ellipsis)
	}
	b.WriteString(before)
	if before != "" {
		b.WriteByte(' ')
	}
	b.WriteString(match)
	if after != "" {
		b.WriteByte(' ')
	}
	b.WriteString(after)
	if cutAfter {
		b.WriteString(ellipsis)
	}
	return b.String()
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	entityReplacer    = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// Clean strips tags, decodes the common entities and collapses whitespace.
func Clean(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// trimPartialTags drops a tag cut off by either edge of a context window.
func trimPartialTags(s string) string {
	if i := strings.IndexByte(s, '>'); i >= 0 && !strings.Contains(s[:i], "<") {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '<'); i >= 0 && !strings.Contains(s[i:], ">") {
		s = s[:i]
	}
	return s
}

// runesBack returns the byte offset n characters before i.
func runesBack(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// runesForward returns the byte offset n characters after i.
func runesForward(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}
