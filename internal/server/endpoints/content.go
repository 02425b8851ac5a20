package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/pagination"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/search"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/svcctx"
)

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// ContentEndpoint handles GET /api/books/{book_id}/content.
type ContentEndpoint struct{}

var _ api.Endpoint = (*ContentEndpoint)(nil)

func (e *ContentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/content", e.handler
}

func (e *ContentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Read a page of a book
//	@Description	Returns one page of the book's text or HTML. Content is extracted and cached on first access.
//	@Tags			content
//	@Produce		json
//	@Param			book_id			path		string	true	"Book ID"
//	@Param			page			query		int		false	"1-based page number"	default(1)
//	@Param			words_per_page	query		int		false	"Words per page"		default(500)
//	@Param			format			query		string	false	"text or html"			default(text)
//	@Success		200				{object}	cache.Page
//	@Failure		400				{object}	ErrorResponse
//	@Failure		404				{object}	ErrorResponse
//	@Failure		415				{object}	ErrorResponse
//	@Failure		502				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/books/{book_id}/content [get]
func (e *ContentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wpp, err := intParam(r, "words_per_page", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw := strings.ToLower(r.URL.Query().Get("format"))
	if raw != "" && raw != string(pagination.FormatText) && raw != string(pagination.FormatHTML) {
		writeError(w, http.StatusBadRequest, "format must be text or html")
		return
	}
	format := pagination.ParseFormat(raw)

	p, err := lib.Page(r.Context(), r.PathValue("book_id"), page, wpp, format)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *ContentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		page   int
		wpp    int
		format string
	)
	cmd := &cobra.Command{
		Use:   "content <book-id>",
		Short: "Read one page of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			q := url.Values{"page": {strconv.Itoa(page)}, "format": {format}}
			if wpp > 0 {
				q.Set("words_per_page", strconv.Itoa(wpp))
			}
			var resp cache.Page
			path := api.PathWithQuery("/api/books/"+url.PathEscape(args[0])+"/content", q)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}
			fmt.Println(resp.Content)
			fmt.Printf("\n-- page %d of %d (%s, from %s) --\n", resp.CurrentPage, resp.TotalPages, resp.Format, resp.Source)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().IntVarP(&wpp, "words-per-page", "w", 0, "Words per page (server default if 0)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "text or html")
	return cmd
}

// SearchEndpoint handles GET /api/books/{book_id}/search.
type SearchEndpoint struct{}

var _ api.Endpoint = (*SearchEndpoint)(nil)

func (e *SearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/search", e.handler
}

func (e *SearchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Search within a book
//	@Description	Case-insensitive search. Page numbers match the HTML pages of the content endpoint for the same words_per_page.
//	@Tags			content
//	@Produce		json
//	@Param			book_id			path		string	true	"Book ID"
//	@Param			q				query		string	true	"Search query"
//	@Param			limit			query		int		false	"Maximum results (capped at 500)"	default(50)
//	@Param			words_per_page	query		int		false	"Words per page"					default(500)
//	@Success		200				{object}	search.Result
//	@Failure		400				{object}	ErrorResponse
//	@Failure		404				{object}	ErrorResponse
//	@Failure		502				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/books/{book_id}/search [get]
func (e *SearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	limit, err := intParam(r, "limit", search.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wpp, err := intParam(r, "words_per_page", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := lib.Search(r.Context(), r.PathValue("book_id"), r.URL.Query().Get("q"), search.Options{
		Limit:        limit,
		WordsPerPage: wpp,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *SearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		limit int
		wpp   int
	)
	cmd := &cobra.Command{
		Use:   "search <book-id> <query>",
		Short: "Search within a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			q := url.Values{"q": {args[1]}, "limit": {strconv.Itoa(limit)}}
			if wpp > 0 {
				q.Set("words_per_page", strconv.Itoa(wpp))
			}
			var res search.Result
			path := api.PathWithQuery("/api/books/"+url.PathEscape(args[0])+"/search", q)
			if err := client.Get(cmd.Context(), path, &res); err != nil {
				return err
			}
			return api.Output(res)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", search.DefaultLimit, "Maximum results")
	cmd.Flags().IntVarP(&wpp, "words-per-page", "w", 0, "Words per page (server default if 0)")
	return cmd
}
