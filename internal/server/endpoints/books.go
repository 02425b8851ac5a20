package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/extract"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/svcctx"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

// BookResponse is a catalog entry plus its cache state.
type BookResponse struct {
	types.Book
	Cached bool `json:"cached"`
}

// ListBooksResponse is the response for GET /api/books.
type ListBooksResponse struct {
	Books []BookResponse `json:"books"`
	Total int            `json:"total"`
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

var _ api.Endpoint = (*ListBooksEndpoint)(nil)

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List books
//	@Description	List catalog books by title, or the most popular first with ?popular=N
//	@Tags			books
//	@Produce		json
//	@Param			popular	query		int	false	"Return the N most popular books"
//	@Success		200		{object}	ListBooksResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cat := svcctx.CatalogFrom(r.Context())
	mgr := svcctx.CacheFrom(r.Context())
	if cat == nil || mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	var (
		books []types.Book
		err   error
	)
	if p := r.URL.Query().Get("popular"); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "popular must be a positive integer")
			return
		}
		books, err = cat.Popular(r.Context(), n)
	} else {
		books, err = cat.List(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := ListBooksResponse{Books: make([]BookResponse, 0, len(books)), Total: len(books)}
	for _, b := range books {
		resp.Books = append(resp.Books, BookResponse{Book: b, Cached: mgr.IsCached(b.ID)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var popular int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			q := url.Values{}
			if popular > 0 {
				q.Set("popular", strconv.Itoa(popular))
			}
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), api.PathWithQuery("/api/books", q), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&popular, "popular", 0, "Only the N most popular books")
	return cmd
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get book by ID
//	@Description	Get a catalog entry and whether its content is cached
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	BookResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cat := svcctx.CatalogFrom(r.Context())
	mgr := svcctx.CacheFrom(r.Context())
	if cat == nil || mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	book, err := cat.Get(r.Context(), r.PathValue("book_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookResponse{Book: *book, Cached: mgr.IsCached(book.ID)})
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book-id>",
		Short: "Get a book by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var book BookResponse
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0]), &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
}

// AddBookRequest registers a document already on the server's filesystem.
type AddBookRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	FilePath string `json:"file_path"`
	MimeType string `json:"mime_type,omitempty"`
}

// AddBookEndpoint handles POST /api/books, either as JSON naming a path on
// the server or as a multipart upload of the document itself.
type AddBookEndpoint struct{}

var _ api.Endpoint = (*AddBookEndpoint)(nil)

func (e *AddBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books", e.handler
}

func (e *AddBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Add a book
//	@Description	Register a document by server path (JSON) or upload it (multipart field "file")
//	@Tags			books
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			request	body		AddBookRequest	false	"Book to register"
//	@Param			file	formData	file			false	"Document to upload"
//	@Param			title	formData	string			false	"Book title"
//	@Param			author	formData	string			false	"Book author"
//	@Success		201		{object}	BookResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		415		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books [post]
func (e *AddBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cat := svcctx.CatalogFrom(r.Context())
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	var (
		req AddBookRequest
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = saveUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.FilePath == "" {
			writeError(w, http.StatusBadRequest, "file_path is required")
			return
		}
		if _, err := os.Stat(req.FilePath); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file not readable: %s", req.FilePath))
			return
		}
	}

	format, ok := extract.DetectFormat(req.FilePath, req.MimeType)
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported document format")
		return
	}
	if req.MimeType == "" {
		req.MimeType = extract.MimeTypeFor(format)
	}
	if req.Title == "" {
		base := filepath.Base(req.FilePath)
		req.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	book, err := cat.Add(r.Context(), types.Book{
		ID:       req.ID,
		Title:    req.Title,
		Author:   req.Author,
		FilePath: req.FilePath,
		MimeType: req.MimeType,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BookResponse{Book: *book})
}

// saveUpload stores the uploaded file under the home books directory.
func saveUpload(r *http.Request) (AddBookRequest, error) {
	const maxMemory = 64 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return AddBookRequest{}, fmt.Errorf("failed to parse form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		return AddBookRequest{}, fmt.Errorf("exactly one file is required")
	}
	fh := files[0]
	if _, ok := extract.DetectFormat(fh.Filename, fh.Header.Get("Content-Type")); !ok {
		return AddBookRequest{}, fmt.Errorf("unsupported document format: %s", fh.Filename)
	}

	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		return AddBookRequest{}, fmt.Errorf("uploads are not enabled")
	}

	req := AddBookRequest{
		ID:     r.FormValue("id"),
		Title:  r.FormValue("title"),
		Author: r.FormValue("author"),
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Title == "" {
		req.Title = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}
	req.FilePath = homeDir.BookPath(req.ID, strings.ToLower(filepath.Ext(fh.Filename)))

	src, err := fh.Open()
	if err != nil {
		return AddBookRequest{}, fmt.Errorf("failed to open uploaded file: %v", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(req.FilePath), 0o755); err != nil {
		return AddBookRequest{}, err
	}
	dst, err := os.Create(req.FilePath)
	if err != nil {
		return AddBookRequest{}, fmt.Errorf("failed to create file: %v", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(req.FilePath)
		return AddBookRequest{}, fmt.Errorf("failed to save file: %v", err)
	}
	return req, dst.Close()
}

func (e *AddBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req AddBookRequest
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a document that is readable by the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			req.FilePath = path
			client := api.NewClient(getServerURL())
			var book BookResponse
			if err := client.Post(cmd.Context(), "/api/books", req, &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "Book ID (generated if empty)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Book title (derived from filename if empty)")
	cmd.Flags().StringVar(&req.Author, "author", "", "Book author")
	cmd.Flags().StringVar(&req.MimeType, "mime-type", "", "MIME type (detected from extension if empty)")
	return cmd
}

// DeleteBookResponse reports what DELETE /api/books/{book_id} removed.
type DeleteBookResponse struct {
	BookID       string `json:"book_id"`
	CacheCleared bool   `json:"cache_cleared"`
}

// DeleteBookEndpoint handles DELETE /api/books/{book_id}.
type DeleteBookEndpoint struct{}

func (e *DeleteBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}", e.handler
}

func (e *DeleteBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete a book
//	@Description	Remove a book from the catalog and clear its cached content. The source file is kept.
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	DeleteBookResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id} [delete]
func (e *DeleteBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cat := svcctx.CatalogFrom(r.Context())
	mgr := svcctx.CacheFrom(r.Context())
	if cat == nil || mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	id := r.PathValue("book_id")
	if err := cat.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	cleared, err := mgr.ClearBookCache(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteBookResponse{BookID: id, CacheCleared: cleared})
}

func (e *DeleteBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DeleteBookResponse
			if err := client.Delete(cmd.Context(), "/api/books/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
