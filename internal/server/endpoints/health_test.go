package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/cache"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/catalog"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/extract"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unknown book", fmt.Errorf("lookup: %w", catalog.ErrBookNotFound), http.StatusNotFound, "book not found"},
		{"not cached", cache.ErrNotFound, http.StatusNotFound, "content not cached"},
		{"unsupported", &cache.ExtractionError{BookID: "b", Err: extract.ErrUnsupportedFormat}, http.StatusUnsupportedMediaType, "unsupported document format"},
		{"extraction", &cache.ExtractionError{BookID: "b", Err: errors.New("corrupt xref table")}, http.StatusBadGateway, "failed to extract book content"},
		{"closed", cache.ErrClosed, http.StatusServiceUnavailable, "cache is shutting down"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "request timed out"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest("GET", "/api/books/b/content", nil), tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error != tt.msg {
				t.Errorf("error = %q, want %q", resp.Error, tt.msg)
			}
		})
	}
}

func TestIntParam(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 7, false},
		{"page=3", 3, false},
		{"page=0", 0, true},
		{"page=-1", 0, true},
		{"page=two", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/x?"+tt.query, nil)
			got, err := intParam(r, "page", 7)
			if (err != nil) != tt.wantErr {
				t.Fatalf("intParam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("intParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHealthWithoutServices(t *testing.T) {
	rec := httptest.NewRecorder()
	(&ReadyEndpoint{}).handler(rec, httptest.NewRequest("GET", "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready without services = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	(&HealthEndpoint{}).handler(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
}
