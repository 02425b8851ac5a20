package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestPathWithQuery(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{"no values", url.Values{}, "/api/books"},
		{"empty values dropped", url.Values{"q": {""}, "limit": {"5"}}, "/api/books?limit=5"},
		{"sorted", url.Values{"page": {"2"}, "format": {"html"}}, "/api/books?format=html&page=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathWithQuery("/api/books", tt.query); got != tt.want {
				t.Errorf("PathWithQuery() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ok":
			w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/echo":
			if r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusBadRequest)
			}
			var buf bytes.Buffer
			buf.ReadFrom(r.Body)
			w.Write(buf.Bytes())
		case r.Method == http.MethodDelete && r.URL.Path == "/gone":
			w.Write([]byte(`{"cleared":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"book not found"}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := NewClient(srv.URL + "/")

	var status struct{ Status string }
	if err := client.Get(ctx, "/ok", &status); err != nil || status.Status != "ok" {
		t.Errorf("Get() = %+v, %v", status, err)
	}

	var echo struct{ Priority string }
	if err := client.Post(ctx, "/echo", map[string]string{"priority": "high"}, &echo); err != nil || echo.Priority != "high" {
		t.Errorf("Post() = %+v, %v", echo, err)
	}

	var cleared struct{ Cleared bool }
	if err := client.Delete(ctx, "/gone", &cleared); err != nil || !cleared.Cleared {
		t.Errorf("Delete() = %+v, %v", cleared, err)
	}

	err := client.Get(ctx, "/missing", nil)
	if err == nil || !strings.Contains(err.Error(), "server error (404): book not found") {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]int{"entries": 3}

	var js bytes.Buffer
	if err := OutputTo(&js, OutputFormatJSON, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"entries": 3`) {
		t.Errorf("json output = %s", js.String())
	}

	var ym bytes.Buffer
	if err := OutputTo(&ym, OutputFormatYAML, data); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(ym.String()) != "entries: 3" {
		t.Errorf("yaml output = %s", ym.String())
	}

	if err := OutputTo(&ym, "xml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}
