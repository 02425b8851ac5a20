package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

// RemoteConfig configures a client for an external extraction service.
type RemoteConfig struct {
	URL            string
	APIKey         string        // sent as a bearer token when set
	Timeout        time.Duration // per request, default 2m
	Attempts       uint          // default 3
	RetryDelay     time.Duration // default 1s
	RequestsPerSec float64       // 0 disables rate limiting
	Burst          int           // default 1
	Logger         *slog.Logger
	HTTPClient     *http.Client
}

// Remote posts the raw document to an extraction service and expects
//
//	{"text": "...", "html": "...", "title": "...", "author": "...", "pages": 0}
//
// in response. Transport errors and 5xx responses are retried.
type Remote struct {
	url      string
	apiKey   string
	client   *http.Client
	attempts uint
	delay    time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

type remoteResponse struct {
	Text   string `json:"text"`
	HTML   string `json:"html"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Pages  int    `json:"pages"`
	Error  string `json:"error"`
}

// errPermanent marks a response that must not be retried.
type errPermanent struct{ err error }

func (e errPermanent) Error() string { return e.err.Error() }
func (e errPermanent) Unwrap() error { return e.err }

// NewRemote creates a remote extraction client.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("extraction service url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	return &Remote{
		url:      strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		client:   client,
		attempts: attempts,
		delay:    delay,
		limiter:  limiter,
		logger:   logger.With("extractor", "remote", "url", cfg.URL),
	}, nil
}

// For returns an Extractor that sends documents of format f.
func (r *Remote) For(f Format) Extractor {
	return ExtractorFunc(func(ctx context.Context, path string) (*Result, error) {
		res, err := r.extract(ctx, path, MimeTypeFor(f))
		if err != nil {
			return nil, err
		}
		res.Format = f
		return res, nil
	})
}

func (r *Remote) extract(ctx context.Context, path, mimeType string) (*Result, error) {
	var out *remoteResponse
	err := retry.Do(
		func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			resp, err := r.post(ctx, path, mimeType)
			if err != nil {
				var perm errPermanent
				if errors.As(err, &perm) {
					return retry.Unrecoverable(perm.err)
				}
				return err
			}
			out = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("extraction request failed, retrying", "attempt", n+1, "path", path, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:   out.Text,
		HTML:   out.HTML,
		Title:  out.Title,
		Author: out.Author,
		Pages:  out.Pages,
	}, nil
}

func (r *Remote) post(ctx context.Context, path, mimeType string) (*remoteResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errPermanent{fmt.Errorf("failed to open %s: %w", path, err)}
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/extract", f)
	if err != nil {
		return nil, errPermanent{err}
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Filename", filepath.Base(path))
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out remoteResponse
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return nil, errPermanent{&UnsupportedFormatError{Path: path, MimeType: mimeType}}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, out.Error)
	case resp.StatusCode >= 400:
		return nil, errPermanent{fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, out.Error)}
	case decodeErr != nil:
		return nil, errPermanent{fmt.Errorf("failed to decode response: %w", decodeErr)}
	}
	return &out, nil
}
