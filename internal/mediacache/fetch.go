package mediacache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meetingmedia/internal/services"
)

// Fetcher opens a remote resource for reading. size is -1 when unknown.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body io.ReadCloser, size int64, err error)
}

// HTTPFetcher downloads over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher returns a fetcher with the given overall per-request
// timeout; zero disables it, which suits large video downloads.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: strings.TrimSpace(userAgent),
	}
}

// Fetch issues a GET for url. Non-200 responses are network failures.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrNetwork, url, "download", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, 0, services.Wrap(services.ErrUnavailable, url, "download", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, services.Wrap(services.ErrNetwork, url, "download", fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, resp.ContentLength, nil
}

// SchemeFetcher routes fetches by URL prefix, falling back to a default.
type SchemeFetcher struct {
	fallback Fetcher
	prefixes []string
	fetchers []Fetcher
}

// NewSchemeFetcher returns a router that sends unmatched URLs to fallback.
func NewSchemeFetcher(fallback Fetcher) *SchemeFetcher {
	return &SchemeFetcher{fallback: fallback}
}

// Handle routes URLs starting with prefix to f.
func (s *SchemeFetcher) Handle(prefix string, f Fetcher) {
	s.prefixes = append(s.prefixes, prefix)
	s.fetchers = append(s.fetchers, f)
}

// Fetch implements Fetcher.
func (s *SchemeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	for i, prefix := range s.prefixes {
		if strings.HasPrefix(url, prefix) {
			return s.fetchers[i].Fetch(ctx, url)
		}
	}
	return s.fallback.Fetch(ctx, url)
}
