package topics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/storage"
)

const (
	defaultUserAgent = "quill/1.0 (topic sources; github.com/pders01/quill)"
	defaultTimeout   = 15 * time.Second
	acceptFeeds      = "application/rss+xml, application/atom+xml, application/xml, text/xml"
)

// ThrottledError reports a 429 or 503 together with the server's backoff hint.
type ThrottledError struct {
	Status     int
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("HTTP error: %d (retry after %s)", e.Status, e.RetryAfter)
}

type Fetcher struct {
	client      *http.Client
	userAgent   string
	ignoreCache bool
}

func NewFetcher(cfg *config.Config) *Fetcher {
	timeout := defaultTimeout
	userAgent := defaultUserAgent
	if cfg != nil {
		if cfg.Topics.HTTPTimeout > 0 {
			timeout = cfg.Topics.HTTPTimeout
		}
		if cfg.Backend.UserAgent != "" {
			userAgent = cfg.Backend.UserAgent
		}
	}

	return &Fetcher{
		client: &http.Client{
			Transport: gzhttp.Transport(http.DefaultTransport),
			Timeout:   timeout,
		},
		userAgent: userAgent,
	}
}

// SetIgnoreCache drops the conditional headers so every fetch returns a body.
func (f *Fetcher) SetIgnoreCache(ignore bool) {
	f.ignoreCache = ignore
}

// Fetch requests src.URL. The bool is false when the server answered
// 304 Not Modified, in which case the response is nil.
func (f *Fetcher) Fetch(ctx context.Context, src *storage.Source) (*http.Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptFeeds)

	if !f.ignoreCache {
		if src.ETag != "" {
			req.Header.Set("If-None-Match", src.ETag)
		}
		if src.LastModified != "" {
			req.Header.Set("If-Modified-Since", src.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching source: %w", err)
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, false, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		return nil, false, &ThrottledError{Status: resp.StatusCode, RetryAfter: RetryAfter(resp)}
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, false, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	return resp, true, nil
}

func (f *Fetcher) UpdateMetadata(src *storage.Source, resp *http.Response) {
	if etag := resp.Header.Get("ETag"); etag != "" {
		src.ETag = etag
	}

	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		src.LastModified = lastMod
	}

	src.LastFetched = time.Now()
}

// RetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(resp *http.Response) time.Duration {
	const fallback = 15 * time.Minute
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
