// Package api talks to the post generation backend over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/validation"
)

const (
	defaultUserAgent = "quill/1.0 (https://github.com/pders01/quill)"
	maxBodySize      = 4 << 20
)

// Client implements desk.Backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

var _ desk.Backend = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout bounds every request made by the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := validation.NewBackendValidator().Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Transport: gzhttp.Transport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func NewFromConfig(cfg config.BackendConfig) (*Client, error) {
	opts := []Option{WithUserAgent(cfg.UserAgent)}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return New(cfg.URL, opts...)
}

func (c *Client) BaseURL() string { return c.base.String() }

// List fetches one page. search and posted are only sent when set.
func (c *Client) List(ctx context.Context, q desk.Query) (desk.Page, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if p := q.Posted.Param(); p != "" {
		params.Set("posted", p)
	}

	body, err := c.do(ctx, "list", http.MethodGet, "/tweet/tweets", params, nil)
	if err != nil {
		return desk.Page{}, err
	}
	page, err := decodeList(body, q)
	if err != nil {
		return desk.Page{}, fmt.Errorf("list: %w", err)
	}
	return page, nil
}

func (c *Client) Generate(ctx context.Context, topic string) error {
	_, err := c.do(ctx, "generate", http.MethodPost, "/tweet/generate", nil, map[string]string{"topic": topic})
	return err
}

// PostNow publishes an item. A backend that reports the item as already
// published yields ErrAlreadyPosted.
func (c *Client) PostNow(ctx context.Context, id desk.ItemID) error {
	body, err := c.do(ctx, "post", http.MethodPost, "/tweet/post-tweet/"+url.PathEscape(id.String()), nil, nil)
	if err != nil {
		return err
	}
	var reply struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(body, &reply) == nil && reply.Status == "already posted" {
		return fmt.Errorf("post: %w", ErrAlreadyPosted)
	}
	return nil
}

func (c *Client) Edit(ctx context.Context, id desk.ItemID, topic, content string) error {
	_, err := c.do(ctx, "edit", http.MethodPut, "/tweet/edit/"+url.PathEscape(id.String()), nil,
		map[string]string{"topic": topic, "content": content})
	return err
}

// Health checks GET /tweet/health.
func (c *Client) Health(ctx context.Context) error {
	body, err := c.do(ctx, "health", http.MethodGet, "/tweet/health", nil, nil)
	if err != nil {
		return err
	}
	var reply struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &reply); err != nil || reply.Status != "ok" {
		return fmt.Errorf("health: %w: status %q", ErrMalformed, reply.Status)
	}
	return nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, params), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := debuglog.WithFields(map[string]interface{}{
		"op":         op,
		"request_id": requestID,
	})
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("%s %s failed: %v", method, path, err)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w: %w", op, ErrUnreachable, err)
	}
	log.Debugf("%s %s -> %d (%d bytes, %s)", method, path, resp.StatusCode, len(body), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: detail(body)}
	}
	return body, nil
}
