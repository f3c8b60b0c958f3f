// Package topics keeps headline sources fresh so their entries can be
// offered as topic ideas.
package topics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/search"
	"github.com/pders01/quill/internal/storage"
	"github.com/pders01/quill/internal/validation"
)

const (
	maxFeedSize          = 8 << 20
	maxConcurrentRefresh = 4
)

var ErrNotModified = errors.New("source not modified")

type Manager struct {
	store        *storage.Store
	fetcher      *Fetcher
	parser       *Parser
	resolvers    *Registry
	urlValidator *validation.URLValidator
	maxHeadlines int

	mu        sync.Mutex
	listeners []search.HeadlineListener
}

func NewManager(store *storage.Store, cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.TestConfig()
	}
	return &Manager{
		store:        store,
		fetcher:      NewFetcher(cfg),
		parser:       NewParser(),
		resolvers:    DefaultRegistry(cfg.Topics.HTTPTimeout),
		urlValidator: validation.NewSourceValidator(),
		maxHeadlines: cfg.Topics.MaxHeadlines,
	}
}

// SetForceRefresh makes the fetcher ignore ETag/Last-Modified state.
func (m *Manager) SetForceRefresh(force bool) {
	m.fetcher.SetIgnoreCache(force)
}

// SetPermissiveValidation allows localhost and private addresses.
func (m *Manager) SetPermissiveValidation(permissive bool) {
	if permissive {
		m.urlValidator = validation.NewPermissiveSourceValidator()
	} else {
		m.urlValidator = validation.NewSourceValidator()
	}
}

// Resolvers exposes the registry so callers can add their own.
func (m *Manager) Resolvers() *Registry { return m.resolvers }

// AddListener registers l to receive every batch of saved headlines.
func (m *Manager) AddListener(l search.HeadlineListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *Manager) notify(headlines []*storage.Headline) {
	if len(headlines) == 0 {
		return
	}
	m.mu.Lock()
	listeners := append([]search.HeadlineListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.OnHeadlines(headlines)
	}
}

// resolve validates rawURL and maps it to the feed URL to fetch.
func (m *Manager) resolve(ctx context.Context, rawURL string) (*SourceInfo, string, error) {
	normalized, err := m.urlValidator.Normalize(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source URL: %w", err)
	}

	info, err := m.resolvers.Resolve(ctx, normalized)
	if err != nil {
		return nil, "", fmt.Errorf("resolving source: %w", err)
	}
	feedURL, err := m.urlValidator.Normalize(info.FeedURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid feed URL: %w", err)
	}
	return info, feedURL, nil
}

// AddSource validates and resolves rawURL, fetches it once and stores the
// source with its headlines.
func (m *Manager) AddSource(ctx context.Context, rawURL string) (*storage.Source, error) {
	info, feedURL, err := m.resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	src := &storage.Source{URL: feedURL, Title: info.Title}
	if _, err := m.refresh(ctx, src); err != nil {
		return nil, err
	}
	if src.Title == "" {
		src.Title = hostOf(feedURL)
	}
	if err := m.store.SaveSource(src); err != nil {
		return nil, fmt.Errorf("saving source: %w", err)
	}

	debuglog.WithFields(map[string]interface{}{"url": feedURL}).Infof("added topic source %q", src.Title)
	return src, nil
}

// RemoveSource forgets the source rawURL resolves to, along with its
// headlines. It accepts the same forms AddSource does.
func (m *Manager) RemoveSource(ctx context.Context, rawURL string) (*storage.Source, error) {
	_, feedURL, err := m.resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	src, err := m.store.GetSource(feedURL)
	if err != nil {
		return nil, fmt.Errorf("getting source %s: %w", feedURL, err)
	}
	if err := m.store.DeleteSource(feedURL); err != nil {
		return nil, fmt.Errorf("deleting source: %w", err)
	}

	debuglog.WithFields(map[string]interface{}{"url": feedURL}).Infof("removed topic source %q", src.Title)
	return src, nil
}

// Refresh fetches a stored source and returns how many headlines it saved.
// A 304 answer saves nothing and is not an error.
func (m *Manager) Refresh(ctx context.Context, sourceURL string) (int, error) {
	src, err := m.store.GetSource(sourceURL)
	if err != nil {
		return 0, fmt.Errorf("getting source: %w", err)
	}

	n, err := m.refresh(ctx, src)
	if errors.Is(err, ErrNotModified) {
		src.LastFetched = time.Now()
		return 0, m.store.SaveSource(src)
	}
	if err != nil {
		return 0, err
	}
	if err := m.store.SaveSource(src); err != nil {
		return 0, fmt.Errorf("saving source: %w", err)
	}
	return n, nil
}

func (m *Manager) refresh(ctx context.Context, src *storage.Source) (int, error) {
	resp, updated, err := m.fetcher.Fetch(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", src.URL, err)
	}
	if !updated {
		return 0, ErrNotModified
	}
	defer resp.Body.Close()

	title, headlines, err := m.parser.Parse(io.LimitReader(resp.Body, maxFeedSize), src.URL)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", src.URL, err)
	}
	if m.maxHeadlines > 0 && len(headlines) > m.maxHeadlines {
		headlines = headlines[:m.maxHeadlines]
	}

	m.fetcher.UpdateMetadata(src, resp)
	if src.Title == "" {
		src.Title = title
	}

	if err := m.store.SaveHeadlines(headlines); err != nil {
		return 0, fmt.Errorf("saving headlines: %w", err)
	}
	m.notify(headlines)
	return len(headlines), nil
}

// RefreshAll refreshes every stored source with a small worker pool and
// joins their errors.
func (m *Manager) RefreshAll(ctx context.Context) error {
	sources, err := m.store.GetAllSources()
	if err != nil {
		return fmt.Errorf("getting sources: %w", err)
	}
	return m.refreshSources(ctx, sources)
}

func (m *Manager) refreshSources(ctx context.Context, sources []*storage.Source) error {
	if len(sources) == 0 {
		return nil
	}

	srcChan := make(chan *storage.Source, len(sources))
	errChan := make(chan error, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < maxConcurrentRefresh && i < len(sources); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range srcChan {
				if _, refreshErr := m.Refresh(ctx, src.URL); refreshErr != nil {
					var throttled *ThrottledError
					if errors.As(refreshErr, &throttled) {
						debuglog.Warnf("source %s throttled, retry after %s", src.URL, throttled.RetryAfter)
					}
					errChan <- refreshErr
				}
			}
		}()
	}

	for _, src := range sources {
		srcChan <- src
	}
	close(srcChan)

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Sync adds every configured URL not stored yet and refreshes the sources
// that were already known. Failing sources are logged and reported together.
func (m *Manager) Sync(ctx context.Context, urls []string) error {
	sources, err := m.store.GetAllSources()
	if err != nil {
		return fmt.Errorf("getting sources: %w", err)
	}
	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s.URL] = true
	}

	var errs []error
	for _, raw := range urls {
		_, feedURL, err := m.resolve(ctx, raw)
		if err != nil {
			debuglog.Warnf("topic source %s: %v", raw, err)
			errs = append(errs, err)
			continue
		}
		if known[feedURL] {
			continue
		}
		if _, err := m.AddSource(ctx, raw); err != nil {
			debuglog.Warnf("topic source %s: %v", raw, err)
			errs = append(errs, err)
		}
	}
	if err := m.refreshSources(ctx, sources); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Headlines returns the newest stored headlines across all sources.
func (m *Manager) Headlines(limit int) ([]*storage.Headline, error) {
	return m.store.GetHeadlines("", limit)
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return "Unknown source"
}
