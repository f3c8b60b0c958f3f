package topics

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SourceInfo is what a resolver learned about a configured source URL.
type SourceInfo struct {
	// OriginalURL is the URL as configured.
	OriginalURL string
	// FeedURL is the URL to fetch.
	FeedURL string
	// Title overrides the feed's own title when set.
	Title    string
	Metadata map[string]string
}

// Resolver turns site URLs into feed URLs for hosts that publish feeds at a
// known location.
type Resolver interface {
	Name() string
	CanHandle(rawURL string) bool
	Resolve(ctx context.Context, rawURL string, client *http.Client) (*SourceInfo, error)
	// Priority breaks ties when several resolvers handle a URL (higher wins).
	Priority() int
}

type Registry struct {
	resolvers []Resolver
	client    *http.Client
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		resolvers: make([]Resolver, 0),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// DefaultRegistry knows the built-in resolvers.
func DefaultRegistry(timeout time.Duration) *Registry {
	r := NewRegistry(timeout)
	r.Register(RedditResolver{})
	r.Register(GitHubResolver{})
	return r
}

func (r *Registry) Register(res Resolver) {
	r.resolvers = append(r.resolvers, res)
}

// Find returns the highest priority resolver that handles rawURL, or nil.
func (r *Registry) Find(rawURL string) Resolver {
	var best Resolver
	highest := -1

	for _, res := range r.resolvers {
		if res.CanHandle(rawURL) && res.Priority() > highest {
			best = res
			highest = res.Priority()
		}
	}

	return best
}

// Resolve maps rawURL through the best resolver. Without one the URL is
// returned unchanged.
func (r *Registry) Resolve(ctx context.Context, rawURL string) (*SourceInfo, error) {
	res := r.Find(rawURL)
	if res == nil {
		return &SourceInfo{
			OriginalURL: rawURL,
			FeedURL:     rawURL,
			Metadata:    make(map[string]string),
		}, nil
	}

	return res.Resolve(ctx, rawURL, r.client)
}

func (r *Registry) List() []Resolver {
	return append([]Resolver(nil), r.resolvers...)
}

// RedditResolver maps subreddit pages to their .rss listing.
type RedditResolver struct{}

func (RedditResolver) Name() string  { return "reddit" }
func (RedditResolver) Priority() int { return 50 }

func (RedditResolver) CanHandle(rawURL string) bool {
	return (strings.Contains(rawURL, "://www.reddit.com/r/") ||
		strings.Contains(rawURL, "://reddit.com/r/") ||
		strings.Contains(rawURL, "://old.reddit.com/r/")) &&
		!strings.HasSuffix(rawURL, ".rss")
}

func (RedditResolver) Resolve(_ context.Context, rawURL string, _ *http.Client) (*SourceInfo, error) {
	feedURL := strings.TrimSuffix(rawURL, "/") + ".rss"

	subreddit := "unknown"
	if parts := strings.SplitN(rawURL, "/r/", 2); len(parts) == 2 {
		subreddit = strings.Split(parts[1], "/")[0]
	}

	return &SourceInfo{
		OriginalURL: rawURL,
		FeedURL:     feedURL,
		Title:       "Reddit - r/" + subreddit,
		Metadata: map[string]string{
			"resolver":  "reddit",
			"subreddit": subreddit,
		},
	}, nil
}

// GitHubResolver follows a repository's release feed.
type GitHubResolver struct{}

func (GitHubResolver) Name() string  { return "github" }
func (GitHubResolver) Priority() int { return 40 }

func (GitHubResolver) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Hostname(), "github.com") {
		return false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

func (GitHubResolver) Resolve(_ context.Context, rawURL string, _ *http.Client) (*SourceInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	repo := strings.Trim(u.Path, "/")
	u.Path = "/" + repo + "/releases.atom"
	u.RawQuery = ""
	u.Fragment = ""

	return &SourceInfo{
		OriginalURL: rawURL,
		FeedURL:     u.String(),
		Title:       "GitHub - " + repo + " releases",
		Metadata: map[string]string{
			"resolver": "github",
			"repo":     repo,
		},
	}, nil
}
