package storage

import (
	"time"

	"github.com/pders01/quill/internal/desk"
)

// CachedPage is the last page the backend returned for a query.
type CachedPage struct {
	Key      desk.QueryKey `json:"key"`
	Page     desk.Page     `json:"page"`
	StoredAt time.Time     `json:"stored_at"`
}

// TopicEntry is one topic the user generated a post for.
type TopicEntry struct {
	Topic    string    `json:"topic"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// Source is a configured headline feed and its conditional-GET state.
type Source struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	LastFetched  time.Time `json:"last_fetched"`
}

// Headline is a feed entry offered as a topic idea.
type Headline struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
}
