package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pders01/quill/internal/desk"
	bolt "go.etcd.io/bbolt"
)

var (
	pagesBucket     = []byte("pages")
	topicsBucket    = []byte("topics")
	sourcesBucket   = []byte("sources")
	headlinesBucket = []byte("headlines")
)

// MemoryPath opens a throwaway database that is removed on Close.
const MemoryPath = ":memory:"

// DefaultMaxPages bounds the page cache.
const DefaultMaxPages = 64

var ErrNotFound = errors.New("not found")

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Store is the local bbolt cache. It implements desk.Recorder.
type Store struct {
	db       *bolt.DB
	tempDir  string
	maxPages int
	scope    string
	now      func() time.Time
}

var _ desk.Recorder = (*Store)(nil)

func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	var tempDir string
	if dbPath == MemoryPath {
		dir, err := os.MkdirTemp("", "quill-db-*")
		if err != nil {
			return nil, fmt.Errorf("creating temp database dir: %w", err)
		}
		tempDir = dir
		dbPath = filepath.Join(dir, "quill.db")
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if tempDir != "" {
			os.RemoveAll(tempDir)
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{pagesBucket, topicsBucket, sourcesBucket, headlinesBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, tempDir: tempDir, maxPages: DefaultMaxPages, now: time.Now}, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	return err
}

// SetScope keeps cached pages apart per backend. Pages recorded under one
// scope are not visible under another.
func (s *Store) SetScope(scope string) {
	s.scope = scope
}

func (s *Store) pageKey(key desk.QueryKey) []byte {
	return []byte(fmt.Sprintf("%s\x00%d\x00%s\x00%d\x00%s", s.scope, key.Limit, key.Posted, key.Offset, key.Search))
}

// RecordPage caches page as the last good result for key. The oldest
// entries are dropped once the cache holds more than its limit.
func (s *Store) RecordPage(key desk.QueryKey, page desk.Page) error {
	data, err := json.Marshal(CachedPage{Key: key, Page: page, StoredAt: s.now()})
	if err != nil {
		return err
	}
	packed := encoder.EncodeAll(data, nil)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pagesBucket)
		if err := b.Put(s.pageKey(key), packed); err != nil {
			return err
		}
		return prunePages(b, s.maxPages)
	})
}

// CachedPage returns the page stored for key.
func (s *Store) CachedPage(key desk.QueryKey) (*CachedPage, error) {
	var cached CachedPage
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(pagesBucket).Get(s.pageKey(key))
		if data == nil {
			return ErrNotFound
		}
		return unpackPage(data, &cached)
	})
	if err != nil {
		return nil, err
	}
	return &cached, nil
}

func unpackPage(data []byte, into *CachedPage) error {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompressing page: %w", err)
	}
	return json.Unmarshal(raw, into)
}

func prunePages(b *bolt.Bucket, max int) error {
	if max <= 0 {
		return nil
	}
	type entry struct {
		key []byte
		at  time.Time
	}
	var entries []entry
	err := b.ForEach(func(k, v []byte) error {
		var cached CachedPage
		if unpackPage(v, &cached) != nil {
			entries = append(entries, entry{key: append([]byte(nil), k...)})
			return nil
		}
		entries = append(entries, entry{key: append([]byte(nil), k...), at: cached.StoredAt})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) <= max {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	for _, e := range entries[:len(entries)-max] {
		if err := b.Delete(e.key); err != nil {
			return err
		}
	}
	return nil
}

// RecordTopic bumps the usage of topic in the history.
func (s *Store) RecordTopic(topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	key := []byte(strings.ToLower(topic))

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(topicsBucket)
		entry := TopicEntry{Topic: topic}
		if data := b.Get(key); data != nil {
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}
		}
		entry.Topic = topic
		entry.Count++
		entry.LastUsed = s.now()

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// RecentTopics returns the history, most recently used first.
func (s *Store) RecentTopics(limit int) ([]TopicEntry, error) {
	var topics []TopicEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(topicsBucket).ForEach(func(_, v []byte) error {
			var entry TopicEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			topics = append(topics, entry)
			return nil
		})
	})
	sort.Slice(topics, func(i, j int) bool {
		return topics[i].LastUsed.After(topics[j].LastUsed)
	})
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, err
}

func (s *Store) SaveSource(src *Source) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(src)
		if err != nil {
			return err
		}
		return tx.Bucket(sourcesBucket).Put([]byte(src.URL), data)
	})
}

func (s *Store) GetSource(url string) (*Source, error) {
	var src Source
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sourcesBucket).Get([]byte(url))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &src)
	})
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// GetAllSources returns every source sorted by title, falling back to URL.
func (s *Store) GetAllSources() ([]*Source, error) {
	var sources []*Source
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).ForEach(func(_, v []byte) error {
			var src Source
			if err := json.Unmarshal(v, &src); err != nil {
				return err
			}
			sources = append(sources, &src)
			return nil
		})
	})
	sort.Slice(sources, func(i, j int) bool {
		return strings.ToLower(sourceLabel(sources[i])) < strings.ToLower(sourceLabel(sources[j]))
	})
	return sources, err
}

func sourceLabel(s *Source) string {
	if s.Title != "" {
		return s.Title
	}
	return s.URL
}

func (s *Store) SaveHeadlines(headlines []*Headline) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(headlinesBucket)
		for _, h := range headlines {
			data, err := json.Marshal(h)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(h.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetHeadlines returns headlines of sourceURL (all sources when empty),
// newest first.
func (s *Store) GetHeadlines(sourceURL string, limit int) ([]*Headline, error) {
	var headlines []*Headline
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(headlinesBucket).ForEach(func(_, v []byte) error {
			var h Headline
			if err := json.Unmarshal(v, &h); err != nil {
				return nil
			}
			if sourceURL == "" || h.SourceURL == sourceURL {
				headlines = append(headlines, &h)
			}
			return nil
		})
	})
	sort.Slice(headlines, func(i, j int) bool {
		return headlines[i].Published.After(headlines[j].Published)
	})
	if limit > 0 && len(headlines) > limit {
		headlines = headlines[:limit]
	}
	return headlines, err
}

// DeleteSource removes a source and its headlines.
func (s *Store) DeleteSource(url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(sourcesBucket).Delete([]byte(url)); err != nil {
			return err
		}
		b := tx.Bucket(headlinesBucket)
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var h Headline
			if json.Unmarshal(v, &h) == nil && h.SourceURL == url {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
